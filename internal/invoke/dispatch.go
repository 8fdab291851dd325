package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toolbridge/toolbridge/internal/metrics"
	"github.com/toolbridge/toolbridge/internal/registry"
)

// DefaultCallTimeout bounds one invocation when no timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// DefaultMaxResponseLog caps response bodies in log output. The caller always
// receives the full body regardless.
const DefaultMaxResponseLog = 256 * 1024

// Dispatcher assembles and executes HTTP requests for registry entries. It
// holds no per-call state and is safe for concurrent use; connection pooling
// and backpressure belong to the underlying http.Client.
type Dispatcher struct {
	client         *http.Client
	log            *zap.Logger
	callTimeout    time.Duration
	maxResponseLog int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient replaces the transport.
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithCallTimeout bounds each invocation.
func WithCallTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.callTimeout = timeout
		}
	}
}

// WithMaxResponseLog caps logged response bodies.
func WithMaxResponseLog(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxResponseLog = n
		}
	}
}

// NewDispatcher returns a Dispatcher with sane defaults.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:         &http.Client{},
		log:            zap.NewNop(),
		callTimeout:    DefaultCallTimeout,
		maxResponseLog: DefaultMaxResponseLog,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call routes rawInput, assembles one HTTP request for the entry, executes it,
// and returns either the raw response body or an error text of the form
// "Error executing API call <id>: <message>". Exactly one attempt is made per
// invocation and the caller blocks until one outcome is known. No failure
// (bad input, transport error, non-success status, panic) escapes as anything
// but an error text.
func (d *Dispatcher) Call(ctx context.Context, entry *registry.Entry, rawInput string) (result string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = d.errorText(entry, fmt.Errorf("panic: %v", r))
		}
		outcome := metrics.OutcomeOK
		if strings.HasPrefix(result, errorPrefix) {
			outcome = metrics.OutcomeError
		}
		metrics.ObserveCall(entry.ID, outcome, time.Since(start))
	}()

	input := map[string]any{}
	if strings.TrimSpace(rawInput) != "" {
		if err := json.Unmarshal([]byte(rawInput), &input); err != nil {
			return d.errorText(entry, fmt.Errorf("invalid input JSON: %w", err))
		}
	}

	routed := Classify(entry.Operation, entry.Method, input)

	url := entry.BaseURL + substitutePath(entry.Path, routed.Path)
	if len(routed.Query) > 0 {
		url += "?" + encodeQuery(routed.Query)
	}

	var body io.Reader
	sendBody := routed.Body != nil && entry.Method != http.MethodGet
	if sendBody {
		payload, err := json.Marshal(routed.Body)
		if err != nil {
			return d.errorText(entry, fmt.Errorf("serialize body: %w", err))
		}
		body = bytes.NewReader(payload)
		d.log.Info("dispatching API call",
			zap.String("tool", entry.ID),
			zap.String("method", entry.Method),
			zap.String("url", url),
			zap.ByteString("body", payload))
	} else {
		d.log.Info("dispatching API call",
			zap.String("tool", entry.ID),
			zap.String("method", entry.Method),
			zap.String("url", url))
	}

	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, entry.Method, url, body)
	if err != nil {
		return d.errorText(entry, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range routed.Header {
		req.Header.Set(name, Stringify(value))
	}
	if entry.SecurityHeader != "" && entry.APIKey != "" {
		req.Header.Set(entry.SecurityHeader, entry.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return d.errorText(entry, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return d.errorText(entry, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return d.errorText(entry, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(d.truncate(string(text)))))
	}

	d.log.Info("API call finished",
		zap.String("tool", entry.ID),
		zap.Int("status", resp.StatusCode),
		zap.String("body", d.truncate(string(text))))
	return string(text)
}

const errorPrefix = "Error executing API call "

func (d *Dispatcher) errorText(entry *registry.Entry, err error) string {
	d.log.Error("API call failed", zap.String("tool", entry.ID), zap.Error(err))
	return fmt.Sprintf("%s%s: %v", errorPrefix, entry.ID, err)
}

func (d *Dispatcher) truncate(s string) string {
	if len(s) <= d.maxResponseLog {
		return s
	}
	return s[:d.maxResponseLog] + "..."
}

// substitutePath replaces every {name} placeholder with the stringified value
// from the path channel.
func substitutePath(template string, values map[string]any) string {
	out := template
	for name, value := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", Stringify(value))
	}
	return out
}

// encodeQuery joins key=value pairs in routed order. Values pass through the
// same stringification as path segments; no extra URL escaping is applied
// beyond what the transport does by default.
func encodeQuery(params []Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(Stringify(p.Value))
	}
	return b.String()
}

// Stringify renders one routed value for a URL or header. Sequences are
// comma-joined; everything else uses the default Go formatting, so JSON
// numbers render without a trailing ".0".
func Stringify(value any) string {
	switch v := value.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(v, ",")
	case string:
		return v
	case float64:
		// encoding/json decodes all numbers as float64; integral values
		// must print without a decimal point.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
