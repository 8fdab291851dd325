package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/toolbridge/toolbridge/internal/invoke"
	"github.com/toolbridge/toolbridge/internal/registry"
)

// Drives the server through raw JSON-RPC messages, the same path the stdio
// transport uses.
func TestServerExposesToolsAndDispatches(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pong")
	}))
	t.Cleanup(upstream.Close)

	entries := []*registry.Entry{{
		ID:          "demo_ping",
		Description: "[demo] Ping the demo API",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Method:      http.MethodGet,
		Path:        "/ping",
		BaseURL:     upstream.URL,
		SpecKey:     "demo",
	}}
	s := New(entries, invoke.NewDispatcher(), zap.NewNop())
	require.NotNil(t, s)

	ctx := context.Background()
	initResp := s.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0.0.0"}}}`))
	require.NotNil(t, initResp)

	listResp := s.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	listRaw, err := json.Marshal(listResp)
	require.NoError(t, err)
	require.Contains(t, string(listRaw), "demo_ping")
	require.Contains(t, string(listRaw), "[demo] Ping the demo API")

	callResp := s.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"demo_ping","arguments":{}}}`))
	callRaw, err := json.Marshal(callResp)
	require.NoError(t, err)
	require.Contains(t, string(callRaw), "pong")
}

// A failing upstream surfaces as a text result, never a JSON-RPC error.
func TestServerReturnsErrorText(t *testing.T) {
	t.Parallel()

	entries := []*registry.Entry{{
		ID:          "demo_down",
		Description: "[demo] Always unreachable",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Method:      http.MethodGet,
		Path:        "/x",
		BaseURL:     "http://127.0.0.1:1",
		SpecKey:     "demo",
	}}
	s := New(entries, invoke.NewDispatcher(), nil)

	ctx := context.Background()
	s.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0.0.0"}}}`))

	resp := s.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"demo_down","arguments":{}}}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	require.Contains(t, string(raw), "Error executing API call demo_down")
	require.NotContains(t, string(raw), `"error"`)
}
