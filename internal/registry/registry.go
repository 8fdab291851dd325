package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/internal/schema"
	"github.com/toolbridge/toolbridge/internal/spec"
)

// Entry is one invokable operation from a loaded descriptor. Entries are
// immutable after Build returns and safe for concurrent readers.
type Entry struct {
	// ID is "<specKey>_<operationId>".
	ID          string
	Description string
	// InputSchema is the flattened object schema for the operation's inputs.
	InputSchema json.RawMessage
	// Method is the upper-case HTTP method.
	Method string
	// Path is the original path template, placeholders included.
	Path    string
	BaseURL string
	SpecKey string
	// SecurityHeader is the header name of the descriptor's apiKey-in-header
	// scheme, when one is declared.
	SecurityHeader string
	// APIKey is the configured secret sent under SecurityHeader. Populating
	// it is the configuration's job, not this package's.
	APIKey string
	// Operation keeps the declared parameter list for call-time routing.
	Operation *openapi3.Operation
}

// methodOrder fixes the per-path iteration order so registry construction is
// deterministic.
var methodOrder = []struct {
	name string
	get  func(*openapi3.PathItem) *openapi3.Operation
}{
	{"get", func(pi *openapi3.PathItem) *openapi3.Operation { return pi.Get }},
	{"post", func(pi *openapi3.PathItem) *openapi3.Operation { return pi.Post }},
	{"put", func(pi *openapi3.PathItem) *openapi3.Operation { return pi.Put }},
	{"delete", func(pi *openapi3.PathItem) *openapi3.Operation { return pi.Delete }},
	{"patch", func(pi *openapi3.PathItem) *openapi3.Operation { return pi.Patch }},
	{"head", func(pi *openapi3.PathItem) *openapi3.Operation { return pi.Head }},
	{"options", func(pi *openapi3.PathItem) *openapi3.Operation { return pi.Options }},
	{"trace", func(pi *openapi3.PathItem) *openapi3.Operation { return pi.Trace }},
}

// Build loads every configured descriptor and produces one entry per
// operation. Descriptors load concurrently, each with its own translation
// session; entries come back stitched in sorted spec-key order so the result
// is deterministic. Any load failure aborts the whole build: a partial
// registry is never returned.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]*Entry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	keys := cfg.SortedSpecKeys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("registry: no API descriptors configured")
	}

	perSpec := make([][]*Entry, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		sc := cfg.Specs[key]
		g.Go(func() error {
			entries, err := buildSpec(gctx, key, sc, log)
			if err != nil {
				return fmt.Errorf("registry: spec %q: %w", key, err)
			}
			perSpec[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*Entry
	for _, entries := range perSpec {
		all = append(all, entries...)
	}
	log.Info("registry built", zap.Int("specs", len(keys)), zap.Int("entries", len(all)))
	return all, nil
}

// buildSpec loads one descriptor and walks its paths in sorted order, methods
// in the fixed order above. The schema converter session is scoped to this
// descriptor only.
func buildSpec(ctx context.Context, key string, sc config.SpecConfig, log *zap.Logger) ([]*Entry, error) {
	doc, err := spec.Load(ctx, sc.URL, spec.WithLogger(log))
	if err != nil {
		return nil, err
	}

	conv := schema.NewConverter(doc, schema.WithLogger(log))
	secHeader := securityHeaderName(doc)

	pathKeys := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	var entries []*Entry
	for _, p := range pathKeys {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		for _, m := range methodOrder {
			op := m.get(item)
			if op == nil {
				continue
			}
			mergePathParameters(item, op)

			inputSchema, err := conv.OperationInputSchema(op)
			if err != nil {
				return nil, fmt.Errorf("input schema for %s %s: %w", m.name, p, err)
			}

			id := op.OperationID
			if id == "" {
				id = derivedOperationID(m.name, p)
			}
			desc := op.Summary
			if desc == "" {
				desc = op.Description
			}

			entries = append(entries, &Entry{
				ID:             key + "_" + id,
				Description:    "[" + key + "] " + desc,
				InputSchema:    inputSchema,
				Method:         strings.ToUpper(m.name),
				Path:           p,
				BaseURL:        sc.ServerURL,
				SpecKey:        key,
				SecurityHeader: secHeader,
				APIKey:         sc.APIKey,
				Operation:      op,
			})
		}
	}
	log.Info("descriptor loaded", zap.String("spec", key), zap.String("source", sc.URL), zap.Int("operations", len(entries)))
	return entries, nil
}

// mergePathParameters folds path-item level parameter declarations into the
// operation's list. Operation-level declarations win on (in, name) collisions;
// path-level ones keep their position, remaining operation parameters follow
// in declaration order.
func mergePathParameters(item *openapi3.PathItem, op *openapi3.Operation) {
	if len(item.Parameters) == 0 {
		return
	}
	opByKey := map[string]*openapi3.ParameterRef{}
	for _, pref := range op.Parameters {
		if pref == nil || pref.Value == nil {
			continue
		}
		opByKey[paramKey(pref.Value.In, pref.Value.Name)] = pref
	}

	merged := make(openapi3.Parameters, 0, len(item.Parameters)+len(op.Parameters))
	taken := map[string]struct{}{}
	for _, pref := range item.Parameters {
		if pref == nil || pref.Value == nil {
			continue
		}
		k := paramKey(pref.Value.In, pref.Value.Name)
		if override, ok := opByKey[k]; ok {
			merged = append(merged, override)
		} else {
			merged = append(merged, pref)
		}
		taken[k] = struct{}{}
	}
	for _, pref := range op.Parameters {
		if pref == nil || pref.Value == nil {
			continue
		}
		if _, ok := taken[paramKey(pref.Value.In, pref.Value.Name)]; ok {
			continue
		}
		merged = append(merged, pref)
	}
	op.Parameters = merged
}

func paramKey(in, name string) string { return in + ":" + name }

// derivedOperationID names operations that lack an operationId, e.g.
// "get_pet_petId" for GET /pet/{petId}.
func derivedOperationID(method, path string) string {
	cleaned := strings.NewReplacer("{", "", "}", "", "/", "_").Replace(path)
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return method
	}
	return method + "_" + cleaned
}

// securityHeaderName returns the header name of the first apiKey-in-header
// security scheme, scanning scheme names in sorted order. Empty when the
// descriptor declares none.
func securityHeaderName(doc *openapi3.T) string {
	schemes := doc.Components.SecuritySchemes
	if len(schemes) == 0 {
		return ""
	}
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref := schemes[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		s := ref.Value
		if s.Type == "apiKey" && strings.EqualFold(s.In, "header") {
			return s.Name
		}
	}
	return ""
}
