package invoke

import (
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/toolbridge/toolbridge/internal/schema"
)

// Param is one key/value pair destined for the query string. Order matters
// there: declared query parameters come first, fallthrough keys after.
type Param struct {
	Key   string
	Value any
}

// Routed is one invocation's flat input split into transmission channels. The
// maps are disjoint: every input key lands in at most one channel. Body is
// non-nil exactly when the request will carry a JSON body (non-GET method with
// a declared JSON request body).
type Routed struct {
	Path   map[string]any
	Query  []Param
	Header map[string]any
	Body   map[string]any
}

// Classify routes a flat input map into channels using the operation's
// declared parameter locations.
//
// Declared path/query/header parameters claim their keys first; this means a
// key colliding with a declared path or header parameter name is always
// routed to that channel, never to the body, even when the caller intended it
// for the body. Cookie-located parameters are not routed into any channel.
// Unmatched keys go to the body for non-GET operations declaring a JSON body,
// and to the query string otherwise.
func Classify(op *openapi3.Operation, method string, input map[string]any) Routed {
	routed := Routed{
		Path:   map[string]any{},
		Header: map[string]any{},
	}

	claimed := map[string]struct{}{}
	if op != nil {
		for _, pref := range op.Parameters {
			if pref == nil || pref.Value == nil {
				continue
			}
			param := pref.Value
			value, present := input[param.Name]
			if !present {
				continue
			}
			switch param.In {
			case openapi3.ParameterInPath:
				routed.Path[param.Name] = value
			case openapi3.ParameterInQuery:
				routed.Query = append(routed.Query, Param{Key: param.Name, Value: value})
			case openapi3.ParameterInHeader:
				routed.Header[param.Name] = value
			default:
				// Cookie parameters have no channel; their keys fall through
				// with the undeclared ones. Known gap, kept deliberately.
				continue
			}
			claimed[param.Name] = struct{}{}
		}
	}

	// Fallthrough keys, in sorted order for a deterministic request shape.
	var rest []string
	for key := range input {
		if _, ok := claimed[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)

	if method != http.MethodGet && declaresJSONBody(op) {
		routed.Body = map[string]any{}
		for _, key := range rest {
			routed.Body[key] = input[key]
		}
		return routed
	}
	for _, key := range rest {
		routed.Query = append(routed.Query, Param{Key: key, Value: input[key]})
	}
	return routed
}

func declaresJSONBody(op *openapi3.Operation) bool {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return false
	}
	return op.RequestBody.Value.Content.Get(schema.MediaTypeJSON) != nil
}
