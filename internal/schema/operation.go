package schema

import (
	"encoding/json"

	"github.com/getkin/kin-openapi/openapi3"
)

// MediaTypeJSON is the only request-body media type the builder recognizes.
const MediaTypeJSON = "application/json"

// OperationInputSchema flattens one operation's parameters and JSON request
// body into a single object schema, serialized as JSON text.
//
// Every declared parameter, regardless of location, becomes a top-level
// property. A JSON request body contributes its properties at the top level
// too: either its direct properties, or the properties of every allOf branch.
// Required names come from required parameters plus the body's required list
// (or the union across allOf branches). An operation with no parameters and
// no body yields exactly {"type":"object"}.
func (c *Converter) OperationInputSchema(op *openapi3.Operation) ([]byte, error) {
	doc := Document{"type": "object"}
	if op == nil {
		return json.Marshal(doc)
	}

	props := Document{}
	var required []string

	for _, pref := range op.Parameters {
		if pref == nil || pref.Value == nil {
			continue
		}
		param := pref.Value
		if param.Schema == nil {
			continue
		}
		props[param.Name] = c.Convert(param.Schema)
		if param.Required {
			required = appendUnique(required, param.Name)
		}
	}

	if body := jsonBodySchema(op); body != nil {
		converted := c.Convert(body)
		if bp, ok := converted["properties"].(Document); ok {
			for _, name := range sortedKeys(bp) {
				props[name] = bp[name]
			}
		} else if branches, ok := converted["allOf"].([]Document); ok {
			for _, branch := range branches {
				if bp, ok := branch["properties"].(Document); ok {
					for _, name := range sortedKeys(bp) {
						props[name] = bp[name]
					}
				}
			}
		}
		if raw, ok := converted["required"]; ok {
			required = unionRequired(required, raw)
		} else if branches, ok := converted["allOf"].([]Document); ok {
			for _, branch := range branches {
				required = unionRequired(required, branch["required"])
			}
		}
	}

	if len(props) > 0 {
		doc["properties"] = props
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return json.Marshal(doc)
}

// jsonBodySchema returns the operation's application/json request-body schema,
// or nil when the operation declares none.
func jsonBodySchema(op *openapi3.Operation) *openapi3.SchemaRef {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	mt := op.RequestBody.Value.Content.Get(MediaTypeJSON)
	if mt == nil {
		return nil
	}
	return mt.Schema
}
