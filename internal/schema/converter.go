package schema

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
)

// DefaultMaxRefHops bounds how many $ref hops the converter follows before
// giving up on a chain and degrading to a generic object schema.
const DefaultMaxRefHops = 5

const componentsPrefix = "#/components/schemas/"

// Document is one translated schema fragment, ready for JSON serialization.
// encoding/json emits map keys in sorted order, which keeps output stable.
type Document = map[string]any

// Converter is a single descriptor's schema-translation session. It holds the
// descriptor's named-type table and memoizes resolved references. One
// Converter per loaded descriptor; sharing a session across descriptors risks
// name collisions between specs that reuse the same type name.
//
// Converters are not safe for concurrent use; each loading goroutine owns its
// own session.
type Converter struct {
	types      openapi3.Schemas
	resolved   map[string]*openapi3.Schema
	maxRefHops int
	log        *zap.Logger
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithMaxRefHops overrides the reference hop bound.
func WithMaxRefHops(n int) ConverterOption {
	return func(c *Converter) {
		if n > 0 {
			c.maxRefHops = n
		}
	}
}

// WithLogger attaches a logger for degradation diagnostics.
func WithLogger(l *zap.Logger) ConverterOption {
	return func(c *Converter) {
		if l != nil {
			c.log = l
		}
	}
}

// NewConverter starts a translation session over the document's named-type
// table. A nil document yields a session that resolves nothing (every
// reference degrades to a generic object).
func NewConverter(doc *openapi3.T, opts ...ConverterOption) *Converter {
	c := &Converter{
		resolved:   make(map[string]*openapi3.Schema),
		maxRefHops: DefaultMaxRefHops,
		log:        zap.NewNop(),
	}
	if doc != nil {
		c.types = doc.Components.Schemas
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset drops the session's memoized reference resolutions.
func (c *Converter) Reset() {
	c.resolved = make(map[string]*openapi3.Schema)
}

// Convert translates one schema (and everything it references) into a fully
// self-contained document. It never fails: malformed or unresolvable input
// degrades to {"type":"object"} with a warning.
func (c *Converter) Convert(ref *openapi3.SchemaRef) Document {
	if ref == nil || (ref.Ref == "" && ref.Value == nil) {
		return Document{"type": "object"}
	}
	if ref.Ref != "" {
		return c.resolveReference(ref.Ref)
	}
	return c.convertSchema(ref.Value)
}

// resolveReference looks a reference up in the type table, following chained
// references iteratively up to the hop bound. Resolutions are memoized by the
// original reference string.
func (c *Converter) resolveReference(ref string) Document {
	if target, ok := c.resolved[ref]; ok {
		return c.convertSchema(target)
	}

	cur := ref
	var target *openapi3.Schema
	for hop := 0; hop < c.maxRefHops; hop++ {
		name := strings.TrimPrefix(cur, componentsPrefix)
		if name == cur {
			c.log.Warn("unsupported reference shape", zap.String("ref", cur))
			return Document{"type": "object"}
		}
		sr, ok := c.types[name]
		if !ok || sr == nil {
			c.log.Warn("reference not found in type table", zap.String("ref", cur))
			return Document{"type": "object"}
		}
		if sr.Ref != "" {
			cur = sr.Ref
			continue
		}
		target = sr.Value
		break
	}
	if target == nil {
		c.log.Warn("reference chain exceeded hop bound", zap.String("ref", ref), zap.Int("maxHops", c.maxRefHops))
		return Document{"type": "object"}
	}

	c.resolved[ref] = target
	return c.convertSchema(target)
}

func (c *Converter) convertSchema(s *openapi3.Schema) Document {
	if s == nil {
		return Document{"type": "object"}
	}
	doc := Document{}
	switch {
	case isObjectWithProperties(s):
		c.convertObject(s, doc)
	case s.Type == "string":
		convertString(s, doc)
	case s.Type == "integer":
		convertNumeric(s, doc, "integer")
	case s.Type == "number":
		convertNumeric(s, doc, "number")
	case s.Type == "boolean":
		convertBoolean(s, doc)
	case s.Type == "array":
		c.convertArray(s, doc)
	case s.Type == "object":
		c.convertObject(s, doc)
	case isComposed(s):
		c.convertComposed(s, doc)
	default:
		c.convertGeneric(s, doc)
	}
	mergeCommonAttributes(s, doc)
	return doc
}

// isObjectWithProperties recognizes object schemas carrying properties,
// including schemas that omit an explicit type but declare properties.
func isObjectWithProperties(s *openapi3.Schema) bool {
	return (s.Type == "object" || s.Type == "") && len(s.Properties) > 0
}

func isComposed(s *openapi3.Schema) bool {
	return len(s.AllOf) > 0 || len(s.AnyOf) > 0 || len(s.OneOf) > 0 || s.Not != nil
}

func convertString(s *openapi3.Schema, doc Document) {
	doc["type"] = "string"
	if s.MinLength > 0 {
		doc["minLength"] = s.MinLength
	}
	if s.MaxLength != nil {
		doc["maxLength"] = *s.MaxLength
	}
	if s.Pattern != "" {
		doc["pattern"] = s.Pattern
	}
	if len(s.Enum) > 0 {
		doc["enum"] = append([]any(nil), s.Enum...)
	}
	if s.Format != "" {
		doc["format"] = s.Format
	}
}

func convertNumeric(s *openapi3.Schema, doc Document, typ string) {
	doc["type"] = typ
	if s.Min != nil {
		doc["minimum"] = *s.Min
	}
	if s.Max != nil {
		doc["maximum"] = *s.Max
	}
	if s.ExclusiveMin {
		doc["exclusiveMinimum"] = true
	}
	if s.ExclusiveMax {
		doc["exclusiveMaximum"] = true
	}
	if s.MultipleOf != nil {
		doc["multipleOf"] = *s.MultipleOf
	}
	if len(s.Enum) > 0 {
		doc["enum"] = append([]any(nil), s.Enum...)
	}
	if s.Format != "" {
		doc["format"] = s.Format
	}
}

func convertBoolean(s *openapi3.Schema, doc Document) {
	doc["type"] = "boolean"
	if len(s.Enum) > 0 {
		doc["enum"] = append([]any(nil), s.Enum...)
	}
}

func (c *Converter) convertArray(s *openapi3.Schema, doc Document) {
	doc["type"] = "array"
	if s.Items != nil {
		doc["items"] = c.Convert(s.Items)
	}
	if s.MinItems > 0 {
		doc["minItems"] = s.MinItems
	}
	if s.MaxItems != nil {
		doc["maxItems"] = *s.MaxItems
	}
	if s.UniqueItems {
		doc["uniqueItems"] = true
	}
}

func (c *Converter) convertObject(s *openapi3.Schema, doc Document) {
	doc["type"] = "object"
	if len(s.Properties) > 0 {
		props := Document{}
		for _, name := range sortedKeys(s.Properties) {
			props[name] = c.Convert(s.Properties[name])
		}
		doc["properties"] = props
	}
	if len(s.Required) > 0 {
		doc["required"] = append([]string(nil), s.Required...)
	}
	if s.MinProps > 0 {
		doc["minProperties"] = s.MinProps
	}
	if s.MaxProps != nil {
		doc["maxProperties"] = *s.MaxProps
	}
	if s.AdditionalPropertiesAllowed != nil {
		doc["additionalProperties"] = *s.AdditionalPropertiesAllowed
	} else if s.AdditionalProperties != nil {
		doc["additionalProperties"] = c.Convert(s.AdditionalProperties)
	}
}

func (c *Converter) convertComposed(s *openapi3.Schema, doc Document) {
	if len(s.AllOf) > 0 {
		// Merge every branch into one synthetic object: properties are
		// unioned with later branches winning on name collisions, required
		// lists are unioned.
		merged := Document{"type": "object"}
		props := Document{}
		var required []string
		for _, branch := range s.AllOf {
			converted := c.Convert(branch)
			if bp, ok := converted["properties"].(Document); ok {
				for _, name := range sortedKeys(bp) {
					props[name] = bp[name]
				}
			}
			required = unionRequired(required, converted["required"])
		}
		merged["properties"] = props
		if len(required) > 0 {
			merged["required"] = required
		}
		doc["allOf"] = []Document{merged}
	}
	if len(s.AnyOf) > 0 {
		alts := make([]Document, 0, len(s.AnyOf))
		for _, branch := range s.AnyOf {
			alts = append(alts, c.Convert(branch))
		}
		doc["anyOf"] = alts
	}
	if len(s.OneOf) > 0 {
		alts := make([]Document, 0, len(s.OneOf))
		for _, branch := range s.OneOf {
			alts = append(alts, c.Convert(branch))
		}
		doc["oneOf"] = alts
	}
	if s.Not != nil {
		doc["not"] = c.Convert(s.Not)
	}
}

// convertGeneric is the best-effort fallback for schemas that fit none of the
// recognized shapes; constraints are copied opportunistically by declared type.
func (c *Converter) convertGeneric(s *openapi3.Schema, doc Document) {
	if s.Type != "" {
		doc["type"] = s.Type
	}
	switch s.Type {
	case "string":
		if s.MinLength > 0 {
			doc["minLength"] = s.MinLength
		}
		if s.MaxLength != nil {
			doc["maxLength"] = *s.MaxLength
		}
		if s.Pattern != "" {
			doc["pattern"] = s.Pattern
		}
		if s.Format != "" {
			doc["format"] = s.Format
		}
	case "number", "integer":
		if s.Min != nil {
			doc["minimum"] = *s.Min
		}
		if s.Max != nil {
			doc["maximum"] = *s.Max
		}
		if s.ExclusiveMin {
			doc["exclusiveMinimum"] = true
		}
		if s.ExclusiveMax {
			doc["exclusiveMaximum"] = true
		}
		if s.MultipleOf != nil {
			doc["multipleOf"] = *s.MultipleOf
		}
		if s.Format != "" {
			doc["format"] = s.Format
		}
	case "array":
		if s.Items != nil {
			doc["items"] = c.Convert(s.Items)
		}
		if s.MinItems > 0 {
			doc["minItems"] = s.MinItems
		}
		if s.MaxItems != nil {
			doc["maxItems"] = *s.MaxItems
		}
		if s.UniqueItems {
			doc["uniqueItems"] = true
		}
	}
	if len(s.Enum) > 0 {
		doc["enum"] = append([]any(nil), s.Enum...)
	}
}

// mergeCommonAttributes adds the descriptive attributes every shape shares,
// without overwriting anything the branch handler already set.
func mergeCommonAttributes(s *openapi3.Schema, doc Document) {
	setIfAbsent(doc, "description", s.Description, s.Description != "")
	setIfAbsent(doc, "title", s.Title, s.Title != "")
	setIfAbsent(doc, "default", s.Default, s.Default != nil)
	setIfAbsent(doc, "example", s.Example, s.Example != nil)
	setIfAbsent(doc, "nullable", true, s.Nullable)
	setIfAbsent(doc, "readOnly", true, s.ReadOnly)
	setIfAbsent(doc, "writeOnly", true, s.WriteOnly)
}

func setIfAbsent(doc Document, key string, value any, present bool) {
	if !present {
		return
	}
	if _, exists := doc[key]; exists {
		return
	}
	doc[key] = value
}

// unionRequired merges a converted schema's required list (either []string or,
// after a JSON round trip, []any) into acc, preserving order and uniqueness.
func unionRequired(acc []string, raw any) []string {
	switch list := raw.(type) {
	case []string:
		for _, name := range list {
			acc = appendUnique(acc, name)
		}
	case []any:
		for _, v := range list {
			if name, ok := v.(string); ok {
				acc = appendUnique(acc, name)
			}
		}
	}
	return acc
}

func appendUnique(acc []string, name string) []string {
	for _, have := range acc {
		if have == name {
			return acc
		}
	}
	return append(acc, name)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
