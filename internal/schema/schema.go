// Package schema describes prefab document types and their default values,
// and instantiates documents against them for the normalize package.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/conneroisu/prefab/internal/codec"
	"github.com/conneroisu/prefab/internal/document"
)

// AnyType as a MapOf value reads each element's type from its TypeKey field.
const AnyType = "*"

// TypeKey names the discriminator field of elements in an AnyType collection.
const TypeKey = "$type"

//go:embed default_schema.yaml
var defaultSchemaYAML []byte

// ErrInvalidSchema is returned for schema documents that cannot be used.
var ErrInvalidSchema = errors.New("invalid schema")

// Schema is a set of named types with one root type.
type Schema struct {
	Root  string
	Types map[string]*TypeDef
}

// TypeDef lists the fields of one object type in storage order.
type TypeDef struct {
	Name   string
	Fields []FieldDef
}

// FieldDef describes one field. At most one of Default, Type and MapOf is
// set; a field with none of them is stored verbatim when present.
type FieldDef struct {
	Name    string
	Default *document.Value
	Type    string // nested object type
	MapOf   string // element type of a keyed collection, or AnyType
}

// Field returns the named field definition.
func (t *TypeDef) Field(name string) (*FieldDef, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Default returns the built-in prefab schema.
func Default() *Schema {
	s, err := ParseBytes("default_schema.yaml", defaultSchemaYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in schema: %v", err))
	}
	return s
}

// ParseBytes parses a schema file, picking the codec from its name.
func ParseBytes(name string, data []byte) (*Schema, error) {
	doc, err := codec.ForPath(name).Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return Parse(doc)
}

// Parse builds a schema from a schema document of the form
//
//	root: Prefab
//	types:
//	  Prefab:
//	    fields:
//	      - {name: Entities, map_of: Entity}
//	      - {name: Name, default: ""}
func Parse(doc document.Value) (*Schema, error) {
	if !doc.IsMap() {
		return nil, fmt.Errorf("%w: top level must be a map", ErrInvalidSchema)
	}

	rootVal, ok := doc.Get("root")
	if !ok {
		return nil, fmt.Errorf("%w: missing root", ErrInvalidSchema)
	}
	root, ok := rootVal.AsString()
	if !ok || root == "" {
		return nil, fmt.Errorf("%w: root must be a non-empty string", ErrInvalidSchema)
	}

	typesVal, ok := doc.Get("types")
	if !ok || !typesVal.IsMap() {
		return nil, fmt.Errorf("%w: types must be a map", ErrInvalidSchema)
	}

	s := &Schema{Root: root, Types: make(map[string]*TypeDef, typesVal.Len())}
	for _, m := range typesVal.Members() {
		def, err := parseType(m.Key, m.Value)
		if err != nil {
			return nil, err
		}
		s.Types[m.Key] = def
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseType(name string, v document.Value) (*TypeDef, error) {
	def := &TypeDef{Name: name}
	if !v.IsMap() {
		return nil, fmt.Errorf("%w: type %s must be a map", ErrInvalidSchema, name)
	}

	fieldsVal, ok := v.Get("fields")
	if !ok {
		return def, nil
	}
	if !fieldsVal.IsSequence() {
		return nil, fmt.Errorf("%w: %s.fields must be a sequence", ErrInvalidSchema, name)
	}

	for i, f := range fieldsVal.Items() {
		if !f.IsMap() {
			return nil, fmt.Errorf("%w: %s.fields[%d] must be a map", ErrInvalidSchema, name, i)
		}
		field := FieldDef{}

		nameVal, _ := f.Get("name")
		if nameVal != nil {
			field.Name, _ = nameVal.AsString()
		}
		if field.Name == "" {
			return nil, fmt.Errorf("%w: %s.fields[%d] needs a name", ErrInvalidSchema, name, i)
		}
		if dflt, ok := f.Get("default"); ok {
			d := dflt.Clone()
			field.Default = &d
		}
		if typ, ok := f.Get("type"); ok {
			field.Type, _ = typ.AsString()
		}
		if mapOf, ok := f.Get("map_of"); ok {
			field.MapOf, _ = mapOf.AsString()
		}

		def.Fields = append(def.Fields, field)
	}

	return def, nil
}

// Validate checks that the root and every referenced type exist and that
// field definitions are unambiguous.
func (s *Schema) Validate() error {
	if _, ok := s.Types[s.Root]; !ok {
		return fmt.Errorf("%w: root type %q is not defined", ErrInvalidSchema, s.Root)
	}

	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		seen := map[string]bool{}
		for _, f := range s.Types[name].Fields {
			if seen[f.Name] {
				return fmt.Errorf("%w: %s.%s defined twice", ErrInvalidSchema, name, f.Name)
			}
			seen[f.Name] = true

			set := 0
			if f.Default != nil {
				set++
			}
			if f.Type != "" {
				set++
				if _, ok := s.Types[f.Type]; !ok {
					return fmt.Errorf("%w: %s.%s refers to unknown type %q", ErrInvalidSchema, name, f.Name, f.Type)
				}
			}
			if f.MapOf != "" {
				set++
				if _, ok := s.Types[f.MapOf]; !ok && f.MapOf != AnyType {
					return fmt.Errorf("%w: %s.%s refers to unknown type %q", ErrInvalidSchema, name, f.Name, f.MapOf)
				}
			}
			if set > 1 {
				return fmt.Errorf("%w: %s.%s sets more than one of default, type, map_of", ErrInvalidSchema, name, f.Name)
			}
		}
	}

	return nil
}
