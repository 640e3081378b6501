package schema

import (
	"errors"
	"fmt"

	"github.com/conneroisu/prefab/internal/document"
	"github.com/conneroisu/prefab/internal/normalize"
)

// Instantiation errors.
var (
	ErrKindMismatch  = errors.New("value kind does not match field default")
	ErrNotAMap       = errors.New("expected a map")
	ErrUnknownRoot   = errors.New("schema root type is not defined")
	errNilSchemaType = errors.New("nil type definition")
)

// Instantiator builds instances of a schema's root type.
type Instantiator struct {
	schema *Schema
}

var _ normalize.Instantiator = (*Instantiator)(nil)

// NewInstantiator creates an Instantiator for s.
func NewInstantiator(s *Schema) *Instantiator {
	return &Instantiator{schema: s}
}

// Instantiate checks doc against the root type and captures it. Fields the
// schema does not know are kept as-is.
func (in *Instantiator) Instantiate(doc document.Value) (normalize.Instance, error) {
	root, ok := in.schema.Types[in.schema.Root]
	if !ok {
		return nil, ErrUnknownRoot
	}
	if err := in.check(doc, root, document.Pointer{}); err != nil {
		return nil, err
	}

	return &instance{schema: in.schema, root: root, doc: doc.Clone()}, nil
}

func (in *Instantiator) check(v document.Value, def *TypeDef, at document.Pointer) error {
	if def == nil {
		return errNilSchemaType
	}
	if !v.IsMap() {
		return fmt.Errorf("%s: %w for %s, found %s", at, ErrNotAMap, def.Name, v.Kind())
	}

	for _, f := range def.Fields {
		val, ok := v.Get(f.Name)
		if !ok {
			continue
		}
		fieldAt := at.Append(f.Name)

		switch {
		case f.Default != nil:
			if val.Kind() != f.Default.Kind() {
				return fmt.Errorf("%s: %w: want %s, found %s", fieldAt, ErrKindMismatch, f.Default.Kind(), val.Kind())
			}
		case f.Type != "":
			if err := in.check(*val, in.schema.Types[f.Type], fieldAt); err != nil {
				return err
			}
		case f.MapOf != "":
			if !val.IsMap() {
				return fmt.Errorf("%s: %w for collection, found %s", fieldAt, ErrNotAMap, val.Kind())
			}
			for _, elem := range val.Members() {
				elemAt := fieldAt.Append(elem.Key)
				if !elem.Value.IsMap() {
					return fmt.Errorf("%s: %w for element, found %s", elemAt, ErrNotAMap, elem.Value.Kind())
				}
				elemDef, known := in.schema.elementType(f.MapOf, elem.Value)
				if !known {
					continue
				}
				if err := in.check(elem.Value, elemDef, elemAt); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// elementType resolves the type of one collection element.
func (s *Schema) elementType(mapOf string, elem document.Value) (*TypeDef, bool) {
	name := mapOf
	if mapOf == AnyType {
		typeVal, ok := elem.Get(TypeKey)
		if !ok {
			return nil, false
		}
		if name, ok = typeVal.AsString(); !ok {
			return nil, false
		}
	}

	def, ok := s.Types[name]
	return def, ok
}

type instance struct {
	schema *Schema
	root   *TypeDef
	doc    document.Value
}

// Store writes the instance out. Known fields come first in schema order,
// followed by unknown fields in their original order.
func (i *instance) Store(stripDefaults bool) (document.Value, error) {
	return i.schema.store(i.doc, i.root, stripDefaults), nil
}

func (s *Schema) store(v document.Value, def *TypeDef, strip bool) document.Value {
	out := document.Map()

	for _, f := range def.Fields {
		val, present := v.Get(f.Name)

		switch {
		case f.Default != nil:
			item := f.Default.Clone()
			if present {
				item = val.Clone()
			}
			if strip && document.Equal(item, *f.Default) {
				continue
			}
			out.Set(f.Name, item)

		case f.Type != "":
			nested := document.Map()
			if present {
				nested = *val
			}
			stored := s.store(nested, s.Types[f.Type], strip)
			if strip && stored.Len() == 0 {
				continue
			}
			out.Set(f.Name, stored)

		case f.MapOf != "":
			coll := document.Map()
			if present {
				for _, elem := range val.Members() {
					if elemDef, ok := s.elementType(f.MapOf, elem.Value); ok {
						coll.Set(elem.Key, s.store(elem.Value, elemDef, strip))
					} else {
						coll.Set(elem.Key, elem.Value.Clone())
					}
				}
			}
			if strip && coll.Len() == 0 {
				continue
			}
			out.Set(f.Name, coll)

		default:
			if present {
				out.Set(f.Name, val.Clone())
			}
		}
	}

	for _, m := range v.Members() {
		if _, known := def.Field(m.Key); !known {
			out.Set(m.Key, m.Value.Clone())
		}
	}

	return out
}
