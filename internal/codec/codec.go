// Package codec converts prefab documents between text and document.Value.
package codec

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/prefab/internal/document"
)

// DefaultIndent is the number of spaces used when serializing documents.
const DefaultIndent = 4

// Codec parses and serializes one text format.
type Codec interface {
	Name() string
	Parse(data []byte) (document.Value, error)
	Serialize(v document.Value) ([]byte, error)
}

// Option configures codecs returned by ForPath.
type Option func(*options)

type options struct {
	indent int
}

// WithIndent sets the indentation width. Non-positive values keep the default.
func WithIndent(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.indent = n
		}
	}
}

// ForPath picks a codec from the extension of path. Unknown extensions use
// JSON, which is the native prefab format.
func ForPath(path string, opts ...Option) Codec {
	o := options{indent: DefaultIndent}
	for _, opt := range opts {
		opt(&o)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return &YAML{Indent: o.indent}
	default:
		return &JSON{Indent: o.indent}
	}
}
