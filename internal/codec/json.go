package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/conneroisu/prefab/internal/document"
)

// JSON reads JSON with comments and trailing commas and writes indented JSON.
// Map member order is preserved in both directions.
type JSON struct {
	Indent int
}

// Name returns the codec name.
func (c *JSON) Name() string { return "json" }

// Parse strips comments and trailing commas from data, then decodes it into
// an ordered document.
func (c *JSON) Parse(data []byte) (document.Value, error) {
	stripped := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(stripped)) == 0 {
		return document.Value{}, fmt.Errorf("parsing json: empty document")
	}

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.UseNumber()

	v, err := decodeJSON(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return document.Value{}, fmt.Errorf("parsing json: %w", err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return document.Value{}, fmt.Errorf("parsing json: unexpected data after top-level value at offset %d", dec.InputOffset())
	}

	return v, nil
}

func decodeJSON(dec *json.Decoder) (document.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return document.Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := document.Map()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return document.Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return document.Value{}, fmt.Errorf("expected object key at offset %d", dec.InputOffset())
				}
				item, err := decodeJSON(dec)
				if err != nil {
					return document.Value{}, err
				}
				m.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return document.Value{}, err
			}
			return m, nil
		case '[':
			seq := document.Sequence()
			for dec.More() {
				item, err := decodeJSON(dec)
				if err != nil {
					return document.Value{}, err
				}
				seq.Append(item)
			}
			if _, err := dec.Token(); err != nil {
				return document.Value{}, err
			}
			return seq, nil
		default:
			return document.Value{}, fmt.Errorf("unexpected delimiter %q at offset %d", t, dec.InputOffset())
		}
	case json.Number:
		return document.Number(t.String()), nil
	case string:
		return document.String(t), nil
	case bool:
		return document.Bool(t), nil
	case nil:
		return document.Null(), nil
	default:
		return document.Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

// Serialize writes v as indented JSON followed by a newline.
func (c *JSON) Serialize(v document.Value) ([]byte, error) {
	indent := c.Indent
	if indent <= 0 {
		indent = DefaultIndent
	}

	w := &jsonWriter{indent: strings.Repeat(" ", indent)}
	if err := w.value(v, 0); err != nil {
		return nil, fmt.Errorf("serializing json: %w", err)
	}
	w.buf.WriteByte('\n')

	return w.buf.Bytes(), nil
}

type jsonWriter struct {
	buf    bytes.Buffer
	indent string
}

func (w *jsonWriter) newline(depth int) {
	w.buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		w.buf.WriteString(w.indent)
	}
}

func (w *jsonWriter) value(v document.Value, depth int) error {
	switch v.Kind() {
	case document.KindNull:
		w.buf.WriteString("null")
	case document.KindBool:
		b, _ := v.AsBool()
		if b {
			w.buf.WriteString("true")
		} else {
			w.buf.WriteString("false")
		}
	case document.KindNumber:
		lit, _ := v.NumberLiteral()
		if !json.Valid([]byte(lit)) {
			return fmt.Errorf("invalid number literal %q", lit)
		}
		w.buf.WriteString(lit)
	case document.KindString:
		s, _ := v.AsString()
		return w.str(s)
	case document.KindSequence:
		items := v.Items()
		if len(items) == 0 {
			w.buf.WriteString("[]")
			return nil
		}
		w.buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			if err := w.value(item, depth+1); err != nil {
				return err
			}
		}
		w.newline(depth)
		w.buf.WriteByte(']')
	case document.KindMap:
		members := v.Members()
		if len(members) == 0 {
			w.buf.WriteString("{}")
			return nil
		}
		w.buf.WriteByte('{')
		for i, m := range members {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			if err := w.str(m.Key); err != nil {
				return err
			}
			w.buf.WriteString(": ")
			if err := w.value(m.Value, depth+1); err != nil {
				return err
			}
		}
		w.newline(depth)
		w.buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}

func (w *jsonWriter) str(s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	w.buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
