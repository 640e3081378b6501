package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/prefab/internal/document"
)

// YAML reads and writes prefab documents as YAML. Mapping order is preserved
// through yaml.Node.
type YAML struct {
	Indent int
}

// Name returns the codec name.
func (c *YAML) Name() string { return "yaml" }

// Parse decodes a single YAML document.
func (c *YAML) Parse(data []byte) (document.Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return document.Value{}, fmt.Errorf("parsing yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return document.Value{}, fmt.Errorf("parsing yaml: empty document")
	}

	v, err := fromNode(root.Content[0], 0)
	if err != nil {
		return document.Value{}, fmt.Errorf("parsing yaml: %w", err)
	}
	return v, nil
}

// maxAliasDepth bounds alias expansion so that self-referencing anchors
// cannot recurse forever.
const maxAliasDepth = 64

func fromNode(n *yaml.Node, aliasDepth int) (document.Value, error) {
	switch n.Kind {
	case yaml.AliasNode:
		if aliasDepth >= maxAliasDepth || n.Alias == nil {
			return document.Value{}, fmt.Errorf("line %d: alias too deep", n.Line)
		}
		return fromNode(n.Alias, aliasDepth+1)
	case yaml.MappingNode:
		m := document.Map()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return document.Value{}, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			item, err := fromNode(valNode, aliasDepth)
			if err != nil {
				return document.Value{}, err
			}
			m.Set(keyNode.Value, item)
		}
		return m, nil
	case yaml.SequenceNode:
		seq := document.Sequence()
		for _, child := range n.Content {
			item, err := fromNode(child, aliasDepth)
			if err != nil {
				return document.Value{}, err
			}
			seq.Append(item)
		}
		return seq, nil
	case yaml.ScalarNode:
		return fromScalar(n)
	default:
		return document.Value{}, fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}

func fromScalar(n *yaml.Node) (document.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return document.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return document.Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return document.Bool(b), nil
	case "!!int":
		if json.Valid([]byte(n.Value)) {
			return document.Number(n.Value), nil
		}
		var i int64
		if err := n.Decode(&i); err == nil {
			return document.Int(i), nil
		}
		var u uint64
		if err := n.Decode(&u); err != nil {
			return document.Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return document.Uint(u), nil
	case "!!float":
		if json.Valid([]byte(n.Value)) {
			return document.Number(n.Value), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return document.Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return document.Value{}, fmt.Errorf("line %d: %q is not a finite number", n.Line, n.Value)
		}
		return document.Float(f), nil
	default:
		return document.String(n.Value), nil
	}
}

// Serialize writes v as a YAML document.
func (c *YAML) Serialize(v document.Value) ([]byte, error) {
	indent := c.Indent
	if indent <= 0 {
		indent = DefaultIndent
	}

	node, err := toNode(v)
	if err != nil {
		return nil, fmt.Errorf("serializing yaml: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("serializing yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("serializing yaml: %w", err)
	}

	return buf.Bytes(), nil
}

func toNode(v document.Value) (*yaml.Node, error) {
	switch v.Kind() {
	case document.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case document.KindBool:
		b, _ := v.AsBool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}, nil
	case document.KindNumber:
		lit, _ := v.NumberLiteral()
		tag := "!!float"
		if _, err := strconv.ParseInt(lit, 10, 64); err == nil {
			tag = "!!int"
		} else if _, err := strconv.ParseUint(lit, 10, 64); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: lit}, nil
	case document.KindString:
		s, _ := v.AsString()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}, nil
	case document.KindSequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Items() {
			child, err := toNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	case document.KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, m := range v.Members() {
			child, err := toNode(m.Value)
			if err != nil {
				return nil, err
			}
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.Key}
			n.Content = append(n.Content, key, child)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", v.Kind())
	}
}
