package document

import (
	"errors"
	"strconv"
	"strings"
)

// Sentinel errors returned by Pointer operations.
var (
	// ErrInvalidPointer is returned when a pointer string is malformed.
	ErrInvalidPointer = errors.New("invalid json pointer")

	// ErrPointerNotFound is returned when a pointer does not resolve.
	ErrPointerNotFound = errors.New("json pointer target not found")
)

var (
	tokenEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	tokenUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// Pointer addresses a Value inside a document tree (RFC 6901).
type Pointer struct {
	tokens []string
}

// ParsePointer parses the string form of a JSON pointer. The empty string
// addresses the root.
func ParsePointer(s string) (Pointer, error) {
	if s == "" {
		return Pointer{}, nil
	}
	if s[0] != '/' {
		return Pointer{}, ErrInvalidPointer
	}
	raw := strings.Split(s[1:], "/")
	tokens := make([]string, len(raw))
	for i, tok := range raw {
		if !validEscapes(tok) {
			return Pointer{}, ErrInvalidPointer
		}
		tokens[i] = tokenUnescaper.Replace(tok)
	}
	return Pointer{tokens: tokens}, nil
}

func validEscapes(tok string) bool {
	for i := 0; i < len(tok); i++ {
		if tok[i] != '~' {
			continue
		}
		if i+1 >= len(tok) || (tok[i+1] != '0' && tok[i+1] != '1') {
			return false
		}
	}
	return true
}

// PointerTo builds a pointer from unescaped reference tokens.
func PointerTo(tokens ...string) Pointer {
	p := Pointer{tokens: make([]string, len(tokens))}
	copy(p.tokens, tokens)
	return p
}

// Tokens returns a copy of the unescaped reference tokens.
func (p Pointer) Tokens() []string {
	out := make([]string, len(p.tokens))
	copy(out, p.tokens)
	return out
}

// IsRoot reports whether p addresses the document root.
func (p Pointer) IsRoot() bool { return len(p.tokens) == 0 }

// Append returns a new pointer with token added at the end.
func (p Pointer) Append(token string) Pointer {
	tokens := make([]string, len(p.tokens)+1)
	copy(tokens, p.tokens)
	tokens[len(p.tokens)] = token
	return Pointer{tokens: tokens}
}

// String returns the escaped string form of p.
func (p Pointer) String() string {
	var b strings.Builder
	for _, tok := range p.tokens {
		b.WriteByte('/')
		b.WriteString(tokenEscaper.Replace(tok))
	}
	return b.String()
}

// Get resolves p against root.
func (p Pointer) Get(root *Value) (*Value, bool) {
	cur := root
	for _, tok := range p.tokens {
		next, ok := child(cur, tok)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set stores v at p. Every token but the last must already resolve. For a
// sequence parent the last token is an index or "-" to append.
func (p Pointer) Set(root *Value, v Value) error {
	if p.IsRoot() {
		*root = v
		return nil
	}
	parent, ok := PointerTo(p.tokens[:len(p.tokens)-1]...).Get(root)
	if !ok {
		return ErrPointerNotFound
	}
	last := p.tokens[len(p.tokens)-1]
	switch parent.Kind() {
	case KindMap:
		parent.Set(last, v)
		return nil
	case KindSequence:
		if last == "-" {
			parent.Append(v)
			return nil
		}
		slot, ok := child(parent, last)
		if !ok {
			return ErrPointerNotFound
		}
		*slot = v
		return nil
	default:
		return ErrPointerNotFound
	}
}

// Erase removes the value at p and reports whether it existed. The root
// cannot be erased.
func (p Pointer) Erase(root *Value) bool {
	if p.IsRoot() {
		return false
	}
	parent, ok := PointerTo(p.tokens[:len(p.tokens)-1]...).Get(root)
	if !ok {
		return false
	}
	last := p.tokens[len(p.tokens)-1]
	switch parent.Kind() {
	case KindMap:
		return parent.Delete(last)
	case KindSequence:
		i, ok := arrayIndex(last, len(parent.items))
		if !ok {
			return false
		}
		parent.items = append(parent.items[:i], parent.items[i+1:]...)
		return true
	default:
		return false
	}
}

func child(v *Value, tok string) (*Value, bool) {
	switch v.Kind() {
	case KindMap:
		return v.Get(tok)
	case KindSequence:
		i, ok := arrayIndex(tok, len(v.items))
		if !ok {
			return nil, false
		}
		return &v.items[i], true
	default:
		return nil, false
	}
}

// arrayIndex parses an RFC 6901 array index: no sign, no leading zeros.
func arrayIndex(tok string, length int) (int, bool) {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(tok)
	if err != nil || i >= length {
		return 0, false
	}
	return i, true
}
