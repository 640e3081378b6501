// Package document provides the dynamically typed value model that prefab
// documents are parsed into.
//
// A Value is a tagged variant over null, boolean, number, string, ordered
// sequence and ordered key-value map. Maps keep insertion order so that a
// document written back to disk lists its fields the way they were read.
// Numbers keep their literal text, which lets 64-bit entity ids survive a
// parse/serialize round trip without passing through float64.
//
// The zero Value is a valid null.
package document

import (
	"math/big"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMap
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a single node of a document tree.
type Value struct {
	kind    Kind
	boolean bool
	text    string // number literal or string contents
	items   []Value
	members []Member
}

// Member is one key/value pair of a map Value.
type Member struct {
	Key   string
	Value Value
}

// Null returns a null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number returns a number value holding the given literal. The literal is
// trusted to be a valid JSON number; codecs validate it before calling.
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// Int returns a number value for i.
func Int(i int64) Value { return Number(strconv.FormatInt(i, 10)) }

// Uint returns a number value for u.
func Uint(u uint64) Value { return Number(strconv.FormatUint(u, 10)) }

// Float returns a number value for f using the shortest representation.
func Float(f float64) Value { return Number(strconv.FormatFloat(f, 'g', -1, 64)) }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Sequence returns a sequence holding items in order.
func Sequence(items ...Value) Value {
	seq := make([]Value, len(items))
	copy(seq, items)
	return Value{kind: KindSequence, items: seq}
}

// Map returns a map holding members in order. A repeated key replaces the
// earlier value in place.
func Map(members ...Member) Value {
	m := Value{kind: KindMap, members: make([]Member, 0, len(members))}
	for _, member := range members {
		m.Set(member.Key, member.Value)
	}
	return m
}

// Field is shorthand for building a Member.
func Field(key string, v Value) Member { return Member{Key: key, Value: v} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsMap reports whether v is a map.
func (v Value) IsMap() bool { return v.kind == KindMap }

// IsSequence reports whether v is a sequence.
func (v Value) IsSequence() bool { return v.kind == KindSequence }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.boolean, true
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// NumberLiteral returns the literal text of a number value.
func (v Value) NumberLiteral() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return v.text, true
}

// AsFloat returns the number held by v as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// AsInt returns the number held by v as an int64 when it is integral.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	i, err := strconv.ParseInt(v.text, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Len returns the number of items of a sequence or members of a map, and 0
// for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.items)
	case KindMap:
		return len(v.members)
	default:
		return 0
	}
}

// Index returns a pointer to the i-th item of a sequence.
func (v *Value) Index(i int) (*Value, bool) {
	if v.kind != KindSequence || i < 0 || i >= len(v.items) {
		return nil, false
	}
	return &v.items[i], true
}

// Items returns the items of a sequence. The slice is shared with v.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return v.items
}

// Append adds item to the end of a sequence. It is a no-op for other kinds.
func (v *Value) Append(item Value) {
	if v.kind != KindSequence {
		return
	}
	v.items = append(v.items, item)
}

// Get returns a pointer to the value stored under key. The pointer stays
// valid until the next Set or Delete on v.
func (v *Value) Get(key string) (*Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	for i := range v.members {
		if v.members[i].Key == key {
			return &v.members[i].Value, true
		}
	}
	return nil, false
}

// Has reports whether a map contains key.
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Set stores item under key, replacing an existing value in place or
// appending a new member. It is a no-op when v is not a map.
func (v *Value) Set(key string, item Value) {
	if v.kind != KindMap {
		return
	}
	for i := range v.members {
		if v.members[i].Key == key {
			v.members[i].Value = item
			return
		}
	}
	v.members = append(v.members, Member{Key: key, Value: item})
}

// Delete removes key from a map and reports whether it was present.
func (v *Value) Delete(key string) bool {
	if v.kind != KindMap {
		return false
	}
	for i := range v.members {
		if v.members[i].Key == key {
			v.members = append(v.members[:i], v.members[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns the keys of a map in order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, len(v.members))
	for i, m := range v.members {
		keys[i] = m.Key
	}
	return keys
}

// Members returns the members of a map in order. The slice is shared with v.
func (v Value) Members() []Member {
	if v.kind != KindMap {
		return nil
	}
	return v.members
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	out := Value{kind: v.kind, boolean: v.boolean, text: v.text}
	if v.items != nil {
		out.items = make([]Value, len(v.items))
		for i, item := range v.items {
			out.items[i] = item.Clone()
		}
	}
	if v.members != nil {
		out.members = make([]Member, len(v.members))
		for i, m := range v.members {
			out.members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
	}
	return out
}

// Equal reports whether a and b are structurally equal. Map member order is
// ignored and numbers compare by value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindString:
		return a.text == b.text
	case KindNumber:
		return numbersEqual(a.text, b.text)
	case KindSequence:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.members) != len(b.members) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Get(m.Key)
			if !ok || !Equal(m.Value, *other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func numbersEqual(a, b string) bool {
	if a == b {
		return true
	}
	x, _, errX := big.ParseFloat(a, 10, 256, big.ToNearestEven)
	y, _, errY := big.ParseFloat(b, 10, 256, big.ToNearestEven)
	if errX != nil || errY != nil {
		return false
	}
	return x.Cmp(y) == 0
}
