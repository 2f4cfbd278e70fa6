// Package ctxmodel defines the value types shared across every tier and
// retrieval component: the context item itself, its metadata, and the
// request/response shapes the orchestrator exchanges with callers.
package ctxmodel

import (
	"encoding/json"
	"fmt"
)

// Kind tags which field of Value is populated.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindStringList
)

// Value is a tagged-union metadata value. Metadata in this store is never a
// bare map[string]any — policy code (tier routing, filter predicates) reads
// reserved keys through typed accessors on Metadata instead.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	strs   []string
}

func BoolValue(b bool) Value          { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value          { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value      { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value      { return Value{kind: KindString, s: s} }
func StringListValue(ss []string) Value {
	cp := make([]string, len(ss))
	copy(cp, ss)
	return Value{kind: KindStringList, strs: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsStringList() ([]string, bool) {
	if v.kind != KindStringList {
		return nil, false
	}
	cp := make([]string, len(v.strs))
	copy(cp, v.strs)
	return cp, true
}

// Equal reports whether two values hold the same kind and payload. Used by
// the filter predicate (§4.9) for scalar-equality checks.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindStringList:
		if len(v.strs) != len(other.strs) {
			return false
		}
		for i := range v.strs {
			if v.strs[i] != other.strs[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Contains reports whether v is a StringList containing s, or a String equal
// to s.
func (v Value) Contains(s string) bool {
	switch v.kind {
	case KindStringList:
		for _, x := range v.strs {
			if x == s {
				return true
			}
		}
		return false
	case KindString:
		return v.s == s
	}
	return false
}

// jsonValue is Value's wire shape, needed because Value's fields are
// unexported (no field of the tagged union is ever seen outside its
// constructors/accessors).
type jsonValue struct {
	Kind    Kind     `json:"kind"`
	Bool    bool     `json:"bool,omitempty"`
	Int     int64    `json:"int,omitempty"`
	Float   float64  `json:"float,omitempty"`
	String  string   `json:"string,omitempty"`
	Strings []string `json:"strings,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonValue{Kind: v.kind, Bool: v.b, Int: v.i, Float: v.f, String: v.s, Strings: v.strs})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	v.kind, v.b, v.i, v.f, v.s, v.strs = jv.Kind, jv.Bool, jv.Int, jv.Float, jv.String, jv.Strings
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindStringList:
		return fmt.Sprintf("%v", v.strs)
	}
	return ""
}
