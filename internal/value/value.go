// Package value models the dynamic values exchanged with the UI runtime.
//
// A Value holds exactly one kind at a time. Objects and arrays are shared
// containers: copying a Value copies the reference, so writes through any
// copy are visible to every holder. Containers are borrowed from the host
// for a single processing pass and must not be retained past it.
package value

import "fmt"

// Kind identifies the active variant of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindWideString
	KindObject
	KindArray
	KindDisplayObject
)

var kindNames = [...]string{
	KindUndefined:     "undefined",
	KindNull:          "null",
	KindBool:          "boolean",
	KindNumber:        "number",
	KindString:        "string",
	KindWideString:    "wstring",
	KindObject:        "object",
	KindArray:         "array",
	KindDisplayObject: "display object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a tagged union over the UI runtime's value kinds. The zero Value
// is Undefined.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      string
	obj    *Object
	arr    *Array
	handle any
}

func Undefined() Value { return Value{} }

func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

func Int(n int64) Value { return Value{kind: KindNumber, n: float64(n)} }

func String(s string) Value { return Value{kind: KindString, s: s} }

// WideString holds a string the runtime stores as UTF-16.
func WideString(s string) Value { return Value{kind: KindWideString, s: s} }

// DisplayObject wraps an opaque host handle.
func DisplayObject(handle any) Value { return Value{kind: KindDisplayObject, handle: handle} }

// NewObject returns a Value holding a new, empty object.
func NewObject() Value { return Value{kind: KindObject, obj: &Object{}} }

// NewArray returns a Value holding a new array with the given elements.
func NewArray(elems ...Value) Value {
	return Value{kind: KindArray, arr: &Array{elems: append([]Value(nil), elems...)}}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsBool() bool      { return v.kind == KindBool }
func (v Value) IsNumber() bool    { return v.kind == KindNumber }
func (v Value) IsString() bool    { return v.kind == KindString }
func (v Value) IsWideString() bool {
	return v.kind == KindWideString
}
func (v Value) IsObject() bool        { return v.kind == KindObject }
func (v Value) IsArray() bool         { return v.kind == KindArray }
func (v Value) IsDisplayObject() bool { return v.kind == KindDisplayObject }

// GetBool returns the boolean payload, or false for other kinds.
func (v Value) GetBool() bool { return v.kind == KindBool && v.b }

// GetNumber returns the numeric payload, or 0 for other kinds.
func (v Value) GetNumber() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.n
}

// GetString returns the payload of a String or WideString, or "".
func (v Value) GetString() string {
	if v.kind != KindString && v.kind != KindWideString {
		return ""
	}
	return v.s
}

// Handle returns the host handle of a DisplayObject.
func (v Value) Handle() any {
	if v.kind != KindDisplayObject {
		return nil
	}
	return v.handle
}

// Object returns the backing object, or nil when v is not an object.
func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Array returns the backing array, or nil when v is not an array.
func (v Value) Array() *Array {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// GetMember returns the named member, or Undefined when v is not an object
// or has no such member.
func (v Value) GetMember(name string) Value {
	if o := v.Object(); o != nil {
		return o.Get(name)
	}
	return Undefined()
}

// HasMember reports whether v is an object holding name.
func (v Value) HasMember(name string) bool {
	if o := v.Object(); o != nil {
		return o.Has(name)
	}
	return false
}

// SetMember writes name on an object. It reports false for other kinds.
func (v Value) SetMember(name string, member Value) bool {
	o := v.Object()
	if o == nil {
		return false
	}
	o.Set(name, member)
	return true
}

// DeleteMember removes name from an object and reports whether it existed.
func (v Value) DeleteMember(name string) bool {
	if o := v.Object(); o != nil {
		return o.Delete(name)
	}
	return false
}

// VisitMembers calls fn for each object member in insertion order.
func (v Value) VisitMembers(fn func(name string, member Value)) {
	if o := v.Object(); o != nil {
		o.Each(fn)
	}
}

// ArraySize returns the element count, or 0 when v is not an array.
func (v Value) ArraySize() int {
	if a := v.Array(); a != nil {
		return a.Len()
	}
	return 0
}

// GetElement returns element i, or Undefined when out of range.
func (v Value) GetElement(i int) Value {
	if a := v.Array(); a != nil {
		return a.Get(i)
	}
	return Undefined()
}

// Equal reports whether a and b hold the same scalar, or the same container.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString, KindWideString:
		return a.s == b.s
	case KindObject:
		return a.obj == b.obj
	case KindArray:
		return a.arr == b.arr
	case KindDisplayObject:
		return a.handle == b.handle
	}
	return false
}

// Object is an ordered, mutable name to Value mapping.
type Object struct {
	names   []string
	members map[string]Value
}

func (o *Object) Len() int { return len(o.names) }

func (o *Object) Get(name string) Value {
	if o.members == nil {
		return Undefined()
	}
	return o.members[name]
}

func (o *Object) Has(name string) bool {
	_, ok := o.members[name]
	return ok
}

// Set writes a member. Existing members keep their position.
func (o *Object) Set(name string, v Value) {
	if o.members == nil {
		o.members = make(map[string]Value)
	}
	if _, ok := o.members[name]; !ok {
		o.names = append(o.names, name)
	}
	o.members[name] = v
}

func (o *Object) Delete(name string) bool {
	if _, ok := o.members[name]; !ok {
		return false
	}
	delete(o.members, name)
	for i, n := range o.names {
		if n == name {
			o.names = append(o.names[:i], o.names[i+1:]...)
			break
		}
	}
	return true
}

// Names returns member names in insertion order.
func (o *Object) Names() []string {
	return append([]string(nil), o.names...)
}

// Each visits members in insertion order. Mutating o from fn is not supported.
func (o *Object) Each(fn func(name string, v Value)) {
	for _, name := range o.names {
		fn(name, o.members[name])
	}
}

// Array is an ordered, mutable sequence of Values.
type Array struct {
	elems []Value
}

func (a *Array) Len() int { return len(a.elems) }

func (a *Array) Get(i int) Value {
	if i < 0 || i >= len(a.elems) {
		return Undefined()
	}
	return a.elems[i]
}

// Set replaces element i and reports false when i is out of range.
func (a *Array) Set(i int, v Value) bool {
	if i < 0 || i >= len(a.elems) {
		return false
	}
	a.elems[i] = v
	return true
}

func (a *Array) Push(v Value) {
	a.elems = append(a.elems, v)
}
