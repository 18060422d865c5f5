// Package customdata holds the user-defined key/value data rules attach to
// records.
package customdata

import (
	"fmt"
	"strconv"

	"github.com/GroundAura/InventoryInjector/internal/value"
)

// Kind is the type of a Data payload.
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

// Data is a small typed value: a string, a number or a boolean.
type Data struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

func String(s string) Data  { return Data{kind: KindString, s: s} }
func Number(n float64) Data { return Data{kind: KindNumber, n: n} }
func Bool(b bool) Data      { return Data{kind: KindBool, b: b} }

// FromAny converts a decoded configuration scalar.
func FromAny(raw any) (Data, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	}
	return Data{}, fmt.Errorf("unsupported custom data value %v (%T)", raw, raw)
}

func (d Data) Kind() Kind { return d.kind }

// Value converts d into the runtime representation.
func (d Data) Value() value.Value {
	switch d.kind {
	case KindNumber:
		return value.Number(d.n)
	case KindBool:
		return value.Bool(d.b)
	default:
		return value.String(d.s)
	}
}

func (d Data) String() string {
	switch d.kind {
	case KindNumber:
		return value.FormatNumber(d.n)
	case KindBool:
		return strconv.FormatBool(d.b)
	default:
		return strconv.Quote(d.s)
	}
}

// Container is an ordered mapping of unique names to Data.
type Container struct {
	names   []string
	entries map[string]Data
}

// Set adds or overwrites name. Overwritten entries keep their position.
func (c *Container) Set(name string, d Data) {
	if c.entries == nil {
		c.entries = make(map[string]Data)
	}
	if _, ok := c.entries[name]; !ok {
		c.names = append(c.names, name)
	}
	c.entries[name] = d
}

func (c *Container) Get(name string) (Data, bool) {
	d, ok := c.entries[name]
	return d, ok
}

func (c *Container) Delete(name string) bool {
	if _, ok := c.entries[name]; !ok {
		return false
	}
	delete(c.entries, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}
	return true
}

func (c *Container) Len() int { return len(c.names) }

func (c *Container) Names() []string { return append([]string(nil), c.names...) }

func (c *Container) Each(fn func(name string, d Data)) {
	for _, name := range c.names {
		fn(name, c.entries[name])
	}
}

// Merge copies every entry of other into c; other wins on conflicts.
func (c *Container) Merge(other *Container) {
	if other == nil {
		return
	}
	other.Each(c.Set)
}

func (c *Container) Clone() *Container {
	clone := &Container{}
	clone.Merge(c)
	return clone
}

// ApplyTo writes every entry as a member of obj. It reports false when obj
// is not an object.
func (c *Container) ApplyTo(obj value.Value) bool {
	if !obj.IsObject() {
		return false
	}
	c.Each(func(name string, d Data) {
		obj.SetMember(name, d.Value())
	})
	return true
}
