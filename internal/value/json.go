package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MarshalJSON encodes v keeping object member order. Undefined and display
// objects encode as null; wide strings encode as plain strings.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJSON(&buf, v, make(map[any]struct{})); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrCycle is returned when a container holds itself.
var ErrCycle = errors.New("value contains itself")

func encodeJSON(buf *bytes.Buffer, v Value, open map[any]struct{}) error {
	switch v.kind {
	case KindUndefined, KindNull, KindDisplayObject:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		data, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindString, KindWideString:
		data, _ := json.Marshal(v.s)
		buf.Write(data)
	case KindObject:
		if _, ok := open[v.obj]; ok {
			return ErrCycle
		}
		open[v.obj] = struct{}{}
		defer delete(open, v.obj)
		buf.WriteByte('{')
		var err error
		first := true
		v.VisitMembers(func(name string, member Value) {
			if err != nil {
				return
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, _ := json.Marshal(name)
			buf.Write(key)
			buf.WriteByte(':')
			err = encodeJSON(buf, member, open)
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	case KindArray:
		if _, ok := open[v.arr]; ok {
			return ErrCycle
		}
		open[v.arr] = struct{}{}
		defer delete(open, v.arr)
		buf.WriteByte('[')
		for i, n := 0, v.ArraySize(); i < n; i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeJSON(buf, v.GetElement(i), open); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("cannot encode %s", v.kind)
	}
	return nil
}

// UnmarshalJSON decodes any JSON document into v, preserving member order.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	decoded, err := decodeJSON(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after value")
	}
	*v = decoded
	return nil
}

// ParseJSON decodes a JSON document into a Value.
func ParseJSON(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Undefined(), err
	}
	return v, nil
}

func decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Undefined(), err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Undefined(), fmt.Errorf("number %q: %w", t, err)
		}
		return Number(n), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Undefined(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Undefined(), fmt.Errorf("object key must be a string")
				}
				member, err := decodeJSON(dec)
				if err != nil {
					return Undefined(), fmt.Errorf("member %q: %w", key, err)
				}
				obj.SetMember(key, member)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined(), err
			}
			return obj, nil
		case '[':
			arr := NewArray()
			for dec.More() {
				elem, err := decodeJSON(dec)
				if err != nil {
					return Undefined(), fmt.Errorf("element %d: %w", arr.ArraySize(), err)
				}
				arr.arr.Push(elem)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined(), err
			}
			return arr, nil
		}
	}
	return Undefined(), fmt.Errorf("unexpected token %v", tok)
}

// FromScalar converts a decoded configuration scalar into a Value.
func FromScalar(raw any) (Value, bool) {
	switch t := raw.(type) {
	case nil:
		return Null(), true
	case bool:
		return Bool(t), true
	case string:
		return String(t), true
	case int:
		return Int(int64(t)), true
	case int64:
		return Int(t), true
	case uint32:
		return Int(int64(t)), true
	case uint64:
		return Number(float64(t)), true
	case float64:
		return Number(t), true
	case float32:
		return Number(float64(t)), true
	}
	return Undefined(), false
}
