package value

import (
	"math"
	"strconv"
	"strings"
)

// indentState tracks nesting while serializing. An empty token disables
// indentation: a single space is written instead, whatever the depth. The
// token is written depth times and nothing else, so a token meant to break
// lines has to carry its own newline.
type indentState struct {
	token string
	depth int
}

func (s indentState) writeIndent(b *strings.Builder) {
	if s.token == "" {
		b.WriteByte(' ')
		return
	}
	for i := 0; i < s.depth; i++ {
		b.WriteString(s.token)
	}
}

func (s indentState) nested() indentState {
	s.depth++
	return s
}

// Stringify renders v on a single line for logs.
func Stringify(v Value) string {
	return render(v, indentState{})
}

// StringifyIndent renders v across lines, indenting each nesting level with
// token. An empty token behaves like Stringify.
func StringifyIndent(v Value, token string) string {
	return render(v, indentState{token: token})
}

// FormatNumber writes integral values without an exponent up to 1e21 and
// everything else in the shortest form.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func render(v Value, state indentState) (out string) {
	var b strings.Builder
	defer func() {
		if r := recover(); r != nil {
			b.WriteString("<invalid>")
			out = b.String()
		}
	}()
	w := &serializer{b: &b, open: make(map[any]struct{})}
	w.serialize(v, state)
	return b.String()
}

// serializer holds the containers currently being written. A container that
// is reached again through its own members renders as <cycle>.
type serializer struct {
	b    *strings.Builder
	open map[any]struct{}
}

func (w *serializer) enter(container any) bool {
	if _, ok := w.open[container]; ok {
		w.b.WriteString("<cycle>")
		return false
	}
	w.open[container] = struct{}{}
	return true
}

func (w *serializer) leave(container any) {
	delete(w.open, container)
}

func (w *serializer) serialize(v Value, state indentState) {
	b := w.b
	switch v.kind {
	case KindUndefined:
		b.WriteString("undefined")

	case KindNull:
		b.WriteString("null")

	case KindBool:
		b.WriteString(strconv.FormatBool(v.b))

	case KindNumber:
		b.WriteString(FormatNumber(v.n))

	case KindString:
		// Not escaped: quotes and control characters are written as-is.
		b.WriteByte('"')
		b.WriteString(v.s)
		b.WriteByte('"')

	case KindWideString:
		b.WriteString("<wstring>")

	case KindObject:
		if !w.enter(v.obj) {
			return
		}
		defer w.leave(v.obj)
		b.WriteByte('{')
		nested := state.nested()
		v.VisitMembers(func(name string, member Value) {
			nested.writeIndent(b)
			b.WriteString(name)
			b.WriteString(": ")
			w.serialize(member, nested)
			b.WriteByte(',')
		})
		state.writeIndent(b)
		b.WriteByte('}')

	case KindArray:
		if !w.enter(v.arr) {
			return
		}
		defer w.leave(v.arr)
		b.WriteByte('[')
		nested := state.nested()
		for i, n := 0, v.ArraySize(); i < n; i++ {
			nested.writeIndent(b)
			w.serialize(v.GetElement(i), nested)
			b.WriteByte(',')
		}
		state.writeIndent(b)
		b.WriteByte(']')

	case KindDisplayObject:
		b.WriteString("<display object>")

	default:
		b.WriteString("<invalid>")
	}
}
