package value

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestObjectPreservesInsertionOrder(t *testing.T) {
	obj := NewObject()
	obj.SetMember("b", Number(1))
	obj.SetMember("a", Number(2))
	obj.SetMember("b", Number(3))

	if diff := cmp.Diff([]string{"b", "a"}, obj.Object().Names()); diff != "" {
		t.Fatalf("unexpected member order (-want +got):\n%s", diff)
	}
	if got := obj.GetMember("b").GetNumber(); got != 3 {
		t.Fatalf("expected overwritten member to be 3, got %v", got)
	}
	if !obj.DeleteMember("b") {
		t.Fatalf("expected delete to report existing member")
	}
	if obj.DeleteMember("b") {
		t.Fatalf("expected second delete to report missing member")
	}
	if !obj.GetMember("b").IsUndefined() {
		t.Fatalf("deleted member should read as undefined")
	}
}

func TestCopiesShareContainers(t *testing.T) {
	rec := NewObject()
	alias := rec
	alias.SetMember("iconLabel", String("weapon_sword"))
	if got := rec.GetMember("iconLabel").GetString(); got != "weapon_sword" {
		t.Fatalf("expected write through copy to be visible, got %q", got)
	}
}

func TestAccessorsOnWrongKind(t *testing.T) {
	n := Number(4)
	if n.SetMember("x", Bool(true)) {
		t.Fatalf("SetMember on a number should fail")
	}
	if !n.GetMember("x").IsUndefined() {
		t.Fatalf("GetMember on a number should be undefined")
	}
	if n.ArraySize() != 0 || !n.GetElement(0).IsUndefined() {
		t.Fatalf("array accessors on a number should be empty")
	}
	if String("x").GetNumber() != 0 || Number(1).GetString() != "" {
		t.Fatalf("typed getters should return zero values for other kinds")
	}
}

func TestStringifyScalars(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{Undefined(), "undefined"},
		{Null(), "null"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Number(1), "1"},
		{Number(0.5), "0.5"},
		{Number(-12), "-12"},
		{String(`say "hi"`), `"say "hi""`},
		{WideString("$Note"), "<wstring>"},
		{DisplayObject(struct{}{}), "<display object>"},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Fatalf("Stringify(%v) = %q, want %q", tt.in.Kind(), got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		0:        "0",
		8421504:  "8421504",
		16766720: "16766720",
		-0.25:    "-0.25",
		1e21:     "1e+21",
		1.5e-7:   "1.5e-07",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestStringifyObjectAndArray(t *testing.T) {
	obj := NewObject()
	obj.SetMember("a", Number(1))
	obj.SetMember("b", String("x"))

	for _, token := range []string{"", "  ", "\t"} {
		got := StringifyIndent(obj, token)
		if !strings.Contains(got, "a: 1") || !strings.Contains(got, `b: "x"`) {
			t.Fatalf("indent %q: expected both members, got %q", token, got)
		}
	}
	if got := Stringify(obj); got != `{ a: 1, b: "x", }` {
		t.Fatalf("unexpected single-line object: %q", got)
	}

	arr := NewArray(Number(1), Number(2))
	got := Stringify(arr)
	if got != "[ 1, 2, ]" {
		t.Fatalf("unexpected array rendering: %q", got)
	}
	if strings.Count(got, ",") != 2 {
		t.Fatalf("expected two comma-terminated elements, got %q", got)
	}
}

func TestStringifyIndentNesting(t *testing.T) {
	inner := NewObject()
	inner.SetMember("x", Bool(true))
	outer := NewObject()
	outer.SetMember("inner", inner)

	want := "{  inner: {    x: true,  },}"
	if got := StringifyIndent(outer, "  "); got != want {
		t.Fatalf("unexpected indented rendering:\n%s\nwant:\n%s", got, want)
	}

	want = "{\n\tinner: {\n\t\n\tx: true,\n\t},}"
	if got := StringifyIndent(outer, "\n\t"); got != want {
		t.Fatalf("unexpected rendering with a newline token:\n%q\nwant:\n%q", got, want)
	}
}

func TestStringifySelfReference(t *testing.T) {
	rec := NewObject()
	rec.SetMember("formType", Number(27))
	rec.SetMember("owner", rec)
	list := NewArray(rec)
	rec.SetMember("list", list)

	want := `{ formType: 27, owner: <cycle>, list: [ <cycle>, ], }`
	if got := Stringify(rec); got != want {
		t.Fatalf("Stringify = %q, want %q", got, want)
	}
	if got := Stringify(list); got != `[ { formType: 27, owner: <cycle>, list: <cycle>, }, ]` {
		t.Fatalf("unexpected array rendering: %q", got)
	}
}

func TestStringifySharedContainerIsNotACycle(t *testing.T) {
	shared := NewObject()
	shared.SetMember("x", Number(1))
	rec := NewObject()
	rec.SetMember("a", shared)
	rec.SetMember("b", shared)

	want := `{ a: { x: 1, }, b: { x: 1, }, }`
	if got := Stringify(rec); got != want {
		t.Fatalf("Stringify = %q, want %q", got, want)
	}
}

func TestMarshalJSONRejectsSelfReference(t *testing.T) {
	rec := NewObject()
	rec.SetMember("self", rec)
	if _, err := json.Marshal(rec); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestJSONRoundTripKeepsOrder(t *testing.T) {
	src := `{"formType":41,"name":"Iron Sword","keywords":{"WeapTypeSword":true},"tags":[1,"two",null]}`
	v, err := ParseJSON([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff([]string{"formType", "name", "keywords", "tags"}, v.Object().Names()); diff != "" {
		t.Fatalf("unexpected member order (-want +got):\n%s", diff)
	}
	if !v.GetMember("keywords").GetMember("WeapTypeSword").GetBool() {
		t.Fatalf("expected nested keyword to decode as true")
	}
	out, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != src {
		t.Fatalf("round trip mismatch:\n got %s\nwant %s", out, src)
	}
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	if _, err := ParseJSON([]byte(`{} {}`)); err == nil {
		t.Fatalf("expected error for trailing data")
	}
}
