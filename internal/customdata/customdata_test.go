package customdata

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GroundAura/InventoryInjector/internal/value"
)

func TestContainerOrderAndOverwrite(t *testing.T) {
	var c Container
	c.Set("tier", Number(1))
	c.Set("school", String("Destruction"))
	c.Set("tier", Number(2))

	if diff := cmp.Diff([]string{"tier", "school"}, c.Names()); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
	got, ok := c.Get("tier")
	if !ok || got.Value().GetNumber() != 2 {
		t.Fatalf("expected tier=2, got %v (present=%t)", got, ok)
	}
}

func TestMergeOverrides(t *testing.T) {
	var base Container
	base.Set("tier", Number(1))
	base.Set("magical", Bool(false))

	var override Container
	override.Set("magical", Bool(true))
	override.Set("school", String("Alteration"))

	merged := base.Clone()
	merged.Merge(&override)

	if diff := cmp.Diff([]string{"tier", "magical", "school"}, merged.Names()); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
	if d, _ := merged.Get("magical"); !d.Value().GetBool() {
		t.Fatalf("expected override to win")
	}
	if d, _ := base.Get("magical"); d.Value().GetBool() {
		t.Fatalf("clone should not alias the original")
	}
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		in   any
		kind Kind
	}{
		{"x", KindString},
		{3, KindNumber},
		{2.5, KindNumber},
		{true, KindBool},
	}
	for _, tt := range tests {
		d, err := FromAny(tt.in)
		if err != nil {
			t.Fatalf("FromAny(%v): %v", tt.in, err)
		}
		if d.Kind() != tt.kind {
			t.Fatalf("FromAny(%v) kind = %v, want %v", tt.in, d.Kind(), tt.kind)
		}
	}
	if _, err := FromAny([]any{1}); err == nil {
		t.Fatalf("expected error for list value")
	}
}

func TestApplyTo(t *testing.T) {
	var c Container
	c.Set("tier", Number(2))
	c.Set("label", String("rare"))

	obj := value.NewObject()
	obj.SetMember("tier", value.Number(1))
	if !c.ApplyTo(obj) {
		t.Fatalf("expected ApplyTo to succeed on an object")
	}
	if got := value.Stringify(obj); got != `{ tier: 2, label: "rare", }` {
		t.Fatalf("unexpected object: %s", got)
	}
	if c.ApplyTo(value.Number(1)) {
		t.Fatalf("ApplyTo should fail on a number")
	}
}
