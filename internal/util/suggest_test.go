package util

import "testing"

func TestSuggest(t *testing.T) {
	candidates := []string{"Weapon", "Armor", "Book", "AlchemyItem"}
	tests := map[string]string{
		"weapn":       "Weapon",
		"ARMOUR":      "Armor",
		"alchemyitem": "AlchemyItem",
		"Spaceship":   "",
		"bk":          "",
	}
	for input, want := range tests {
		if got := Suggest(input, candidates); got != want {
			t.Fatalf("Suggest(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDidYouMean(t *testing.T) {
	if got := DidYouMean("iconLabl", []string{"iconLabel", "iconColor"}); got != ` (did you mean "iconLabel"?)` {
		t.Fatalf("unexpected suffix %q", got)
	}
	if got := DidYouMean("zzzzzz", []string{"iconLabel"}); got != "" {
		t.Fatalf("expected no suggestion, got %q", got)
	}
}
