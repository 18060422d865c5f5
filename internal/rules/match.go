package rules

import (
	"strings"

	"github.com/GroundAura/InventoryInjector/internal/config"
	"github.com/GroundAura/InventoryInjector/internal/gamedata"
	"github.com/GroundAura/InventoryInjector/internal/value"
)

// EvalContext is the record under evaluation plus the form it resolved to.
type EvalContext struct {
	Record value.Value
	// Form is nil when the record has no form id or the id is unknown.
	Form *gamedata.Form
}

// Predicate evaluates the context and returns true or false.
type Predicate func(ctx EvalContext) bool

// MatchPolicy controls how string criteria compare.
type MatchPolicy struct {
	CaseSensitive bool
}

func (p MatchPolicy) equal(a, b string) bool {
	if p.CaseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func (p MatchPolicy) contains(s, substr string) bool {
	if p.CaseSensitive {
		return strings.Contains(s, substr)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// BuildPredicate compiles match criteria into an evaluator.
func BuildPredicate(mc config.MatchConfig, policy MatchPolicy) (Predicate, error) {
	pred, _, err := compilePredicate(mc, policy)
	return pred, err
}

// Record member names read by the criteria.
const (
	memberFormType       = "formType"
	memberFormID         = "formId"
	memberKeywords       = "keywords"
	memberEffectKeywords = "effectKeywords"
	memberName           = "name"
	memberText           = "text"
)

// hasKeyword reports whether the keyword object holds name set to true.
func hasKeyword(keywords value.Value, name string, policy MatchPolicy) bool {
	obj := keywords.Object()
	if obj == nil {
		return false
	}
	if policy.CaseSensitive {
		return obj.Get(name).GetBool()
	}
	if v := obj.Get(name); v.IsBool() {
		return v.GetBool()
	}
	found := false
	obj.Each(func(member string, v value.Value) {
		if !found && strings.EqualFold(member, name) && v.GetBool() {
			found = true
		}
	})
	return found
}

// recordName returns the record's display name, preferring name over text.
func recordName(rec value.Value) (string, bool) {
	for _, member := range []string{memberName, memberText} {
		v := rec.GetMember(member)
		if v.IsString() || v.IsWideString() {
			return v.GetString(), true
		}
	}
	return "", false
}

// fieldEquals compares a record member against a configured scalar.
func fieldEquals(actual, expected value.Value, policy MatchPolicy) bool {
	switch expected.Kind() {
	case value.KindNumber:
		return actual.IsNumber() && actual.GetNumber() == expected.GetNumber()
	case value.KindBool:
		return actual.IsBool() && actual.GetBool() == expected.GetBool()
	case value.KindString:
		if !actual.IsString() && !actual.IsWideString() {
			return false
		}
		return policy.equal(actual.GetString(), expected.GetString())
	case value.KindNull:
		return actual.IsNull()
	}
	return false
}
