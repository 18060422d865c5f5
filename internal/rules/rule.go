package rules

import (
	"fmt"

	"github.com/GroundAura/InventoryInjector/internal/config"
	"github.com/GroundAura/InventoryInjector/internal/customdata"
	"github.com/GroundAura/InventoryInjector/internal/util"
	"github.com/GroundAura/InventoryInjector/internal/value"
)

// Rule represents a compiled rule ready for evaluation.
type Rule struct {
	Name string
	// Source is the file location the rule was declared at.
	Source     string
	When       Predicate
	Tracer     *PredicateTracer
	Properties []Property

	validated bool
}

// Match reports whether every criterion of the rule holds for ctx.
func (r *Rule) Match(ctx EvalContext) bool {
	if r.When == nil {
		return true
	}
	return r.When(ctx)
}

// HasInfo reports whether the rule declares any property. A rule without
// properties still terminates the search when it matches.
func (r *Rule) HasInfo() bool {
	return len(r.Properties) > 0
}

// Validated reports whether Validate has run.
func (r *Rule) Validated() bool {
	return r.validated
}

// SetInfo applies every non-icon property in declaration order.
// needsIconUpdate is true iff the rule declares an icon property, whether or
// not its value differs from what rec already holds.
func (r *Rule) SetInfo(rec value.Value) (hasInfo, needsIconUpdate bool) {
	for _, prop := range r.Properties {
		if prop.affectsIcon() {
			needsIconUpdate = true
			continue
		}
		prop.Apply(rec)
	}
	return r.HasInfo(), needsIconUpdate
}

// SetIcon applies only the icon properties.
func (r *Rule) SetIcon(rec value.Value) {
	for _, prop := range r.Properties {
		if prop.affectsIcon() {
			prop.Apply(rec)
		}
	}
}

// Validate resolves every declared icon source through cache. Sources that
// fail stay declared but are never applied.
func (r *Rule) Validate(cache *IconCache, logger *util.Logger) {
	for _, prop := range r.Properties {
		icon, ok := prop.(*IconProperty)
		if !ok || icon.Source == nil {
			continue
		}
		icon.sourceValid = cache.Validate(*icon.Source)
		icon.validated = true
		if !icon.sourceValid {
			logger.Debugf("rule %s: icon source %q not found; icon will not be applied", r.Name, *icon.Source)
		}
	}
	r.validated = true
}

// InvalidIconSources lists the icon sources that failed validation, in
// declaration order.
func (r *Rule) InvalidIconSources() []string {
	var out []string
	for _, prop := range r.Properties {
		if icon, ok := prop.(*IconProperty); ok && !icon.Usable() {
			out = append(out, *icon.Source)
		}
	}
	return out
}

func compileRule(rc config.RuleConfig, policy MatchPolicy) (*Rule, error) {
	pred, tracer, err := BuildPredicateWithTrace(rc.Match, policy)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	props, err := buildProperties(rc.Assign)
	if err != nil {
		return nil, fmt.Errorf("assign: %w", err)
	}
	return &Rule{
		Name:       rc.Name,
		Source:     rc.Location(),
		When:       pred,
		Tracer:     tracer,
		Properties: props,
	}, nil
}

// buildProperties turns assign entries into properties. All icon keys fold
// into a single IconProperty placed where the first one was declared.
func buildProperties(entries config.AssignList) ([]Property, error) {
	props := make([]Property, 0, len(entries))
	var icon *IconProperty
	iconProp := func() *IconProperty {
		if icon == nil {
			icon = &IconProperty{}
			props = append(props, icon)
		}
		return icon
	}

	for _, entry := range entries {
		switch entry.Key {
		case config.KeyIconSource:
			s, err := scalarString(entry)
			if err != nil {
				return nil, err
			}
			iconProp().Source = &s
		case config.KeyIconLabel:
			s, err := scalarString(entry)
			if err != nil {
				return nil, err
			}
			iconProp().Label = &s
		case config.KeyIconColor:
			c, err := ParseColor(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", entry.Line, entry.Key, err)
			}
			iconProp().Color = &c
		case config.KeyText:
			s, err := scalarString(entry)
			if err != nil {
				return nil, err
			}
			props = append(props, &MemberProperty{Member: entry.Key, Value: value.String(s)})
		case config.KeyTextColor:
			c, err := ParseColor(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", entry.Line, entry.Key, err)
			}
			props = append(props, &MemberProperty{Member: entry.Key, Value: value.Number(float64(c))})
		case config.KeySubType:
			v, ok := value.FromScalar(entry.Value)
			if !ok || !(v.IsNumber() || v.IsString()) {
				return nil, fmt.Errorf("line %d: %s must be a number or a string", entry.Line, entry.Key)
			}
			props = append(props, &MemberProperty{Member: entry.Key, Value: v})
		case config.KeySubTypeDisplay:
			s, err := scalarString(entry)
			if err != nil {
				return nil, err
			}
			props = append(props, &MemberProperty{Member: entry.Key, Value: value.WideString(s)})
		case config.KeyCustomData:
			data := &customdata.Container{}
			for _, de := range entry.Data {
				d, err := customdata.FromAny(de.Value)
				if err != nil {
					return nil, fmt.Errorf("line %d: customData.%s: %w", entry.Line, de.Name, err)
				}
				data.Set(de.Name, d)
			}
			props = append(props, &CustomDataProperty{Data: data})
		default:
			return nil, fmt.Errorf("line %d: unknown assign key %q", entry.Line, entry.Key)
		}
	}
	return props, nil
}

func scalarString(entry config.AssignEntry) (string, error) {
	switch t := entry.Value.(type) {
	case string:
		return t, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(t), nil
	}
	return "", fmt.Errorf("line %d: %s must be a string", entry.Line, entry.Key)
}
