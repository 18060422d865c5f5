package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/GroundAura/InventoryInjector/internal/customdata"
	"github.com/GroundAura/InventoryInjector/internal/value"
)

// Record members written by properties.
const (
	MemberIconSource = "iconSource"
	MemberIconLabel  = "iconLabel"
	MemberIconColor  = "iconColor"
	MemberCustomData = "customData"
)

// Property is one derived display attribute. The set of variants is closed:
// IconProperty, MemberProperty and CustomDataProperty.
type Property interface {
	// Apply writes the property onto rec. Non-object records are left alone.
	Apply(rec value.Value)
	affectsIcon() bool
}

// IconProperty selects the icon asset. Nil fields are left untouched.
type IconProperty struct {
	Source *string
	Label  *string
	Color  *uint32

	validated   bool
	sourceValid bool
}

func (p *IconProperty) affectsIcon() bool { return true }

// Usable reports whether the property may be applied. A property whose source
// failed validation is never applied.
func (p *IconProperty) Usable() bool {
	if p.Source == nil {
		return true
	}
	return !p.validated || p.sourceValid
}

func (p *IconProperty) Apply(rec value.Value) {
	if !rec.IsObject() || !p.Usable() {
		return
	}
	if p.Source != nil {
		rec.SetMember(MemberIconSource, value.String(*p.Source))
	}
	if p.Label != nil {
		rec.SetMember(MemberIconLabel, value.String(*p.Label))
	}
	if p.Color != nil {
		rec.SetMember(MemberIconColor, value.Number(float64(*p.Color)))
	}
}

// MemberProperty sets a single record member, such as the label text.
type MemberProperty struct {
	Member string
	Value  value.Value
}

func (p *MemberProperty) affectsIcon() bool { return false }

func (p *MemberProperty) Apply(rec value.Value) {
	rec.SetMember(p.Member, p.Value)
}

// CustomDataProperty merges name/value pairs into the record's customData
// object, creating it when absent.
type CustomDataProperty struct {
	Data *customdata.Container
}

func (p *CustomDataProperty) affectsIcon() bool { return false }

func (p *CustomDataProperty) Apply(rec value.Value) {
	if !rec.IsObject() || p.Data == nil {
		return
	}
	target := rec.GetMember(MemberCustomData)
	if !target.IsObject() {
		target = value.NewObject()
		rec.SetMember(MemberCustomData, target)
	}
	p.Data.ApplyTo(target)
}

// ParseColor accepts "#RRGGBB", "0xRRGGBB", a decimal string or a number.
func ParseColor(raw any) (uint32, error) {
	switch t := raw.(type) {
	case int:
		return colorFromInt(int64(t))
	case int64:
		return colorFromInt(t)
	case uint64:
		if t > 0xFFFFFF {
			return 0, fmt.Errorf("color %d out of range", t)
		}
		return uint32(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("color %v is not an integer", t)
		}
		if t < 0 || t > 0xFFFFFF {
			return 0, fmt.Errorf("color %v out of range", t)
		}
		return uint32(t), nil
	case string:
		s := strings.TrimSpace(t)
		base := 10
		switch {
		case strings.HasPrefix(s, "#"):
			s, base = s[1:], 16
		case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
			s, base = s[2:], 16
		}
		n, err := strconv.ParseUint(s, base, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q", t)
		}
		if n > 0xFFFFFF {
			return 0, fmt.Errorf("color %q out of range", t)
		}
		return uint32(n), nil
	}
	return 0, fmt.Errorf("invalid color %v (%T)", raw, raw)
}

func colorFromInt(n int64) (uint32, error) {
	if n < 0 || n > 0xFFFFFF {
		return 0, fmt.Errorf("color %d out of range", n)
	}
	return uint32(n), nil
}
