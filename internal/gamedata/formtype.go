package gamedata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GroundAura/InventoryInjector/internal/util"
)

// FormType is the engine's numeric form type discriminant, as reported in the
// formType member of list entries.
type FormType uint8

const (
	FormTypeNone        FormType = 0
	FormTypeKeyword     FormType = 4
	FormTypeMagicEffect FormType = 18
	FormTypeEnchantment FormType = 21
	FormTypeSpell       FormType = 22
	FormTypeScroll      FormType = 23
	FormTypeArmor       FormType = 26
	FormTypeBook        FormType = 27
	FormTypeIngredient  FormType = 30
	FormTypeLight       FormType = 31
	FormTypeMisc        FormType = 32
	FormTypeWeapon      FormType = 41
	FormTypeAmmo        FormType = 42
	FormTypeKey         FormType = 45
	FormTypeAlchemyItem FormType = 46
	FormTypeNote        FormType = 48
	FormTypeSoulGem     FormType = 52
	FormTypeShout       FormType = 119
)

var formTypeNames = map[FormType]string{
	FormTypeNone:        "None",
	FormTypeKeyword:     "Keyword",
	FormTypeMagicEffect: "MagicEffect",
	FormTypeEnchantment: "Enchantment",
	FormTypeSpell:       "Spell",
	FormTypeScroll:      "Scroll",
	FormTypeArmor:       "Armor",
	FormTypeBook:        "Book",
	FormTypeIngredient:  "Ingredient",
	FormTypeLight:       "Light",
	FormTypeMisc:        "Misc",
	FormTypeWeapon:      "Weapon",
	FormTypeAmmo:        "Ammo",
	FormTypeKey:         "Key",
	FormTypeAlchemyItem: "AlchemyItem",
	FormTypeNote:        "Note",
	FormTypeSoulGem:     "SoulGem",
	FormTypeShout:       "Shout",
}

// Aliases accepted in configuration besides the canonical names.
var formTypeAliases = map[string]FormType{
	"potion":    FormTypeAlchemyItem,
	"alchemy":   FormTypeAlchemyItem,
	"keymaster": FormTypeKey,
	"misc item": FormTypeMisc,
}

func (t FormType) String() string {
	if name, ok := formTypeNames[t]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}

// IsMagicItem reports whether forms of this type carry a list of magic
// effects.
func (t FormType) IsMagicItem() bool {
	switch t {
	case FormTypeSpell, FormTypeScroll, FormTypeIngredient, FormTypeAlchemyItem, FormTypeEnchantment:
		return true
	}
	return false
}

// FormTypeNames returns the canonical names, sorted.
func FormTypeNames() []string {
	names := make([]string, 0, len(formTypeNames))
	for _, name := range formTypeNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseFormType resolves a form type name (case-insensitive) or number.
func ParseFormType(s string) (FormType, error) {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.ParseUint(trimmed, 0, 8); err == nil {
		return FormType(n), nil
	}
	lower := strings.ToLower(trimmed)
	for t, name := range formTypeNames {
		if strings.ToLower(name) == lower {
			return t, nil
		}
	}
	if t, ok := formTypeAliases[lower]; ok {
		return t, nil
	}
	return FormTypeNone, fmt.Errorf("unknown form type %q%s", s, util.DidYouMean(trimmed, FormTypeNames()))
}

// UnmarshalYAML accepts either a name or a number.
func (t *FormType) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: form type must be a scalar", node.Line)
	}
	parsed, err := ParseFormType(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = parsed
	return nil
}
