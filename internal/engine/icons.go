package engine

import (
	"github.com/GroundAura/InventoryInjector/internal/gamedata"
	"github.com/GroundAura/InventoryInjector/internal/rules"
	"github.com/GroundAura/InventoryInjector/internal/value"
)

const (
	// DefaultIconSource is loaded when neither the list state nor the entry
	// names an icon source.
	DefaultIconSource = "skyui/icons_item_psychosteve.swf"
	DefaultIconLabel  = "default_misc"
)

var iconFunctions = map[gamedata.FormType]string{
	gamedata.FormTypeSpell:       "processSpellIcon",
	gamedata.FormTypeArmor:       "processArmorIcon",
	gamedata.FormTypeBook:        "processBookIcon",
	gamedata.FormTypeMisc:        "processMiscIcon",
	gamedata.FormTypeWeapon:      "processWeaponIcon",
	gamedata.FormTypeAmmo:        "processAmmoIcon",
	gamedata.FormTypeAlchemyItem: "processPotionIcon",
	gamedata.FormTypeSoulGem:     "processSoulGemIcon",
}

// IconFunction names the list's icon routine for an entry's form type.
// Entries of other types keep whatever icon they already have.
func IconFunction(rec value.Value) (string, bool) {
	ft, ok := gamedata.FormTypeOf(rec.GetMember("formType"))
	if !ok {
		return "", false
	}
	name, ok := iconFunctions[ft]
	return name, ok
}

// IconRequest is what the host needs to load an entry's icon.
type IconRequest struct {
	Source string
	Label  value.Value
	Color  value.Value
}

// ResolveIcon picks the icon source, label and colour for an entry. The
// entry's own iconSource wins over the list state's, which wins over the
// default. A label that is not a string falls back to DefaultIconLabel.
//
// This is looser than the game's own item formatter, which reads the entry's
// iconSource only when state is an object and replaces the label only when
// it is null. Rule output is always a string, so the two agree on entries a
// rule touched.
func ResolveIcon(rec, state value.Value) IconRequest {
	req := IconRequest{Source: DefaultIconSource}
	if state.IsObject() {
		if s := state.GetMember(rules.MemberIconSource); s.IsString() {
			req.Source = s.GetString()
		}
	}
	if s := rec.GetMember(rules.MemberIconSource); s.IsString() {
		req.Source = s.GetString()
	}
	req.Label = rec.GetMember(rules.MemberIconLabel)
	if !req.Label.IsString() {
		req.Label = value.String(DefaultIconLabel)
	}
	req.Color = rec.GetMember(rules.MemberIconColor)
	return req
}
