// Package gamedata resolves form ids to the authoritative game data the
// entry processor needs but list entries do not carry.
package gamedata

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/GroundAura/InventoryInjector/internal/value"
)

// Effect is one magic effect of a magic item.
type Effect struct {
	EditorID string   `yaml:"editorId" json:"editorId"`
	Keywords []string `yaml:"keywords" json:"keywords,omitempty"`
}

// Form is the subset of a game form the engine reads.
type Form struct {
	ID       uint32   `yaml:"id"`
	Type     FormType `yaml:"type"`
	EditorID string   `yaml:"editorId"`
	Model    string   `yaml:"model"`
	Keywords []string `yaml:"keywords"`
	Effects  []Effect `yaml:"effects"`
}

// EffectKeywords returns the keyword editor ids of every effect, in effect
// order, without duplicates or blanks.
func (f *Form) EffectKeywords() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, eff := range f.Effects {
		for _, kw := range eff.Keywords {
			if kw == "" {
				continue
			}
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// FormTypeOf reads a formType member. Anything but an integral number in
// FormType's range reports false.
func FormTypeOf(v value.Value) (FormType, bool) {
	n, ok := integral(v, math.MaxUint8)
	return FormType(n), ok
}

// FormIDOf reads a formId member. Anything but an integral number in the
// 32-bit range reports false.
func FormIDOf(v value.Value) (uint32, bool) {
	n, ok := integral(v, math.MaxUint32)
	return uint32(n), ok
}

func integral(v value.Value, max float64) (float64, bool) {
	if !v.IsNumber() {
		return 0, false
	}
	n := v.GetNumber()
	if n != math.Trunc(n) || n < 0 || n > max {
		return 0, false
	}
	return n, true
}

// Lookup resolves form ids. Implementations report false for unknown ids;
// callers treat that as "no additional metadata".
type Lookup interface {
	LookupByID(id uint32) (*Form, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(id uint32) (*Form, bool)

func (f LookupFunc) LookupByID(id uint32) (*Form, bool) { return f(id) }

// Table is an in-memory Lookup.
type Table struct {
	forms map[uint32]*Form
}

// NewTable indexes forms by id. Later duplicates replace earlier ones.
func NewTable(forms ...*Form) *Table {
	t := &Table{forms: make(map[uint32]*Form, len(forms))}
	for _, f := range forms {
		t.Add(f)
	}
	return t
}

func (t *Table) Add(f *Form) {
	if f == nil {
		return
	}
	t.forms[f.ID] = f
}

func (t *Table) LookupByID(id uint32) (*Form, bool) {
	if t == nil {
		return nil, false
	}
	f, ok := t.forms[id]
	return f, ok
}

func (t *Table) Len() int { return len(t.forms) }

// Forms returns the table contents ordered by id.
func (t *Table) Forms() []*Form {
	out := make([]*Form, 0, len(t.forms))
	for _, f := range t.forms {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type tableDocument struct {
	Forms []*Form `yaml:"forms"`
}

// ParseTable decodes a YAML form dump.
func ParseTable(data []byte) (*Table, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode forms: %w", err)
	}
	return NewTable(doc.Forms...), nil
}

// LoadTable reads a YAML form dump from disk.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forms: %w", err)
	}
	return ParseTable(data)
}
