package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GroundAura/InventoryInjector/internal/util"
)

// Config is the merged result of every rule file in a directory.
type Config struct {
	// CaseSensitive switches string criteria to exact comparison. Any file
	// may set it; the last file that does wins.
	CaseSensitive bool
	Rules         []RuleConfig
	Problems      []Problem
	// Serialized concatenates every loaded file, for diffing reloads.
	Serialized []byte

	caseSet bool
}

// RuleConfig is one declarative rule as written in a rule file.
type RuleConfig struct {
	Name   string      `yaml:"name"`
	Match  MatchConfig `yaml:"match"`
	Assign AssignList  `yaml:"assign"`

	File  string `yaml:"-"`
	Index int    `yaml:"-"`
	Line  int    `yaml:"-"`
}

// Location identifies the rule for diagnostics.
func (r RuleConfig) Location() string {
	return fmt.Sprintf("%s: rules[%d]", r.File, r.Index)
}

// MatchConfig is the criteria language. Every set field must hold; all, any
// and not nest further criteria.
type MatchConfig struct {
	All            []MatchConfig  `yaml:"all"`
	Any            []MatchConfig  `yaml:"any"`
	Not            *MatchConfig   `yaml:"not"`
	FormType       StringList     `yaml:"formType"`
	FormID         StringList     `yaml:"formId"`
	Keywords       StringList     `yaml:"keywords"`
	AnyKeywords    StringList     `yaml:"anyKeywords"`
	EffectKeywords StringList     `yaml:"effectKeywords"`
	EditorID       StringList     `yaml:"editorId"`
	Name           string         `yaml:"name"`
	Fields         map[string]any `yaml:"fields"`
}

// Empty reports whether the criteria match everything.
func (m MatchConfig) Empty() bool {
	return len(m.All) == 0 && len(m.Any) == 0 && m.Not == nil &&
		len(m.FormType) == 0 && len(m.FormID) == 0 && len(m.Keywords) == 0 &&
		len(m.AnyKeywords) == 0 && len(m.EffectKeywords) == 0 && len(m.EditorID) == 0 &&
		m.Name == "" && len(m.Fields) == 0
}

// StringList accepts a single scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list entries must be scalars", item.Line)
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a scalar or a list", node.Line)
}

// Assign keys understood by the rule compiler.
const (
	KeyIconSource     = "iconSource"
	KeyIconLabel      = "iconLabel"
	KeyIconColor      = "iconColor"
	KeyText           = "text"
	KeyTextColor      = "textColor"
	KeySubType        = "subType"
	KeySubTypeDisplay = "subTypeDisplay"
	KeyCustomData     = "customData"
)

// AssignKeys lists every accepted assign key.
var AssignKeys = []string{
	KeyIconSource, KeyIconLabel, KeyIconColor,
	KeyText, KeyTextColor,
	KeySubType, KeySubTypeDisplay,
	KeyCustomData,
}

// AssignEntry is one property declaration.
type AssignEntry struct {
	Key string
	// Value holds the scalar for every key but customData.
	Value any
	// Data holds customData entries in declaration order.
	Data []DataEntry
	Line int
}

// DataEntry is one customData name/value pair.
type DataEntry struct {
	Name  string
	Value any
}

// AssignList keeps property declarations in the order they were written.
// It decodes from a mapping, or from a sequence of mappings when the same key
// has to appear more than once.
type AssignList []AssignEntry

func (l *AssignList) UnmarshalYAML(node *yaml.Node) error {
	var out AssignList
	switch node.Kind {
	case yaml.MappingNode:
		entries, err := decodeAssignMapping(node)
		if err != nil {
			return err
		}
		out = entries
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: assign list entries must be mappings", item.Line)
			}
			entries, err := decodeAssignMapping(item)
			if err != nil {
				return err
			}
			out = append(out, entries...)
		}
	default:
		return fmt.Errorf("line %d: assign must be a mapping or a list of mappings", node.Line)
	}
	*l = out
	return nil
}

func decodeAssignMapping(node *yaml.Node) (AssignList, error) {
	out := make(AssignList, 0, len(node.Content)/2)
	seen := map[string]struct{}{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		if !isAssignKey(key) {
			return nil, fmt.Errorf("line %d: unknown assign key %q%s", keyNode.Line, key, util.DidYouMean(key, AssignKeys))
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("line %d: duplicate assign key %q; use a list of mappings to repeat it", keyNode.Line, key)
		}
		seen[key] = struct{}{}

		entry := AssignEntry{Key: key, Line: keyNode.Line}
		if key == KeyCustomData {
			data, err := decodeDataMapping(valNode)
			if err != nil {
				return nil, err
			}
			entry.Data = data
		} else {
			if valNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: %s must be a scalar", valNode.Line, key)
			}
			if err := valNode.Decode(&entry.Value); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", valNode.Line, key, err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodeDataMapping(node *yaml.Node) ([]DataEntry, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: customData must be a mapping", node.Line)
	}
	out := make([]DataEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		if valNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: customData.%s must be a string, number or boolean", valNode.Line, keyNode.Value)
		}
		var v any
		if err := valNode.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: customData.%s: %w", valNode.Line, keyNode.Value, err)
		}
		out = append(out, DataEntry{Name: keyNode.Value, Value: v})
	}
	return out, nil
}

func isAssignKey(key string) bool {
	for _, k := range AssignKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Problem is a rejected file or rule. Loading continues past problems.
type Problem struct {
	File    string
	Path    string
	Message string
}

func (p Problem) Error() string {
	var b strings.Builder
	b.WriteString(p.File)
	if p.Path != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(p.Path)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}
