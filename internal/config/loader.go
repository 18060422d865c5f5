package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muhammadmuzzammil1998/jsonc"
	"gopkg.in/yaml.v3"
)

// ruleFile is the top-level shape of a rule file. Rules stay as raw nodes so
// each one can be rejected on its own.
type ruleFile struct {
	CaseSensitive *bool       `yaml:"caseSensitive"`
	Rules         []yaml.Node `yaml:"rules"`
}

// Supported reports whether name has a rule file extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadDir reads every rule file in dir, in lexical order. Only an unreadable
// directory is an error; bad files and bad rules become Problems.
func LoadDir(dir string) (*Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read config dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	cfg := &Config{}
	var serialized bytes.Buffer
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			cfg.Problems = append(cfg.Problems, Problem{File: name, Message: err.Error()})
			continue
		}
		fmt.Fprintf(&serialized, "# %s\n", name)
		serialized.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			serialized.WriteByte('\n')
		}
		cfg.merge(ParseFile(name, data))
	}
	cfg.Serialized = serialized.Bytes()
	return cfg, nil
}

// ParseFile decodes one rule file. JSON files may contain comments.
func ParseFile(name string, data []byte) *Config {
	cfg := &Config{}
	if isJSON(name) {
		if !jsonc.Valid(data) {
			cfg.Problems = append(cfg.Problems, Problem{File: name, Message: "invalid JSON"})
			return cfg
		}
		// JSON is valid YAML, and decoding through yaml.Node keeps key order.
		data = jsonc.ToJSON(data)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		cfg.Problems = append(cfg.Problems, Problem{File: name, Message: fmt.Sprintf("decode: %v", err)})
		return cfg
	}
	if file.CaseSensitive != nil {
		cfg.CaseSensitive = *file.CaseSensitive
		cfg.caseSet = true
	}

	validator, verr := ruleValidator()
	for i := range file.Rules {
		node := &file.Rules[i]
		path := fmt.Sprintf("rules[%d]", i)
		if node.Kind != yaml.MappingNode {
			cfg.Problems = append(cfg.Problems, Problem{File: name, Path: path, Message: "rule must be a mapping"})
			continue
		}
		var rule RuleConfig
		if err := node.Decode(&rule); err != nil {
			cfg.Problems = append(cfg.Problems, Problem{File: name, Path: path, Message: err.Error()})
			continue
		}
		if verr == nil {
			if err := validator.validate(node); err != nil {
				cfg.Problems = append(cfg.Problems, Problem{File: name, Path: path, Message: err.Error()})
				continue
			}
		}
		rule.File = name
		rule.Index = i
		rule.Line = node.Line
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("%s#%d", name, i)
		}
		cfg.Rules = append(cfg.Rules, rule)
	}
	if verr != nil {
		cfg.Problems = append(cfg.Problems, Problem{File: name, Message: verr.Error()})
	}
	return cfg
}

func (c *Config) merge(other *Config) {
	if other.caseSet {
		c.CaseSensitive = other.CaseSensitive
		c.caseSet = true
	}
	c.Rules = append(c.Rules, other.Rules...)
	c.Problems = append(c.Problems, other.Problems...)
}

func isJSON(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".json" || ext == ".jsonc"
}
