package rules

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/GroundAura/InventoryInjector/internal/config"
	"github.com/GroundAura/InventoryInjector/internal/util"
)

// RuleSet is an ordered, immutable collection of validated rules.
type RuleSet struct {
	Version       uuid.UUID
	LoadedAt      time.Time
	CaseSensitive bool
	Rules         []*Rule
}

// Find returns the first rule that matches ctx. A matched rule without
// properties is still returned; callers check HasInfo.
func (s *RuleSet) Find(ctx EvalContext) (*Rule, bool) {
	if s == nil {
		return nil, false
	}
	for _, rule := range s.Rules {
		if rule.Match(ctx) {
			return rule, true
		}
	}
	return nil, false
}

func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rules)
}

// Lookup returns the rule named name.
func (s *RuleSet) Lookup(name string) (*Rule, bool) {
	if s == nil {
		return nil, false
	}
	for _, rule := range s.Rules {
		if rule.Name == name {
			return rule, true
		}
	}
	return nil, false
}

// BuildRuleSet compiles and validates every rule in cfg. Rules that fail to
// compile and rules reusing an earlier name are skipped and reported.
func BuildRuleSet(cfg *config.Config, icons *IconCache, logger *util.Logger) (*RuleSet, []config.Problem) {
	set := &RuleSet{
		Version:       uuid.New(),
		LoadedAt:      time.Now(),
		CaseSensitive: cfg.CaseSensitive,
	}
	policy := MatchPolicy{CaseSensitive: cfg.CaseSensitive}
	var problems []config.Problem
	seen := make(map[string]string, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		path := fmt.Sprintf("rules[%d]", rc.Index)
		if first, dup := seen[rc.Name]; dup {
			problems = append(problems, config.Problem{
				File:    rc.File,
				Path:    path,
				Message: fmt.Sprintf("duplicate rule name %q (first declared at %s)", rc.Name, first),
			})
			continue
		}
		rule, err := compileRule(rc, policy)
		if err != nil {
			problems = append(problems, config.Problem{File: rc.File, Path: path, Message: err.Error()})
			continue
		}
		rule.Validate(icons, logger)
		seen[rc.Name] = rc.Location()
		set.Rules = append(set.Rules, rule)
	}
	return set, problems
}

// Manager owns the published rule set and the icon cache. Evaluations load
// the current set once and keep it for their whole pass; reloads build a new
// set aside and publish it with a single pointer swap.
type Manager struct {
	logger *util.Logger
	icons  *IconCache

	current atomic.Pointer[RuleSet]

	// mu serializes writers.
	mu         sync.Mutex
	lastConfig *config.Config
}

// NewManager returns a manager publishing an empty rule set.
func NewManager(icons *IconCache, logger *util.Logger) *Manager {
	if icons == nil {
		icons = NewIconCache(nil)
	}
	m := &Manager{logger: logger, icons: icons}
	m.current.Store(&RuleSet{Version: uuid.New(), LoadedAt: time.Now()})
	return m
}

// Current returns the published rule set. It is never nil.
func (m *Manager) Current() *RuleSet {
	return m.current.Load()
}

// Icons exposes the icon cache shared by every rule set this manager builds.
func (m *Manager) Icons() *IconCache {
	return m.icons
}

// Publish swaps in set.
func (m *Manager) Publish(set *RuleSet) {
	if set == nil {
		return
	}
	m.current.Store(set)
}

// Load compiles cfg, logs every problem and publishes the result. Problems
// never prevent publishing; malformed rules are simply absent.
func (m *Manager) Load(cfg *config.Config) *RuleSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(cfg)
}

func (m *Manager) loadLocked(cfg *config.Config) *RuleSet {
	for _, p := range cfg.Problems {
		m.logger.Warnf("skipped: %s", p.Error())
	}
	set, problems := BuildRuleSet(cfg, m.icons, m.logger)
	for _, p := range problems {
		m.logger.Warnf("skipped: %s", p.Error())
	}
	m.Publish(set)
	m.lastConfig = cfg
	m.logger.Infof("loaded %d rule(s), version %s", set.Len(), set.Version)
	return set
}

// Reload reads dir and publishes the rules it holds. If the directory cannot
// be read the current set stays published and the error is returned. When
// files were rejected, a diff against the previous load is logged.
func (m *Manager) Reload(dir, reason string) (*RuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Infof("%s, reloading rules", reason)
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return m.Current(), fmt.Errorf("reload rules: %w", err)
	}
	if len(cfg.Problems) > 0 && m.lastConfig != nil {
		m.logDiff(cfg)
	}
	return m.loadLocked(cfg), nil
}

func (m *Manager) logDiff(cfg *config.Config) {
	diff := config.Diff(m.lastConfig, cfg)
	if diff == "" {
		m.logger.Warnf("rule files rejected in part; no change vs last load")
		return
	}
	m.logger.Warnf("rule files rejected in part; diff vs last load:\n%s", diff)
}
