package engine

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/GroundAura/InventoryInjector/internal/gamedata"
	"github.com/GroundAura/InventoryInjector/internal/metrics"
	"github.com/GroundAura/InventoryInjector/internal/rules"
	"github.com/GroundAura/InventoryInjector/internal/util"
	"github.com/GroundAura/InventoryInjector/internal/value"
)

// IconContinuation is invoked with an entry whose icon members changed. It is
// responsible for loading the icon asset.
type IconContinuation func(rec value.Value)

const (
	// BookTypeNote marks a book entry as a note.
	BookTypeNote = 1
	// bookTypeNoteFlag is the bookType written to entries whose model is a note.
	bookTypeNoteFlag   = 0xFF
	noteSubTypeDisplay = "$Note"
	entryListMember    = "_entryList"
)

// Result describes what ProcessEntry did.
type Result struct {
	Matched     bool
	Rule        string
	HasInfo     bool
	IconUpdated bool
	Recovered   bool
}

// Processor runs entries through the published rule set.
type Processor struct {
	rules   *rules.Manager
	lookup  gamedata.Lookup
	logger  *util.Logger
	metrics *metrics.Collector
	history *evaluationLog
}

// NewProcessor wires a processor. lookup, logger and collector may be nil.
func NewProcessor(manager *rules.Manager, lookup gamedata.Lookup, logger *util.Logger, collector *metrics.Collector) *Processor {
	if lookup == nil {
		lookup = gamedata.LookupFunc(func(uint32) (*gamedata.Form, bool) { return nil, false })
	}
	if logger == nil {
		logger = util.NewDiscardLogger()
	}
	return &Processor{
		rules:   manager,
		lookup:  lookup,
		logger:  logger,
		metrics: collector,
		history: newEvaluationLog(0),
	}
}

// History returns the most recent evaluations, oldest first.
func (p *Processor) History() []Evaluation {
	return p.history.snapshot()
}

func (p *Processor) resolveForm(rec value.Value) *gamedata.Form {
	id, ok := gamedata.FormIDOf(rec.GetMember("formId"))
	if !ok {
		return nil
	}
	form, ok := p.lookup.LookupByID(id)
	if !ok {
		return nil
	}
	return form
}

// Prepare derives the members rules match on. Magic items get resistance in
// place of magicType and an effectKeywords object; books whose model is a
// note are flagged as notes.
func (p *Processor) Prepare(rec value.Value) {
	defer p.recoverPanic(rec, "prepare", nil)
	if !rec.IsObject() {
		return
	}
	ft, ok := gamedata.FormTypeOf(rec.GetMember("formType"))
	if !ok {
		return
	}
	switch ft {
	case gamedata.FormTypeSpell, gamedata.FormTypeScroll, gamedata.FormTypeIngredient,
		gamedata.FormTypeAlchemyItem, gamedata.FormTypeMagicEffect:
		if magicType := rec.GetMember("magicType"); !magicType.IsUndefined() {
			rec.SetMember("resistance", magicType)
			rec.DeleteMember("magicType")
		}
		p.extendMagicItem(rec)
	case gamedata.FormTypeBook:
		p.fixNote(rec)
	}
}

func (p *Processor) extendMagicItem(rec value.Value) {
	form := p.resolveForm(rec)
	if form == nil || !form.Type.IsMagicItem() {
		return
	}
	keywords := value.NewObject()
	for _, kw := range form.EffectKeywords() {
		keywords.SetMember(kw, value.Bool(true))
	}
	rec.SetMember("effectKeywords", keywords)
}

func (p *Processor) fixNote(rec value.Value) {
	form := p.resolveForm(rec)
	if form == nil || form.Type != gamedata.FormTypeBook {
		return
	}
	if !strings.Contains(strings.ToLower(modelStem(form.Model)), "note") {
		return
	}
	rec.SetMember("bookType", value.Int(bookTypeNoteFlag))
	if rec.GetMember("subType").IsUndefined() {
		rec.SetMember("subType", value.Int(BookTypeNote))
		rec.SetMember("subTypeDisplay", value.WideString(noteSubTypeDisplay))
	}
}

// modelStem returns the file name of a model path without its extension.
// Both slash styles separate directories.
func modelStem(model string) string {
	base := path.Base(strings.ReplaceAll(model, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// ProcessEntry prepares rec and applies the first matching rule. Info is
// written synchronously; when the rule declares an icon the icon members are
// written and cont is called with rec. Without a match no rule output is
// written.
func (p *Processor) ProcessEntry(rec value.Value, cont IconContinuation) Result {
	p.Prepare(rec)
	return p.apply(rec, cont)
}

func (p *Processor) apply(rec value.Value, cont IconContinuation) (res Result) {
	eval := Evaluation{Timestamp: time.Now()}
	defer func() {
		p.history.record(eval)
	}()
	defer p.recoverPanic(rec, "process", func(r any) {
		res = Result{Recovered: true}
		eval.Status = EvaluationStatusRecovered
		eval.Error = fmt.Sprint(r)
	})

	if !rec.IsObject() {
		eval.Status = EvaluationStatusMiss
		return Result{}
	}
	eval.FormType, eval.FormID = describeEntry(rec)

	set := p.rules.Current()
	ctx := rules.EvalContext{Record: rec, Form: p.resolveForm(rec)}
	rule, ok := set.Find(ctx)
	if !ok {
		p.metrics.RecordMiss()
		eval.Status = EvaluationStatusMiss
		return Result{}
	}
	p.metrics.RecordMatch(rule.Name, rule.Source)
	res = Result{Matched: true, Rule: rule.Name}
	eval.Rule, eval.Source = rule.Name, rule.Source

	hasInfo, needsIconUpdate := rule.SetInfo(rec)
	res.HasInfo = hasInfo
	if !hasInfo {
		eval.Status = EvaluationStatusNoInfo
		p.logger.Tracef("rule %s matched %s without info", rule.Name, eval.FormID)
		return res
	}
	p.metrics.RecordApplied(rule.Name, rule.Source)
	eval.Status = EvaluationStatusApplied
	if needsIconUpdate {
		rule.SetIcon(rec)
		res.IconUpdated = true
		eval.IconUpdated = true
		p.metrics.RecordIconUpdate(rule.Name, rule.Source)
		if cont != nil {
			cont(rec)
		}
	}
	p.logger.Tracef("rule %s applied to %s", rule.Name, eval.FormID)
	return res
}

// ProcessList handles a whole list the way the host's processList hook does:
// every entry in list._entryList is prepared, original runs once, then rules
// are applied to every object entry. It returns the number of entries a rule
// matched.
func (p *Processor) ProcessList(list value.Value, original func(), cont IconContinuation) int {
	var entries value.Value
	if list.IsObject() {
		entries = list.GetMember(entryListMember)
	}
	if entries.IsArray() {
		for i, n := 0, entries.ArraySize(); i < n; i++ {
			p.Prepare(entries.GetElement(i))
		}
	} else {
		p.logger.Debugf("list has no %s array", entryListMember)
	}

	if original != nil {
		original()
	}

	matched := 0
	if !entries.IsArray() {
		return matched
	}
	for i, n := 0, entries.ArraySize(); i < n; i++ {
		entry := entries.GetElement(i)
		if !entry.IsObject() {
			continue
		}
		if p.apply(entry, cont).Matched {
			matched++
		}
	}
	return matched
}

// RuleCheck is the trace of one rule against an entry.
type RuleCheck struct {
	Rule      string                `json:"rule"`
	Source    string                `json:"source"`
	Matched   bool                  `json:"matched"`
	HasInfo   bool                  `json:"hasInfo"`
	Predicate *rules.PredicateTrace `json:"predicate,omitempty"`
}

// Explanation lists rule checks in evaluation order, up to and including the
// rule that matched.
type Explanation struct {
	Form   *gamedata.Form `json:"form,omitempty"`
	Checks []RuleCheck    `json:"checks"`
}

// Explain prepares rec and traces the rule search without applying anything.
func (p *Processor) Explain(rec value.Value) Explanation {
	p.Prepare(rec)
	ctx := rules.EvalContext{Record: rec, Form: p.resolveForm(rec)}
	out := Explanation{Form: ctx.Form}
	for _, rule := range p.rules.Current().Rules {
		matched, trace := rule.Tracer.Trace(ctx)
		out.Checks = append(out.Checks, RuleCheck{
			Rule:      rule.Name,
			Source:    rule.Source,
			Matched:   matched,
			HasInfo:   rule.HasInfo(),
			Predicate: trace,
		})
		if matched {
			break
		}
	}
	return out
}

func describeEntry(rec value.Value) (formType, formID string) {
	if ft, ok := gamedata.FormTypeOf(rec.GetMember("formType")); ok {
		formType = ft.String()
	}
	if id, ok := gamedata.FormIDOf(rec.GetMember("formId")); ok {
		formID = fmt.Sprintf("%08X", id)
	}
	return formType, formID
}

// recoverPanic stops a panic at the entry boundary. The host's UI dispatch
// must never see one.
func (p *Processor) recoverPanic(rec value.Value, stage string, onPanic func(r any)) {
	r := recover()
	if r == nil {
		return
	}
	p.metrics.RecordRecovered()
	p.logger.Errorf("%s: recovered from panic on %s: %v", stage, value.Stringify(rec), r)
	if onPanic != nil {
		onPanic(r)
	}
}
