package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/GroundAura/InventoryInjector/internal/config"
	"github.com/GroundAura/InventoryInjector/internal/gamedata"
	"github.com/GroundAura/InventoryInjector/internal/value"
)

type traceNode interface {
	trace(ctx EvalContext) (bool, *PredicateTrace)
}

type predicateEntry struct {
	fn   Predicate
	node traceNode
}

// criterionNode is a leaf criterion. eval returns the outcome and the actual
// value it looked at, for traces. describe, when set, supplies the actual
// value instead and only runs while tracing.
type criterionNode struct {
	kind     string
	expected any
	eval     func(ctx EvalContext) (bool, any)
	describe func(ctx EvalContext) any
}

func (n *criterionNode) trace(ctx EvalContext) (bool, *PredicateTrace) {
	result, actual := n.eval(ctx)
	if n.describe != nil {
		actual = n.describe(ctx)
	}
	details := map[string]any{"expected": n.expected}
	if actual != nil {
		details["actual"] = actual
	}
	return result, &PredicateTrace{Kind: n.kind, Result: result, Details: details}
}

func leaf(kind string, expected any, eval func(ctx EvalContext) (bool, any)) predicateEntry {
	node := &criterionNode{kind: kind, expected: expected, eval: eval}
	return predicateEntry{
		fn: func(ctx EvalContext) bool {
			ok, _ := eval(ctx)
			return ok
		},
		node: node,
	}
}

// describedLeaf is a leaf whose actual value is costly to render; match runs
// on every evaluation, describe only when tracing.
func describedLeaf(kind string, expected any, match func(ctx EvalContext) bool, describe func(ctx EvalContext) any) predicateEntry {
	node := &criterionNode{
		kind:     kind,
		expected: expected,
		eval:     func(ctx EvalContext) (bool, any) { return match(ctx), nil },
		describe: describe,
	}
	return predicateEntry{fn: match, node: node}
}

func compileChildren(children []config.MatchConfig, policy MatchPolicy) ([]Predicate, []traceNode, error) {
	preds := make([]Predicate, 0, len(children))
	nodes := make([]traceNode, 0, len(children))
	for i, child := range children {
		pred, node, err := compilePredicate(child, policy)
		if err != nil {
			return nil, nil, fmt.Errorf("[%d]: %w", i, err)
		}
		preds = append(preds, pred)
		nodes = append(nodes, node)
	}
	return preds, nodes, nil
}

func compilePredicate(mc config.MatchConfig, policy MatchPolicy) (Predicate, traceNode, error) {
	entries := make([]predicateEntry, 0)

	if len(mc.All) > 0 {
		childPreds, childNodes, err := compileChildren(mc.All, policy)
		if err != nil {
			return nil, nil, fmt.Errorf("all%w", err)
		}
		entries = append(entries, predicateEntry{
			fn: func(ctx EvalContext) bool {
				for _, p := range childPreds {
					if !p(ctx) {
						return false
					}
				}
				return true
			},
			node: &allNode{children: childNodes},
		})
	}

	if len(mc.Any) > 0 {
		childPreds, childNodes, err := compileChildren(mc.Any, policy)
		if err != nil {
			return nil, nil, fmt.Errorf("any%w", err)
		}
		entries = append(entries, predicateEntry{
			fn: func(ctx EvalContext) bool {
				for _, p := range childPreds {
					if p(ctx) {
						return true
					}
				}
				return false
			},
			node: &anyNode{children: childNodes},
		})
	}

	if mc.Not != nil {
		pred, node, err := compilePredicate(*mc.Not, policy)
		if err != nil {
			return nil, nil, fmt.Errorf("not: %w", err)
		}
		entries = append(entries, predicateEntry{
			fn:   func(ctx EvalContext) bool { return !pred(ctx) },
			node: &notNode{child: node},
		})
	}

	if len(mc.FormType) > 0 {
		wanted := make(map[gamedata.FormType]struct{}, len(mc.FormType))
		for _, raw := range mc.FormType {
			ft, err := gamedata.ParseFormType(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("formType: %w", err)
			}
			wanted[ft] = struct{}{}
		}
		entries = append(entries, leaf("formType", []string(mc.FormType), func(ctx EvalContext) (bool, any) {
			ft, ok := gamedata.FormTypeOf(ctx.Record.GetMember(memberFormType))
			if !ok {
				return false, nil
			}
			_, ok = wanted[ft]
			return ok, ft.String()
		}))
	}

	if len(mc.FormID) > 0 {
		wanted := make(map[uint32]struct{}, len(mc.FormID))
		for _, raw := range mc.FormID {
			id, err := strconv.ParseUint(strings.TrimSpace(raw), 0, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("formId %q: not a 32-bit form id", raw)
			}
			wanted[uint32(id)] = struct{}{}
		}
		entries = append(entries, leaf("formId", []string(mc.FormID), func(ctx EvalContext) (bool, any) {
			id, ok := gamedata.FormIDOf(ctx.Record.GetMember(memberFormID))
			if !ok {
				return false, nil
			}
			_, ok = wanted[id]
			return ok, fmt.Sprintf("%08X", id)
		}))
	}

	if len(mc.Keywords) > 0 {
		wanted := []string(mc.Keywords)
		entries = append(entries, leaf("keywords", wanted, func(ctx EvalContext) (bool, any) {
			kw := ctx.Record.GetMember(memberKeywords)
			for _, w := range wanted {
				if !hasKeyword(kw, w, policy) {
					return false, missingDetail(w)
				}
			}
			return true, nil
		}))
	}

	if len(mc.AnyKeywords) > 0 {
		wanted := []string(mc.AnyKeywords)
		entries = append(entries, leaf("anyKeywords", wanted, func(ctx EvalContext) (bool, any) {
			kw := ctx.Record.GetMember(memberKeywords)
			for _, w := range wanted {
				if hasKeyword(kw, w, policy) {
					return true, w
				}
			}
			return false, nil
		}))
	}

	if len(mc.EffectKeywords) > 0 {
		wanted := []string(mc.EffectKeywords)
		entries = append(entries, leaf("effectKeywords", wanted, func(ctx EvalContext) (bool, any) {
			kw := ctx.Record.GetMember(memberEffectKeywords)
			for _, w := range wanted {
				if !hasKeyword(kw, w, policy) {
					return false, missingDetail(w)
				}
			}
			return true, nil
		}))
	}

	if len(mc.EditorID) > 0 {
		wanted := []string(mc.EditorID)
		entries = append(entries, leaf("editorId", wanted, func(ctx EvalContext) (bool, any) {
			if ctx.Form == nil {
				return false, nil
			}
			for _, w := range wanted {
				if policy.equal(ctx.Form.EditorID, w) {
					return true, ctx.Form.EditorID
				}
			}
			return false, ctx.Form.EditorID
		}))
	}

	if mc.Name != "" {
		substr := mc.Name
		entries = append(entries, leaf("name", substr, func(ctx EvalContext) (bool, any) {
			name, ok := recordName(ctx.Record)
			if !ok {
				return false, nil
			}
			return policy.contains(name, substr), name
		}))
	}

	if len(mc.Fields) > 0 {
		names := make([]string, 0, len(mc.Fields))
		for name := range mc.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			expected, ok := value.FromScalar(mc.Fields[name])
			if !ok {
				return nil, nil, fmt.Errorf("fields.%s: expected a string, number or boolean", name)
			}
			member := name
			entries = append(entries, describedLeaf("fields."+member, mc.Fields[name],
				func(ctx EvalContext) bool {
					return fieldEquals(ctx.Record.GetMember(member), expected, policy)
				},
				func(ctx EvalContext) any {
					return value.Stringify(ctx.Record.GetMember(member))
				},
			))
		}
	}

	if len(entries) == 0 {
		return func(ctx EvalContext) bool { return true }, &rootNode{}, nil
	}

	preds := make([]Predicate, len(entries))
	nodes := make([]traceNode, len(entries))
	for i, entry := range entries {
		preds[i] = entry.fn
		nodes[i] = entry.node
	}

	combined := func(ctx EvalContext) bool {
		for _, p := range preds {
			if !p(ctx) {
				return false
			}
		}
		return true
	}

	return combined, &rootNode{children: nodes}, nil
}

func missingDetail(keyword string) string {
	return "missing " + keyword
}

// BuildPredicateWithTrace compiles the predicate and returns a tracer for inspection.
func BuildPredicateWithTrace(mc config.MatchConfig, policy MatchPolicy) (Predicate, *PredicateTracer, error) {
	pred, node, err := compilePredicate(mc, policy)
	if err != nil {
		return nil, nil, err
	}
	return pred, &PredicateTracer{root: node}, nil
}

// PredicateTrace captures predicate evaluation decisions.
type PredicateTrace struct {
	Kind     string            `json:"kind"`
	Result   bool              `json:"result"`
	Details  map[string]any    `json:"details,omitempty"`
	Children []*PredicateTrace `json:"children,omitempty"`
}

// PredicateTracer evaluates predicates while capturing branch outcomes.
type PredicateTracer struct {
	root traceNode
}

// Trace executes the predicate and returns the boolean result alongside its trace.
func (t *PredicateTracer) Trace(ctx EvalContext) (bool, *PredicateTrace) {
	if t == nil || t.root == nil {
		return true, &PredicateTrace{Kind: "match", Result: true}
	}
	return t.root.trace(ctx)
}

type rootNode struct {
	children []traceNode
}

func (n *rootNode) trace(ctx EvalContext) (bool, *PredicateTrace) {
	if len(n.children) == 0 {
		return true, &PredicateTrace{Kind: "match", Result: true}
	}
	result, traces := traceAll(ctx, n.children)
	return result, &PredicateTrace{Kind: "match", Result: result, Children: traces}
}

type allNode struct {
	children []traceNode
}

func (n *allNode) trace(ctx EvalContext) (bool, *PredicateTrace) {
	result, traces := traceAll(ctx, n.children)
	return result, &PredicateTrace{Kind: "all", Result: result, Children: traces}
}

func traceAll(ctx EvalContext, children []traceNode) (bool, []*PredicateTrace) {
	result := true
	traces := make([]*PredicateTrace, 0, len(children))
	for _, child := range children {
		childResult, childTrace := child.trace(ctx)
		traces = append(traces, childTrace)
		if !childResult {
			result = false
		}
	}
	return result, traces
}

type anyNode struct {
	children []traceNode
}

func (n *anyNode) trace(ctx EvalContext) (bool, *PredicateTrace) {
	result := false
	traces := make([]*PredicateTrace, 0, len(n.children))
	for _, child := range n.children {
		childResult, childTrace := child.trace(ctx)
		traces = append(traces, childTrace)
		if childResult {
			result = true
		}
	}
	return result, &PredicateTrace{Kind: "any", Result: result, Children: traces}
}

type notNode struct {
	child traceNode
}

func (n *notNode) trace(ctx EvalContext) (bool, *PredicateTrace) {
	childResult, childTrace := n.child.trace(ctx)
	result := !childResult
	return result, &PredicateTrace{Kind: "not", Result: result, Children: []*PredicateTrace{childTrace}}
}

// SummarizePredicateTrace renders a predicate trace as human-readable lines including captured values.
func SummarizePredicateTrace(trace *PredicateTrace) []string {
	if trace == nil {
		return nil
	}
	lines := make([]string, 0)
	var walk func(prefix string, node *PredicateTrace)
	walk = func(prefix string, node *PredicateTrace) {
		if node == nil {
			return
		}
		line := fmt.Sprintf("%s%s => %t", prefix, node.Kind, node.Result)
		if detail := formatTraceDetails(node.Details); detail != "" {
			line = fmt.Sprintf("%s %s", line, detail)
		}
		lines = append(lines, line)
		for _, child := range node.Children {
			walk(prefix+"  ", child)
		}
	}
	walk("", trace)
	return lines
}

func formatTraceDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, details[key]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
