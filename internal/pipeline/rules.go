package pipeline

import "emberlog/internal/record"

// RuleCondition reports whether a Record matches a Rule's trigger
// (spec.md §3 "rule_annotations").
type RuleCondition interface {
	Matches(r record.Record) bool
}

// Rule pairs a trigger condition with the Annotation to attach when it
// matches.
type Rule struct {
	Condition  RuleCondition
	Annotation record.Annotation
}

// RulesEngine evaluates an ordered list of Rules against a Record after
// redaction and attaches every matching rule's Annotation, in order
// (spec.md §4.1 pipeline order: "... Redactor.apply ... Rules.annotate ->
// dispatch"). Unlike Filter, every matching rule contributes — there is no
// short-circuit, since annotation is additive rather than a pass/fail
// gate. A nil *RulesEngine leaves the record unannotated (identity).
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine builds a RulesEngine from an ordered rule list.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: rules}
}

// Annotate returns a copy of r with every matching rule's Annotation
// appended, in rule registration order.
func (e *RulesEngine) Annotate(r record.Record) record.Record {
	if e == nil {
		return r
	}
	for _, rule := range e.rules {
		if rule.Condition.Matches(r) {
			r = r.Annotate(rule.Annotation)
		}
	}
	return r
}

// conditionFunc adapts a plain function to RuleCondition.
type conditionFunc func(record.Record) bool

func (f conditionFunc) Matches(r record.Record) bool { return f(r) }

// ConditionFunc builds a RuleCondition from a function, for callers
// composing ad-hoc triggers without a named type.
func ConditionFunc(f func(record.Record) bool) RuleCondition {
	return conditionFunc(f)
}

// FilterRuleCondition adapts a FilterRule to a RuleCondition: the
// condition matches when the rule explicitly denies or allows (an
// ActionNone verdict means the predicate itself did not fire, so it is
// not a match for annotation purposes either).
type FilterRuleCondition struct{ Rule FilterRule }

func (c FilterRuleCondition) Matches(r record.Record) bool {
	return c.Rule.Evaluate(r) != ActionNone
}
