package pipeline

import "emberlog/internal/record"

// Stages bundles the four admission/transformation stages a Logger holds
// behind atomic.Pointer swaps (design note §9: "atomic pointer swaps for
// filter/sampler/redactor/rules, never a lock"). Any field may be nil,
// meaning identity for that stage (spec.md §4.1).
type Stages struct {
	Filter  *Filter
	Sampler Sampler
	Redact  *Redactor
	Rules   *RulesEngine
}

// Run executes level gate -> Filter.admit -> Sampler.accept ->
// Redactor.apply -> Rules.annotate in the fixed order spec.md §4.1
// mandates, given that the caller has already applied the level gate.
// admitted reports whether the record survives Filter and Sampler; out is
// only meaningful when admitted is true.
func (s Stages) Run(r record.Record) (out record.Record, admitted bool) {
	if s.Filter != nil && !s.Filter.Admit(r) {
		return record.Record{}, false
	}
	if s.Sampler != nil && !s.Sampler.Accept(r) {
		return record.Record{}, false
	}
	if s.Redact != nil {
		r.Message = s.Redact.Apply(r.Message)
		if flat := r.Context().Flatten(); len(flat) > 0 {
			redacted := s.Redact.ApplyContext(flat)
			var ctx *record.Context
			fields := make([]record.Field, 0, len(redacted))
			for k, v := range redacted {
				fields = append(fields, record.Field{Key: k, Value: v})
			}
			ctx = ctx.Push(fields...)
			r = r.WithContext(ctx)
		}
	}
	if s.Rules != nil {
		r = s.Rules.Annotate(r)
	}
	return r, true
}
