package locator

import (
	"cmp"
	"slices"

	"github.com/deep-rent/locus/binding"
	"github.com/deep-rent/locus/token"
)

// Candidate is a binding together with its score for a particular query.
type Candidate struct {
	Binding *binding.Binding
	Score   binding.Score
	// Winner marks the candidate Resolve selects.
	Winner bool
}

// Explain scores every binding of the queried service, newest first. Unlike
// Resolve it never stops early and never touches the memo.
func (r *Registry) Explain(q Query) []Candidate {
	chain := r.Bindings(q.Service)
	out := make([]Candidate, len(chain))
	winner := -1
	for i, b := range chain {
		s := b.Score(q.Resource, q.Location)
		out[i] = Candidate{Binding: b, Score: s}
		if winner < 0 && s.Qualified() || winner >= 0 && s.Beats(out[winner].Score) {
			winner = i
		}
	}
	if winner >= 0 {
		out[winner].Winner = true
	}
	return out
}

// Bindings returns the bindings of service, newest first.
func (r *Registry) Bindings(service token.Token) []*binding.Binding {
	if b, ok := r.fast[service]; ok {
		return []*binding.Binding{b}
	}
	return slices.Clone(r.slow[service])
}

// Services returns every service with at least one binding, ordered by name.
// Services sharing a name keep an unspecified relative order.
func (r *Registry) Services() []token.Token {
	out := make([]token.Token, 0, len(r.fast)+len(r.slow))
	for s := range r.fast {
		out = append(out, s)
	}
	for s := range r.slow {
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b token.Token) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	return out
}
