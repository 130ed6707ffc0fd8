// Package score implements the all-or-nothing scoring rule for a question.
package score

import "github.com/victornm/quizmaster/internal/domain"

// Verdict is the outcome of one scored slot.
type Verdict struct {
	Slot     domain.Slot
	Expected bool
	Selected bool
}

func (v Verdict) Match() bool { return v.Expected == v.Selected }

// Verdicts compares the selection against every scored slot of q, in letter
// order. A slot is scored when it is offered and carries a correctness flag.
func Verdicts(q domain.Question, sel domain.Selection) []Verdict {
	out := make([]Verdict, 0, domain.SlotCount)
	for _, s := range domain.Slots {
		if !q.Offered(s) || !q.Correct[s].Present() {
			continue
		}
		out = append(out, Verdict{
			Slot:     s,
			Expected: q.Correct[s] == domain.FlagTrue,
			Selected: sel[s],
		})
	}
	return out
}

// Judge reports whether sel answers q correctly. Every scored slot must match;
// one false positive or one missed answer fails the whole question.
func Judge(q domain.Question, sel domain.Selection) bool {
	for _, v := range Verdicts(q, sel) {
		if !v.Match() {
			return false
		}
	}
	return true
}
