package domain

import "github.com/shopspring/decimal"

// Result is the outcome of an ended session.
type Result struct {
	Score     int
	Total     int
	Category  string
	TimeTaken int
}

// Percentage is the share of correct answers rounded half up to a whole number.
func (r Result) Percentage() int {
	if r.Total <= 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(r.Score)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(r.Total)), 4).
		Round(0)
	return int(p.IntPart())
}

// Grade is the headline shown for a result.
func (r Result) Grade() string {
	switch p := r.Percentage(); {
	case p >= 90:
		return "Outstanding!"
	case p >= 70:
		return "Great job!"
	default:
		return "Keep practicing!"
	}
}
