// Package evaluate scores predicted aspect spans against gold spans.
package evaluate

import (
	"errors"
	"fmt"

	"github.com/teatak/absa/spans"
	"github.com/teatak/absa/tagset"
)

// ErrLengthMismatch is returned when predicted and gold sentence counts differ.
var ErrLengthMismatch = errors.New("evaluate: sentence count mismatch")

// Mode selects what must agree for a predicted span to match a gold one.
type Mode int

const (
	// Exact requires start, end and polarity to agree.
	Exact Mode = iota
	// Boundary requires start and end to agree.
	Boundary
)

func (m Mode) String() string {
	if m == Boundary {
		return "boundary"
	}
	return "exact"
}

// Counts are true positives, false positives and false negatives.
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Add returns the element-wise sum.
func (c Counts) Add(o Counts) Counts {
	return Counts{TP: c.TP + o.TP, FP: c.FP + o.FP, FN: c.FN + o.FN}
}

// Scores derives precision, recall and F1. A zero denominator gives 0.
func (c Counts) Scores() Scores {
	var s Scores
	if c.TP+c.FP > 0 {
		s.Precision = float64(c.TP) / float64(c.TP+c.FP)
	}
	if c.TP+c.FN > 0 {
		s.Recall = float64(c.TP) / float64(c.TP+c.FN)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// Scores are precision, recall and F1 in [0, 1].
type Scores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

func (s Scores) String() string {
	return fmt.Sprintf("P=%.4f R=%.4f F1=%.4f", s.Precision, s.Recall, s.F1)
}

func same(a, b spans.Span, mode Mode) bool {
	if a.Start != b.Start || a.End != b.End {
		return false
	}
	return mode == Boundary || a.Polarity == b.Polarity
}

// Match counts one sentence. Predicted spans are taken in the order given;
// each claims the first unmatched gold span it agrees with, so every gold
// span is matched at most once.
func Match(pred, gold []spans.Span, mode Mode) Counts {
	used := make([]bool, len(gold))
	var c Counts
	for _, p := range pred {
		hit := false
		for j, g := range gold {
			if !used[j] && same(p, g, mode) {
				used[j] = true
				hit = true
				break
			}
		}
		if hit {
			c.TP++
		} else {
			c.FP++
		}
	}
	for _, u := range used {
		if !u {
			c.FN++
		}
	}
	return c
}

// Report holds corpus-level scores for both modes.
type Report struct {
	Exact    Scores `json:"exact"`
	Boundary Scores `json:"boundary"`
	// ByPolarity holds exact-match scores restricted to one polarity.
	ByPolarity map[tagset.Polarity]Scores `json:"by_polarity,omitempty"`
	Sentences  int                        `json:"sentences"`
}

// Evaluator accumulates counts across sentences. The zero value is ready
// to use.
type Evaluator struct {
	exact, boundary Counts
	byPolarity      [tagset.Neutral + 1]Counts
	sentences       int
}

// Add counts one sentence.
func (e *Evaluator) Add(pred, gold []spans.Span) {
	e.exact = e.exact.Add(Match(pred, gold, Exact))
	e.boundary = e.boundary.Add(Match(pred, gold, Boundary))
	for p := tagset.Positive; p <= tagset.Neutral; p++ {
		e.byPolarity[p] = e.byPolarity[p].Add(Match(filter(pred, p), filter(gold, p), Exact))
	}
	e.sentences++
}

// Counts returns the accumulated counts for mode.
func (e *Evaluator) Counts(mode Mode) Counts {
	if mode == Boundary {
		return e.boundary
	}
	return e.exact
}

// Report returns the scores of everything added so far.
func (e *Evaluator) Report() Report {
	r := Report{
		Exact:      e.exact.Scores(),
		Boundary:   e.boundary.Scores(),
		ByPolarity: make(map[tagset.Polarity]Scores, 3),
		Sentences:  e.sentences,
	}
	for p := tagset.Positive; p <= tagset.Neutral; p++ {
		r.ByPolarity[p] = e.byPolarity[p].Scores()
	}
	return r
}

// Reset clears the accumulated counts.
func (e *Evaluator) Reset() {
	*e = Evaluator{}
}

// Evaluate scores a whole evaluation set, one span list per sentence.
func Evaluate(pred, gold [][]spans.Span) (Report, error) {
	if len(pred) != len(gold) {
		return Report{}, fmt.Errorf("%w: %d predicted, %d gold", ErrLengthMismatch, len(pred), len(gold))
	}
	var e Evaluator
	for i := range pred {
		e.Add(pred[i], gold[i])
	}
	return e.Report(), nil
}

func filter(in []spans.Span, p tagset.Polarity) []spans.Span {
	var out []spans.Span
	for _, s := range in {
		if s.Polarity == p {
			out = append(out, s)
		}
	}
	return out
}
