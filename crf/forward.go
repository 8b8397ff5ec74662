package crf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/tagset"
)

// LogSumExp returns log(Σ exp(x)) computed as max + log(Σ exp(x - max)), so
// no term overflows and the largest term never underflows. It returns -Inf
// for an empty slice or when every element is -Inf, and +Inf if any element
// is +Inf.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(xs)
}

// LogPartition runs the forward algorithm over the first n rows of em and
// returns the log of the summed exp-scores of every label path of length n,
// Start and End transitions included. Rows from n on are ignored.
func LogPartition(em mat.Matrix, n int, t *Transitions) float64 {
	if n == 0 {
		return t[Start][End]
	}

	alpha := make([]float64, NumLabels)
	next := make([]float64, NumLabels)
	buf := make([]float64, NumLabels)

	for tag := 0; tag < NumLabels; tag++ {
		alpha[tag] = t[Start][tag] + em.At(0, tag)
	}
	for i := 1; i < n; i++ {
		for curr := 0; curr < NumLabels; curr++ {
			for prev := 0; prev < NumLabels; prev++ {
				buf[prev] = alpha[prev] + t[prev][curr]
			}
			next[curr] = LogSumExp(buf) + em.At(i, curr)
		}
		alpha, next = next, alpha
	}
	for tag := 0; tag < NumLabels; tag++ {
		buf[tag] = alpha[tag] + t[tag][End]
	}
	return LogSumExp(buf)
}

// PathScore returns the score of one label path over the first len(labels)
// rows of em: emissions plus transitions, Start and End included.
func PathScore(em mat.Matrix, labels []tagset.Label, t *Transitions) (float64, error) {
	prev := Start
	score := 0.0
	for i, l := range labels {
		if !l.Valid() {
			return 0, fmt.Errorf("position %d: %w: %d", i, tagset.ErrInvalidLabel, int(l))
		}
		score += t[prev][l] + em.At(i, int(l))
		prev = int(l)
	}
	return score + t[prev][End], nil
}

// NLL is the negative log-likelihood of the gold path under the model:
// LogPartition minus PathScore over len(gold) rows. It is never negative
// up to rounding.
func NLL(em mat.Matrix, gold []tagset.Label, t *Transitions) (float64, error) {
	score, err := PathScore(em, gold, t)
	if err != nil {
		return 0, err
	}
	return LogPartition(em, len(gold), t) - score, nil
}
