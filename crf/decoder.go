package crf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/tagset"
)

// Viterbi finds the best label path over the first n rows of em (n×NumLabels
// scores) and returns it with its score. At every step candidates are
// scanned in ascending label id and only a strictly greater score replaces
// the current best, so ties go to the lowest id.
func Viterbi(em mat.Matrix, n int, t *Transitions) ([]tagset.Label, float64) {
	if n == 0 {
		return []tagset.Label{}, t[Start][End]
	}

	// dp[i][tag] = best score of a path ending at i with tag
	dp := make([][NumLabels]float64, n)
	// path[i][tag] = previous tag on that path
	path := make([][NumLabels]int, n)

	for tag := 0; tag < NumLabels; tag++ {
		dp[0][tag] = t[Start][tag] + em.At(0, tag)
	}

	for i := 1; i < n; i++ {
		for curr := 0; curr < NumLabels; curr++ {
			bestPrev := 0
			maxScore := dp[i-1][0] + t[0][curr]
			for prev := 1; prev < NumLabels; prev++ {
				score := dp[i-1][prev] + t[prev][curr]
				if score > maxScore {
					maxScore = score
					bestPrev = prev
				}
			}
			dp[i][curr] = maxScore + em.At(i, curr)
			path[i][curr] = bestPrev
		}
	}

	bestEnd := 0
	maxScore := dp[n-1][0] + t[0][End]
	for tag := 1; tag < NumLabels; tag++ {
		score := dp[n-1][tag] + t[tag][End]
		if score > maxScore {
			maxScore = score
			bestEnd = tag
		}
	}

	tags := make([]tagset.Label, n)
	tags[n-1] = tagset.Label(bestEnd)
	for i := n - 1; i > 0; i-- {
		tags[i-1] = tagset.Label(path[i][tags[i]])
	}
	return tags, maxScore
}
