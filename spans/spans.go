// Package spans converts between aspect spans and per-token label sequences.
package spans

import (
	"errors"
	"fmt"
	"sort"

	"github.com/teatak/absa/tagset"
)

var (
	// ErrOverlap is returned by Encode when two spans share a token.
	ErrOverlap = errors.New("spans: overlapping spans")
	// ErrOutOfRange is returned by Encode for spans that do not fit the
	// sequence or carry no polarity.
	ErrOutOfRange = errors.New("spans: span out of range")
)

// Span is an aspect term over tokens [Start, End] (inclusive) with its
// sentiment polarity.
type Span struct {
	Start    int             `json:"start"`
	End      int             `json:"end"`
	Polarity tagset.Polarity `json:"polarity"`
}

func (s Span) String() string {
	return fmt.Sprintf("(%d,%d,%s)", s.Start, s.End, s.Polarity)
}

// Len returns the number of tokens covered.
func (s Span) Len() int {
	return s.End - s.Start + 1
}

// Sort orders spans by start, then end, in place.
func Sort(spans []Span) {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
}

// Encode writes spans over a sequence of n tokens as BIEOS labels.
// Spans may come in any order but must be disjoint and in range.
func Encode(n int, spans []Span) ([]tagset.Label, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrOutOfRange, n)
	}
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	Sort(sorted)

	for k, s := range sorted {
		if s.Start < 0 || s.End < s.Start || s.End >= n {
			return nil, fmt.Errorf("%w: %v over %d tokens", ErrOutOfRange, s, n)
		}
		if s.Polarity < tagset.Positive || s.Polarity > tagset.Neutral {
			return nil, fmt.Errorf("%w: %v has no polarity", ErrOutOfRange, s)
		}
		if k > 0 && s.Start <= sorted[k-1].End {
			return nil, fmt.Errorf("%w: %v and %v", ErrOverlap, sorted[k-1], s)
		}
	}

	labels := make([]tagset.Label, n)
	for _, s := range sorted {
		if s.Start == s.End {
			labels[s.Start] = tagset.MustCompose(tagset.Single, s.Polarity)
			continue
		}
		labels[s.Start] = tagset.MustCompose(tagset.Begin, s.Polarity)
		for i := s.Start + 1; i < s.End; i++ {
			labels[i] = tagset.MustCompose(tagset.Inside, s.Polarity)
		}
		labels[s.End] = tagset.MustCompose(tagset.End, s.Polarity)
	}
	return labels, nil
}

// Policy controls how Decode recovers from ill-formed label sequences.
type Policy struct {
	// KeepOpenOnSingle lets an S label emit without touching a span that is
	// currently open. The open span may then close around the single-token
	// span, so decoded spans can nest. By default an S abandons the open
	// span and decoded spans never overlap. Set it to match the tag2ts
	// conversion of E2E-ABSA evaluation scripts, where S leaves open-span
	// state alone.
	KeepOpenOnSingle bool
}

// Decode converts labels to spans with the default Policy.
func Decode(labels []tagset.Label) []Span {
	return Policy{}.Decode(labels)
}

// Decode scans labels left to right and never fails:
//
//   - B opens a span, abandoning any span already open.
//   - I continues an open span and is ignored otherwise.
//   - E closes an open span and is ignored otherwise.
//   - S emits a one-token span.
//   - A span still open at the end is dropped.
//
// The polarity of an emitted span is the one of the label that opened it.
// Ids outside the vocabulary read as O.
func (p Policy) Decode(labels []tagset.Label) []Span {
	var out []Span
	open := false
	var start int
	var pol tagset.Polarity

	for i, l := range labels {
		role, lp, err := tagset.Decompose(l)
		if err != nil {
			continue
		}
		switch role {
		case tagset.Begin:
			open, start, pol = true, i, lp
		case tagset.Single:
			if !p.KeepOpenOnSingle {
				open = false
			}
			out = append(out, Span{Start: i, End: i, Polarity: lp})
		case tagset.End:
			if open {
				out = append(out, Span{Start: start, End: i, Polarity: pol})
				open = false
			}
		}
	}
	return out
}
