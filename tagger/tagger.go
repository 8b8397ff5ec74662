// Package tagger runs the full pipeline: tokens, encoder vectors, head
// scores, decoded labels and finally aspect spans with their sentiment.
package tagger

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/crf"
	"github.com/teatak/absa/dataset"
	"github.com/teatak/absa/encoder"
	"github.com/teatak/absa/evaluate"
	"github.com/teatak/absa/head"
	"github.com/teatak/absa/spans"
	"github.com/teatak/absa/tagset"
	"github.com/teatak/absa/util"
)

// Aspect is one aspect term found in a sentence.
type Aspect struct {
	Text      string          `json:"aspect"`
	Start     int             `json:"start"`
	End       int             `json:"end"`
	Sentiment tagset.Polarity `json:"sentiment"`
	// Score is the mean softmax probability of the chosen labels over the
	// aspect's tokens.
	Score float64 `json:"score"`
}

func (a Aspect) String() string {
	return fmt.Sprintf("%s: %s", a.Text, a.Sentiment)
}

// Result is the tagging of one sentence.
type Result struct {
	Words   []string       `json:"words"`
	Labels  []tagset.Label `json:"-"`
	Aspects []Aspect       `json:"aspects"`
}

// Tags returns the labels as tag text.
func (r Result) Tags() []string {
	return tagset.Strings(r.Labels)
}

// Tagger is safe for concurrent use as long as nobody mutates the head
// parameters meanwhile.
type Tagger struct {
	Encoder encoder.Encoder
	Head    head.Head
	Policy  spans.Policy
	logger  *zap.Logger
}

// Option customizes a Tagger.
type Option func(*Tagger)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tagger) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithPolicy sets the label-to-span decoding policy.
func WithPolicy(p spans.Policy) Option {
	return func(t *Tagger) {
		t.Policy = p
	}
}

// New creates a tagger. The encoder width must match the head's.
func New(enc encoder.Encoder, h head.Head, opts ...Option) (*Tagger, error) {
	if enc.Dim() != h.Dim() {
		return nil, fmt.Errorf("tagger: %w: encoder width %d, head expects %d",
			head.ErrDimensionMismatch, enc.Dim(), h.Dim())
	}
	t := &Tagger{Encoder: enc, Head: h, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Tag tokenizes text and tags it.
func (t *Tagger) Tag(text string) ([]Aspect, error) {
	res, err := t.TagTokens(util.Tokenize(text))
	if err != nil {
		return nil, err
	}
	return res.Aspects, nil
}

// TagTokens tags one pre-tokenized sentence.
func (t *Tagger) TagTokens(tokens []string) (Result, error) {
	res, err := t.TagBatch([][]string{tokens})
	if err != nil {
		return Result{}, err
	}
	return res[0], nil
}

// TagBatch tags several pre-tokenized sentences in one head call.
func (t *Tagger) TagBatch(sentences [][]string) ([]Result, error) {
	b := head.Batch{
		Vectors: make([]*mat.Dense, len(sentences)),
		Masks:   make([]head.Mask, len(sentences)),
	}
	for i, tokens := range sentences {
		x, err := t.Encoder.Encode(tokens)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i, err)
		}
		b.Vectors[i] = x
		b.Masks[i] = head.FullMask(len(tokens))
	}

	em, err := t.Head.Emissions(b)
	if err != nil {
		return nil, err
	}
	labels, err := t.Head.Decode(em, b.Masks)
	if err != nil {
		return nil, err
	}

	out := make([]Result, len(sentences))
	for i, tokens := range sentences {
		out[i] = Result{
			Words:   tokens,
			Labels:  labels[i],
			Aspects: t.aspects(tokens, labels[i], em[i]),
		}
		t.logger.Debug("tagged sentence",
			zap.Int("tokens", len(tokens)),
			zap.Int("aspects", len(out[i].Aspects)),
			zap.Strings("tags", out[i].Tags()))
	}
	return out, nil
}

// aspects turns decoded spans into Aspects. Spans made only of punctuation
// are dropped.
func (t *Tagger) aspects(tokens []string, labels []tagset.Label, em *mat.Dense) []Aspect {
	var out []Aspect
	for _, sp := range t.Policy.Decode(labels) {
		if punctuationOnly(tokens[sp.Start : sp.End+1]) {
			continue
		}
		score := 0.0
		for i := sp.Start; i <= sp.End; i++ {
			score += labelProb(em.RawRowView(i), labels[i])
		}
		out = append(out, Aspect{
			Text:      strings.Join(tokens[sp.Start:sp.End+1], " "),
			Start:     sp.Start,
			End:       sp.End,
			Sentiment: sp.Polarity,
			Score:     score / float64(sp.Len()),
		})
	}
	return out
}

func punctuationOnly(tokens []string) bool {
	for _, tok := range tokens {
		if !util.IsPunctuation(tok) {
			return false
		}
	}
	return true
}

// labelProb is softmax(row)[l].
func labelProb(row []float64, l tagset.Label) float64 {
	return math.Exp(row[l] - crf.LogSumExp(row))
}

// Evaluate tags every example and scores the decoded spans against the
// gold spans.
func (t *Tagger) Evaluate(examples []dataset.Example) (evaluate.Report, error) {
	results, err := t.TagBatch(dataset.Sentences(examples))
	if err != nil {
		return evaluate.Report{}, err
	}
	var ev evaluate.Evaluator
	for i, ex := range examples {
		ev.Add(t.Policy.Decode(results[i].Labels), ex.Spans)
	}
	r := ev.Report()
	t.logger.Info("evaluated",
		zap.Int("sentences", r.Sentences),
		zap.Float64("exact_f1", r.Exact.F1),
		zap.Float64("boundary_f1", r.Boundary.F1))
	return r, nil
}

// Unique drops repeated aspects with the same text (case-insensitive),
// keeping the highest scoring mention in the slot of the first one.
func Unique(aspects []Aspect) []Aspect {
	index := make(map[string]int)
	var out []Aspect
	for _, a := range aspects {
		key := strings.ToLower(a.Text)
		if i, ok := index[key]; ok {
			if a.Score > out[i].Score {
				out[i] = a
			}
			continue
		}
		index[key] = len(out)
		out = append(out, a)
	}
	return out
}
