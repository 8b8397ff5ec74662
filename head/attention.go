package head

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/crf"
	"github.com/teatak/absa/tagset"
)

// attentionLayer is single-head scaled dot-product self-attention with a
// residual connection, followed by a ReLU feed-forward block with its own
// residual connection.
type attentionLayer struct {
	Wq, Wk, Wv *mat.Dense // D×D
	W1         *mat.Dense // D×F
	B1         *mat.Dense // 1×F
	W2         *mat.Dense // F×D
	B2         *mat.Dense // 1×D
}

func newAttentionLayer(r *rand.Rand, dim, ff int) *attentionLayer {
	return &attentionLayer{
		Wq: randn(r, dim, dim, initStd),
		Wk: randn(r, dim, dim, initStd),
		Wv: randn(r, dim, dim, initStd),
		W1: randn(r, dim, ff, initStd),
		B1: mat.NewDense(1, ff, nil),
		W2: randn(r, ff, dim, initStd),
		B2: mat.NewDense(1, dim, nil),
	}
}

// weights returns the N×N attention matrix. Keys at or after n get -Inf
// before the softmax, hence exactly zero weight.
func (l *attentionLayer) weights(x *mat.Dense, n int) *mat.Dense {
	var q, k, s mat.Dense
	q.Mul(x, l.Wq)
	k.Mul(x, l.Wk)
	s.Mul(&q, k.T())

	rows, _ := s.Dims()
	_, d := x.Dims()
	scale := 1 / math.Sqrt(float64(d))
	for i := 0; i < rows; i++ {
		row := s.RawRowView(i)
		for j := range row {
			if j >= n {
				row[j] = math.Inf(-1)
			} else {
				row[j] *= scale
			}
		}
		lse := crf.LogSumExp(row)
		for j := range row {
			row[j] = math.Exp(row[j] - lse)
		}
	}
	return &s
}

func (l *attentionLayer) forward(x *mat.Dense, n int) *mat.Dense {
	a := l.weights(x, n)

	var v, ctx, h mat.Dense
	v.Mul(x, l.Wv)
	ctx.Mul(a, &v)
	h.Add(x, &ctx)

	var f, g mat.Dense
	f.Mul(&h, l.W1)
	addRow(&f, l.B1)
	f.Apply(func(_, _ int, e float64) float64 { return math.Max(0, e) }, &f)
	g.Mul(&f, l.W2)
	addRow(&g, l.B2)

	var out mat.Dense
	out.Add(&h, &g)
	return &out
}

func (l *attentionLayer) params(prefix string) []param {
	return []param{
		{prefix + ".Wq", l.Wq}, {prefix + ".Wk", l.Wk}, {prefix + ".Wv", l.Wv},
		{prefix + ".W1", l.W1}, {prefix + ".b1", l.B1},
		{prefix + ".W2", l.W2}, {prefix + ".b2", l.B2},
	}
}

// SelfAttention re-encodes the sequence with stacked masked self-attention
// layers before projecting.
type SelfAttention struct {
	dim    int
	layers []*attentionLayer
	proj   *Projection
}

func newSelfAttention(r *rand.Rand, cfg Config) *SelfAttention {
	h := &SelfAttention{dim: cfg.Dim}
	for i := 0; i < cfg.Layers; i++ {
		h.layers = append(h.layers, newAttentionLayer(r, cfg.Dim, cfg.FFDim))
	}
	h.proj = newProjection(r, cfg.Dim)
	return h
}

func (h *SelfAttention) Kind() Kind              { return KindSAN }
func (h *SelfAttention) Dim() int                { return h.dim }
func (h *SelfAttention) Projection() *Projection { return h.proj }

// Represent returns N×D rows. Padding keys are masked out of every query,
// so rows before the first padding position do not depend on padding. With
// no valid position the input is returned as a copy.
func (h *SelfAttention) Represent(x *mat.Dense, m Mask) (*mat.Dense, error) {
	if err := checkInput(x, m, h.dim); err != nil {
		return nil, err
	}
	n := m.ValidLen()
	if n == 0 {
		if len(m) == 0 {
			return &mat.Dense{}, nil
		}
		return mat.DenseCopyOf(x), nil
	}
	out := x
	for _, l := range h.layers {
		out = l.forward(out, n)
	}
	return out, nil
}

func (h *SelfAttention) Emissions(b Batch) ([]*mat.Dense, error) {
	return project(h, b)
}

func (h *SelfAttention) Decode(em []*mat.Dense, masks []Mask) ([][]tagset.Label, error) {
	return argmaxDecode(em, masks)
}

func (h *SelfAttention) Loss(em []*mat.Dense, masks []Mask, gold [][]tagset.Label) (float64, error) {
	return crossEntropy(em, masks, gold)
}

func (h *SelfAttention) params() []param {
	var ps []param
	for i, l := range h.layers {
		ps = append(ps, l.params(fmt.Sprintf("san.%d", i))...)
	}
	return append(ps, h.proj.params()...)
}
