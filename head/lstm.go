package head

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/tagset"
)

// lstm is one direction of a single-layer LSTM. Gate rows are stacked in
// the order input, forget, cell, output.
type lstm struct {
	hidden int
	Wx     *mat.Dense // 4H×D
	Wh     *mat.Dense // 4H×H
	B      *mat.Dense // 4H×1
}

func newLSTM(r *rand.Rand, in, hidden int) *lstm {
	b := mat.NewDense(4*hidden, 1, nil)
	for j := hidden; j < 2*hidden; j++ {
		b.Set(j, 0, 1) // forget gate starts open
	}
	return &lstm{
		hidden: hidden,
		Wx:     randn(r, 4*hidden, in, initStd),
		Wh:     randn(r, 4*hidden, hidden, initStd),
		B:      b,
	}
}

// run feeds rows [0, n) of x through the cell, backwards when reverse is
// set, and writes the hidden states to out[t][col:col+H].
func (c *lstm) run(x *mat.Dense, n int, reverse bool, out *mat.Dense, col int) {
	H := c.hidden
	h := mat.NewVecDense(H, nil)
	cell := make([]float64, H)
	var z, zh mat.VecDense

	for step := 0; step < n; step++ {
		t := step
		if reverse {
			t = n - 1 - step
		}
		z.MulVec(c.Wx, x.RowView(t))
		zh.MulVec(c.Wh, h)
		z.AddVec(&z, &zh)
		z.AddVec(&z, c.B.ColView(0))

		for j := 0; j < H; j++ {
			in := sigmoid(z.AtVec(j))
			forget := sigmoid(z.AtVec(H + j))
			g := math.Tanh(z.AtVec(2*H + j))
			o := sigmoid(z.AtVec(3*H + j))
			cell[j] = forget*cell[j] + in*g
			hv := o * math.Tanh(cell[j])
			h.SetVec(j, hv)
			out.Set(t, col+j, hv)
		}
	}
}

func (c *lstm) params(prefix string) []param {
	return []param{{prefix + ".Wx", c.Wx}, {prefix + ".Wh", c.Wh}, {prefix + ".b", c.B}}
}

// Recurrent re-encodes the sequence with a bidirectional LSTM and projects
// the concatenated forward and backward states.
type Recurrent struct {
	dim      int
	fwd, bwd *lstm
	proj     *Projection
}

func newRecurrent(r *rand.Rand, cfg Config) *Recurrent {
	return &Recurrent{
		dim:  cfg.Dim,
		fwd:  newLSTM(r, cfg.Dim, cfg.Hidden),
		bwd:  newLSTM(r, cfg.Dim, cfg.Hidden),
		proj: newProjection(r, 2*cfg.Hidden),
	}
}

func (h *Recurrent) Kind() Kind              { return KindLSTM }
func (h *Recurrent) Dim() int                { return h.dim }
func (h *Recurrent) Projection() *Projection { return h.proj }

// Represent returns N×2H states. Both directions run over the valid prefix
// only, so padding never leaks into valid positions; padding rows are zero.
// An empty sequence gives an empty matrix.
func (h *Recurrent) Represent(x *mat.Dense, m Mask) (*mat.Dense, error) {
	if err := checkInput(x, m, h.dim); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return &mat.Dense{}, nil
	}
	rows := len(m)
	H := h.fwd.hidden
	out := mat.NewDense(rows, 2*H, nil)
	n := m.ValidLen()
	h.fwd.run(x, n, false, out, 0)
	h.bwd.run(x, n, true, out, H)
	return out, nil
}

func (h *Recurrent) Emissions(b Batch) ([]*mat.Dense, error) {
	return project(h, b)
}

func (h *Recurrent) Decode(em []*mat.Dense, masks []Mask) ([][]tagset.Label, error) {
	return argmaxDecode(em, masks)
}

func (h *Recurrent) Loss(em []*mat.Dense, masks []Mask, gold [][]tagset.Label) (float64, error) {
	return crossEntropy(em, masks, gold)
}

func (h *Recurrent) params() []param {
	ps := h.fwd.params("lstm.fwd")
	ps = append(ps, h.bwd.params("lstm.bwd")...)
	return append(ps, h.proj.params()...)
}
