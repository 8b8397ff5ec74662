package head

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/tagset"
)

// initStd matches the BERT initializer range.
const initStd = 0.02

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func randn(r *rand.Rand, rows, cols int, std float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = r.NormFloat64() * std
	}
	return mat.NewDense(rows, cols, data)
}

// addRow adds the 1×C row vector b to every row of m.
func addRow(m *mat.Dense, b *mat.Dense) {
	rows, cols := m.Dims()
	bias := b.RawRowView(0)
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := 0; j < cols; j++ {
			row[j] += bias[j]
		}
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Projection is the affine map from representation rows to label scores.
type Projection struct {
	W *mat.Dense // In×tagset.Size
	B *mat.Dense // 1×tagset.Size
}

func newProjection(r *rand.Rand, in int) *Projection {
	return &Projection{
		W: randn(r, in, tagset.Size, initStd),
		B: mat.NewDense(1, tagset.Size, nil),
	}
}

// In returns the representation width the projection reads.
func (p *Projection) In() int {
	rows, _ := p.W.Dims()
	return rows
}

// Apply returns x·W + b.
func (p *Projection) Apply(x mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(x, p.W)
	addRow(&out, p.B)
	return &out
}

func (p *Projection) params() []param {
	return []param{{"proj.W", p.W}, {"proj.b", p.B}}
}

// Linear scores every token from its own encoder vector.
type Linear struct {
	dim  int
	proj *Projection
}

func newLinear(r *rand.Rand, cfg Config) *Linear {
	return &Linear{dim: cfg.Dim, proj: newProjection(r, cfg.Dim)}
}

func (h *Linear) Kind() Kind              { return KindLinear }
func (h *Linear) Dim() int                { return h.dim }
func (h *Linear) Projection() *Projection { return h.proj }

// Represent returns x unchanged.
func (h *Linear) Represent(x *mat.Dense, m Mask) (*mat.Dense, error) {
	if err := checkInput(x, m, h.dim); err != nil {
		return nil, err
	}
	return x, nil
}

func (h *Linear) Emissions(b Batch) ([]*mat.Dense, error) {
	return project(h, b)
}

func (h *Linear) Decode(em []*mat.Dense, masks []Mask) ([][]tagset.Label, error) {
	return argmaxDecode(em, masks)
}

func (h *Linear) Loss(em []*mat.Dense, masks []Mask, gold [][]tagset.Label) (float64, error) {
	return crossEntropy(em, masks, gold)
}

func (h *Linear) params() []param {
	return h.proj.params()
}
