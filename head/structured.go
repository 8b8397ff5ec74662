package head

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/crf"
	"github.com/teatak/absa/tagset"
)

// Structured is the linear-chain head: projected emissions plus a learned
// transition matrix over the labels and the Start/End states.
type Structured struct {
	dim   int
	proj  *Projection
	trans *crf.Transitions
}

func newStructured(r *rand.Rand, cfg Config) *Structured {
	return &Structured{
		dim:   cfg.Dim,
		proj:  newProjection(r, cfg.Dim),
		trans: crf.NewTransitions(),
	}
}

func (h *Structured) Kind() Kind              { return KindCRF }
func (h *Structured) Dim() int                { return h.dim }
func (h *Structured) Projection() *Projection { return h.proj }

// Transitions returns the live transition matrix. Writes through it change
// the head.
func (h *Structured) Transitions() *crf.Transitions { return h.trans }

func (h *Structured) Represent(x *mat.Dense, m Mask) (*mat.Dense, error) {
	if err := checkInput(x, m, h.dim); err != nil {
		return nil, err
	}
	return x, nil
}

func (h *Structured) Emissions(b Batch) ([]*mat.Dense, error) {
	return project(h, b)
}

// Decode runs Viterbi over each valid prefix.
func (h *Structured) Decode(em []*mat.Dense, masks []Mask) ([][]tagset.Label, error) {
	if err := checkEmissions(em, masks); err != nil {
		return nil, err
	}
	out := make([][]tagset.Label, len(em))
	for k, e := range em {
		labels := make([]tagset.Label, len(masks[k]))
		best, _ := crf.Viterbi(e, masks[k].ValidLen(), h.trans)
		copy(labels, best)
		out[k] = labels
	}
	return out, nil
}

// Loss is the mean sequence negative log-likelihood over the batch.
func (h *Structured) Loss(em []*mat.Dense, masks []Mask, gold [][]tagset.Label) (float64, error) {
	if err := checkEmissions(em, masks); err != nil {
		return 0, err
	}
	if err := checkGold(em, gold); err != nil {
		return 0, err
	}
	if len(em) == 0 {
		return 0, nil
	}
	total := 0.0
	for k, e := range em {
		nll, err := crf.NLL(e, gold[k][:masks[k].ValidLen()], h.trans)
		if err != nil {
			return 0, fmt.Errorf("sequence %d: %w", k, err)
		}
		total += nll
	}
	return total / float64(len(em)), nil
}

func (h *Structured) params() []param {
	return h.proj.params()
}
