// Package head scores encoder token vectors against the joint tag set.
//
// Four heads share the Head interface: a linear projection, a BiLSTM
// re-encoder, a masked self-attention re-encoder and a linear-chain head
// with learned transitions. All of them end in the same affine Projection
// to tagset.Size scores per token.
package head

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/crf"
	"github.com/teatak/absa/tagset"
)

var (
	// ErrDimensionMismatch is returned when a vector or score width does not
	// match the configured size.
	ErrDimensionMismatch = errors.New("head: dimension mismatch")
	// ErrMaskLengthMismatch is returned when a mask, gold sequence or batch
	// does not line up with the sequences it belongs to.
	ErrMaskLengthMismatch = errors.New("head: mask length mismatch")
	// ErrUnknownKind is returned for head names that are not supported.
	ErrUnknownKind = errors.New("head: unknown kind")
)

// Kind selects the head variant.
type Kind int

const (
	KindLinear Kind = iota // KindLinear projects each vector independently.
	KindLSTM               // KindLSTM re-encodes with a bidirectional LSTM first.
	KindSAN                // KindSAN re-encodes with masked self-attention layers first.
	KindCRF                // KindCRF adds transition scores and decodes with Viterbi.
)

func (k Kind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindLSTM:
		return "lstm"
	case KindSAN:
		return "san"
	case KindCRF:
		return "crf"
	}
	return "unknown"
}

// ParseKind parses linear, lstm, san or crf.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return KindLinear, nil
	case "lstm":
		return KindLSTM, nil
	case "san":
		return KindSAN, nil
	case "crf":
		return KindCRF, nil
	}
	return KindLinear, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Mask marks the valid positions of a sequence. Valid positions form a
// prefix; everything from the first false entry on is padding.
type Mask []bool

// FullMask returns a mask with n valid positions.
func FullMask(n int) Mask {
	m := make(Mask, n)
	for i := range m {
		m[i] = true
	}
	return m
}

// ValidLen returns the number of leading valid positions.
func (m Mask) ValidLen() int {
	for i, ok := range m {
		if !ok {
			return i
		}
	}
	return len(m)
}

// Batch is a set of sequences of encoder vectors, each N×D, with their masks.
type Batch struct {
	Vectors []*mat.Dense
	Masks   []Mask
}

// Head turns encoder vectors into per-token label scores and label sequences.
type Head interface {
	Kind() Kind
	// Dim is the encoder vector width the head accepts.
	Dim() int
	// Emissions returns one N×tagset.Size score matrix per sequence.
	Emissions(b Batch) ([]*mat.Dense, error)
	// Decode returns one label per position. Padding positions get O.
	Decode(emissions []*mat.Dense, masks []Mask) ([][]tagset.Label, error)
	// Loss returns the training loss of the gold labels, averaged over the
	// batch. Only valid positions count.
	Loss(emissions []*mat.Dense, masks []Mask, gold [][]tagset.Label) (float64, error)
}

// Projected is implemented by every head in this package: emissions are
// Projection applied to the output of Represent.
type Projected interface {
	Head
	// Represent re-encodes one N×D sequence into the rows the projection reads.
	Represent(x *mat.Dense, m Mask) (*mat.Dense, error)
	Projection() *Projection
}

// Config describes a head. Zero fields take defaults.
type Config struct {
	Kind Kind
	// Dim is the encoder vector width.
	Dim int
	// Hidden is the LSTM state size per direction. Default Dim/2.
	Hidden int
	// Layers is the number of self-attention layers. Default 1.
	Layers int
	// FFDim is the self-attention feed-forward width. Default 2*Dim.
	FFDim int
	// Seed seeds parameter initialisation.
	Seed uint64
}

func (c Config) withDefaults() Config {
	if c.Hidden <= 0 {
		c.Hidden = c.Dim / 2
		if c.Hidden < 1 {
			c.Hidden = 1
		}
	}
	if c.Layers <= 0 {
		c.Layers = 1
	}
	if c.FFDim <= 0 {
		c.FFDim = 2 * c.Dim
	}
	return c
}

// New builds the head selected by cfg.Kind with freshly initialised parameters.
func New(cfg Config) (Head, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("%w: vector width must be positive, got %d", ErrDimensionMismatch, cfg.Dim)
	}
	cfg = cfg.withDefaults()
	r := newRand(cfg.Seed)
	switch cfg.Kind {
	case KindLinear:
		return newLinear(r, cfg), nil
	case KindLSTM:
		return newRecurrent(r, cfg), nil
	case KindSAN:
		return newSelfAttention(r, cfg), nil
	case KindCRF:
		return newStructured(r, cfg), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(cfg.Kind))
}

// dims is mat.Dense.Dims that tolerates nil and empty matrices, which stand
// for zero-length sequences.
func dims(m *mat.Dense) (int, int) {
	if m == nil || m.IsEmpty() {
		return 0, 0
	}
	return m.Dims()
}

func checkInput(x *mat.Dense, m Mask, dim int) error {
	rows, cols := dims(x)
	if len(m) != rows {
		return fmt.Errorf("%w: %d mask entries for %d tokens", ErrMaskLengthMismatch, len(m), rows)
	}
	if rows > 0 && cols != dim {
		return fmt.Errorf("%w: vectors have width %d, head expects %d", ErrDimensionMismatch, cols, dim)
	}
	return nil
}

func checkEmissions(em []*mat.Dense, masks []Mask) error {
	if len(em) != len(masks) {
		return fmt.Errorf("%w: %d masks for %d sequences", ErrMaskLengthMismatch, len(masks), len(em))
	}
	for k, e := range em {
		rows, cols := dims(e)
		if len(masks[k]) != rows {
			return fmt.Errorf("sequence %d: %w: %d mask entries for %d tokens", k, ErrMaskLengthMismatch, len(masks[k]), rows)
		}
		if rows > 0 && cols != tagset.Size {
			return fmt.Errorf("sequence %d: %w: %d scores per token, want %d", k, ErrDimensionMismatch, cols, tagset.Size)
		}
	}
	return nil
}

func checkGold(em []*mat.Dense, gold [][]tagset.Label) error {
	if len(gold) != len(em) {
		return fmt.Errorf("%w: %d gold sequences for %d sequences", ErrMaskLengthMismatch, len(gold), len(em))
	}
	for k, g := range gold {
		if rows, _ := dims(em[k]); len(g) != rows {
			return fmt.Errorf("sequence %d: %w: %d gold labels for %d tokens", k, ErrMaskLengthMismatch, len(g), rows)
		}
	}
	return nil
}

// project is the shared Emissions implementation.
func project(h Projected, b Batch) ([]*mat.Dense, error) {
	if len(b.Masks) != len(b.Vectors) {
		return nil, fmt.Errorf("%w: %d masks for %d sequences", ErrMaskLengthMismatch, len(b.Masks), len(b.Vectors))
	}
	out := make([]*mat.Dense, len(b.Vectors))
	for k, x := range b.Vectors {
		if err := checkInput(x, b.Masks[k], h.Dim()); err != nil {
			return nil, fmt.Errorf("sequence %d: %w", k, err)
		}
		if rows, _ := dims(x); rows == 0 {
			out[k] = &mat.Dense{}
			continue
		}
		rep, err := h.Represent(x, b.Masks[k])
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", k, err)
		}
		out[k] = h.Projection().Apply(rep)
	}
	return out, nil
}

// argmaxDecode labels each valid position with its highest scoring label,
// the lowest id on ties.
func argmaxDecode(em []*mat.Dense, masks []Mask) ([][]tagset.Label, error) {
	if err := checkEmissions(em, masks); err != nil {
		return nil, err
	}
	out := make([][]tagset.Label, len(em))
	for k, e := range em {
		out[k] = make([]tagset.Label, len(masks[k]))
		for i := 0; i < masks[k].ValidLen(); i++ {
			out[k][i] = tagset.Label(floats.MaxIdx(e.RawRowView(i)))
		}
	}
	return out, nil
}

// crossEntropy is the mean token-level softmax cross-entropy over valid
// positions of the batch.
func crossEntropy(em []*mat.Dense, masks []Mask, gold [][]tagset.Label) (float64, error) {
	if err := checkEmissions(em, masks); err != nil {
		return 0, err
	}
	if err := checkGold(em, gold); err != nil {
		return 0, err
	}
	total, count := 0.0, 0
	for k, e := range em {
		for i := 0; i < masks[k].ValidLen(); i++ {
			g := gold[k][i]
			if !g.Valid() {
				return 0, fmt.Errorf("sequence %d position %d: %w: %d", k, i, tagset.ErrInvalidLabel, int(g))
			}
			row := e.RawRowView(i)
			total += crf.LogSumExp(row) - row[g]
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return total / float64(count), nil
}
