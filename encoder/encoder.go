// Package encoder turns token sequences into per-token vectors.
//
// Encoder is the seam a pretrained contextual encoder plugs into. Hashed is
// a deterministic, dependency-free stand-in: seeded random embeddings per
// vocabulary word, hashed buckets for unknown words, and a fixed amount of
// neighbour mixing so vectors carry a little context.
package encoder

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/util"
	"github.com/teatak/absa/vocab"
)

const (
	DefaultDim     = 64
	DefaultBuckets = 1024
	DefaultContext = 0.5
)

// Encoder produces an N×Dim matrix for N tokens. Zero tokens give an empty
// matrix.
type Encoder interface {
	Dim() int
	Encode(tokens []string) (*mat.Dense, error)
}

// Option customizes a Hashed encoder.
type Option func(*config) error

type config struct {
	dim       int
	buckets   int
	context   float64
	seed      uint64
	lowercase bool
}

func defaultConfig() config {
	return config{
		dim:       DefaultDim,
		buckets:   DefaultBuckets,
		context:   DefaultContext,
		seed:      1,
		lowercase: true,
	}
}

// WithDim sets the vector width.
func WithDim(dim int) Option {
	return func(cfg *config) error {
		if dim <= 0 {
			return fmt.Errorf("encoder: dim must be positive, got %d", dim)
		}
		cfg.dim = dim
		return nil
	}
}

// WithBuckets sets how many hashed rows unknown words share.
func WithBuckets(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return fmt.Errorf("encoder: buckets must be positive, got %d", n)
		}
		cfg.buckets = n
		return nil
	}
}

// WithContext sets the weight given to each neighbour's embedding.
func WithContext(w float64) Option {
	return func(cfg *config) error {
		if w < 0 {
			return errors.New("encoder: context weight must not be negative")
		}
		cfg.context = w
		return nil
	}
}

// WithSeed sets the embedding seed.
func WithSeed(seed uint64) Option {
	return func(cfg *config) error {
		cfg.seed = seed
		return nil
	}
}

// WithCaseSensitive keeps token case for lookups.
func WithCaseSensitive() Option {
	return func(cfg *config) error {
		cfg.lowercase = false
		return nil
	}
}

// Hashed is a static embedding table over a vocabulary.
type Hashed struct {
	cfg   config
	vocab *vocab.Vocab
	table *mat.Dense // (vocab.Len()+buckets)×dim
}

// NewHashed builds the embedding table for v. A nil v means every token is
// hashed.
func NewHashed(v *vocab.Vocab, opts ...Option) (*Hashed, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if v == nil {
		v = vocab.New()
	}

	rows := v.Len() + cfg.buckets
	r := rand.New(rand.NewSource(cfg.seed))
	data := make([]float64, rows*cfg.dim)
	for i := range data {
		data[i] = r.NormFloat64()
	}
	table := mat.NewDense(rows, cfg.dim, data)
	for i := 0; i < rows; i++ {
		row := table.RawRowView(i)
		floats.Scale(1/floats.Norm(row, 2), row)
	}
	return &Hashed{cfg: cfg, vocab: v, table: table}, nil
}

func (h *Hashed) Dim() int { return h.cfg.dim }

// Vocab returns the vocabulary the table was built for.
func (h *Hashed) Vocab() *vocab.Vocab { return h.vocab }

// row returns the table row for one token.
func (h *Hashed) row(token string) int {
	if h.cfg.lowercase {
		token = util.Normalize(token)
	}
	if id, ok := h.vocab.ID(token); ok {
		return id
	}
	return h.vocab.Len() + int(xxhash.Sum64String(token)%uint64(h.cfg.buckets))
}

// Encode returns e[i] + w·(e[i-1] + e[i+1]) per token, missing neighbours
// contributing nothing.
func (h *Hashed) Encode(tokens []string) (*mat.Dense, error) {
	if len(tokens) == 0 {
		return &mat.Dense{}, nil
	}
	n, d := len(tokens), h.cfg.dim
	ids := make([]int, n)
	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("encoder: empty token at position %d", i)
		}
		ids[i] = h.row(tok)
	}

	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		dst := out.RawRowView(i)
		copy(dst, h.table.RawRowView(ids[i]))
		if i > 0 {
			floats.AddScaled(dst, h.cfg.context, h.table.RawRowView(ids[i-1]))
		}
		if i+1 < n {
			floats.AddScaled(dst, h.cfg.context, h.table.RawRowView(ids[i+1]))
		}
	}
	return out, nil
}
