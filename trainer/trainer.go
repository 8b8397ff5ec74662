// Package trainer fits head parameters with the structured perceptron.
//
// Only the output side is trained: the projection of every head and the
// transition matrix of the linear-chain head. Whatever a head does before
// its projection (BiLSTM, self-attention) keeps its initial weights and
// acts as a fixed feature extractor.
package trainer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/crf"
	"github.com/teatak/absa/dataset"
	"github.com/teatak/absa/encoder"
	"github.com/teatak/absa/head"
	"github.com/teatak/absa/tagset"
)

// Config controls a training run. Zero fields take defaults.
type Config struct {
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Shuffle      bool    `yaml:"shuffle"`
	Seed         uint64  `yaml:"seed"`
}

func (c Config) withDefaults() Config {
	if c.Epochs <= 0 {
		c.Epochs = 10
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 1
	}
	return c
}

// Epoch reports one pass over the data.
type Epoch struct {
	Epoch int
	// Accuracy is the share of sentences decoded exactly right before
	// their update.
	Accuracy float64
	// Loss is the mean head loss over the pass.
	Loss    float64
	Updates int
}

// Trainer runs perceptron epochs.
type Trainer struct {
	cfg    Config
	logger *zap.Logger
	runID  string
}

// Option customizes a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a trainer with a fresh run id.
func New(cfg Config, opts ...Option) *Trainer {
	t := &Trainer{cfg: cfg.withDefaults(), logger: zap.NewNop(), runID: uuid.New().String()}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("run", t.runID))
	return t
}

// RunID identifies this trainer in logs.
func (t *Trainer) RunID() string { return t.runID }

type sample struct {
	rep  *mat.Dense
	mask head.Mask
	gold []tagset.Label
}

// Train fits h on examples encoded by enc. It stops early after an epoch
// without mistakes and returns the stats of every epoch run.
func (t *Trainer) Train(ctx context.Context, h head.Projected, enc encoder.Encoder, examples []dataset.Example) ([]Epoch, error) {
	if enc.Dim() != h.Dim() {
		return nil, fmt.Errorf("trainer: %w: encoder width %d, head expects %d",
			head.ErrDimensionMismatch, enc.Dim(), h.Dim())
	}

	// Representations never change during training, so compute them once.
	samples := make([]sample, 0, len(examples))
	for i, ex := range examples {
		if len(ex.Words) == 0 {
			continue
		}
		x, err := enc.Encode(ex.Words)
		if err != nil {
			return nil, fmt.Errorf("trainer: example %d: %w", i, err)
		}
		mask := head.FullMask(len(ex.Words))
		rep, err := h.Represent(x, mask)
		if err != nil {
			return nil, fmt.Errorf("trainer: example %d: %w", i, err)
		}
		samples = append(samples, sample{rep: rep, mask: mask, gold: ex.Labels})
	}

	var trans *crf.Transitions
	if s, ok := h.(*head.Structured); ok {
		trans = s.Transitions()
	}
	proj := h.Projection()
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	r := rand.New(rand.NewSource(t.cfg.Seed))

	t.logger.Info("training started",
		zap.Stringer("head", h.Kind()),
		zap.Int("examples", len(samples)),
		zap.Int("epochs", t.cfg.Epochs))

	var stats []Epoch
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		if t.cfg.Shuffle {
			r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		st := Epoch{Epoch: epoch}
		correct := 0
		for _, k := range order {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			s := samples[k]
			em := []*mat.Dense{proj.Apply(s.rep)}
			masks := []head.Mask{s.mask}

			loss, err := h.Loss(em, masks, [][]tagset.Label{s.gold})
			if err != nil {
				return stats, fmt.Errorf("trainer: %w", err)
			}
			st.Loss += loss

			pred, err := h.Decode(em, masks)
			if err != nil {
				return stats, fmt.Errorf("trainer: %w", err)
			}
			if equal(pred[0], s.gold) {
				correct++
				continue
			}
			t.update(proj, trans, s.rep, s.gold, pred[0])
			st.Updates++
		}
		if len(samples) > 0 {
			st.Accuracy = float64(correct) / float64(len(samples))
			st.Loss /= float64(len(samples))
		}
		stats = append(stats, st)
		t.logger.Info("epoch done",
			zap.Int("epoch", epoch),
			zap.Float64("accuracy", st.Accuracy),
			zap.Float64("loss", st.Loss),
			zap.Int("updates", st.Updates))
		if st.Updates == 0 {
			break
		}
	}
	return stats, nil
}

// update moves weights toward the gold features and away from the
// predicted ones.
func (t *Trainer) update(proj *head.Projection, trans *crf.Transitions, rep *mat.Dense, gold, pred []tagset.Label) {
	lr := t.cfg.LearningRate
	_, width := rep.Dims()
	for i := range gold {
		g, p := int(gold[i]), int(pred[i])
		if g == p {
			continue
		}
		row := rep.RawRowView(i)
		for d := 0; d < width; d++ {
			proj.W.Set(d, g, proj.W.At(d, g)+lr*row[d])
			proj.W.Set(d, p, proj.W.At(d, p)-lr*row[d])
		}
		proj.B.Set(0, g, proj.B.At(0, g)+lr)
		proj.B.Set(0, p, proj.B.At(0, p)-lr)
	}

	if trans == nil {
		return
	}
	gPrev, pPrev := crf.Start, crf.Start
	for i := 0; i <= len(gold); i++ {
		gCurr, pCurr := crf.End, crf.End
		if i < len(gold) {
			gCurr, pCurr = int(gold[i]), int(pred[i])
		}
		if gPrev != pPrev || gCurr != pCurr {
			trans[gPrev][gCurr] += lr
			trans[pPrev][pCurr] -= lr
		}
		gPrev, pPrev = gCurr, pCurr
	}
}

func equal(a, b []tagset.Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
