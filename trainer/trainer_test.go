package trainer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/dataset"
	"github.com/teatak/absa/head"
	"github.com/teatak/absa/tagger"
	"github.com/teatak/absa/tagset"
)

type oneHot map[string]int

func (o oneHot) Dim() int { return len(o) + 1 }

func (o oneHot) Encode(tokens []string) (*mat.Dense, error) {
	if len(tokens) == 0 {
		return &mat.Dense{}, nil
	}
	x := mat.NewDense(len(tokens), o.Dim(), nil)
	for i, tok := range tokens {
		j, ok := o[tok]
		if !ok {
			j = len(o)
		}
		x.Set(i, j, 1)
	}
	return x, nil
}

const toyCorpus = `the battery life is bad####the=O battery=T-NEG life=T-NEG is=O bad=O
the food is great####the=O food=T-POS is=O great=O
great food####great=O food=T-POS
battery life and food####battery=T-NEG life=T-NEG and=O food=T-POS
the screen is ok####the=O screen=T-NEU is=O ok=O
`

func toy(t *testing.T) ([]dataset.Example, oneHot) {
	t.Helper()
	exs, err := dataset.Read(strings.NewReader(toyCorpus), tagset.SchemaOT)
	require.NoError(t, err)
	enc := oneHot{}
	for _, ex := range exs {
		for _, w := range ex.Words {
			if _, ok := enc[w]; !ok {
				enc[w] = len(enc)
			}
		}
	}
	return exs, enc
}

func TestPerceptronLearnsSeparableData(t *testing.T) {
	for _, kind := range []head.Kind{head.KindLinear, head.KindCRF} {
		t.Run(kind.String(), func(t *testing.T) {
			exs, enc := toy(t)
			h, err := head.New(head.Config{Kind: kind, Dim: enc.Dim(), Seed: 3})
			require.NoError(t, err)

			tr := New(Config{Epochs: 100, Shuffle: true, Seed: 5})
			assert.NotEmpty(t, tr.RunID())
			stats, err := tr.Train(context.Background(), h.(head.Projected), enc, exs)
			require.NoError(t, err)
			require.NotEmpty(t, stats)

			last := stats[len(stats)-1]
			assert.Equal(t, 0, last.Updates)
			assert.Equal(t, 1.0, last.Accuracy)
			assert.Less(t, len(stats), 100)

			tg, err := tagger.New(enc, h)
			require.NoError(t, err)
			report, err := tg.Evaluate(exs)
			require.NoError(t, err)
			assert.Equal(t, 1.0, report.Exact.F1)
		})
	}
}

func TestTrainRespectsContext(t *testing.T) {
	exs, enc := toy(t)
	h, err := head.New(head.Config{Kind: head.KindLinear, Dim: enc.Dim()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(Config{}).Train(ctx, h.(head.Projected), enc, exs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainDimensionMismatch(t *testing.T) {
	exs, enc := toy(t)
	h, err := head.New(head.Config{Kind: head.KindLinear, Dim: enc.Dim() + 1})
	require.NoError(t, err)
	_, err = New(Config{}).Train(context.Background(), h.(head.Projected), enc, exs)
	assert.ErrorIs(t, err, head.ErrDimensionMismatch)
}

func TestTrainRecurrentRuns(t *testing.T) {
	exs, enc := toy(t)
	h, err := head.New(head.Config{Kind: head.KindLSTM, Dim: enc.Dim(), Seed: 1})
	require.NoError(t, err)
	stats, err := New(Config{Epochs: 3}).Train(context.Background(), h.(head.Projected), enc, exs)
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	for _, st := range stats {
		assert.GreaterOrEqual(t, st.Loss, 0.0)
	}
}
