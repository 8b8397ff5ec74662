package head

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/crf"
	"github.com/teatak/absa/tagset"
)

var allKinds = []Kind{KindLinear, KindLSTM, KindSAN, KindCRF}

func randomVectors(r *rand.Rand, n, d int) *mat.Dense {
	data := make([]float64, n*d)
	for i := range data {
		data[i] = r.NormFloat64()
	}
	return mat.NewDense(n, d, data)
}

func prefixMask(n, valid int) Mask {
	m := make(Mask, n)
	for i := 0; i < valid; i++ {
		m[i] = true
	}
	return m
}

func newHead(t *testing.T, kind Kind, dim int) Head {
	t.Helper()
	h, err := New(Config{Kind: kind, Dim: dim, Seed: 42})
	require.NoError(t, err)
	require.Equal(t, kind, h.Kind())
	return h
}

func TestParseKind(t *testing.T) {
	for _, k := range allKinds {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind(" CRF ")
	require.NoError(t, err)
	assert.Equal(t, KindCRF, got)

	_, err = ParseKind("gru")
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(Config{Kind: Kind(9), Dim: 4})
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = New(Config{Kind: KindLinear})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMaskValidLen(t *testing.T) {
	assert.Equal(t, 0, Mask(nil).ValidLen())
	assert.Equal(t, 3, FullMask(3).ValidLen())
	assert.Equal(t, 2, Mask{true, true, false, true}.ValidLen())
}

func TestEmissionsShape(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHead(t, kind, 6)
			b := Batch{
				Vectors: []*mat.Dense{randomVectors(r, 5, 6), randomVectors(r, 2, 6)},
				Masks:   []Mask{prefixMask(5, 3), FullMask(2)},
			}
			em, err := h.Emissions(b)
			require.NoError(t, err)
			require.Len(t, em, 2)
			rows, cols := em[0].Dims()
			assert.Equal(t, 5, rows)
			assert.Equal(t, tagset.Size, cols)

			labels, err := h.Decode(em, b.Masks)
			require.NoError(t, err)
			require.Len(t, labels[0], 5)
			require.Len(t, labels[1], 2)
			assert.Equal(t, tagset.O, labels[0][3])
			assert.Equal(t, tagset.O, labels[0][4])
			for _, seq := range labels {
				for _, l := range seq {
					assert.True(t, l.Valid())
				}
			}
		})
	}
}

func TestPaddingDoesNotLeak(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHead(t, kind, 4)
			x := randomVectors(r, 6, 4)
			m := prefixMask(6, 4)

			em1, err := h.Emissions(Batch{Vectors: []*mat.Dense{x}, Masks: []Mask{m}})
			require.NoError(t, err)

			y := mat.DenseCopyOf(x)
			for j := 0; j < 4; j++ {
				y.Set(4, j, 100)
				y.Set(5, j, -100)
			}
			em2, err := h.Emissions(Batch{Vectors: []*mat.Dense{y}, Masks: []Mask{m}})
			require.NoError(t, err)

			for i := 0; i < 4; i++ {
				for j := 0; j < tagset.Size; j++ {
					assert.InDelta(t, em1[0].At(i, j), em2[0].At(i, j), 1e-12)
				}
			}

			l1, err := h.Decode(em1, []Mask{m})
			require.NoError(t, err)
			l2, err := h.Decode(em2, []Mask{m})
			require.NoError(t, err)
			assert.Equal(t, l1, l2)
		})
	}
}

func TestShapeErrors(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHead(t, kind, 6)

			_, err := h.Emissions(Batch{Vectors: []*mat.Dense{randomVectors(r, 3, 5)}, Masks: []Mask{FullMask(3)}})
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			_, err = h.Emissions(Batch{Vectors: []*mat.Dense{randomVectors(r, 3, 6)}, Masks: []Mask{FullMask(2)}})
			assert.ErrorIs(t, err, ErrMaskLengthMismatch)

			_, err = h.Emissions(Batch{Vectors: []*mat.Dense{randomVectors(r, 3, 6)}})
			assert.ErrorIs(t, err, ErrMaskLengthMismatch)

			em := []*mat.Dense{mat.NewDense(3, tagset.Size, nil)}
			_, err = h.Decode(em, []Mask{FullMask(4)})
			assert.ErrorIs(t, err, ErrMaskLengthMismatch)
			_, err = h.Decode([]*mat.Dense{mat.NewDense(3, 4, nil)}, []Mask{FullMask(3)})
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			_, err = h.Loss(em, []Mask{FullMask(3)}, [][]tagset.Label{{tagset.O}})
			assert.ErrorIs(t, err, ErrMaskLengthMismatch)
			_, err = h.Loss(em, []Mask{FullMask(3)}, [][]tagset.Label{{tagset.O, tagset.Label(20), tagset.O}})
			assert.ErrorIs(t, err, tagset.ErrInvalidLabel)
		})
	}
}

func TestEmptySequence(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHead(t, kind, 3)
			em, err := h.Emissions(Batch{Vectors: []*mat.Dense{{}}, Masks: []Mask{{}}})
			require.NoError(t, err)
			labels, err := h.Decode(em, []Mask{{}})
			require.NoError(t, err)
			assert.Empty(t, labels[0])
			loss, err := h.Loss(em, []Mask{{}}, [][]tagset.Label{{}})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, loss, 0.0)

			var rep *mat.Dense
			require.NotPanics(t, func() {
				rep, err = h.(Projected).Represent(&mat.Dense{}, Mask{})
			})
			require.NoError(t, err)
			assert.True(t, rep.IsEmpty())
		})
	}
}

func TestAllPaddingSequence(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHead(t, kind, 3)
			m := prefixMask(2, 0)
			em, err := h.Emissions(Batch{Vectors: []*mat.Dense{randomVectors(r, 2, 3)}, Masks: []Mask{m}})
			require.NoError(t, err)
			labels, err := h.Decode(em, []Mask{m})
			require.NoError(t, err)
			assert.Equal(t, []tagset.Label{tagset.O, tagset.O}, labels[0])
		})
	}
}

func TestArgmaxTiesPickLowestLabel(t *testing.T) {
	h := newHead(t, KindLinear, 2)
	em := mat.NewDense(2, tagset.Size, nil)
	em.Set(1, int(tagset.SNeg), 3)
	em.Set(1, int(tagset.SPos), 3)
	labels, err := h.Decode([]*mat.Dense{em}, []Mask{FullMask(2)})
	require.NoError(t, err)
	assert.Equal(t, []tagset.Label{tagset.O, tagset.SPos}, labels[0])
}

func TestCrossEntropy(t *testing.T) {
	h := newHead(t, KindLinear, 2)
	em := mat.NewDense(3, tagset.Size, nil)
	gold := [][]tagset.Label{{tagset.BPos, tagset.EPos, tagset.Label(99)}}

	// The third position is padding, so its bogus gold label is never read.
	loss, err := h.Loss([]*mat.Dense{em}, []Mask{prefixMask(3, 2)}, gold)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(tagset.Size), loss, 1e-12)

	em.Set(0, int(tagset.BPos), 50)
	em.Set(1, int(tagset.EPos), 50)
	loss, err = h.Loss([]*mat.Dense{em}, []Mask{prefixMask(3, 2)}, gold)
	require.NoError(t, err)
	assert.Less(t, loss, 1e-10)
}

func TestStructuredMatchesEngine(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	h := newHead(t, KindCRF, 4).(*Structured)
	tr := h.Transitions()
	for i := range tr {
		for j := range tr[i] {
			tr[i][j] = r.NormFloat64()
		}
	}

	x1, x2 := randomVectors(r, 5, 4), randomVectors(r, 3, 4)
	masks := []Mask{prefixMask(5, 4), FullMask(3)}
	em, err := h.Emissions(Batch{Vectors: []*mat.Dense{x1, x2}, Masks: masks})
	require.NoError(t, err)

	labels, err := h.Decode(em, masks)
	require.NoError(t, err)
	best, _ := crf.Viterbi(em[0], 4, tr)
	assert.Equal(t, best, labels[0][:4])
	assert.Equal(t, tagset.O, labels[0][4])

	gold := [][]tagset.Label{
		{tagset.BPos, tagset.EPos, tagset.O, tagset.SNeg, tagset.O},
		{tagset.O, tagset.O, tagset.SNeu},
	}
	loss, err := h.Loss(em, masks, gold)
	require.NoError(t, err)
	nll0, err := crf.NLL(em[0], gold[0][:4], tr)
	require.NoError(t, err)
	nll1, err := crf.NLL(em[1], gold[1], tr)
	require.NoError(t, err)
	assert.InDelta(t, (nll0+nll1)/2, loss, 1e-9)
	assert.GreaterOrEqual(t, loss, 0.0)
}

func TestSameSeedSameParameters(t *testing.T) {
	for _, kind := range allKinds {
		a, err := New(Config{Kind: kind, Dim: 4, Seed: 9})
		require.NoError(t, err)
		b, err := New(Config{Kind: kind, Dim: 4, Seed: 9})
		require.NoError(t, err)
		pa, pb := Params(a), Params(b)
		require.NotEmpty(t, pa)
		for name, m := range pa {
			assert.True(t, mat.Equal(m, pb[name]), "%s %s", kind, name)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	x := randomVectors(r, 4, 6)
	m := prefixMask(4, 3)
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			h, err := New(Config{Kind: kind, Dim: 6, Hidden: 2, Layers: 2, Seed: 1})
			require.NoError(t, err)
			if s, ok := h.(*Structured); ok {
				s.Transitions()[tagset.BPos][tagset.EPos] = 1.25
				s.Transitions()[crf.Start][tagset.SNeg] = -0.5
			}

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, h))
			loaded, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, kind, loaded.Kind())
			assert.Equal(t, 6, loaded.Dim())

			b := Batch{Vectors: []*mat.Dense{x}, Masks: []Mask{m}}
			want, err := h.Emissions(b)
			require.NoError(t, err)
			got, err := loaded.Emissions(b)
			require.NoError(t, err)
			assert.True(t, mat.Equal(want[0], got[0]))

			if s, ok := h.(*Structured); ok {
				assert.Equal(t, *s.Transitions(), *loaded.(*Structured).Transitions())
			}
		})
	}
}

func TestSaveLoadFile(t *testing.T) {
	h := newHead(t, KindCRF, 3)
	path := filepath.Join(t.TempDir(), "model.txt")
	require.NoError(t, Save(path, h))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, KindCRF, loaded.Kind())

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestSaveReportsWriteError(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	assert.Error(t, Save("/dev/full", newHead(t, KindCRF, 3)))
}

func TestReadErrors(t *testing.T) {
	for name, text := range map[string]string{
		"empty":        "",
		"bad header":   "X linear 3\n",
		"unknown kind": "H gru 3 1 1 6\n",
		"bad shape":    "H linear 2 1 1 4\nM proj.W 3 13\n",
		"unknown name": "H linear 2 1 1 4\nM lstm.fwd.Wx 2 13\n",
		"missing":      "H linear 2 1 1 4\n",
		"transition":   "H linear 2 1 1 4\nT B-POS E-POS 1\n",
	} {
		_, err := Read(bytes.NewBufferString(text))
		assert.Error(t, err, name)
	}
}
