package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/vocab"
)

func TestHashedShapeAndDeterminism(t *testing.T) {
	v := vocab.Build([][]string{{"the", "food", "was", "great"}}, 1)
	a, err := NewHashed(v, WithDim(8), WithSeed(3))
	require.NoError(t, err)
	b, err := NewHashed(v, WithDim(8), WithSeed(3))
	require.NoError(t, err)
	assert.Equal(t, 8, a.Dim())

	tokens := []string{"The", "food", "was", "superb"}
	x, err := a.Encode(tokens)
	require.NoError(t, err)
	y, err := b.Encode(tokens)
	require.NoError(t, err)

	rows, cols := x.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 8, cols)
	assert.True(t, mat.Equal(x, y))
}

func TestHashedCaseFolding(t *testing.T) {
	h, err := NewHashed(nil, WithDim(4), WithContext(0))
	require.NoError(t, err)
	x, err := h.Encode([]string{"Food", "food"})
	require.NoError(t, err)
	assert.Equal(t, mat.Row(nil, 0, x), mat.Row(nil, 1, x))

	cs, err := NewHashed(nil, WithDim(4), WithContext(0), WithCaseSensitive(), WithBuckets(1<<16))
	require.NoError(t, err)
	x, err = cs.Encode([]string{"Food", "food"})
	require.NoError(t, err)
	assert.NotEqual(t, mat.Row(nil, 0, x), mat.Row(nil, 1, x))
}

func TestHashedContextMixing(t *testing.T) {
	h, err := NewHashed(nil, WithDim(6), WithContext(0))
	require.NoError(t, err)
	alone, err := h.Encode([]string{"food", "was", "good"})
	require.NoError(t, err)

	h2, err := NewHashed(nil, WithDim(6), WithContext(0.5))
	require.NoError(t, err)
	mixed, err := h2.Encode([]string{"food", "was", "good"})
	require.NoError(t, err)

	want := mat.Row(nil, 1, alone)
	floats.AddScaled(want, 0.5, mat.Row(nil, 0, alone))
	floats.AddScaled(want, 0.5, mat.Row(nil, 2, alone))
	assert.InDeltaSlice(t, want, mat.Row(nil, 1, mixed), 1e-12)

	// Rows are unit length before mixing.
	assert.InDelta(t, 1.0, floats.Norm(mat.Row(nil, 0, alone), 2), 1e-12)
}

func TestHashedEdgeCases(t *testing.T) {
	h, err := NewHashed(nil)
	require.NoError(t, err)
	x, err := h.Encode(nil)
	require.NoError(t, err)
	assert.True(t, x.IsEmpty())

	_, err = h.Encode([]string{"a", ""})
	assert.Error(t, err)

	_, err = NewHashed(nil, WithDim(0))
	assert.Error(t, err)
	_, err = NewHashed(nil, WithBuckets(-1))
	assert.Error(t, err)
	_, err = NewHashed(nil, WithContext(-1))
	assert.Error(t, err)
}

var _ Encoder = (*Hashed)(nil)
