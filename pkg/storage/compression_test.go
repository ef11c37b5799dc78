package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSamples(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Sin(float64(i) * 0.01)
	}
	return values
}

func TestCompressColumnRoundTrip(t *testing.T) {
	comp, err := NewCompressor(2)
	require.NoError(t, err)
	defer comp.Close()

	values := []float64{0, 1.5, 1.5, -2.25, math.NaN(), math.Inf(1), math.SmallestNonzeroFloat64, 1e300}

	compressed := comp.CompressColumn(values)
	decompressed, err := comp.DecompressColumn(compressed, len(values))
	require.NoError(t, err)
	require.Len(t, decompressed, len(values))

	for i := range values {
		assert.Equal(t, math.Float64bits(values[i]), math.Float64bits(decompressed[i]), "value %d", i)
	}
}

func TestCompressColumnShrinksSlowSignals(t *testing.T) {
	comp, err := NewCompressor(3)
	require.NoError(t, err)
	defer comp.Close()

	// constant steps XOR down to a handful of distinct words
	values := make([]float64, 1000)
	for i := range values {
		values[i] = 42.0
	}

	compressed := comp.CompressColumn(values)
	assert.Less(t, len(compressed), len(values)*8/10)
}

func TestCompressColumnEmpty(t *testing.T) {
	comp, err := NewCompressor(1)
	require.NoError(t, err)
	defer comp.Close()

	assert.Nil(t, comp.CompressColumn(nil))

	values, err := comp.DecompressColumn(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestDecompressColumnCountMismatch(t *testing.T) {
	comp, err := NewCompressor(2)
	require.NoError(t, err)
	defer comp.Close()

	compressed := comp.CompressColumn([]float64{1, 2, 3})
	_, err = comp.DecompressColumn(compressed, 4)
	assert.Error(t, err)

	_, err = comp.DecompressColumn([]byte("not zstd"), 1)
	assert.Error(t, err)
}

func TestCompressionLevels(t *testing.T) {
	values := sineSamples(1000)

	for level := 1; level <= 4; level++ {
		comp, err := NewCompressor(level)
		require.NoError(t, err, "level %d", level)

		decompressed, err := comp.DecompressColumn(comp.CompressColumn(values), len(values))
		require.NoError(t, err, "level %d", level)
		assert.Equal(t, values, decompressed, "level %d", level)

		comp.Close()
	}

	for _, level := range []int{0, 5} {
		_, err := NewCompressor(level)
		assert.Error(t, err, "level %d", level)
	}
}

func BenchmarkCompressColumn(b *testing.B) {
	comp, _ := NewCompressor(2)
	defer comp.Close()

	values := sineSamples(10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		comp.CompressColumn(values)
	}
}
