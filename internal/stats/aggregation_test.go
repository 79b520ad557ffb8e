package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 3}))
	assert.InDelta(t, 2.1666666, Mean([]float64{0.5, 4, 2}), 1e-6)
}

func TestQuantile(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	assert.Equal(t, 1.0, Quantile(values, 0))
	assert.Equal(t, 4.0, Quantile(values, 1))
	assert.Equal(t, 2.5, Median(values))
	assert.Equal(t, []float64{4, 1, 3, 2}, values, "input must not be reordered")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize([]float64{0, 1, 2, 3, 4})
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 2.0, s.Mean)
	assert.Equal(t, 2.0, s.Median)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 3.6, s.P90, 1e-9)
	assert.InDelta(t, 1.5811388, s.StdDev, 1e-6)
}

func TestMeanAccumulator(t *testing.T) {
	var acc MeanAccumulator
	assert.Equal(t, 0, acc.Count())
	assert.Equal(t, 0.0, acc.Mean())

	acc.Add(1.0)
	acc.Add(3.0)
	assert.Equal(t, 2, acc.Count())
	assert.Equal(t, 2.0, acc.Mean())
}
