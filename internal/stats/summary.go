package stats

// Summary describes a set of damage scores.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P90    float64 `json:"p90"`
}

// Summarize computes a Summary. An empty input yields the zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	return Summary{
		Count:  len(values),
		Mean:   Mean(values),
		Median: Median(values),
		StdDev: StdDev(values),
		Min:    Min(values),
		Max:    Max(values),
		P90:    Quantile(values, 0.9),
	}
}

// MeanAccumulator collects values so a mean can be built one value at a
// time.
type MeanAccumulator struct {
	values []float64
}

// Add records one value.
func (a *MeanAccumulator) Add(v float64) {
	a.values = append(a.values, v)
}

// Count returns the number of values added.
func (a *MeanAccumulator) Count() int {
	return len(a.values)
}

// Mean returns the arithmetic mean of the values added, 0 when empty.
func (a *MeanAccumulator) Mean() float64 {
	return Mean(a.values)
}
