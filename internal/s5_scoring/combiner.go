package s5_scoring

import (
	"sort"
)

// Combiner merges per-component trend values into one composite score
type Combiner interface {
	// Components returns the inputs the combiner takes into account
	Components() []string

	// Combine merges the available values into a score in [-1, 1].
	// ok is false when none of the values carry weight.
	Combine(values map[string]float64) (score float64, ok bool)
}

// WeightedCombiner is a weight-normalised sum over the available components
type WeightedCombiner struct {
	weights map[string]float64
}

// NewWeightedCombiner copies weights. Components with weight <= 0 are unused.
func NewWeightedCombiner(weights map[string]float64) *WeightedCombiner {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		if v > 0 {
			w[k] = v
		}
	}
	return &WeightedCombiner{weights: w}
}

// Components returns the weighted components, sorted
func (c *WeightedCombiner) Components() []string {
	out := make([]string, 0, len(c.weights))
	for k := range c.weights {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Weights returns a copy of the weights in use
func (c *WeightedCombiner) Weights() map[string]float64 {
	out := make(map[string]float64, len(c.weights))
	for k, v := range c.weights {
		out[k] = v
	}
	return out
}

// Combine renormalises the weights over the components present in values
func (c *WeightedCombiner) Combine(values map[string]float64) (float64, bool) {
	total := 0.0
	sum := 0.0
	for name, v := range values {
		w, ok := c.weights[name]
		if !ok {
			continue
		}
		total += w
		sum += w * v
	}
	if total == 0 {
		return 0, false
	}
	return sum / total, true
}
