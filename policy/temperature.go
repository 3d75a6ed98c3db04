package policy

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// MinTemperature is the threshold below which distributions collapse to a hard argmax.
const MinTemperature = 1e-3

// AdjustTemperature returns p(a) ∝ weight(a)^(1/temperature). Low temperatures approach
// an argmax (ties split evenly); an all-zero input yields a uniform distribution.
func AdjustTemperature(weights []float64, temperature float64) []float64 {
	adjusted := make([]float64, len(weights))
	if len(weights) == 0 {
		return adjusted
	}

	peak := floats.Max(weights)
	if peak <= 0 {
		for i := range adjusted {
			adjusted[i] = 1 / float64(len(adjusted))
		}
		return adjusted
	}

	if temperature <= MinTemperature {
		for i, w := range weights {
			if w == peak {
				adjusted[i] = 1
			}
		}
	} else {
		// Scale by the peak first so large exponents cannot overflow
		exponent := 1.0 / temperature
		for i, w := range weights {
			if w > 0 {
				adjusted[i] = math.Pow(w/peak, exponent)
			}
		}
	}
	floats.Scale(1/floats.Sum(adjusted), adjusted)
	return adjusted
}

// Sample draws an index from a probability distribution.
func Sample(rng *rand.Rand, dist []float64) int {
	sampled := rng.Float64()
	cumulative := 0.0
	last := 0
	for i, p := range dist {
		if p <= 0 {
			continue
		}
		last = i
		cumulative += p
		if sampled < cumulative {
			return i
		}
	}
	return last // Fallback in case of rounding errors
}
