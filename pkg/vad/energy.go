package vad

import (
	"fmt"
	"math"
)

// energyHistorySize bounds the smoothing window. Older energies are
// evicted FIFO once the window is full.
const energyHistorySize = 10

// RMS computes the root-mean-square energy of a frame of normalized
// samples. Empty frames and non-finite samples are rejected so that a bad
// reading can never reach the noise-floor estimate.
func RMS(frame []float32) (float64, error) {
	if len(frame) == 0 {
		return 0, fmt.Errorf("cannot compute energy of empty frame")
	}

	var sumSquares float64
	for i, s := range frame {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite sample at index %d", i)
		}
		sumSquares += v * v
	}

	return math.Sqrt(sumSquares / float64(len(frame))), nil
}

// EnergyAnalyzer computes per-frame RMS energy and a recency-weighted
// smoothed estimate over the last few frames. The smoothing low-passes the
// energy signal so that a single loud frame (a cough, a click) does not
// flip the speech decision, while remaining responsive within the window.
type EnergyAnalyzer struct {
	smoothingFactor float64
	history         []float64
}

// NewEnergyAnalyzer creates an analyzer with the given smoothing decay.
func NewEnergyAnalyzer(smoothingFactor float64) *EnergyAnalyzer {
	return &EnergyAnalyzer{
		smoothingFactor: smoothingFactor,
		history:         make([]float64, 0, energyHistorySize),
	}
}

// Analyze computes the frame's RMS energy, records it, and returns the raw
// and smoothed values.
func (a *EnergyAnalyzer) Analyze(frame []float32) (raw, smoothed float64, err error) {
	raw, err = RMS(frame)
	if err != nil {
		return 0, 0, err
	}

	a.history = append(a.history, raw)
	if len(a.history) > energyHistorySize {
		a.history = a.history[1:]
	}

	return raw, a.smoothedEnergy(), nil
}

// smoothedEnergy returns the weighted average of the recorded energies.
// The most recent energy has weight 1; each older entry's weight decays by
// the smoothing factor per frame of age.
func (a *EnergyAnalyzer) smoothedEnergy() float64 {
	var weighted, weights float64
	n := len(a.history)
	for i, e := range a.history {
		w := math.Pow(a.smoothingFactor, float64(n-1-i))
		weighted += e * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}

// SetSmoothingFactor updates the decay without clearing the history.
func (a *EnergyAnalyzer) SetSmoothingFactor(f float64) {
	a.smoothingFactor = f
}

// Reset clears the energy history.
func (a *EnergyAnalyzer) Reset() {
	a.history = a.history[:0]
}
