package vad

const (
	// noiseFloorDecay is the EMA retention applied to the noise floor
	// while in silence: floor = floor*decay + energy*(1-decay).
	noiseFloorDecay = 0.95

	// thresholdFloorRatio scales the noise floor into a decision
	// threshold in adaptive mode.
	thresholdFloorRatio = 3.0
)

// ThresholdTracker maintains the running noise-floor estimate and derives
// the current speech/silence decision threshold from it.
//
// The floor adapts only during silence. While speech is active both the
// floor and the threshold are frozen, so the detector never learns the
// speaker's own voice as background noise and never tightens the threshold
// mid-utterance.
type ThresholdTracker struct {
	silenceThreshold float64
	speechThreshold  float64
	adaptive         bool

	noiseFloor float64
	threshold  float64
}

// NewThresholdTracker creates a tracker seeded with the configured initial
// noise floor.
func NewThresholdTracker(cfg Config) *ThresholdTracker {
	t := &ThresholdTracker{
		silenceThreshold: cfg.SilenceThreshold,
		speechThreshold:  cfg.SpeechThreshold,
		adaptive:         cfg.AdaptiveThreshold,
		noiseFloor:       cfg.NoiseFloor,
	}
	t.threshold = t.derive()
	return t
}

// Update feeds one smoothed energy reading. The noise floor and threshold
// only move while not speaking.
func (t *ThresholdTracker) Update(energy float64, speaking bool) {
	if speaking {
		return
	}
	t.noiseFloor = t.noiseFloor*noiseFloorDecay + energy*(1-noiseFloorDecay)
	t.threshold = t.derive()
}

func (t *ThresholdTracker) derive() float64 {
	th := thresholdFloorRatio * t.noiseFloor
	if th < t.speechThreshold {
		th = t.speechThreshold
	}
	return th
}

// Current returns the active decision threshold.
func (t *ThresholdTracker) Current() float64 {
	if !t.adaptive {
		return t.speechThreshold
	}
	return t.threshold
}

// NoiseFloor returns the current noise-floor estimate.
func (t *ThresholdTracker) NoiseFloor() float64 {
	return t.noiseFloor
}

// DetectSpeech classifies an energy reading. The comparison is strict:
// energy exactly equal to the threshold is silence.
func (t *ThresholdTracker) DetectSpeech(energy float64) bool {
	return energy > t.Current()
}

// Confidence maps an energy reading to [0, 1]: zero at or below the
// silence threshold, one at twice the current threshold, linear between.
// Advisory metadata only; never used for the speech decision.
func (t *ThresholdTracker) Confidence(energy float64) float64 {
	if energy <= t.silenceThreshold {
		return 0
	}
	upper := 2 * t.Current()
	if energy >= upper {
		return 1
	}
	c := (energy - t.silenceThreshold) / (upper - t.silenceThreshold)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Reconfigure applies new threshold settings. The current noise-floor
// estimate is kept; the seed value only applies at construction and reset.
func (t *ThresholdTracker) Reconfigure(cfg Config) {
	t.silenceThreshold = cfg.SilenceThreshold
	t.speechThreshold = cfg.SpeechThreshold
	t.adaptive = cfg.AdaptiveThreshold
	t.threshold = t.derive()
}

// Reset restores the tracker to its freshly constructed state.
func (t *ThresholdTracker) Reset(cfg Config) {
	t.noiseFloor = cfg.NoiseFloor
	t.threshold = t.derive()
}
