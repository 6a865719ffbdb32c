package vad

import (
	"fmt"
	"time"
)

// Config holds the tuning parameters for a Segmenter.
//
// All durations are media time: the segmenter advances its clock by each
// frame's own duration, so the same configuration behaves identically for
// live capture and faster-than-real-time file processing.
type Config struct {
	// SilenceThreshold is the energy floor below which confidence is
	// forced to zero.
	SilenceThreshold float64

	// SpeechThreshold is the static decision threshold, and the minimum
	// threshold in adaptive mode.
	SpeechThreshold float64

	// MinSpeechDuration discards utterances shorter than this.
	// Filters clicks, coughs, and false triggers.
	MinSpeechDuration time.Duration

	// MaxSilenceDuration is the trailing silence that ends an utterance.
	MaxSilenceDuration time.Duration

	// PreSpeechPadding is the lookback window retained before speech
	// onset so that word onsets are not truncated.
	PreSpeechPadding time.Duration

	// PostSpeechPadding is the trailing silence retained after speech
	// offset in the emitted segment.
	PostSpeechPadding time.Duration

	// SmoothingFactor is the decay applied per frame of age when
	// smoothing raw energies. Must be in (0, 1].
	SmoothingFactor float64

	// AdaptiveThreshold enables noise-floor-relative thresholding.
	// When false the static SpeechThreshold is used alone.
	AdaptiveThreshold bool

	// NoiseFloor seeds the adaptive noise-floor estimate.
	NoiseFloor float64

	// MaxUtteranceDuration bounds how long speech may accumulate before
	// a non-final segment is emitted.
	MaxUtteranceDuration time.Duration

	// MinChunkDuration is the minimum buffered speech required for a
	// non-final emission, so long utterances are not split into slivers.
	MinChunkDuration time.Duration
}

// DefaultConfig returns the default segmenter configuration for 16kHz
// microphone input.
func DefaultConfig() Config {
	return Config{
		SilenceThreshold:     0.01,
		SpeechThreshold:      0.02,
		MinSpeechDuration:    250 * time.Millisecond,
		MaxSilenceDuration:   1000 * time.Millisecond,
		PreSpeechPadding:     300 * time.Millisecond,
		PostSpeechPadding:    200 * time.Millisecond,
		SmoothingFactor:      0.95,
		AdaptiveThreshold:    true,
		NoiseFloor:           0.005,
		MaxUtteranceDuration: 5 * time.Second,
		MinChunkDuration:     1250 * time.Millisecond,
	}
}

// Validate checks the configuration for values that would break the state
// machine (for example a non-positive MaxSilenceDuration could never end
// an utterance).
func (c Config) Validate() error {
	if c.SilenceThreshold < 0 {
		return fmt.Errorf("invalid SilenceThreshold %v: must be >= 0", c.SilenceThreshold)
	}
	if c.SpeechThreshold <= 0 {
		return fmt.Errorf("invalid SpeechThreshold %v: must be > 0", c.SpeechThreshold)
	}
	if c.SpeechThreshold < c.SilenceThreshold {
		return fmt.Errorf("invalid thresholds: SpeechThreshold %v below SilenceThreshold %v",
			c.SpeechThreshold, c.SilenceThreshold)
	}
	if c.MinSpeechDuration < 0 {
		return fmt.Errorf("invalid MinSpeechDuration %v: must be >= 0", c.MinSpeechDuration)
	}
	if c.MaxSilenceDuration <= 0 {
		return fmt.Errorf("invalid MaxSilenceDuration %v: must be > 0", c.MaxSilenceDuration)
	}
	if c.PreSpeechPadding < 0 {
		return fmt.Errorf("invalid PreSpeechPadding %v: must be >= 0", c.PreSpeechPadding)
	}
	if c.PostSpeechPadding < 0 {
		return fmt.Errorf("invalid PostSpeechPadding %v: must be >= 0", c.PostSpeechPadding)
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("invalid SmoothingFactor %v: must be in (0, 1]", c.SmoothingFactor)
	}
	if c.NoiseFloor < 0 {
		return fmt.Errorf("invalid NoiseFloor %v: must be >= 0", c.NoiseFloor)
	}
	if c.MaxUtteranceDuration <= 0 {
		return fmt.Errorf("invalid MaxUtteranceDuration %v: must be > 0", c.MaxUtteranceDuration)
	}
	if c.MinChunkDuration <= 0 {
		return fmt.Errorf("invalid MinChunkDuration %v: must be > 0", c.MinChunkDuration)
	}
	return nil
}

// ConfigPatch is a partial configuration update. Nil fields keep their
// current value.
type ConfigPatch struct {
	SilenceThreshold     *float64
	SpeechThreshold      *float64
	MinSpeechDuration    *time.Duration
	MaxSilenceDuration   *time.Duration
	PreSpeechPadding     *time.Duration
	PostSpeechPadding    *time.Duration
	SmoothingFactor      *float64
	AdaptiveThreshold    *bool
	NoiseFloor           *float64
	MaxUtteranceDuration *time.Duration
	MinChunkDuration     *time.Duration
}

// apply merges the patch into a copy of cfg.
func (p ConfigPatch) apply(cfg Config) Config {
	if p.SilenceThreshold != nil {
		cfg.SilenceThreshold = *p.SilenceThreshold
	}
	if p.SpeechThreshold != nil {
		cfg.SpeechThreshold = *p.SpeechThreshold
	}
	if p.MinSpeechDuration != nil {
		cfg.MinSpeechDuration = *p.MinSpeechDuration
	}
	if p.MaxSilenceDuration != nil {
		cfg.MaxSilenceDuration = *p.MaxSilenceDuration
	}
	if p.PreSpeechPadding != nil {
		cfg.PreSpeechPadding = *p.PreSpeechPadding
	}
	if p.PostSpeechPadding != nil {
		cfg.PostSpeechPadding = *p.PostSpeechPadding
	}
	if p.SmoothingFactor != nil {
		cfg.SmoothingFactor = *p.SmoothingFactor
	}
	if p.AdaptiveThreshold != nil {
		cfg.AdaptiveThreshold = *p.AdaptiveThreshold
	}
	if p.NoiseFloor != nil {
		cfg.NoiseFloor = *p.NoiseFloor
	}
	if p.MaxUtteranceDuration != nil {
		cfg.MaxUtteranceDuration = *p.MaxUtteranceDuration
	}
	if p.MinChunkDuration != nil {
		cfg.MinChunkDuration = *p.MinChunkDuration
	}
	return cfg
}
