// Package vad provides streaming energy-based voice activity detection
// and speech segmentation.
//
// The Segmenter consumes fixed-duration frames of normalized float32
// audio and decides, frame by frame, whether the user is speaking. It
// tracks an adaptive noise floor, buffers a short lookback window so word
// onsets are not clipped, and emits bounded audio segments suitable for a
// downstream transcription service.
//
// Main features:
//   - RMS energy analysis with recency-weighted smoothing
//   - Adaptive noise-floor threshold, frozen while speech is active
//   - Pre/post-speech padding around emitted segments
//   - Minimum-duration filtering of clicks and coughs
//   - Periodic non-final emission for long monologues, keeping memory and
//     transcription latency bounded
//
// Usage:
//
//	seg, err := vad.NewSegmenter(vad.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for frame := range frames {
//	    res, err := seg.ProcessFrame(frame, 16000)
//	    if err != nil {
//	        log.Printf("bad frame: %v", err)
//	        continue
//	    }
//	    if res.ShouldSend {
//	        transcribe(res.Audio, res.Final)
//	    }
//	}
//	if res := seg.ForceEndSegment(16000); res.ShouldSend {
//	    transcribe(res.Audio, res.Final)
//	}
//
// A Segmenter is exclusively owned by one audio stream and is not safe
// for concurrent use. Frames must be fed in capture order: the silence
// and utterance timers advance on media time derived from each frame's
// own duration. Frame size is assumed constant within a session.
package vad

import (
	"fmt"
	"time"
)

// State is the segmenter's position in the utterance state machine.
type State int

const (
	// StateIdle means no utterance is open. The pre-speech lookback is
	// maintained; nothing else accumulates.
	StateIdle State = iota

	// StateSpeaking means an utterance is open and frames are being
	// collected for emission.
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of processing one frame (or a forced flush).
type Result struct {
	// IsSpeech reports whether this frame was classified as speech.
	IsSpeech bool

	// Energy is the smoothed RMS energy used for the decision.
	Energy float64

	// Confidence is an advisory score in [0, 1].
	Confidence float64

	// ShouldSend reports whether Audio carries a segment to emit.
	ShouldSend bool

	// Audio is the emitted sample data. Nil unless ShouldSend.
	Audio []float32

	// Final distinguishes the closing segment of an utterance from a
	// periodic mid-utterance emission.
	Final bool
}

// Stats are monotonically increasing observation counters. They never
// influence segmentation behavior.
type Stats struct {
	FramesProcessed uint64 `json:"frames_processed"`
	SpeechFrames    uint64 `json:"speech_frames"`
	SilenceFrames   uint64 `json:"silence_frames"`
	SegmentsEmitted uint64 `json:"segments_emitted"`
}

// utterance carries the timers that only exist while speaking. Times are
// offsets on the segmenter's media clock.
type utterance struct {
	start      time.Duration // beginning of the first speech frame
	lastSpeech time.Duration // end of the most recent speech frame

	silenceStart time.Duration // beginning of the current pause
	inSilence    bool
}

// Segmenter is the per-stream speech segmentation state machine.
type Segmenter struct {
	cfg Config

	energy    *EnergyAnalyzer
	threshold *ThresholdTracker
	buffers   *SegmentBuffers

	state State
	utt   *utterance // nil while idle

	// clock is accumulated media time: the sum of the durations of all
	// processed frames.
	clock time.Duration

	stats Stats
}

// NewSegmenter creates a segmenter with the given configuration.
func NewSegmenter(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Segmenter{
		cfg:       cfg,
		energy:    NewEnergyAnalyzer(cfg.SmoothingFactor),
		threshold: NewThresholdTracker(cfg),
		buffers:   NewSegmentBuffers(cfg.PreSpeechPadding),
		state:     StateIdle,
	}, nil
}

// ProcessFrame classifies one frame and advances the state machine.
// frame holds normalized samples in [-1, 1]; sampleRate is in Hz.
//
// Malformed input (empty frame, non-finite samples, bad rate) is rejected
// before any internal state is touched.
func (s *Segmenter) ProcessFrame(frame []float32, sampleRate int) (*Result, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	_, smoothed, err := s.energy.Analyze(frame)
	if err != nil {
		return nil, err
	}

	frameDur := frameDuration(len(frame), sampleRate)
	frameStart := s.clock
	s.clock += frameDur
	now := s.clock

	s.threshold.Update(smoothed, s.state == StateSpeaking)
	isSpeech := s.threshold.DetectSpeech(smoothed)

	res := &Result{
		IsSpeech:   isSpeech,
		Energy:     smoothed,
		Confidence: s.threshold.Confidence(smoothed),
	}

	s.stats.FramesProcessed++
	if isSpeech {
		s.stats.SpeechFrames++
	} else {
		s.stats.SilenceFrames++
	}

	if isSpeech {
		if s.state == StateIdle {
			s.state = StateSpeaking
			s.utt = &utterance{start: frameStart, lastSpeech: now}
			s.buffers.BeginSpeech()
		} else {
			// Speech resumed before the silence timeout: the pause is
			// cancelled and its audio joins the utterance.
			s.buffers.AbsorbSilence()
		}
		s.buffers.PushSpeech(frame)
		s.utt.lastSpeech = now
		s.utt.inSilence = false
	} else {
		// Lookback stays current in every state so the next onset is
		// never truncated.
		s.buffers.PushPreSpeech(frame, sampleRate)

		if s.state == StateSpeaking {
			if !s.utt.inSilence {
				s.utt.inSilence = true
				s.utt.silenceStart = frameStart
			}
			s.buffers.PushSilence(frame)

			if now-s.utt.silenceStart >= s.cfg.MaxSilenceDuration {
				s.endUtterance(res, sampleRate)
				return res, nil
			}
		}
	}

	// Long-utterance guard: emit a non-final chunk so memory and
	// end-to-end latency stay bounded during monologues.
	if s.state == StateSpeaking &&
		now-s.utt.start > s.cfg.MaxUtteranceDuration &&
		s.buffers.SpeechDuration(sampleRate) > s.cfg.MinChunkDuration {
		res.ShouldSend = true
		res.Audio = s.buffers.BuildSegment(false, s.cfg.PostSpeechPadding, sampleRate)
		res.Final = false
		s.buffers.TrimForContinuation()
		s.stats.SegmentsEmitted++
	}

	return res, nil
}

// endUtterance closes the open utterance, filling res with the final
// segment if it meets the minimum duration bar.
func (s *Segmenter) endUtterance(res *Result, sampleRate int) {
	speechDuration := s.utt.lastSpeech - s.utt.start

	if speechDuration >= s.cfg.MinSpeechDuration {
		res.ShouldSend = true
		res.Audio = s.buffers.BuildSegment(true, s.cfg.PostSpeechPadding, sampleRate)
		res.Final = true
		s.stats.SegmentsEmitted++
	}

	s.buffers.FinalizeAndClear()
	s.utt = nil
	s.state = StateIdle
}

// ForceEndSegment flushes any open utterance, for example when capture
// stops. Idempotent: with no utterance open it reports nothing to send.
func (s *Segmenter) ForceEndSegment(sampleRate int) *Result {
	res := &Result{}
	if s.state != StateSpeaking || s.utt == nil {
		return res
	}
	s.endUtterance(res, sampleRate)
	return res
}

// Reset discards all mutable state (buffers, timers, noise floor, clock,
// counters) without touching the configuration. Any in-flight utterance
// is dropped, not emitted.
func (s *Segmenter) Reset() {
	s.energy.Reset()
	s.threshold.Reset(s.cfg)
	s.buffers.Reset()
	s.state = StateIdle
	s.utt = nil
	s.clock = 0
	s.stats = Stats{}
}

// UpdateConfig merges a partial configuration update. Already-buffered
// audio is not resized eagerly; duration bounds are re-applied on the
// next push.
func (s *Segmenter) UpdateConfig(patch ConfigPatch) error {
	merged := patch.apply(s.cfg)
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("invalid config update: %w", err)
	}

	s.cfg = merged
	s.energy.SetSmoothingFactor(merged.SmoothingFactor)
	s.threshold.Reconfigure(merged)
	s.buffers.SetPreSpeechPadding(merged.PreSpeechPadding)
	return nil
}

// Config returns a copy of the active configuration.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// Stats returns the current observation counters.
func (s *Segmenter) Stats() Stats {
	return s.stats
}

// State returns the current state machine position.
func (s *Segmenter) State() State {
	return s.state
}

// NoiseFloor returns the current adaptive noise-floor estimate.
func (s *Segmenter) NoiseFloor() float64 {
	return s.threshold.NoiseFloor()
}

func frameDuration(samples, sampleRate int) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
