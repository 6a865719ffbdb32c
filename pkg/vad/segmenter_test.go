package vad

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test frames are 25ms at 16kHz. The smoothing factor is kept small so a
// frame's classification follows its own energy, which makes the timing
// assertions exact.
const (
	segSampleRate = 16000
	segFrameLen   = 400
)

func segConfig() Config {
	return Config{
		SilenceThreshold:     0.005,
		SpeechThreshold:      0.02,
		MinSpeechDuration:    250 * time.Millisecond,
		MaxSilenceDuration:   500 * time.Millisecond,
		PreSpeechPadding:     200 * time.Millisecond,
		PostSpeechPadding:    100 * time.Millisecond,
		SmoothingFactor:      0.01,
		AdaptiveThreshold:    false,
		NoiseFloor:           0.001,
		MaxUtteranceDuration: 5 * time.Second,
		MinChunkDuration:     1250 * time.Millisecond,
	}
}

func speechFrame() []float32  { return constFrame(0.5, segFrameLen) }
func silenceFrame() []float32 { return constFrame(0.001, segFrameLen) }

func feed(t *testing.T, s *Segmenter, frame []float32, n int) []*Result {
	t.Helper()
	results := make([]*Result, 0, n)
	for i := 0; i < n; i++ {
		res, err := s.ProcessFrame(frame, segSampleRate)
		require.NoError(t, err)
		results = append(results, res)
	}
	return results
}

func emissions(results []*Result) []*Result {
	var out []*Result
	for _, r := range results {
		if r.ShouldSend {
			out = append(out, r)
		}
	}
	return out
}

func TestNewSegmenter_InvalidConfig(t *testing.T) {
	cfg := segConfig()
	cfg.MaxSilenceDuration = 0

	_, err := NewSegmenter(cfg)
	assert.Error(t, err, "a zero silence timeout could never end an utterance")
}

func TestSegmenter_RejectsMalformedFrames(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	_, err = s.ProcessFrame(nil, segSampleRate)
	assert.Error(t, err)

	_, err = s.ProcessFrame([]float32{0.1, float32(math.NaN())}, segSampleRate)
	assert.Error(t, err)

	_, err = s.ProcessFrame(speechFrame(), 0)
	assert.Error(t, err)

	// Rejected frames must not reach the counters or the state machine.
	assert.Equal(t, Stats{}, s.Stats())
	assert.Equal(t, StateIdle, s.State())
}

func TestSegmenter_Classification(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	res, err := s.ProcessFrame(speechFrame(), segSampleRate)
	require.NoError(t, err)
	assert.True(t, res.IsSpeech)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, StateSpeaking, s.State())

	s.Reset()
	res, err = s.ProcessFrame(silenceFrame(), segSampleRate)
	require.NoError(t, err)
	assert.False(t, res.IsSpeech)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, StateIdle, s.State())
}

func TestSegmenter_MinimumDurationFiltering(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	// 100ms of speech is below the 250ms bar.
	results := feed(t, s, speechFrame(), 4)
	results = append(results, feed(t, s, silenceFrame(), 20)...)

	assert.Empty(t, emissions(results), "sub-minimum utterance must be discarded")
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, uint64(0), s.Stats().SegmentsEmitted)
}

func TestSegmenter_SilenceTimeoutEmission(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	speech := feed(t, s, speechFrame(), 10) // 250ms, exactly the minimum
	assert.Empty(t, emissions(speech))

	// 500ms of silence = 20 frames; the timeout crosses on the last one.
	silence := feed(t, s, silenceFrame(), 20)
	for i, r := range silence[:19] {
		assert.False(t, r.ShouldSend, "frame %d emitted before the timeout", i)
	}

	final := silence[19]
	require.True(t, final.ShouldSend)
	assert.True(t, final.Final)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, uint64(1), s.Stats().SegmentsEmitted)

	// 10 speech frames plus 100ms (4 frames) of post padding.
	assert.Len(t, final.Audio, 14*segFrameLen)
}

func TestSegmenter_PaddingCorrectness(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	// Exactly 200ms of distinct lookback frames before onset.
	for i := 0; i < 8; i++ {
		_, err := s.ProcessFrame(constFrame(0.001*float32(i+1), segFrameLen), segSampleRate)
		require.NoError(t, err)
	}

	feed(t, s, speechFrame(), 10)
	silence := feed(t, s, silenceFrame(), 20)
	final := emissions(silence)
	require.Len(t, final, 1)

	// The segment prefix is the lookback, unchanged and in order.
	audio := final[0].Audio
	require.GreaterOrEqual(t, len(audio), 8*segFrameLen)
	for i := 0; i < 8; i++ {
		assert.InDelta(t, 0.001*float64(i+1), float64(audio[i*segFrameLen]), 1e-9,
			"lookback frame %d missing or out of order", i)
	}
	assert.InDelta(t, 0.5, float64(audio[8*segFrameLen]), 1e-9, "speech must start right after the lookback")
}

func TestSegmenter_ResumeCancelsPause(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	var results []*Result
	results = append(results, feed(t, s, speechFrame(), 10)...)
	results = append(results, feed(t, s, silenceFrame(), 5)...) // 125ms, under the timeout
	results = append(results, feed(t, s, speechFrame(), 10)...)

	assert.Empty(t, emissions(results), "a short pause must not split the utterance")
	assert.Equal(t, StateSpeaking, s.State())

	final := emissions(feed(t, s, silenceFrame(), 20))
	require.Len(t, final, 1)

	// One continuous segment: speech + gap + speech + post padding.
	assert.Len(t, final[0].Audio, (10+5+10+4)*segFrameLen)
	assert.Equal(t, uint64(1), s.Stats().SegmentsEmitted)
}

func TestSegmenter_LongUtteranceChunking(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	// 6 seconds of continuous speech crosses the 5s guard at frame 201.
	results := feed(t, s, speechFrame(), 240)
	chunks := emissions(results)
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].Final)
	assert.Len(t, chunks[0].Audio, 201*segFrameLen)
	assert.True(t, results[200].ShouldSend, "chunk should be emitted on the guard-crossing frame")
	assert.Equal(t, StateSpeaking, s.State())

	// The utterance still closes normally once silence arrives.
	final := emissions(feed(t, s, silenceFrame(), 20))
	require.Len(t, final, 1)
	assert.True(t, final[0].Final)

	// Continuation context (5 frames) + the remaining 39 speech frames
	// + 4 frames of post padding.
	assert.Len(t, final[0].Audio, (5+39+4)*segFrameLen)
	assert.Equal(t, uint64(2), s.Stats().SegmentsEmitted)
}

func TestSegmenter_ForceEndSegment(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	feed(t, s, speechFrame(), 10)

	res := s.ForceEndSegment(segSampleRate)
	require.True(t, res.ShouldSend)
	assert.True(t, res.Final)
	assert.Len(t, res.Audio, 10*segFrameLen)
	assert.Equal(t, StateIdle, s.State())
}

func TestSegmenter_ForceEndSegmentIdempotent(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	feed(t, s, speechFrame(), 10)

	first := s.ForceEndSegment(segSampleRate)
	assert.True(t, first.ShouldSend)

	second := s.ForceEndSegment(segSampleRate)
	assert.False(t, second.ShouldSend)
	assert.Nil(t, second.Audio)
}

func TestSegmenter_ForceEndSegmentWhileIdle(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	res := s.ForceEndSegment(segSampleRate)
	assert.False(t, res.ShouldSend)
}

func TestSegmenter_ForceEndDiscardsShortUtterance(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	feed(t, s, speechFrame(), 4) // 100ms

	res := s.ForceEndSegment(segSampleRate)
	assert.False(t, res.ShouldSend)
	assert.Equal(t, StateIdle, s.State())
}

func TestSegmenter_Stats(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	feed(t, s, speechFrame(), 10)
	feed(t, s, silenceFrame(), 20)

	stats := s.Stats()
	assert.Equal(t, uint64(30), stats.FramesProcessed)
	assert.Equal(t, uint64(10), stats.SpeechFrames)
	assert.Equal(t, uint64(20), stats.SilenceFrames)
	assert.Equal(t, uint64(1), stats.SegmentsEmitted)
}

func TestSegmenter_ResetClearsEverything(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	feed(t, s, speechFrame(), 10)
	feed(t, s, silenceFrame(), 3)
	s.Reset()

	assert.Equal(t, Stats{}, s.Stats())
	assert.Equal(t, StateIdle, s.State())
	assert.InDelta(t, segConfig().NoiseFloor, s.NoiseFloor(), 1e-9)

	// After reset the detector behaves like a fresh instance.
	fresh, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		a, err := s.ProcessFrame(speechFrame(), segSampleRate)
		require.NoError(t, err)
		b, err := fresh.ProcessFrame(speechFrame(), segSampleRate)
		require.NoError(t, err)
		assert.Equal(t, b, a, "frame %d diverged from a fresh instance", i)
	}
	for i := 0; i < 20; i++ {
		a, err := s.ProcessFrame(silenceFrame(), segSampleRate)
		require.NoError(t, err)
		b, err := fresh.ProcessFrame(silenceFrame(), segSampleRate)
		require.NoError(t, err)
		assert.Equal(t, b, a, "silence frame %d diverged from a fresh instance", i)
	}
}

func TestSegmenter_AdaptiveThresholdRejectsNoise(t *testing.T) {
	cfg := segConfig()
	cfg.AdaptiveThreshold = true
	adaptive, err := NewSegmenter(cfg)
	require.NoError(t, err)
	static, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	// Steady background hum below the static threshold: the floor
	// adapts to 0.01, raising the decision threshold to 3x = 0.03.
	hum := constFrame(0.01, segFrameLen)
	for i := 0; i < 300; i++ {
		_, err := adaptive.ProcessFrame(hum, segSampleRate)
		require.NoError(t, err)
		_, err = static.ProcessFrame(hum, segSampleRate)
		require.NoError(t, err)
	}

	// A bump that clears the static threshold but not the adapted one.
	bump := constFrame(0.025, segFrameLen)
	resAdaptive, err := adaptive.ProcessFrame(bump, segSampleRate)
	require.NoError(t, err)
	resStatic, err := static.ProcessFrame(bump, segSampleRate)
	require.NoError(t, err)

	assert.True(t, resStatic.IsSpeech, "static mode should trigger on the bump")
	assert.False(t, resAdaptive.IsSpeech, "adaptive mode should absorb it as noise")
	assert.Equal(t, StateIdle, adaptive.State())
}

func TestSegmenter_UpdateConfig(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	minSpeech := 100 * time.Millisecond
	require.NoError(t, s.UpdateConfig(ConfigPatch{MinSpeechDuration: &minSpeech}))
	assert.Equal(t, minSpeech, s.Config().MinSpeechDuration)

	// 100ms of speech now clears the bar.
	feed(t, s, speechFrame(), 4)
	res := s.ForceEndSegment(segSampleRate)
	assert.True(t, res.ShouldSend)
}

func TestSegmenter_UpdateConfigRejectsInvalid(t *testing.T) {
	s, err := NewSegmenter(segConfig())
	require.NoError(t, err)

	bad := -time.Second
	err = s.UpdateConfig(ConfigPatch{MaxSilenceDuration: &bad})
	assert.Error(t, err)
	assert.Equal(t, segConfig().MaxSilenceDuration, s.Config().MaxSilenceDuration,
		"a rejected patch must not change the config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero max silence", func(c *Config) { c.MaxSilenceDuration = 0 }, true},
		{"negative pre padding", func(c *Config) { c.PreSpeechPadding = -time.Second }, true},
		{"zero smoothing", func(c *Config) { c.SmoothingFactor = 0 }, true},
		{"smoothing above one", func(c *Config) { c.SmoothingFactor = 1.5 }, true},
		{"speech below silence threshold", func(c *Config) { c.SpeechThreshold = 0.001 }, true},
		{"negative noise floor", func(c *Config) { c.NoiseFloor = -1 }, true},
		{"zero max utterance", func(c *Config) { c.MaxUtteranceDuration = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
