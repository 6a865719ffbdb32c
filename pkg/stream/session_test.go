package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicesplit/voicesplit/pkg/audio"
	"github.com/voicesplit/voicesplit/pkg/vad"
)

// 25ms frames at 16kHz. The VAD smoothing factor is kept small so each
// frame classifies on its own energy and emission points are exact.
const (
	testSampleRate = 16000
	testFrameLen   = 400
)

func testVADConfig() vad.Config {
	return vad.Config{
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

// pcmBytes builds little-endian PCM16 bytes for n frames of constant
// amplitude.
func pcmBytes(amplitude float32, frames int) []byte {
	samples := make([]float32, frames*testFrameLen)
	for i := range samples {
		samples[i] = amplitude
	}
	return audio.Float32ToBytes(samples)
}

type segmentCollector struct {
	segments []*Segment
}

func (c *segmentCollector) handle(_ context.Context, seg *Segment) {
	c.segments = append(c.segments, seg)
}

func newTestSession(t *testing.T, collector *segmentCollector) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		SampleRate:    testSampleRate,
		FrameDuration: 25 * time.Millisecond,
		VAD:           testVADConfig(),
		OnSegment:     collector.handle,
	})
	require.NoError(t, err)
	return s
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(SessionConfig{SampleRate: 0})
	assert.Error(t, err)

	_, err = NewSession(SessionConfig{SampleRate: testSampleRate, FrameDuration: time.Nanosecond})
	assert.Error(t, err)

	badVAD := testVADConfig()
	badVAD.MaxSilenceDuration = 0
	_, err = NewSession(SessionConfig{SampleRate: testSampleRate, VAD: badVAD})
	assert.Error(t, err)
}

func TestSession_EmitsSegmentOnSilenceTimeout(t *testing.T) {
	var c segmentCollector
	s := newTestSession(t, &c)
	ctx := context.Background()

	// 15 frames of speech, then 20 frames of silence (exactly the 500ms
	// timeout at 25ms per frame).
	require.NoError(t, s.WritePCM16(ctx, pcmBytes(0.5, 15)))
	require.NoError(t, s.WritePCM16(ctx, pcmBytes(0.001, 20)))

	require.Len(t, c.segments, 1)
	seg := c.segments[0]
	assert.True(t, seg.Final)
	assert.Equal(t, s.ID(), seg.SessionID)
	assert.NotEmpty(t, seg.ID)
	assert.Equal(t, testSampleRate, seg.SampleRate)

	// Speech plus 100ms of post-speech padding (4 silence frames).
	assert.Len(t, seg.Samples, (15+4)*testFrameLen)
	assert.Equal(t, time.Duration(19*25)*time.Millisecond, seg.Duration())

	stats := s.Stats()
	assert.Equal(t, uint64(35), stats.FramesProcessed)
	assert.Equal(t, uint64(1), stats.SegmentsEmitted)
}

func TestSession_UnalignedWritesMatchAlignedWrites(t *testing.T) {
	var c segmentCollector
	s := newTestSession(t, &c)
	ctx := context.Background()

	data := append(pcmBytes(0.5, 15), pcmBytes(0.001, 20)...)

	// 730 bytes is 365 samples, deliberately not a frame multiple.
	for len(data) > 0 {
		n := 730
		if n > len(data) {
			n = len(data)
		}
		require.NoError(t, s.WritePCM16(ctx, data[:n]))
		data = data[n:]
	}

	require.Len(t, c.segments, 1)
	assert.Len(t, c.segments[0].Samples, (15+4)*testFrameLen)
	assert.Equal(t, uint64(35), s.Stats().FramesProcessed)
}

func TestSession_WritePCM16RejectsOddLength(t *testing.T) {
	var c segmentCollector
	s := newTestSession(t, &c)

	err := s.WritePCM16(context.Background(), []byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestSession_PartialFrameHeldUntilComplete(t *testing.T) {
	var c segmentCollector
	s := newTestSession(t, &c)
	ctx := context.Background()

	// Half a frame: nothing should be classified yet.
	half := pcmBytes(0.5, 1)[:testFrameLen] // 200 samples
	require.NoError(t, s.WritePCM16(ctx, half))
	assert.Equal(t, uint64(0), s.Stats().FramesProcessed)

	// The second half completes the frame.
	require.NoError(t, s.WritePCM16(ctx, half))
	assert.Equal(t, uint64(1), s.Stats().FramesProcessed)
}

func TestSession_FlushEmitsOpenUtterance(t *testing.T) {
	var c segmentCollector
	s := newTestSession(t, &c)
	ctx := context.Background()

	require.NoError(t, s.WritePCM16(ctx, pcmBytes(0.5, 12)))
	require.Empty(t, c.segments, "no silence yet, nothing should be emitted")

	s.Flush(ctx)
	require.Len(t, c.segments, 1)
	assert.True(t, c.segments[0].Final)
	assert.Len(t, c.segments[0].Samples, 12*testFrameLen)

	// A second flush has nothing left to emit.
	s.Flush(ctx)
	assert.Len(t, c.segments, 1)
}

func TestSession_FlushDiscardsShortBurst(t *testing.T) {
	var c segmentCollector
	s := newTestSession(t, &c)
	ctx := context.Background()

	// 5 frames is 125ms, under the 250ms minimum.
	require.NoError(t, s.WritePCM16(ctx, pcmBytes(0.5, 5)))
	s.Flush(ctx)

	assert.Empty(t, c.segments)
}

func TestSession_CloseFlushesAndRejectsWrites(t *testing.T) {
	var c segmentCollector
	s := newTestSession(t, &c)
	ctx := context.Background()

	require.NoError(t, s.WritePCM16(ctx, pcmBytes(0.5, 12)))
	require.NoError(t, s.Close(ctx))
	assert.Len(t, c.segments, 1, "close should flush the open utterance")

	err := s.WritePCM16(ctx, pcmBytes(0.5, 1))
	assert.Error(t, err)

	// Closing again is a no-op.
	assert.NoError(t, s.Close(ctx))
	assert.Len(t, c.segments, 1)
}

func TestManager_SessionLifecycle(t *testing.T) {
	m := NewManager(0)
	ctx := context.Background()

	s, err := m.CreateSession(SessionConfig{
		SampleRate: testSampleRate,
		VAD:        testVADConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.SessionCount())

	got, ok := m.GetSession(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = m.GetSession("no-such-session")
	assert.False(t, ok)

	assert.True(t, m.RemoveSession(ctx, s.ID()))
	assert.Equal(t, 0, m.SessionCount())
	assert.False(t, m.RemoveSession(ctx, s.ID()))

	// The removed session is closed.
	err = s.WritePCM16(ctx, pcmBytes(0.5, 1))
	assert.Error(t, err)

	m.Stop(ctx)
}

func TestManager_StopClosesSessions(t *testing.T) {
	m := NewManager(time.Minute)
	ctx := context.Background()

	s, err := m.CreateSession(SessionConfig{
		SampleRate: testSampleRate,
		VAD:        testVADConfig(),
	})
	require.NoError(t, err)

	m.Stop(ctx)
	assert.Equal(t, 0, m.SessionCount())

	err = s.WritePCM16(ctx, pcmBytes(0.5, 1))
	assert.Error(t, err)
}
