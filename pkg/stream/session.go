// Package stream wires raw PCM input to speech segmentation.
//
// A Session owns one vad.Segmenter and feeds it fixed-size frames cut from
// the byte stream pushed through WritePCM16. Whenever the segmenter emits a
// segment, the session invokes the registered SegmentHandler with the audio
// and its metadata.
package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicesplit/voicesplit/pkg/audio"
	"github.com/voicesplit/voicesplit/pkg/trace"
	"github.com/voicesplit/voicesplit/pkg/vad"
)

// DefaultFrameDuration is the frame size used when SessionConfig leaves
// FrameDuration unset. 25ms keeps detection latency close to one frame
// while giving RMS enough samples to be stable.
const DefaultFrameDuration = 25 * time.Millisecond

// Segment is one emitted chunk of speech audio.
type Segment struct {
	// ID uniquely identifies this segment.
	ID string

	// SessionID is the owning session's ID.
	SessionID string

	// Samples holds the segment audio, normalized to [-1, 1].
	Samples []float32

	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Confidence is the speech confidence of the frame that closed the
	// segment, in [0, 1].
	Confidence float64

	// Final reports whether the utterance ended. False means this is an
	// intermediate chunk of a long utterance that is still going.
	Final bool
}

// Duration returns the audio duration of the segment.
func (s *Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// SegmentHandler receives emitted segments. Handlers are called
// synchronously from the write path, in emission order.
type SegmentHandler func(ctx context.Context, seg *Segment)

// SessionConfig configures a stream session.
type SessionConfig struct {
	// SampleRate of the incoming PCM stream, in Hz.
	SampleRate int

	// FrameDuration is the analysis frame size. Zero means
	// DefaultFrameDuration.
	FrameDuration time.Duration

	// VAD configures the segmenter. Zero value means vad.DefaultConfig().
	VAD vad.Config

	// OnSegment receives emitted segments. May be nil.
	OnSegment SegmentHandler
}

// Session pushes a PCM stream through speech segmentation.
type Session struct {
	id         string
	sampleRate int
	frameSize  int

	segmenter *vad.Segmenter
	onSegment SegmentHandler

	mu           sync.Mutex
	pending      []float32
	lastActivity time.Time
	closed       bool
}

// NewSession creates a session for one PCM stream.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	frameDur := cfg.FrameDuration
	if frameDur == 0 {
		frameDur = DefaultFrameDuration
	}
	frameSize := int(float64(cfg.SampleRate) * frameDur.Seconds())
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame duration %v too short for sample rate %d", frameDur, cfg.SampleRate)
	}

	vadCfg := cfg.VAD
	if vadCfg == (vad.Config{}) {
		vadCfg = vad.DefaultConfig()
	}

	segmenter, err := vad.NewSegmenter(vadCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create segmenter: %w", err)
	}

	return &Session{
		id:           uuid.NewString(),
		sampleRate:   cfg.SampleRate,
		frameSize:    frameSize,
		segmenter:    segmenter,
		onSegment:    cfg.OnSegment,
		lastActivity: time.Now(),
	}, nil
}

// ID returns the session's unique ID.
func (s *Session) ID() string {
	return s.id
}

// SampleRate returns the session's sample rate in Hz.
func (s *Session) SampleRate() int {
	return s.sampleRate
}

// WritePCM16 pushes little-endian 16-bit PCM bytes into the session.
// Complete frames are processed immediately; a trailing partial frame is
// held until the next write. Segment handlers fire before the call returns.
func (s *Session) WritePCM16(ctx context.Context, data []byte) error {
	samples, err := audio.BytesToFloat32(data)
	if err != nil {
		return fmt.Errorf("invalid pcm data: %w", err)
	}
	return s.WriteSamples(ctx, samples)
}

// WriteSamples pushes normalized float32 samples into the session.
func (s *Session) WriteSamples(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session %s is closed", s.id)
	}

	s.lastActivity = time.Now()
	s.pending = append(s.pending, samples...)

	for len(s.pending) >= s.frameSize {
		frame := s.pending[:s.frameSize]
		s.pending = s.pending[s.frameSize:]

		res, err := s.segmenter.ProcessFrame(frame, s.sampleRate)
		if err != nil {
			return fmt.Errorf("failed to process frame: %w", err)
		}
		if res.ShouldSend {
			s.emitLocked(ctx, res)
		}
	}
	return nil
}

// Flush forces the current utterance to end and emits whatever buffered
// speech passes the minimum-duration filter. The trailing partial frame is
// dropped; it is shorter than one analysis frame and was never classified.
func (s *Session) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked(ctx)
}

// Close flushes the session and rejects further writes.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.flushLocked(ctx)
	s.closed = true
	s.pending = nil
	return nil
}

// Stats returns the underlying segmenter's counters.
func (s *Session) Stats() vad.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segmenter.Stats()
}

// LastActivity returns the time of the most recent write.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) flushLocked(ctx context.Context) {
	if res := s.segmenter.ForceEndSegment(s.sampleRate); res != nil && res.ShouldSend {
		s.emitLocked(ctx, res)
	}
}

// emitLocked builds a Segment from a segmenter result and hands it to the
// handler. Called with s.mu held; handlers must not call back into the
// session.
func (s *Session) emitLocked(ctx context.Context, res *vad.Result) {
	seg := &Segment{
		ID:         uuid.NewString(),
		SessionID:  s.id,
		Samples:    res.Audio,
		SampleRate: s.sampleRate,
		Confidence: res.Confidence,
		Final:      res.Final,
	}

	ctx, span := trace.StartSpan(ctx, "stream.EmitSegment")
	defer span.End()
	span.SetAttributes(trace.SessionAttrs(s.id)...)
	span.SetAttributes(trace.SegmentAttrs(seg.ID, seg.Final, seg.Confidence, len(seg.Samples), seg.SampleRate)...)

	log.Printf("[Session %s] segment %s emitted: %v, final=%v, confidence=%.2f",
		s.id, seg.ID, seg.Duration(), seg.Final, seg.Confidence)

	if s.onSegment != nil {
		s.onSegment(ctx, seg)
	}
}
