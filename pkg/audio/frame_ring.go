package audio

import (
	"time"
)

// FrameRing is a bounded buffer of recent audio frames, sized by duration
// rather than frame count. Used for pre-roll buffering in VAD so that audio
// captured just before speech onset is not lost.
//
// Frames may vary in length between sessions; the retained duration is
// computed from each frame's own sample count and the sample rate passed at
// push time. Push and eviction are O(1) amortized: evicted slots advance a
// head index, and the backing slice is compacted only when more than half
// of it is dead.
//
// FrameRing is not safe for concurrent use; it is owned by a single
// detector instance.
type FrameRing struct {
	frames  [][]float32
	head    int
	samples int // total samples currently buffered (frames[head:])

	maxDuration time.Duration
}

// NewFrameRing creates a ring retaining at most maxDuration of audio.
func NewFrameRing(maxDuration time.Duration) *FrameRing {
	return &FrameRing{
		maxDuration: maxDuration,
	}
}

// Push copies frame into the ring and evicts from the front until the
// buffered duration is back within the configured bound.
func (r *FrameRing) Push(frame []float32, sampleRate int) {
	buf := make([]float32, len(frame))
	copy(buf, frame)

	r.frames = append(r.frames, buf)
	r.samples += len(buf)

	maxSamples := int(r.maxDuration.Seconds() * float64(sampleRate))
	for r.head < len(r.frames) && r.samples > maxSamples {
		r.samples -= len(r.frames[r.head])
		r.frames[r.head] = nil
		r.head++
	}

	// Compact once the dead prefix dominates the backing slice.
	if r.head > len(r.frames)/2 {
		n := copy(r.frames, r.frames[r.head:])
		for i := n; i < len(r.frames); i++ {
			r.frames[i] = nil
		}
		r.frames = r.frames[:n]
		r.head = 0
	}
}

// Frames returns the buffered frames in chronological order.
// The returned slice shares frame storage with the ring; callers that
// mutate frames must copy them first.
func (r *FrameRing) Frames() [][]float32 {
	return r.frames[r.head:]
}

// Samples returns all buffered samples concatenated in chronological order.
func (r *FrameRing) Samples() []float32 {
	out := make([]float32, 0, r.samples)
	for _, f := range r.frames[r.head:] {
		out = append(out, f...)
	}
	return out
}

// SampleCount returns the number of samples currently buffered.
func (r *FrameRing) SampleCount() int {
	return r.samples
}

// Len returns the number of frames currently buffered.
func (r *FrameRing) Len() int {
	return len(r.frames) - r.head
}

// Clear resets the ring to empty.
func (r *FrameRing) Clear() {
	r.frames = nil
	r.head = 0
	r.samples = 0
}

// SetMaxDuration updates the retention bound. Existing frames are not
// truncated eagerly; the bound is re-applied on the next Push.
func (r *FrameRing) SetMaxDuration(d time.Duration) {
	r.maxDuration = d
}
