package vad

import (
	"time"

	"github.com/voicesplit/voicesplit/pkg/audio"
)

// continuationFrames is how many trailing speech frames are kept after a
// non-final emission, so the next chunk starts with acoustic context
// instead of a cold boundary.
const continuationFrames = 5

// SegmentBuffers owns the three sample buffers behind the segmenter:
//
//   - pre-speech: bounded lookback ring, maintained while not speaking
//   - speech: frames accumulated since onset, seeded from the lookback
//   - silence: frames of a candidate pause inside an open utterance
//
// The pre-speech ring is duration-bounded; speech and silence grow only
// while an utterance is open and are bounded in practice by the
// long-utterance guard and the silence timeout respectively.
//
// Frames are copied on push; callers keep ownership of their slices.
type SegmentBuffers struct {
	pre     *audio.FrameRing
	speech  [][]float32
	silence [][]float32

	speechSamples  int
	silenceSamples int
}

// NewSegmentBuffers creates buffers with the given pre-speech lookback.
func NewSegmentBuffers(preSpeechPadding time.Duration) *SegmentBuffers {
	return &SegmentBuffers{
		pre: audio.NewFrameRing(preSpeechPadding),
	}
}

// PushPreSpeech records a frame into the lookback ring, evicting the
// oldest frames once the configured duration is exceeded.
func (b *SegmentBuffers) PushPreSpeech(frame []float32, sampleRate int) {
	b.pre.Push(frame, sampleRate)
}

// BeginSpeech seeds the speech buffer with a snapshot of the lookback ring
// and clears the ring. Called once at speech onset.
func (b *SegmentBuffers) BeginSpeech() {
	for _, f := range b.pre.Frames() {
		buf := make([]float32, len(f))
		copy(buf, f)
		b.speech = append(b.speech, buf)
		b.speechSamples += len(buf)
	}
	b.pre.Clear()
}

// PushSpeech appends a frame to the active speech buffer.
func (b *SegmentBuffers) PushSpeech(frame []float32) {
	buf := make([]float32, len(frame))
	copy(buf, frame)
	b.speech = append(b.speech, buf)
	b.speechSamples += len(buf)
}

// PushSilence appends a frame to the candidate-pause buffer. Only valid
// while an utterance is open.
func (b *SegmentBuffers) PushSilence(frame []float32) {
	buf := make([]float32, len(frame))
	copy(buf, frame)
	b.silence = append(b.silence, buf)
	b.silenceSamples += len(buf)
}

// ClearSilence drops the candidate pause.
func (b *SegmentBuffers) ClearSilence() {
	b.silence = nil
	b.silenceSamples = 0
}

// AbsorbSilence moves the candidate pause into the speech buffer. Called
// when speech resumes mid-utterance so the collected audio stays
// contiguous instead of carrying a hole where the pause was.
func (b *SegmentBuffers) AbsorbSilence() {
	if len(b.silence) == 0 {
		return
	}
	b.speech = append(b.speech, b.silence...)
	b.speechSamples += b.silenceSamples
	b.silence = nil
	b.silenceSamples = 0
}

// BuildSegment concatenates the speech buffer, optionally followed by up
// to postSpeechPadding of trailing silence, into one flat sample slice.
// Buffers are not mutated; the caller decides what to clear afterward.
func (b *SegmentBuffers) BuildSegment(includePostPadding bool, postSpeechPadding time.Duration, sampleRate int) []float32 {
	post := 0
	if includePostPadding {
		post = b.silenceSamples
		maxPost := int(postSpeechPadding.Seconds() * float64(sampleRate))
		if post > maxPost {
			post = maxPost
		}
	}

	out := make([]float32, 0, b.speechSamples+post)
	for _, f := range b.speech {
		out = append(out, f...)
	}

	remaining := post
	for _, f := range b.silence {
		if remaining <= 0 {
			break
		}
		n := len(f)
		if n > remaining {
			n = remaining
		}
		out = append(out, f[:n]...)
		remaining -= n
	}

	return out
}

// FinalizeAndClear empties the speech and silence buffers after a final
// emission. The pre-speech ring keeps running independently.
func (b *SegmentBuffers) FinalizeAndClear() {
	b.speech = nil
	b.speechSamples = 0
	b.ClearSilence()
}

// TrimForContinuation truncates the speech buffer to its last few frames
// after a non-final emission during a long utterance.
func (b *SegmentBuffers) TrimForContinuation() {
	if len(b.speech) <= continuationFrames {
		return
	}
	kept := b.speech[len(b.speech)-continuationFrames:]
	b.speech = make([][]float32, len(kept))
	copy(b.speech, kept)

	b.speechSamples = 0
	for _, f := range b.speech {
		b.speechSamples += len(f)
	}
}

// SpeechSampleCount returns the number of buffered speech samples.
func (b *SegmentBuffers) SpeechSampleCount() int {
	return b.speechSamples
}

// SpeechDuration returns the buffered speech duration at the given rate.
func (b *SegmentBuffers) SpeechDuration(sampleRate int) time.Duration {
	return time.Duration(float64(b.speechSamples) / float64(sampleRate) * float64(time.Second))
}

// SpeechFrameCount returns the number of buffered speech frames.
func (b *SegmentBuffers) SpeechFrameCount() int {
	return len(b.speech)
}

// SetPreSpeechPadding updates the lookback bound. Applied lazily on the
// next pre-speech push rather than truncating eagerly.
func (b *SegmentBuffers) SetPreSpeechPadding(d time.Duration) {
	b.pre.SetMaxDuration(d)
}

// Reset clears all three buffers.
func (b *SegmentBuffers) Reset() {
	b.pre.Clear()
	b.FinalizeAndClear()
}
