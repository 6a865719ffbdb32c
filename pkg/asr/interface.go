// Package asr provides speech recognition for emitted speech segments.
//
// Segmented audio arrives as complete utterances, so the interface is
// batch-shaped: one Recognize call per segment. Providers wrap external
// APIs (OpenAI Whisper today) behind a common Provider interface.
package asr

import (
	"context"
	"time"
)

// Result is the output of recognizing one audio segment.
type Result struct {
	// Text is the recognized transcript.
	Text string

	// Language is the language used or detected for recognition.
	Language string

	// Model is the provider model that produced the transcript.
	Model string

	// Elapsed is how long the recognition request took.
	Elapsed time.Duration

	// Timestamp is when recognition completed.
	Timestamp time.Time
}

// Config contains settings for a recognition request.
type Config struct {
	// Language code (e.g., "en", "uk"). Empty means auto-detect.
	Language string

	// Model is provider-specific (e.g., "whisper-1"). Empty means the
	// provider default.
	Model string

	// Prompt optionally guides the recognition with prior context.
	Prompt string

	// Temperature for sampling, in [0, 1]. Zero means provider default.
	Temperature float32
}

// Provider performs speech recognition on complete audio segments.
type Provider interface {
	// Name returns the provider name (e.g., "openai-whisper").
	Name() string

	// Recognize transcribes one segment of normalized float32 samples.
	Recognize(ctx context.Context, samples []float32, sampleRate int, cfg Config) (*Result, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Error is a typed recognition error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInvalidConfig
	ErrCodeInvalidAudio
	ErrCodeProviderError
)
