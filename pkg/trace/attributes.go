package trace

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used throughout the application
const (
	// Session attributes
	AttrSessionID = "session.id"

	// Audio attributes
	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioSamples    = "audio.samples"
	AttrAudioDurationMs = "audio.duration_ms"

	// Segment attributes
	AttrSegmentID         = "segment.id"
	AttrSegmentFinal      = "segment.final"
	AttrSegmentConfidence = "segment.confidence"

	// Transcription attributes
	AttrASRProvider = "asr.provider"
	AttrASRModel    = "asr.model"
	AttrASRLanguage = "asr.language"
)

// SessionAttrs creates attributes for session information.
func SessionAttrs(sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
	}
}

// SegmentAttrs creates attributes for an emitted speech segment.
func SegmentAttrs(segmentID string, final bool, confidence float64, samples, sampleRate int) []attribute.KeyValue {
	duration := time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
	return []attribute.KeyValue{
		attribute.String(AttrSegmentID, segmentID),
		attribute.Bool(AttrSegmentFinal, final),
		attribute.Float64(AttrSegmentConfidence, confidence),
		attribute.Int(AttrAudioSamples, samples),
		attribute.Int(AttrAudioSampleRate, sampleRate),
		attribute.Int64(AttrAudioDurationMs, duration.Milliseconds()),
	}
}

// ASRAttrs creates attributes for transcription requests.
func ASRAttrs(provider, model, language string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrASRProvider, provider),
		attribute.String(AttrASRModel, model),
		attribute.String(AttrASRLanguage, language),
	}
}
