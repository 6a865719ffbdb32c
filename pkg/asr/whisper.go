package asr

import (
	"bytes"
	"context"
	"log"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/voicesplit/voicesplit/pkg/audio"
	"github.com/voicesplit/voicesplit/pkg/trace"
)

// WhisperProvider implements the Provider interface using OpenAI's Whisper API.
type WhisperProvider struct {
	client *openai.Client
}

// NewWhisperProvider creates a new OpenAI Whisper ASR provider.
// apiKey must be a valid OpenAI API key. OPENAI_BASE_URL overrides the
// API endpoint when set.
func NewWhisperProvider(apiKey string) (*WhisperProvider, error) {
	if apiKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "OpenAI API key is required",
		}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		clientConfig.BaseURL = baseURL
		log.Printf("[Whisper] Using BaseURL: %s", clientConfig.BaseURL)
	}

	return &WhisperProvider{
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Name returns the provider name.
func (w *WhisperProvider) Name() string {
	return "openai-whisper"
}

// Recognize transcribes one segment of normalized float32 samples.
// The segment is wrapped as a mono 16-bit WAV before upload; Whisper does
// not accept raw PCM.
func (w *WhisperProvider) Recognize(ctx context.Context, samples []float32, sampleRate int, cfg Config) (*Result, error) {
	wav, err := segmentToWAV(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	req := openai.AudioRequest{
		Model:       model,
		FilePath:    "segment.wav", // filename hint for the API
		Reader:      bytes.NewReader(wav),
		Prompt:      cfg.Prompt,
		Language:    cfg.Language,
		Temperature: cfg.Temperature,
	}

	ctx, span := trace.StartSpan(ctx, "asr.Recognize")
	defer span.End()
	span.SetAttributes(trace.ASRAttrs(w.Name(), model, cfg.Language)...)

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		recErr := &Error{
			Code:    ErrCodeProviderError,
			Message: "Whisper API request failed",
			Err:     err,
		}
		trace.RecordError(span, recErr)
		return nil, recErr
	}

	return &Result{
		Text:      resp.Text,
		Language:  cfg.Language,
		Model:     model,
		Elapsed:   time.Since(start),
		Timestamp: time.Now(),
	}, nil
}

// Close releases any resources held by the provider.
func (w *WhisperProvider) Close() error {
	return nil
}

// segmentToWAV wraps normalized samples as a mono 16-bit WAV file.
func segmentToWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "audio segment is empty",
		}
	}

	wav, err := audio.EncodeWAV(audio.Float32ToInt16(samples), sampleRate)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "failed to encode WAV",
			Err:     err,
		}
	}
	return wav, nil
}
