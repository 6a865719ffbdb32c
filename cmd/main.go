// Command voicesplit splits a WAV recording into speech segments.
//
// Each detected utterance is written to the output directory as its own
// WAV file. With -transcribe, segments are also sent to OpenAI Whisper
// and the transcripts printed as they arrive.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/voicesplit/voicesplit/pkg/asr"
	"github.com/voicesplit/voicesplit/pkg/audio"
	"github.com/voicesplit/voicesplit/pkg/stream"
	"github.com/voicesplit/voicesplit/pkg/trace"
	"github.com/voicesplit/voicesplit/pkg/vad"
)

// writeChunkSamples is how many samples are pushed per write. File input
// arrives all at once; feeding it in modest chunks keeps memory flat.
const writeChunkSamples = 4096

func main() {
	godotenv.Load()

	var (
		inPath     = flag.String("in", "", "input WAV file (16-bit mono PCM)")
		outDir     = flag.String("out", "segments", "output directory for segment WAV files")
		transcribe = flag.Bool("transcribe", false, "transcribe segments with OpenAI Whisper")
		language   = flag.String("language", "", "transcription language hint (empty = auto)")
		model      = flag.String("model", "", "Whisper model (empty = provider default)")

		minSpeech  = flag.Duration("min-speech", 0, "override minimum speech duration")
		maxSilence = flag.Duration("max-silence", 0, "override silence timeout")
		adaptive   = flag.Bool("adaptive", true, "adapt the speech threshold to background noise")
	)
	flag.Parse()

	if *inPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	traceCfg := trace.DefaultConfig()
	if os.Getenv("TRACE_EXPORTER") == "" {
		traceCfg.ExporterType = "none"
	}
	if err := trace.Initialize(ctx, traceCfg); err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer trace.Shutdown(ctx)

	data, err := os.ReadFile(*inPath)
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	samples, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		log.Fatalf("failed to decode WAV: %v", err)
	}
	log.Printf("[Main] %s: %d samples at %d Hz (%v)",
		*inPath, len(samples), sampleRate,
		time.Duration(float64(len(samples))/float64(sampleRate)*float64(time.Second)))

	dumper, err := audio.NewDumper(*outDir, "segment", sampleRate)
	if err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	var provider asr.Provider
	if *transcribe {
		provider, err = asr.NewWhisperProvider(os.Getenv("OPENAI_API_KEY"))
		if err != nil {
			log.Fatalf("failed to create Whisper provider: %v", err)
		}
		defer provider.Close()
	}

	vadCfg := vad.DefaultConfig()
	vadCfg.AdaptiveThreshold = *adaptive
	if *minSpeech > 0 {
		vadCfg.MinSpeechDuration = *minSpeech
	}
	if *maxSilence > 0 {
		vadCfg.MaxSilenceDuration = *maxSilence
	}

	session, err := stream.NewSession(stream.SessionConfig{
		SampleRate: sampleRate,
		VAD:        vadCfg,
		OnSegment: func(ctx context.Context, seg *stream.Segment) {
			path, err := dumper.Dump(seg.Samples)
			if err != nil {
				log.Printf("[Main] failed to write segment %s: %v", seg.ID, err)
				return
			}
			log.Printf("[Main] wrote %s (%v, final=%v)", path, seg.Duration(), seg.Final)

			if provider == nil {
				return
			}
			result, err := provider.Recognize(ctx, seg.Samples, seg.SampleRate, asr.Config{
				Language: *language,
				Model:    *model,
			})
			if err != nil {
				log.Printf("[Main] transcription failed for %s: %v", seg.ID, err)
				return
			}
			log.Printf("[Main] transcript: %s", result.Text)
		},
	})
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	floats := audio.Int16ToFloat32(samples)
	for len(floats) > 0 {
		n := writeChunkSamples
		if n > len(floats) {
			n = len(floats)
		}
		if err := session.WriteSamples(ctx, floats[:n]); err != nil {
			log.Fatalf("failed to process audio: %v", err)
		}
		floats = floats[n:]
	}
	if err := session.Close(ctx); err != nil {
		log.Fatalf("failed to close session: %v", err)
	}

	stats, _ := json.Marshal(session.Stats())
	log.Printf("[Main] done: %s", stats)
}
