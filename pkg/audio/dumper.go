package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dumper writes audio samples to timestamped WAV files for offline
// inspection. Intended for debugging; enable it from the wiring layer via
// an environment flag, never from the processing hot path.
type Dumper struct {
	dir        string
	name       string
	sampleRate int
	seq        int
}

// NewDumper creates a dumper writing files named <name>_<timestamp>_<seq>.wav
// under dir. The directory is created if missing.
func NewDumper(dir, name string, sampleRate int) (*Dumper, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}
	return &Dumper{
		dir:        dir,
		name:       name,
		sampleRate: sampleRate,
	}, nil
}

// Dump writes one sample buffer as a standalone WAV file and returns its path.
func (d *Dumper) Dump(samples []float32) (string, error) {
	data, err := EncodeWAV(Float32ToInt16(samples), d.sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode dump: %w", err)
	}

	d.seq++
	path := filepath.Join(d.dir, fmt.Sprintf("%s_%s_%03d.wav",
		d.name, time.Now().Format("20060102_150405"), d.seq))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write dump file: %w", err)
	}
	return path, nil
}
