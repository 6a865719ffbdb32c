// Package audio provides audio processing utilities.
//
// pcm.go implements conversions between raw 16-bit little-endian PCM bytes,
// int16 sample slices, and normalized float32 samples in [-1.0, 1.0].
//
// All capture and transport layers in this project exchange PCM16 bytes;
// the VAD core works on normalized float32 frames. These helpers are the
// boundary between the two representations.
package audio

import (
	"encoding/binary"
	"fmt"
)

const (
	// BytesPerSample is the size of one 16-bit PCM sample.
	BytesPerSample = 2

	// pcm16Scale is the divisor used to normalize int16 samples to [-1, 1).
	pcm16Scale = 32768.0
)

// BytesToInt16 converts little-endian PCM bytes to int16 samples.
// The input length must be even.
func BytesToInt16(data []byte) ([]int16, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("PCM data length must be even, got %d bytes", len(data))
	}

	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return samples, nil
}

// Int16ToBytes converts int16 samples to little-endian PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*BytesPerSample:], uint16(s))
	}
	return data
}

// Int16ToFloat32 converts int16 samples to normalized float32 in [-1, 1).
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / pcm16Scale
	}
	return out
}

// Float32ToInt16 converts normalized float32 samples back to int16,
// clipping values outside [-1, 1].
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * pcm16Scale
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// BytesToFloat32 converts little-endian PCM16 bytes directly to normalized
// float32 samples.
func BytesToFloat32(data []byte) ([]float32, error) {
	samples, err := BytesToInt16(data)
	if err != nil {
		return nil, err
	}
	return Int16ToFloat32(samples), nil
}

// Float32ToBytes converts normalized float32 samples to little-endian
// PCM16 bytes, clipping out-of-range values.
func Float32ToBytes(samples []float32) []byte {
	return Int16ToBytes(Float32ToInt16(samples))
}
