package audio

import (
	"encoding/binary"
	"fmt"
)

// DecodeFile loads a panned WAV file into memory.
// Returns interleaved stereo samples at 44.1kHz.
func DecodeFile(path string) ([]int16, error) {
	src, err := OpenWAV(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if src.NumChannels() != Channels {
		return nil, fmt.Errorf("decode %s: %d channels, want %d: %w", path, src.NumChannels(), Channels, ErrUnsupportedFormat)
	}

	var samples []int16
	for v, err := range src.Samples() {
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		samples = append(samples, v)
	}

	// Ensure whole frames
	if len(samples)%Channels != 0 {
		samples = samples[:len(samples)-len(samples)%Channels]
	}

	return samples, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
