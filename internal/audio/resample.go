package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts interleaved stereo frames from the output rate to
// another rate and hands them back in fixed-size chunks. It is only used for
// preview transports that cannot carry 44.1kHz; panned files are never
// resampled.
type Resampler struct {
	dstRate   int
	resampler resampling.Resampler // nil when no conversion is needed
	pending   []int16
}

// NewResampler creates a stereo resampler from SampleRate to dstRate.
func NewResampler(dstRate int) (*Resampler, error) {
	r := &Resampler{dstRate: dstRate}
	if dstRate == SampleRate {
		return r, nil
	}

	config := &resampling.Config{
		InputRate:  float64(SampleRate),
		OutputRate: float64(dstRate),
		Channels:   Channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	rs, err := resampling.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	r.resampler = rs
	return r, nil
}

// Write feeds interleaved stereo samples into the resampler.
func (r *Resampler) Write(frame []int16) error {
	if r.resampler == nil {
		r.pending = append(r.pending, frame...)
		return nil
	}

	// Convert to float64 samples (normalized to -1.0 to 1.0)
	input := make([]float64, len(frame))
	for i, s := range frame {
		input[i] = float64(s) / 32768.0
	}

	output, err := r.resampler.Process(input)
	if err != nil {
		return fmt.Errorf("resample error: %w", err)
	}

	for _, s := range output {
		switch {
		case s >= 1.0:
			r.pending = append(r.pending, 32767)
		case s <= -1.0:
			r.pending = append(r.pending, -32768)
		default:
			r.pending = append(r.pending, int16(s*32767.0))
		}
	}
	return nil
}

// Next pops n interleaved samples if that many are buffered.
func (r *Resampler) Next(n int) ([]int16, bool) {
	if len(r.pending) < n {
		return nil, false
	}
	out := make([]int16, n)
	copy(out, r.pending)
	r.pending = r.pending[n:]
	return out, true
}

// Buffered returns the number of samples waiting to be popped.
func (r *Resampler) Buffered() int {
	return len(r.pending)
}
