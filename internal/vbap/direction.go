package vbap

// Direction is where the virtual source sits for one frame. State is carried
// unchanged into the provider call for the next frame; nil means no state.
type Direction[S any] struct {
	ReferenceAngle float64
	PanAngle       float64
	State          *S
}

// Gain computes the stereo gain for this direction.
func (d Direction[S]) Gain() (Gain, error) {
	return CalculateGain(d.ReferenceAngle, d.PanAngle)
}

// Provider returns the direction for a frame. prev is the State returned for
// the previous frame, or nil for frame 0.
type Provider[S any] func(frame uint64, prev *S) Direction[S]

// Constant returns a provider that ignores the frame index and state and
// always points at the same angle.
func Constant[S any](referenceAngle, panAngle float64) Provider[S] {
	return func(uint64, *S) Direction[S] {
		return Direction[S]{ReferenceAngle: referenceAngle, PanAngle: panAngle}
	}
}

// Fixed is Constant without carried state.
func Fixed(referenceAngle, panAngle float64) Provider[struct{}] {
	return Constant[struct{}](referenceAngle, panAngle)
}

// SweepConfig describes a periodic sawtooth movement of the virtual source.
type SweepConfig struct {
	ReferenceAngle float64 // degrees, held fixed
	Amplitude      float64 // degrees, must be below ReferenceAngle
	Period         uint64  // frames per sweep
}

// DefaultSweep moves the source from +25° to -25° every 80000 frames inside
// a ±30° loudspeaker pair.
var DefaultSweep = SweepConfig{
	ReferenceAngle: 30,
	Amplitude:      25,
	Period:         80000,
}

// Angle returns the pan angle of the sweep at the given frame. The angle
// falls linearly from +Amplitude at the start of a period, passes 0 at the
// half period and approaches -Amplitude at its end.
func (c SweepConfig) Angle(frame uint64) float64 {
	if c.Period < 2 {
		return 0
	}
	half := c.Period / 2
	i := frame % c.Period
	if i <= half {
		return c.Amplitude - c.Amplitude*(float64(i)/float64(half))
	}
	return -c.Amplitude * (float64(i-half) / float64(half))
}

// Sweep returns a stateless provider following c.
func Sweep(c SweepConfig) Provider[struct{}] {
	return func(frame uint64, _ *struct{}) Direction[struct{}] {
		return Direction[struct{}]{
			ReferenceAngle: c.ReferenceAngle,
			PanAngle:       c.Angle(frame),
		}
	}
}
