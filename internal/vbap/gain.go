// Package vbap implements two-speaker vector base amplitude panning: the gain
// law that places a virtual source between a left and a right loudspeaker,
// and the direction providers that feed it one frame at a time.
package vbap

import (
	"errors"
	"fmt"
	"math"
)

// ErrPanAngleOutOfRange is returned when a pan angle lies on or outside the
// loudspeaker span given by the reference angle.
var ErrPanAngleOutOfRange = errors.New("pan angle must be strictly between -reference and +reference angle")

// Gain is the pair of amplitude factors applied to the left and right output
// channels.
type Gain struct {
	Left  float64
	Right float64
}

// Unity returns the gain of a centred source.
func Unity() Gain {
	return Gain{Left: 1, Right: 1}
}

// CalculateGain returns the stereo gain for a virtual source at panAngle
// degrees inside a loudspeaker pair spanning ±referenceAngle degrees.
//
// A pan angle of exactly 0 always yields Unity(). Any other angle must satisfy
// -referenceAngle < panAngle < referenceAngle.
func CalculateGain(referenceAngle, panAngle float64) (Gain, error) {
	if panAngle == 0 {
		return Unity(), nil
	}

	// Written as a negated range test so NaN is rejected too.
	if !(panAngle > -referenceAngle && panAngle < referenceAngle) {
		return Gain{}, fmt.Errorf("pan %v, reference %v: %w", panAngle, referenceAngle, ErrPanAngleOutOfRange)
	}

	tb := math.Tan(referenceAngle * math.Pi / 180)
	tp := math.Tan(panAngle * math.Pi / 180)

	// Explicit conversions forbid FMA contraction.
	right := (tb - tp) * (tb - tp)
	right /= float64(2*(tb*tb)) + float64(2*(tp*tp))
	right = math.Sqrt(right)

	left := float64(right*tb) + float64(right*tp)
	left /= tb - tp

	return Gain{Left: left, Right: right}, nil
}
