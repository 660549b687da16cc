package audio

import (
	"errors"
	"time"
)

// Output format of every panned file. It does not depend on the source.
const (
	SampleRate = 44100
	Channels   = 2
	BitDepth   = 16
)

// Preview playback framing.
const (
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 882                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// ErrUnsupportedFormat is returned for sources this engine cannot pan:
// anything other than 1 or 2 channels, or a sample width above 16 bits.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// IOError reports a failed open, read, write or finalize on a waveform file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// TrackInfo identifies a finished file handed to the preview player.
type TrackInfo struct {
	Path string
	Name string // display name, defaults to the file's base name
}
