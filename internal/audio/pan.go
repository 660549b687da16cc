package audio

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/satindergrewal/panstereo/internal/vbap"
)

// Source is a finite sequence of interleaved samples with a fixed channel
// count.
type Source interface {
	NumChannels() int
	Samples() iter.Seq2[int16, error]
	Close() error
}

// Sink accepts interleaved stereo samples. Finalize commits the container;
// Close releases it without committing.
type Sink interface {
	WriteSample(int16) error
	Finalize() error
	Close() error
}

// State is the lifecycle position of a Stream.
type State int

const (
	Idle State = iota
	Validating
	Streaming
	Finalized
	RejectedFormat
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Streaming:
		return "streaming"
	case Finalized:
		return "finalized"
	case RejectedFormat:
		return "rejected-format"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stats summarizes a run.
type Stats struct {
	Channels int    // source channel count
	Frames   uint64 // frames written to the sink
}

// ValidateChannels accepts mono and stereo only.
func ValidateChannels(n int) error {
	if n != 1 && n != 2 {
		return fmt.Errorf("%d channels, only mono or stereo is supported: %w", n, ErrUnsupportedFormat)
	}
	return nil
}

// Stream pans one Source into one Sink. The provider is asked for a direction
// once per frame and the State it returns is handed back on the next frame.
//
// A mono sample is spread into both output channels with the frame's gain.
// A stereo frame keeps its channels apart: left is scaled by the left gain
// and right by the right gain, nothing is mixed across.
type Stream[S any] struct {
	src      Source
	dst      Sink
	provider vbap.Provider[S]

	state    State
	channels int
	frames   uint64
}

// NewStream validates the source layout. On ErrUnsupportedFormat the returned
// stream is in RejectedFormat and cannot run; nothing has been read or
// written and both handles are still open.
func NewStream[S any](src Source, dst Sink, provider vbap.Provider[S]) (*Stream[S], error) {
	s := &Stream[S]{src: src, dst: dst, provider: provider}
	s.state = Validating
	if err := ValidateChannels(src.NumChannels()); err != nil {
		s.state = RejectedFormat
		return s, err
	}
	s.channels = src.NumChannels()
	return s, nil
}

// State returns where the stream is in its lifecycle.
func (s *Stream[S]) State() State { return s.state }

// Stats returns the frames written so far.
func (s *Stream[S]) Stats() Stats {
	return Stats{Channels: s.channels, Frames: s.frames}
}

// Run streams every frame and finalizes the sink. If a direction is out of
// range, or reading or writing fails, Run stops at that frame and closes the
// sink without finalizing it; frames already written stay in place. The
// source is closed on every path.
func (s *Stream[S]) Run() (err error) {
	if s.state != Validating {
		return fmt.Errorf("stream is %v, cannot run", s.state)
	}
	s.state = Streaming

	defer func() {
		if cerr := s.src.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	frame := make([]int16, 0, s.channels)
	var carried *S

	for v, rerr := range s.src.Samples() {
		if rerr != nil {
			return s.abort(rerr)
		}
		frame = append(frame, v)
		if len(frame) < s.channels {
			continue
		}

		dir := s.provider(s.frames, carried)
		gain, gerr := dir.Gain()
		if gerr != nil {
			return s.abort(fmt.Errorf("frame %d: %w", s.frames, gerr))
		}
		carried = dir.State

		left, right := frame[0], frame[0]
		if s.channels == 2 {
			right = frame[1]
		}
		if werr := s.dst.WriteSample(Scale(left, gain.Left)); werr != nil {
			return s.abort(werr)
		}
		if werr := s.dst.WriteSample(Scale(right, gain.Right)); werr != nil {
			return s.abort(werr)
		}

		s.frames++
		frame = frame[:0]
	}

	if ferr := s.dst.Finalize(); ferr != nil {
		s.state = Aborted
		return ferr
	}
	s.state = Finalized
	return nil
}

func (s *Stream[S]) abort(err error) error {
	s.state = Aborted
	if cerr := s.dst.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// Process pans src into dst. Both are released on return; dst is finalized
// only when every frame was written.
func Process[S any](src Source, dst Sink, provider vbap.Provider[S]) (Stats, error) {
	s, err := NewStream(src, dst, provider)
	if err != nil {
		return Stats{}, errors.Join(err, src.Close(), dst.Close())
	}
	err = s.Run()
	return s.Stats(), err
}

// ConvertFile pans the WAV file at srcPath into a new 2-channel, 44100 Hz,
// 16-bit WAV at dstPath. An unsupported source is rejected before dstPath is
// created. The source sample rate is not converted; callers pass 44100 Hz
// material if they want unchanged pitch.
func ConvertFile[S any](srcPath, dstPath string, provider vbap.Provider[S]) (Stats, error) {
	src, err := OpenWAV(srcPath)
	if err != nil {
		return Stats{}, err
	}
	dst, err := CreateWAV(dstPath)
	if err != nil {
		src.Close()
		return Stats{}, err
	}
	return Process(src, dst, provider)
}

// Scale multiplies a sample by gain and truncates toward zero, saturating at
// the int16 limits.
func Scale(sample int16, gain float64) int16 {
	v := float64(sample) * gain
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	case math.IsNaN(v):
		return 0
	}
	return int16(v)
}
