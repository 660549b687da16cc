package audio

import (
	"errors"
	"iter"
	"math"
	"testing"

	"github.com/satindergrewal/panstereo/internal/vbap"
)

var errRead = errors.New("read failed")

type memSource struct {
	channels int
	samples  []int16
	failAt   int // sample index that fails, -1 for none
	closed   int
}

func newMemSource(channels int, samples ...int16) *memSource {
	return &memSource{channels: channels, samples: samples, failAt: -1}
}

func (m *memSource) NumChannels() int { return m.channels }

func (m *memSource) Samples() iter.Seq2[int16, error] {
	return func(yield func(int16, error) bool) {
		for i, v := range m.samples {
			if i == m.failAt {
				yield(0, errRead)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

func (m *memSource) Close() error {
	m.closed++
	return nil
}

type memSink struct {
	samples   []int16
	finalized int
	closed    int
}

func (m *memSink) WriteSample(v int16) error {
	m.samples = append(m.samples, v)
	return nil
}

func (m *memSink) Finalize() error {
	m.finalized++
	return nil
}

func (m *memSink) Close() error {
	m.closed++
	return nil
}

func (m *memSink) channel(c int) []int16 {
	out := make([]int16, 0, len(m.samples)/2)
	for i := c; i < len(m.samples); i += 2 {
		out = append(out, m.samples[i])
	}
	return out
}

func mustGain(t *testing.T, ref, pan float64) vbap.Gain {
	t.Helper()
	g, err := vbap.CalculateGain(ref, pan)
	if err != nil {
		t.Fatalf("CalculateGain(%v, %v): %v", ref, pan, err)
	}
	return g
}

func TestProcessMonoConstant(t *testing.T) {
	in := []int16{1000, -1000, 32767, -32768, 12345, 7}
	src := newMemSource(1, in...)
	dst := &memSink{}

	stats, err := Process(src, dst, vbap.Fixed(30, 25))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if stats.Frames != uint64(len(in)) || stats.Channels != 1 {
		t.Errorf("Stats = %+v, want %d mono frames", stats, len(in))
	}

	wantLeft := []int16{994, -994, 32583, -32584, 12275, 6}
	wantRight := []int16{105, -105, 3466, -3466, 1306, 0}
	g := mustGain(t, 30, 25)

	left, right := dst.channel(0), dst.channel(1)
	for i, s := range in {
		if left[i] != wantLeft[i] || right[i] != wantRight[i] {
			t.Errorf("frame %d: got (%d, %d), want (%d, %d)", i, left[i], right[i], wantLeft[i], wantRight[i])
		}
		if left[i] != Scale(s, g.Left) || right[i] != Scale(s, g.Right) {
			t.Errorf("frame %d: output does not match gain %+v", i, g)
		}
	}
	if dst.finalized != 1 {
		t.Errorf("finalized %d times, want 1", dst.finalized)
	}
	if src.closed != 1 {
		t.Errorf("source closed %d times, want 1", src.closed)
	}
}

func TestProcessStereoNoCrossMix(t *testing.T) {
	left := []int16{1000, -2000, 3000, 32767}
	rightA := []int16{0, 0, 0, 0}
	rightB := []int16{-32768, 500, 32767, -7}

	interleave := func(l, r []int16) []int16 {
		out := make([]int16, 0, 2*len(l))
		for i := range l {
			out = append(out, l[i], r[i])
		}
		return out
	}

	g := mustGain(t, 30, -10)
	run := func(right []int16) *memSink {
		dst := &memSink{}
		if _, err := Process(newMemSource(2, interleave(left, right)...), dst, vbap.Fixed(30, -10)); err != nil {
			t.Fatalf("Process error: %v", err)
		}
		return dst
	}

	a, b := run(rightA), run(rightB)
	outA, outB := a.channel(0), b.channel(0)
	for i := range left {
		if outA[i] != outB[i] {
			t.Errorf("frame %d: left output depends on right input (%d vs %d)", i, outA[i], outB[i])
		}
		if want := Scale(left[i], g.Left); outA[i] != want {
			t.Errorf("frame %d: left = %d, want %d", i, outA[i], want)
		}
		if want := Scale(rightB[i], g.Right); b.channel(1)[i] != want {
			t.Errorf("frame %d: right = %d, want %d", i, b.channel(1)[i], want)
		}
		if a.channel(1)[i] != 0 {
			t.Errorf("frame %d: silent right input produced %d", i, a.channel(1)[i])
		}
	}
}

func TestProcessCenteredIsIdentity(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 12345, -6789, 42}

	mono := &memSink{}
	if _, err := Process(newMemSource(1, in...), mono, vbap.Fixed(30, 0)); err != nil {
		t.Fatalf("mono Process error: %v", err)
	}
	for i, s := range in {
		if mono.channel(0)[i] != s || mono.channel(1)[i] != s {
			t.Errorf("mono frame %d: got (%d, %d), want %d in both", i, mono.channel(0)[i], mono.channel(1)[i], s)
		}
	}

	stereo := &memSink{}
	if _, err := Process(newMemSource(2, in...), stereo, vbap.Fixed(30, 0)); err != nil {
		t.Fatalf("stereo Process error: %v", err)
	}
	for i, s := range in {
		if stereo.samples[i] != s {
			t.Errorf("stereo sample %d = %d, want %d", i, stereo.samples[i], s)
		}
	}
}

func TestProcessThreadsState(t *testing.T) {
	var (
		prevs    []*int
		returned []*int
	)
	pans := []float64{0, 25, -25, 10}
	provider := func(frame uint64, prev *int) vbap.Direction[int] {
		prevs = append(prevs, prev)
		next := new(int)
		*next = int(frame) * 10
		returned = append(returned, next)
		return vbap.Direction[int]{ReferenceAngle: 30, PanAngle: pans[frame%uint64(len(pans))], State: next}
	}

	in := []int16{10000, 10000, 10000, 10000, 10000, 10000, 10000, 10000}
	dst := &memSink{}
	if _, err := Process(newMemSource(1, in...), dst, provider); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if len(prevs) != len(in) {
		t.Fatalf("provider called %d times, want once per frame (%d)", len(prevs), len(in))
	}
	if prevs[0] != nil {
		t.Errorf("frame 0 received state %v, want nil", *prevs[0])
	}
	for k := 0; k+1 < len(prevs); k++ {
		if prevs[k+1] != returned[k] {
			t.Errorf("frame %d did not receive the state returned for frame %d", k+1, k)
		}
	}
	for k := range in {
		g := mustGain(t, 30, pans[k%len(pans)])
		if got, want := dst.channel(0)[k], Scale(10000, g.Left); got != want {
			t.Errorf("frame %d left = %d, want %d", k, got, want)
		}
		if got, want := dst.channel(1)[k], Scale(10000, g.Right); got != want {
			t.Errorf("frame %d right = %d, want %d", k, got, want)
		}
	}
}

func TestProcessStereoCallsProviderPerFrame(t *testing.T) {
	var calls []uint64
	provider := func(frame uint64, _ *struct{}) vbap.Direction[struct{}] {
		calls = append(calls, frame)
		return vbap.Direction[struct{}]{ReferenceAngle: 30}
	}
	dst := &memSink{}
	if _, err := Process(newMemSource(2, 1, 2, 3, 4, 5, 6), dst, provider); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("provider called %d times, want 3", len(calls))
	}
	for i, f := range calls {
		if f != uint64(i) {
			t.Errorf("call %d got frame %d", i, f)
		}
	}
}

func TestProcessAbortsOnOutOfRange(t *testing.T) {
	provider := func(frame uint64, _ *struct{}) vbap.Direction[struct{}] {
		pan := 20.0
		if frame == 2 {
			pan = 30
		}
		return vbap.Direction[struct{}]{ReferenceAngle: 30, PanAngle: pan}
	}

	src := newMemSource(1, 100, 200, 300, 400, 500)
	dst := &memSink{}
	s, err := NewStream(src, dst, provider)
	if err != nil {
		t.Fatalf("NewStream error: %v", err)
	}

	err = s.Run()
	if !errors.Is(err, vbap.ErrPanAngleOutOfRange) {
		t.Fatalf("Run error = %v, want ErrPanAngleOutOfRange", err)
	}
	if s.State() != Aborted {
		t.Errorf("State = %v, want %v", s.State(), Aborted)
	}
	if len(dst.samples) != 4 {
		t.Errorf("sink holds %d samples, want the 2 frames written before the failure", len(dst.samples))
	}
	if dst.finalized != 0 {
		t.Error("sink finalized after abort")
	}
	if dst.closed != 1 || src.closed != 1 {
		t.Errorf("closed source %d, sink %d times; want 1 each", src.closed, dst.closed)
	}
}

func TestProcessReadError(t *testing.T) {
	src := newMemSource(2, 1, 2, 3, 4, 5, 6)
	src.failAt = 3
	dst := &memSink{}

	_, err := Process(src, dst, vbap.Fixed(30, 0))
	if !errors.Is(err, errRead) {
		t.Fatalf("Process error = %v, want read failure", err)
	}
	if len(dst.samples) != 2 {
		t.Errorf("sink holds %d samples, want 2", len(dst.samples))
	}
	if dst.finalized != 0 || dst.closed != 1 {
		t.Errorf("finalized=%d closed=%d, want 0 and 1", dst.finalized, dst.closed)
	}
}

func TestNewStreamRejectsChannelCount(t *testing.T) {
	for _, n := range []int{0, 3, 6} {
		src := newMemSource(n, 1, 2, 3)
		dst := &memSink{}
		s, err := NewStream(src, dst, vbap.Fixed(30, 0))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("%d channels: error = %v, want ErrUnsupportedFormat", n, err)
		}
		if s.State() != RejectedFormat {
			t.Errorf("%d channels: State = %v, want %v", n, s.State(), RejectedFormat)
		}
		if err := s.Run(); err == nil {
			t.Errorf("%d channels: rejected stream ran", n)
		}

		if _, err := Process(src, dst, vbap.Fixed(30, 0)); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%d channels: Process error = %v", n, err)
		}
		if len(dst.samples) != 0 || dst.finalized != 0 {
			t.Errorf("%d channels: sink touched", n)
		}
		if src.closed != 1 || dst.closed != 1 {
			t.Errorf("%d channels: handles not released by Process", n)
		}
	}
}

func TestProcessEmptySource(t *testing.T) {
	for _, ch := range []int{1, 2} {
		dst := &memSink{}
		s, err := NewStream(newMemSource(ch), dst, vbap.Fixed(30, 25))
		if err != nil {
			t.Fatalf("NewStream error: %v", err)
		}
		if err := s.Run(); err != nil {
			t.Fatalf("Run error: %v", err)
		}
		if s.State() != Finalized {
			t.Errorf("State = %v, want %v", s.State(), Finalized)
		}
		if dst.finalized != 1 || len(dst.samples) != 0 {
			t.Errorf("%d channels: finalized=%d samples=%d, want 1 and 0", ch, dst.finalized, len(dst.samples))
		}
		if err := s.Run(); err == nil {
			t.Error("second Run succeeded")
		}
	}
}

func TestProcessDropsPartialStereoFrame(t *testing.T) {
	dst := &memSink{}
	stats, err := Process(newMemSource(2, 1, 2, 3), dst, vbap.Fixed(30, 0))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if stats.Frames != 1 || len(dst.samples) != 2 {
		t.Errorf("frames=%d samples=%d, want 1 and 2", stats.Frames, len(dst.samples))
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		sample int16
		gain   float64
		want   int16
	}{
		{1000, 0.5, 500},
		{999, 0.5, 499},   // truncates
		{-999, 0.5, -499}, // toward zero
		{32767, 1, 32767},
		{-32768, 1, -32768},
		{32767, 2, 32767},
		{-32768, 2, -32768},
		{1234, 0, 0},
		{1234, math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Scale(tt.sample, tt.gain); got != tt.want {
			t.Errorf("Scale(%d, %v) = %d, want %d", tt.sample, tt.gain, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if Aborted.String() != "aborted" || State(42).String() != "State(42)" {
		t.Errorf("unexpected State strings %q %q", Aborted, State(42))
	}
}
