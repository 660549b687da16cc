package audio

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"sync"
	"time"
)

// Player replays a finished file as PCM frames at real-time rate.
type Player struct {
	frameCh chan []int16
	wakeCh  chan struct{}
	stopCh  chan struct{}
	done    chan struct{}

	mu            sync.RWMutex
	track         TrackInfo
	samples       []int16
	playing       bool
	trackPosition time.Duration
	trackDuration time.Duration
}

// NewPlayer creates a paused player with nothing loaded.
func NewPlayer() *Player {
	return &Player{
		frameCh: make(chan []int16, 100),
		wakeCh:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Player) Frames() <-chan []int16 {
	return p.frameCh
}

// Done is closed when Run returns.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Load decodes the track into memory. It must be called before Run.
func (p *Player) Load(t TrackInfo) error {
	samples, err := DecodeFile(t.Path)
	if err != nil {
		return err
	}
	if t.Name == "" {
		t.Name = filepath.Base(t.Path)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.track = t
	p.samples = samples
	p.trackPosition = 0
	p.trackDuration = time.Duration(len(samples)/Channels) * time.Second / SampleRate
	return nil
}

// Play starts or resumes playback. No effect if already playing.
func (p *Player) Play() {
	p.setPlaying(true)
}

// Pause holds playback at the current frame. No effect if already paused.
func (p *Player) Pause() {
	p.setPlaying(false)
}

// Stop ends playback; Run returns.
func (p *Player) Stop() {
	select {
	case p.stopCh <- struct{}{}:
	default:
	}
}

func (p *Player) setPlaying(v bool) {
	p.mu.Lock()
	p.playing = v
	p.mu.Unlock()
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *Player) isPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing
}

// Status returns current playback info.
func (p *Player) Status() (track TrackInfo, position, duration time.Duration, playing bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.track, p.trackPosition, p.trackDuration, p.playing
}

var errNothingLoaded = errors.New("player: nothing loaded")

// Run plays the loaded track once. Blocks until the track ends, Stop is
// called or ctx is cancelled.
func (p *Player) Run(ctx context.Context) error {
	defer close(p.done)
	defer close(p.frameCh)

	p.mu.RLock()
	track, samples := p.track, p.samples
	p.mu.RUnlock()
	if track.Path == "" {
		return errNothingLoaded
	}

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	totalFrames := (len(samples) + FrameSamples - 1) / FrameSamples
	log.Printf("Now playing: %s (frames: %d)", track.Name, totalFrames)

	for i := 0; i < totalFrames; {
		if !p.isPlaying() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.stopCh:
				log.Println("Playback stopped")
				return nil
			case <-p.wakeCh:
			}
			continue
		}

		frame := samples[i*FrameSamples : min((i+1)*FrameSamples, len(samples))]
		if len(frame) < FrameSamples {
			// pad the tail with silence
			padded := make([]int16, FrameSamples)
			copy(padded, frame)
			frame = padded
		}

		if !p.sendFrame(ctx, ticker, frame) {
			return ctx.Err()
		}
		i++
		p.updatePosition(i)
	}

	log.Printf("Finished playing: %s", track.Name)
	return nil
}

// sendFrame waits for the ticker then sends a frame. Returns false on stop or cancel.
func (p *Player) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.stopCh:
		log.Println("Playback stopped")
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Player) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.trackPosition = time.Duration(frameIdx) * FrameDuration
	if p.trackPosition > p.trackDuration {
		p.trackPosition = p.trackDuration
	}
	p.mu.Unlock()
}
