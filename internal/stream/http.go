package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/satindergrewal/panstereo/internal/audio"
)

const mp3Bitrate = "192k"

// HTTPHandler serves the preview as a chunked MP3 stream. Every GET gets its
// own FFmpeg process encoding the broadcast PCM in real time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	name        string
}

// NewHTTPHandler creates an HTTP stream handler. name is sent as ICY-Name.
func NewHTTPHandler(b *Broadcaster, name string) *HTTPHandler {
	return &HTTPHandler{broadcaster: b, name: name}
}

// encoderArgs returns the FFmpeg arguments for s16le PCM in the output
// format, encoded to MP3 on stdout.
func encoderArgs() []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", mp3Bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

// mp3Encoder is a running FFmpeg process: PCM in on stdin, MP3 out on stdout.
type mp3Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func startEncoder(ctx context.Context) (*mp3Encoder, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", encoderArgs()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &mp3Encoder{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// feed copies frames from l into the encoder until the broadcast ends, the
// listener is dropped or ctx is done. Closing stdin lets FFmpeg flush its tail.
func (e *mp3Encoder) feed(ctx context.Context, l *Listener) {
	defer e.stdin.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Done():
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			if _, err := e.stdin.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
		}
	}
}

// flushWriter pushes every write to the client immediately.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	fw.f.Flush()
	return n, err
}

func (h *HTTPHandler) setHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", h.name)
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodHead:
		h.setHeaders(w)
		w.WriteHeader(http.StatusOK)
		return
	default:
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	enc, err := startEncoder(ctx)
	if err != nil {
		log.Printf("HTTP stream: %v", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	h.setHeaders(w)

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	log.Printf("HTTP listener connected (total: %d)", h.broadcaster.ListenerCount())
	defer log.Printf("HTTP listener disconnected")

	go enc.feed(ctx, listener)

	buf := make([]byte, 4096)
	if _, err := io.CopyBuffer(flushWriter{w, flusher}, enc.stdout, buf); err != nil &&
		!errors.Is(err, context.Canceled) && ctx.Err() == nil {
		log.Printf("HTTP stream: %v", err)
	}

	// Stop FFmpeg if the client left before the preview ended.
	cancel()
	enc.cmd.Wait()
}
