package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/satindergrewal/panstereo/internal/audio"
	"github.com/satindergrewal/panstereo/internal/config"
	"github.com/satindergrewal/panstereo/internal/stream"
)

// controller is the part of audio.Player the console drives.
type controller interface {
	Play()
	Pause()
	Stop()
}

// preview serves the finished file over HTTP and WebRTC and hands stdin to
// the player console until the user quits.
func preview(ctx context.Context, in io.Reader, out io.Writer, cfg config.Config, path string) error {
	player := audio.NewPlayer()
	if err := player.Load(audio.TrackInfo{Path: path}); err != nil {
		return fmt.Errorf("load preview: %w", err)
	}
	track, _, _, _ := player.Status()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Broadcaster: fan-out PCM frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, player.Frames())

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.PreviewBitrate)

	mux := http.NewServeMux()
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, track.Name))
	mux.Handle("/offer", webrtcHandler)
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		track, pos, dur, playing := player.Status()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"track_name":       track.Name,
			"track_path":       track.Path,
			"playing":          playing,
			"position":         pos.Seconds(),
			"duration":         dur.Seconds(),
			"http_listeners":   broadcaster.ListenerCount(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
		})
	})

	addr := fmt.Sprintf(":%d", cfg.PreviewPort)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()
	defer server.Close()

	go func() {
		if err := player.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Playback error: %v", err)
		}
	}()
	player.Play()

	fmt.Fprintf(out, "Playing converted media on http://localhost%s/stream (WebRTC offers at /offer).\n", addr)
	fmt.Fprintln(out, "Type '!pause' or '!play' to control the player.")

	err := console(ctx, in, out, player)
	<-player.Done()
	return err
}

// console reads player commands line by line until quit, end of input or
// cancellation.
func console(ctx context.Context, in io.Reader, out io.Writer, p controller) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "<Player> ")

		select {
		case <-ctx.Done():
			p.Stop()
			return nil
		case line, ok := <-lines:
			if !ok {
				p.Stop()
				return nil
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "!p", "!play":
				p.Play()
			case "!pause":
				p.Pause()
			case "!q", "!quit":
				p.Stop()
				return nil
			default:
				printPlayerUsage(out)
			}
		}
	}
}

func printPlayerUsage(out io.Writer) {
	fmt.Fprintln(out, "<Player> [!p | !play]     Starts playback. No effect if already playing.")
	fmt.Fprintln(out, "<Player> [!pause]         Pauses playback. No effect if already paused.")
	fmt.Fprintln(out, "<Player> [!q | !quit]     Stops playback and exits the program.")
}
