// Package main provides the panstereo CLI.
//
// Usage:
//
//	panstereo <source> <destination> <angle> [-p | -m] [-y]
//
// The source WAV (mono or stereo) is panned to <angle> degrees inside a
// ±30° loudspeaker pair and written as 2-channel, 44.1kHz, 16-bit WAV.
// With --move the angle sweeps over time instead; with --play the result is
// served for preview over HTTP and WebRTC.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/satindergrewal/panstereo/cmd/panstereo/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := commands.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
