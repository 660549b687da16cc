package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/panstereo/internal/audio"
	"github.com/satindergrewal/panstereo/internal/config"
	"github.com/satindergrewal/panstereo/internal/vbap"
)

type options struct {
	configPath string
	play       bool
	move       bool
	yes        bool
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of package globals.
func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "panstereo <source> <destination> <angle>",
		Short: "Pan a mono or stereo WAV file into a fixed-format stereo WAV",
		Long: `panstereo - place a sound source between two loudspeakers.

<source>       The WAV file to convert. Must be mono or stereo PCM.
<destination>  The WAV file to write: 2 channels, 44100 Hz, 16-bit.
<angle>        The pan angle in degrees. Must lie strictly inside
               ±reference angle (30 by default). 0 is centred; positive
               angles move the source left. Unparsable angles count as 0.

Configuration is read from PANSTEREO_* environment variables and an optional
YAML file (--config or PANSTEREO_CONFIG).`,
		Example: `  # Pan a voice 20 degrees to the left
  panstereo voice.wav voice-left.wav 20

  # Pan it 20 degrees to the right
  panstereo voice.wav voice-right.wav -20

  # Sweep the source across the image, then preview it
  panstereo voice.wav sweep.wav 0 --move --play`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML config file (default: $PANSTEREO_CONFIG)")
	cmd.Flags().BoolVarP(&opts.play, "play", "p", false, "preview the converted file")
	cmd.Flags().BoolVarP(&opts.move, "move", "m", false, "sweep the pan angle over time instead of holding <angle>")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "overwrite an existing destination without asking")

	return cmd
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	cmd := newRootCmd()
	cmd.SetArgs(angleArgs(os.Args[1:]))
	return cmd.ExecuteContext(ctx)
}

// angleArgs moves negative numbers behind a "--" so pflag reads them as the
// angle instead of shorthand flags. Args that already contain "--" are left
// alone.
func angleArgs(args []string) []string {
	var rest, numbers []string
	for _, a := range args {
		if a == "--" {
			return args
		}
		if strings.HasPrefix(a, "-") {
			if _, err := strconv.ParseFloat(a, 64); err == nil {
				numbers = append(numbers, a)
				continue
			}
		}
		rest = append(rest, a)
	}
	if len(numbers) == 0 {
		return args
	}
	return append(append(rest, "--"), numbers...)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func run(cmd *cobra.Command, opts *options, from, to, angleArg string) error {
	out := cmd.OutOrStdout()
	// One reader for the prompt and the player console so neither loses
	// input buffered by the other.
	in := bufio.NewReader(cmd.InOrStdin())

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	angle, err := strconv.ParseFloat(strings.TrimSpace(angleArg), 64)
	if err != nil {
		angle = 0
	}

	if _, err := os.Stat(from); err != nil {
		fmt.Fprintf(out, "%q is not a valid path\n", from)
		return nil
	}

	if _, err := os.Stat(to); err == nil && !opts.yes {
		ok, err := confirm(in, out, fmt.Sprintf("%q already exists. Override? (y/n)", to))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	start := time.Now()
	stats, err := convert(cfg, from, to, angle, opts.move)
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			fmt.Fprintf(out, "Cannot convert %q: %v\n", from, err)
			fmt.Fprintln(out, "Only mono or stereo 8/16-bit PCM files are supported.")
			return nil
		}
		return fmt.Errorf("convert %s: %w", from, err)
	}
	log.Printf("Panned %d frames (%d ch) into %s", stats.Frames, stats.Channels, to)
	fmt.Fprintf(out, "Finished in %v seconds.\n", time.Since(start).Seconds())

	if opts.play {
		return preview(cmd.Context(), in, out, cfg, to)
	}
	return nil
}

func convert(cfg config.Config, from, to string, angle float64, move bool) (audio.Stats, error) {
	if move {
		sweep := vbap.SweepConfig{
			ReferenceAngle: cfg.ReferenceAngle,
			Amplitude:      cfg.SweepAmplitude,
			Period:         uint64(max(cfg.SweepPeriod, 0)),
		}
		return audio.ConvertFile(from, to, vbap.Sweep(sweep))
	}
	return audio.ConvertFile(from, to, vbap.Fixed(cfg.ReferenceAngle, angle))
}

// confirm asks a yes/no question; only "y" counts as yes.
func confirm(in *bufio.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintln(out, question)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)) == "y", nil
}
