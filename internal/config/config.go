package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration. Defaults are overlaid by an
// optional YAML file, then by environment variables.
type Config struct {
	// Panning
	ReferenceAngle float64 `yaml:"reference_angle"` // half-width of the speaker pair, degrees
	SweepAmplitude float64 `yaml:"sweep_amplitude"` // --move sweep extent, degrees
	SweepPeriod    int     `yaml:"sweep_period"`    // --move sweep length, frames

	// Preview server
	PreviewPort    int `yaml:"preview_port"`
	PreviewBitrate int `yaml:"preview_bitrate"` // opus bits per second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ReferenceAngle: 30,
		SweepAmplitude: 25,
		SweepPeriod:    80000,
		PreviewPort:    8080,
		PreviewBitrate: 128000,
	}
}

// Load reads configuration from environment variables with sane defaults.
// PANSTEREO_CONFIG may name a YAML file applied before the environment.
func Load() (Config, error) {
	return LoadFile(envStr("PANSTEREO_CONFIG", ""))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ReferenceAngle = envFloat("PANSTEREO_REFERENCE_ANGLE", cfg.ReferenceAngle)
	cfg.SweepAmplitude = envFloat("PANSTEREO_SWEEP_AMPLITUDE", cfg.SweepAmplitude)
	cfg.SweepPeriod = envInt("PANSTEREO_SWEEP_PERIOD", cfg.SweepPeriod)
	cfg.PreviewPort = envInt("PANSTEREO_PREVIEW_PORT", cfg.PreviewPort)
	cfg.PreviewBitrate = envInt("PANSTEREO_PREVIEW_BITRATE", cfg.PreviewBitrate)

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
