// Package config loads the program configuration: defaults, then an
// optional YAML file, then command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hubastard/liquid/engine/colors"
	"github.com/hubastard/liquid/engine/logger"
)

type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Image    ImageConfig    `yaml:"image"`
	Ripple   RippleConfig   `yaml:"ripple"`
	Log      logger.Config  `yaml:"log"`
	Headless HeadlessConfig `yaml:"headless"`
	// Watch re-activates the effect when a local image file changes.
	Watch bool `yaml:"watch"`
}

type WindowConfig struct {
	Title      string       `yaml:"title"`
	Width      int          `yaml:"width"`
	Height     int          `yaml:"height"`
	VSync      bool         `yaml:"vsync"`
	ClearColor colors.Color `yaml:"clear_color"`
}

type ImageConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	Initial    time.Duration `yaml:"initial"`
	MaxElapsed time.Duration `yaml:"max_elapsed"` // 0 disables retries
}

type RippleConfig struct {
	Radius   float32 `yaml:"radius"` // CSS pixels
	Strength float32 `yaml:"strength"`
}

type HeadlessConfig struct {
	Enabled bool    `yaml:"enabled"`
	Frames  int     `yaml:"frames"`
	Out     string  `yaml:"out"`
	DPR     float64 `yaml:"dpr"`
}

func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:      "liquid",
			Width:      1280,
			Height:     720,
			VSync:      true,
			ClearColor: colors.Transparent,
		},
		Image: ImageConfig{
			Timeout: 15 * time.Second,
			Retry: RetryConfig{
				Initial:    250 * time.Millisecond,
				MaxElapsed: 10 * time.Second,
			},
		},
		Ripple: RippleConfig{Radius: 20, Strength: 2},
		Log: logger.Config{
			Environment: "development",
			Level:       "info",
			Encoding:    "console",
			ServiceName: "liquid",
		},
		Headless: HeadlessConfig{Frames: 120, Out: "liquid.png", DPR: 1},
	}
}

// Load decodes the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays the YAML document in b onto cfg. Unknown keys are errors.
func Decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports settings the program cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Image.URL == "" {
		errs = append(errs, errors.New("image url is required"))
	}
	if c.Window.Width < 1 || c.Window.Height < 1 {
		errs = append(errs, fmt.Errorf("window size %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Ripple.Radius <= 0 {
		errs = append(errs, fmt.Errorf("ripple radius %v must be positive", c.Ripple.Radius))
	}
	if c.Headless.Enabled && c.Headless.Frames < 1 {
		errs = append(errs, fmt.Errorf("headless frames %d must be positive", c.Headless.Frames))
	}
	return errors.Join(errs...)
}

func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
