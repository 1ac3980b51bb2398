package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hubastard/liquid/engine/assets"
	"github.com/hubastard/liquid/engine/config"
	"github.com/hubastard/liquid/engine/core"
	glbackend "github.com/hubastard/liquid/engine/gfx/gl"
	"github.com/hubastard/liquid/engine/logger"
	"github.com/hubastard/liquid/engine/platform"
	"github.com/hubastard/liquid/engine/profiler"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "liquid:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := config.NewFlags("liquid", os.Stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	flags.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Debug("configuration", zap.String("config", cfg.String()))

	profiler.Init(1 << 16)
	defer logScopes(log, flags.ProfileOut)

	loader := newLoader(cfg, log)
	if cfg.Headless.Enabled {
		return runHeadless(cfg, loader, log)
	}
	return runWindowed(cfg, loader, log)
}

func newLoader(cfg config.Config, log *zap.Logger) assets.Loader {
	l := assets.NewURLLoader(log)
	l.Timeout = cfg.Image.Timeout
	l.InitialInterval = cfg.Image.Retry.Initial
	l.MaxElapsed = cfg.Image.Retry.MaxElapsed
	return l
}

func runWindowed(cfg config.Config, loader assets.Loader, log *zap.Logger) error {
	ccfg := core.Config{
		Title:      cfg.Window.Title,
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		VSync:      cfg.Window.VSync,
		ClearColor: [4]float32(cfg.Window.ClearColor),
	}
	app := &App{cfg: cfg, loader: loader, log: log}

	var win *platform.GLFWWindow
	newWindow := func(c core.Config) (core.Window, error) {
		var err error
		win, err = platform.NewGLFWWindow(c, log, nil)
		return win, err
	}
	newRenderer := func(w core.Window, c core.Config) (core.Renderer, error) {
		r, err := glbackend.NewRendererGL(w, c, log)
		if err != nil {
			return nil, err
		}
		log.Info("renderer ready",
			zap.String("vendor", r.GPUVendor()),
			zap.String("renderer", r.GPURenderer()),
			zap.String("version", r.GPUVersion()))
		return r, nil
	}
	defer func() {
		if win != nil {
			win.Destroy()
		}
	}()

	return core.Run(app, ccfg, log, newWindow, newRenderer)
}

// logScopes reports the profiled scopes and, when profileOut is set, dumps
// them as a speedscope file.
func logScopes(log *zap.Logger, profileOut string) {
	for _, s := range profiler.Scopes() {
		log.Info("profile scope",
			zap.String("scope", s.Name),
			zap.Int("count", s.Count),
			zap.Duration("mean", s.Mean()),
			zap.Duration("max", s.Max))
	}
	log.Debug("runtime",
		zap.Uint64("heap_bytes", profiler.MemoryUsage()),
		zap.Int("goroutines", profiler.NumGoroutine()))

	if profileOut == "" {
		return
	}
	if err := profiler.WriteSpeedscope(profileOut); err != nil {
		log.Warn("profile not written", zap.String("path", profileOut), zap.Error(err))
		return
	}
	log.Info("profile written", zap.String("path", profileOut))
}
