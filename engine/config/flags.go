package config

import (
	"flag"
	"io"
)

// Flags are the command-line overrides. Only flags given explicitly
// replace values from the config file.
type Flags struct {
	fs *flag.FlagSet

	ConfigPath string
	ProfileOut string
	imageURL   string
	width      int
	height     int
	vsync      bool
	headless   bool
	frames     int
	out        string
	logLevel   string
	watch      bool
}

func NewFlags(name string, output io.Writer) *Flags {
	f := &Flags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	def := Default()
	f.fs.SetOutput(output)
	f.fs.StringVar(&f.ConfigPath, "config", "", "path to a YAML config file")
	f.fs.StringVar(&f.ProfileOut, "profile-out", "", "write a speedscope profile here on exit (needs -tags profile)")
	f.fs.StringVar(&f.imageURL, "image", "", "image file path or URL")
	f.fs.IntVar(&f.width, "width", def.Window.Width, "window width in screen coordinates")
	f.fs.IntVar(&f.height, "height", def.Window.Height, "window height in screen coordinates")
	f.fs.BoolVar(&f.vsync, "vsync", def.Window.VSync, "wait for vertical sync")
	f.fs.BoolVar(&f.headless, "headless", false, "render on the CPU without a window and write a PNG")
	f.fs.IntVar(&f.frames, "frames", def.Headless.Frames, "ticks to render in headless mode")
	f.fs.StringVar(&f.out, "out", def.Headless.Out, "PNG output path in headless mode")
	f.fs.StringVar(&f.logLevel, "log-level", def.Log.Level, "debug, info, warn or error")
	f.fs.BoolVar(&f.watch, "watch", false, "reload when the local image file changes")
	return f
}

// Parse parses args; a single positional argument is taken as the image.
func (f *Flags) Parse(args []string) error {
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if f.fs.NArg() > 0 && f.imageURL == "" {
		f.imageURL = f.fs.Arg(0)
	}
	return nil
}

// Apply copies the explicitly set flags onto cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "width":
			cfg.Window.Width = f.width
		case "height":
			cfg.Window.Height = f.height
		case "vsync":
			cfg.Window.VSync = f.vsync
		case "headless":
			cfg.Headless.Enabled = f.headless
		case "frames":
			cfg.Headless.Frames = f.frames
		case "out":
			cfg.Headless.Out = f.out
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "watch":
			cfg.Watch = f.watch
		}
	})
	if f.imageURL != "" {
		cfg.Image.URL = f.imageURL
	}
}
