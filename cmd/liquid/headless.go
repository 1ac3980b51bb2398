package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hubastard/liquid/engine/assets"
	"github.com/hubastard/liquid/engine/config"
	"github.com/hubastard/liquid/engine/core"
	"github.com/hubastard/liquid/engine/effect/ripple"
	"github.com/hubastard/liquid/engine/gfx/soft"
)

func runHeadless(cfg config.Config, loader assets.Loader, log *zap.Logger) error {
	start := time.Now()
	img, err := renderHeadless(soft.New(), cfg, loader, log)
	if err != nil {
		return err
	}
	if err := writePNG(cfg.Headless.Out, img); err != nil {
		return err
	}
	log.Info("headless frame written",
		zap.String("out", cfg.Headless.Out),
		zap.Int("frames", cfg.Headless.Frames),
		zap.Duration("took", time.Since(start)))
	return nil
}

// renderHeadless waits for the image, then plays a drag gesture across the
// middle of the viewport for cfg.Headless.Frames ticks and returns the last
// frame.
func renderHeadless(dev *soft.Device, cfg config.Config, loader assets.Loader, log *zap.Logger) (*image.NRGBA, error) {
	vp := core.Viewport{
		Width:  float64(cfg.Window.Width),
		Height: float64(cfg.Window.Height),
		DPR:    cfg.Headless.DPR,
	}
	dev.Resize(vp.DeviceSize())
	frames := core.NewFrameQueue()

	fx := ripple.New(dev, ripple.Options{
		ImageURL: cfg.Image.URL,
		Loader:   loader,
		Frames:   frames,
		Log:      log,
		Radius:   cfg.Ripple.Radius,
		Strength: cfg.Ripple.Strength,
	})
	if err := fx.Activate(vp); err != nil {
		return nil, err
	}
	defer fx.Teardown()

	clear := cfg.Window.ClearColor
	tick := func() error {
		dev.BindRenderTarget(nil)
		dev.Clear(clear[0], clear[1], clear[2], clear[3])
		frames.Dispatch(time.Now())
		return fx.Err()
	}

	for fx.LoadState() == ripple.LoadPending {
		if err := tick(); err != nil {
			return nil, err
		}
		time.Sleep(5 * time.Millisecond)
	}
	if fx.LoadState() == ripple.LoadFailed {
		return nil, fx.Err()
	}

	gesture := dragGesture(cfg.Headless.Frames, vp.Width, vp.Height)
	for i := 0; i < cfg.Headless.Frames; i++ {
		for _, ev := range gesture[i] {
			fx.HandleEvent(ev)
		}
		if err := tick(); err != nil {
			return nil, fmt.Errorf("headless frame %d: %w", i, err)
		}
	}
	return dev.Snapshot(), nil
}

// dragGesture presses left of center, drags right through the first half
// of n frames and releases.
func dragGesture(n int, w, h float64) [][]core.Event {
	out := make([][]core.Event, n)
	if n == 0 {
		return out
	}
	half := max(n/2, 1)
	y := h / 2
	x0, x1 := w*0.25, w*0.75
	for i := 0; i < half && i < n; i++ {
		x := x0 + (x1-x0)*float64(i)/float64(half)
		if i == 0 {
			out[i] = append(out[i], core.EventMouseButton{Button: core.MouseButtonLeft, Down: true, X: x, Y: y})
			continue
		}
		out[i] = append(out[i], core.EventMouseMove{X: x, Y: y})
	}
	if half < n {
		out[half] = append(out[half], core.EventMouseButton{Button: core.MouseButtonLeft, Down: false, X: x1, Y: y})
	}
	return out
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
