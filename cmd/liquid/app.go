package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hubastard/liquid/engine/assets"
	"github.com/hubastard/liquid/engine/config"
	"github.com/hubastard/liquid/engine/core"
	"github.com/hubastard/liquid/engine/effect/ripple"
)

const watchDebounce = 150 * time.Millisecond

type App struct {
	cfg    config.Config
	loader assets.Loader
	log    *zap.Logger
	layer  *RippleLayer
}

func (a *App) OnStart(e *core.Engine) error {
	a.layer = &RippleLayer{cfg: a.cfg, loader: a.loader, log: a.log}
	return e.PushLayer(a.layer)
}

func (a *App) OnUpdate(e *core.Engine, dt float64)   {}
func (a *App) OnEvent(e *core.Engine, ev core.Event) {}
func (a *App) OnShutdown(e *core.Engine)             {}

// RippleLayer hosts one ripple effect over the whole window.
type RippleLayer struct {
	cfg    config.Config
	loader assets.Loader
	log    *zap.Logger

	fx      *ripple.Effect
	watcher *assets.FileWatcher
}

func (l *RippleLayer) OnAttach(e *core.Engine) error {
	w, h := e.Window.Size()
	fbW, fbH := e.Window.FramebufferSize()

	l.fx = ripple.New(e.Renderer, ripple.Options{
		ImageURL: l.cfg.Image.URL,
		Loader:   l.loader,
		Frames:   e.Frames,
		Log:      l.log,
		Radius:   l.cfg.Ripple.Radius,
		Strength: l.cfg.Ripple.Strength,
		OnLoad: func() {
			e.Window.SetTitle(fmt.Sprintf("%s: %s", l.cfg.Window.Title, l.fx.ImageURL()))
		},
		OnError: func(err error) {
			e.Window.SetTitle(fmt.Sprintf("%s: %v (R to retry)", l.cfg.Window.Title, err))
		},
	})
	if err := l.fx.Activate(core.ViewportFromSizes(w, h, fbW, fbH)); err != nil {
		return err
	}
	l.watch(l.fx.ImageURL())
	return nil
}

func (l *RippleLayer) OnDetach(e *core.Engine) {
	l.unwatch()
	if l.fx != nil {
		l.fx.Teardown()
	}
}

func (l *RippleLayer) OnUpdate(e *core.Engine, dt float64) {
	if l.watcher == nil {
		return
	}
	select {
	case <-l.watcher.Changes():
		l.log.Info("image file changed, reloading", zap.String("path", l.watcher.Path()))
		if err := l.fx.Reload(); err != nil {
			l.log.Error("reload failed", zap.Error(err))
			return
		}
		l.resumePointer(e)
	default:
	}
}

func (l *RippleLayer) OnEvent(e *core.Engine, ev core.Event) bool {
	switch ev := ev.(type) {
	case core.EventResize:
		if ev.W < 1 || ev.H < 1 {
			return false // minimized
		}
		if err := l.fx.Resize(ev.Viewport()); err != nil {
			l.log.Error("resize failed", zap.Error(err))
		}
		return false
	case core.EventDrop:
		if len(ev.Paths) == 0 {
			return false
		}
		l.setImage(e, ev.Paths[0])
		return true
	case core.EventKey:
		if !ev.Down {
			return false
		}
		switch ev.Key {
		case core.KeyEscape:
			e.Window.RequestClose()
			return true
		case core.KeyR:
			l.retry(e)
			return true
		}
		return false
	}
	return l.fx.HandleEvent(ev)
}

// setImage switches to url, activating the effect if a failure left it
// torn down.
func (l *RippleLayer) setImage(e *core.Engine, url string) {
	err := l.fx.SetImageURL(url)
	if err == nil && !l.fx.Active() {
		err = l.fx.Activate(l.fx.Viewport())
	}
	if err != nil {
		l.log.Error("image change failed", zap.String("url", url), zap.Error(err))
		return
	}
	l.resumePointer(e)
	l.unwatch()
	l.watch(url)
}

// retry re-activates a torn down effect, restarts a failed load or reloads
// an effect whose ticks stopped. Shift+R always reloads.
func (l *RippleLayer) retry(e *core.Engine) {
	var err error
	switch {
	case !l.fx.Active():
		err = l.fx.Activate(l.fx.Viewport())
	case e.Input.IsKeyDown(core.KeyLeftShift) || e.Input.IsKeyDown(core.KeyRightShift):
		err = l.fx.Reload()
	case l.fx.LoadState() == ripple.LoadFailed:
		err = l.fx.Retry()
	case l.fx.Err() != nil:
		err = l.fx.Reload()
	default:
		return
	}
	if err != nil {
		l.log.Error("retry failed", zap.Error(err))
		return
	}
	l.resumePointer(e)
}

// resumePointer restarts a drag that was in progress when the effect was
// re-activated, so the new field keeps following the held button.
func (l *RippleLayer) resumePointer(e *core.Engine) {
	if !l.fx.Active() || l.fx.Pointer().Active || !e.Input.IsButtonDown(core.MouseButtonLeft) {
		return
	}
	x, y := e.Input.Mouse()
	l.fx.HandleEvent(core.EventMouseButton{Button: core.MouseButtonLeft, Down: true, X: x, Y: y})
}

func (l *RippleLayer) watch(url string) {
	if !l.cfg.Watch {
		return
	}
	path := assets.LocalPath(url)
	if path == "" {
		return
	}
	w, err := assets.WatchFile(path, watchDebounce, l.log)
	if err != nil {
		l.log.Warn("cannot watch image", zap.String("path", path), zap.Error(err))
		return
	}
	l.watcher = w
}

func (l *RippleLayer) unwatch() {
	if l.watcher != nil {
		_ = l.watcher.Close()
		l.watcher = nil
	}
}
