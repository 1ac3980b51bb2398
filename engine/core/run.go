package core

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Run wires the platform window + renderer and executes the main loop.
// Each iteration polls events, updates the app and its layers, dispatches
// the frame callbacks requested so far, then presents.
func Run(app App, cfg Config, log *zap.Logger, newWindow func(Config) (Window, error), newRenderer func(Window, Config) (Renderer, error)) error {
	// Graphics contexts require the main OS thread.
	runtime.LockOSThread()

	if log == nil {
		log = zap.NewNop()
	}

	win, err := newWindow(cfg)
	if err != nil {
		return err
	}

	rend, err := newRenderer(win, cfg)
	if err != nil {
		return err
	}
	defer rend.Shutdown()

	w, h := win.FramebufferSize()
	rend.Resize(w, h)

	eng := &Engine{
		Window:   win,
		Renderer: rend,
		Frames:   NewFrameQueue(),
		Input:    NewInput(),
		Log:      log,
		start:    time.Now(),
	}
	win.SetEventCallback(func(ev Event) {
		if r, ok := ev.(EventResize); ok {
			if r.FbW < 1 || r.FbH < 1 {
				return
			}
			rend.Resize(r.FbW, r.FbH)
		}
		eng.Input.Handle(ev)
		if eng.Layers.Dispatch(eng, ev) {
			return
		}
		app.OnEvent(eng, ev)
	})

	if err := app.OnStart(eng); err != nil {
		eng.Layers.DetachAll(eng)
		return err
	}

	var (
		prev  = time.Now()
		clear = cfg.ClearColor
	)

	for !win.ShouldClose() {
		now := time.Now()
		dt := now.Sub(prev).Seconds()
		prev = now

		// Poll OS events (platform will emit via callbacks)
		win.PollEvents()

		eng.Layers.Update(eng, dt)
		app.OnUpdate(eng, dt)

		rend.BindRenderTarget(nil)
		rend.Clear(clear[0], clear[1], clear[2], clear[3])
		eng.Frames.Dispatch(now)

		// Present
		win.SwapBuffers()
	}

	eng.Layers.DetachAll(eng)
	app.OnShutdown(eng)
	log.Info("engine exit", zap.Duration("uptime", eng.Uptime()))
	return nil
}
