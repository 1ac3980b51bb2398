package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hubastard/liquid/engine/assets"
	"github.com/hubastard/liquid/engine/core"
	"github.com/hubastard/liquid/engine/effect/ripple"
	"github.com/hubastard/liquid/engine/gfx/soft"
)

type fakeWindow struct {
	w, h   int
	dpr    int
	title  string
	closed bool
}

func (f *fakeWindow) PollEvents()                       {}
func (f *fakeWindow) SwapBuffers()                      {}
func (f *fakeWindow) ShouldClose() bool                 { return f.closed }
func (f *fakeWindow) RequestClose()                     { f.closed = true }
func (f *fakeWindow) FramebufferSize() (int, int)       { return f.w * f.dpr, f.h * f.dpr }
func (f *fakeWindow) Size() (int, int)                  { return f.w, f.h }
func (f *fakeWindow) SetTitle(t string)                 { f.title = t }
func (f *fakeWindow) SetEventCallback(func(core.Event)) {}

func newTestEngine(t *testing.T) (*core.Engine, *soft.Device, *fakeWindow) {
	win := &fakeWindow{w: 12, h: 8, dpr: 1}
	dev := soft.New()
	dev.Resize(win.FramebufferSize())
	return &core.Engine{
		Window:   win,
		Renderer: dev,
		Frames:   core.NewFrameQueue(),
		Input:    core.NewInput(),
		Log:      zaptest.NewLogger(t),
	}, dev, win
}

func pump(t *testing.T, e *core.Engine, layer *RippleLayer, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		require.True(t, time.Now().Before(deadline), "condition not reached")
		layer.OnUpdate(e, 0.016)
		e.Frames.Dispatch(time.Now())
		time.Sleep(time.Millisecond)
	}
}

func TestRippleLayerLifecycle(t *testing.T) {
	e, dev, win := newTestEngine(t)
	cfg := smallConfig()
	loaded := map[string]int{}
	loader := assets.LoaderFunc(func(_ context.Context, url string) (*assets.Image, error) {
		loaded[url]++
		return opaque(2, 2), nil
	})
	layer := &RippleLayer{cfg: cfg, loader: loader, log: e.Log}
	require.NoError(t, e.PushLayer(layer))
	require.True(t, layer.fx.Active())

	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadReady })
	assert.Contains(t, win.title, "test.png")

	// pointer events reach the effect
	assert.True(t, layer.OnEvent(e, core.EventMouseButton{Button: core.MouseButtonLeft, Down: true, X: 6, Y: 4}))
	assert.True(t, layer.fx.Pointer().Active)

	assert.False(t, layer.OnEvent(e, core.EventResize{W: 6, H: 4, FbW: 12, FbH: 8}))
	w, h := layer.fx.Buffers().Size()
	assert.Equal(t, 12, w)
	assert.Equal(t, 8, h)

	assert.True(t, layer.OnEvent(e, core.EventDrop{Paths: []string{"other.png"}}))
	assert.Equal(t, "other.png", layer.fx.ImageURL())
	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadReady })
	assert.Equal(t, 1, loaded["other.png"])

	assert.True(t, layer.OnEvent(e, core.EventKey{Key: core.KeyEscape, Down: true}))
	assert.True(t, win.closed)

	layer.OnDetach(e)
	assert.Equal(t, 0, dev.Live())
	assert.Zero(t, dev.Stats().Redundant)
}

func TestRippleLayerRetryKey(t *testing.T) {
	e, _, win := newTestEngine(t)
	fail := true
	loader := assets.LoaderFunc(func(context.Context, string) (*assets.Image, error) {
		if fail {
			return nil, errors.New("offline")
		}
		return opaque(1, 1), nil
	})
	layer := &RippleLayer{cfg: smallConfig(), loader: loader, log: e.Log}
	require.NoError(t, e.PushLayer(layer))
	defer layer.OnDetach(e)

	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadFailed })
	assert.Contains(t, win.title, "offline")

	fail = false
	assert.True(t, layer.OnEvent(e, core.EventKey{Key: core.KeyR, Down: true}))
	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadReady })
}

func TestRippleLayerWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	e, _, _ := newTestEngine(t)
	cfg := smallConfig()
	cfg.Image.URL = path
	cfg.Watch = true
	var loads atomic.Int32
	loader := assets.LoaderFunc(func(context.Context, string) (*assets.Image, error) {
		loads.Add(1)
		return opaque(1, 1), nil
	})
	layer := &RippleLayer{cfg: cfg, loader: loader, log: e.Log}
	require.NoError(t, e.PushLayer(layer))
	defer layer.OnDetach(e)
	require.NotNil(t, layer.watcher)

	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadReady })
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	pump(t, e, layer, func() bool { return loads.Load() >= 2 && layer.fx.LoadState() == ripple.LoadReady })
}

// send routes ev the way core.Run does: input state first, then the layer.
func send(e *core.Engine, layer *RippleLayer, ev core.Event) bool {
	e.Input.Handle(ev)
	return layer.OnEvent(e, ev)
}

func TestRippleLayerDropActivatesTornDownEffect(t *testing.T) {
	e, dev, _ := newTestEngine(t)
	loader := assets.LoaderFunc(func(context.Context, string) (*assets.Image, error) {
		return opaque(1, 1), nil
	})
	layer := &RippleLayer{cfg: smallConfig(), loader: loader, log: e.Log}
	require.NoError(t, e.PushLayer(layer))
	defer layer.OnDetach(e)

	layer.fx.Teardown()
	require.Zero(t, dev.Live())

	assert.True(t, send(e, layer, core.EventDrop{Paths: []string{"other.png"}}))
	assert.True(t, layer.fx.Active())
	assert.Equal(t, "other.png", layer.fx.ImageURL())
	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadReady })
}

func TestRippleLayerRetryKeyActivatesAfterTeardown(t *testing.T) {
	e, _, _ := newTestEngine(t)
	fail := true
	loader := assets.LoaderFunc(func(context.Context, string) (*assets.Image, error) {
		if fail {
			return nil, errors.New("offline")
		}
		return opaque(1, 1), nil
	})
	layer := &RippleLayer{cfg: smallConfig(), loader: loader, log: e.Log}
	require.NoError(t, e.PushLayer(layer))
	defer layer.OnDetach(e)

	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadFailed })
	layer.fx.Teardown()
	require.Equal(t, ripple.LoadFailed, layer.fx.LoadState())

	fail = false
	assert.True(t, send(e, layer, core.EventKey{Key: core.KeyR, Down: true}))
	require.True(t, layer.fx.Active())
	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadReady })
}

func TestRippleLayerShiftRReloads(t *testing.T) {
	e, _, _ := newTestEngine(t)
	var loads atomic.Int32
	loader := assets.LoaderFunc(func(context.Context, string) (*assets.Image, error) {
		loads.Add(1)
		return opaque(1, 1), nil
	})
	layer := &RippleLayer{cfg: smallConfig(), loader: loader, log: e.Log}
	require.NoError(t, e.PushLayer(layer))
	defer layer.OnDetach(e)
	pump(t, e, layer, func() bool { return layer.fx.LoadState() == ripple.LoadReady })

	// plain R on a healthy effect does nothing
	send(e, layer, core.EventKey{Key: core.KeyR, Down: true})
	send(e, layer, core.EventKey{Key: core.KeyR})
	assert.Equal(t, ripple.LoadReady, layer.fx.LoadState())
	assert.Equal(t, int32(1), loads.Load())

	send(e, layer, core.EventKey{Key: core.KeyLeftShift, Down: true})
	send(e, layer, core.EventKey{Key: core.KeyR, Down: true})
	pump(t, e, layer, func() bool { return loads.Load() == 2 && layer.fx.LoadState() == ripple.LoadReady })
}

func TestRippleLayerHeldButtonSurvivesImageChange(t *testing.T) {
	e, _, _ := newTestEngine(t)
	loader := assets.LoaderFunc(func(context.Context, string) (*assets.Image, error) {
		return opaque(1, 1), nil
	})
	layer := &RippleLayer{cfg: smallConfig(), loader: loader, log: e.Log}
	require.NoError(t, e.PushLayer(layer))
	defer layer.OnDetach(e)

	send(e, layer, core.EventMouseButton{Button: core.MouseButtonLeft, Down: true, X: 6, Y: 3})
	send(e, layer, core.EventDrop{Paths: []string{"other.png"}})
	assert.Equal(t, ripple.PointerState{X: 6, Y: 5, Active: true}, layer.fx.Pointer())

	send(e, layer, core.EventMouseButton{Button: core.MouseButtonLeft, X: 6, Y: 3})
	send(e, layer, core.EventDrop{Paths: []string{"third.png"}})
	assert.False(t, layer.fx.Pointer().Active)
}
