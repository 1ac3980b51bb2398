package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/liquid/engine/core"
	"github.com/hubastard/liquid/engine/gfx/soft"
)

type stubWindow struct {
	frames int
	cb     func(core.Event)
}

func (w *stubWindow) PollEvents() {
	if w.frames == 1 {
		w.cb(core.EventMouseButton{Button: core.MouseButtonLeft, Down: true, X: 2, Y: 3})
	}
}
func (w *stubWindow) SwapBuffers()                         { w.frames++ }
func (w *stubWindow) ShouldClose() bool                    { return w.frames >= 3 }
func (w *stubWindow) RequestClose()                        { w.frames = 3 }
func (w *stubWindow) FramebufferSize() (int, int)          { return 4, 4 }
func (w *stubWindow) Size() (int, int)                     { return 4, 4 }
func (w *stubWindow) SetTitle(string)                      {}
func (w *stubWindow) SetEventCallback(cb func(core.Event)) { w.cb = cb }

type countLayer struct {
	attached, detached, updates int
}

func (l *countLayer) OnAttach(*core.Engine) error           { l.attached++; return nil }
func (l *countLayer) OnDetach(*core.Engine)                 { l.detached++ }
func (l *countLayer) OnUpdate(*core.Engine, float64)        { l.updates++ }
func (l *countLayer) OnEvent(*core.Engine, core.Event) bool { return false }

type stubApp struct {
	layer    *countLayer
	startErr error
	input    *core.Input
	shutdown bool
}

func (a *stubApp) OnStart(e *core.Engine) error {
	a.input = e.Input
	if err := e.PushLayer(a.layer); err != nil {
		return err
	}
	return a.startErr
}
func (a *stubApp) OnUpdate(*core.Engine, float64)   {}
func (a *stubApp) OnEvent(*core.Engine, core.Event) {}
func (a *stubApp) OnShutdown(*core.Engine)          { a.shutdown = true }

func runStub(app core.App) error {
	win := &stubWindow{}
	return core.Run(app, core.Config{}, nil,
		func(core.Config) (core.Window, error) { return win, nil },
		func(core.Window, core.Config) (core.Renderer, error) { return soft.New(), nil })
}

func TestRunDetachesLayersOnExit(t *testing.T) {
	app := &stubApp{layer: &countLayer{}}
	require.NoError(t, runStub(app))

	assert.Equal(t, 1, app.layer.attached)
	assert.Equal(t, 1, app.layer.detached)
	assert.Equal(t, 3, app.layer.updates)
	assert.True(t, app.shutdown)
	assert.True(t, app.input.IsButtonDown(core.MouseButtonLeft))
	x, y := app.input.Mouse()
	assert.Equal(t, 2.0, x)
	assert.Equal(t, 3.0, y)
}

func TestRunDetachesLayersWhenStartFails(t *testing.T) {
	app := &stubApp{layer: &countLayer{}, startErr: assert.AnError}
	err := runStub(app)

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, app.layer.attached)
	assert.Equal(t, 1, app.layer.detached)
	assert.Zero(t, app.layer.updates)
	assert.False(t, app.shutdown)
}
