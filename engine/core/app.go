package core

import (
	"time"

	"go.uber.org/zap"
)

// App defines the application hooks.
type App interface {
	OnStart(e *Engine) error        // called once after window/renderer init
	OnUpdate(e *Engine, dt float64) // called once per loop iteration, before frame callbacks
	OnEvent(e *Engine, ev Event)    // input/window events
	OnShutdown(e *Engine)           // before exit
}

// Engine exposes core services to the App.
type Engine struct {
	Window   Window
	Renderer Renderer
	Frames   *FrameQueue
	Input    *Input
	Layers   LayerStack
	Log      *zap.Logger
	start    time.Time
}

func (e *Engine) Uptime() time.Duration { return time.Since(e.start) }

// PushLayer attaches l and pushes it on top of the layer stack.
func (e *Engine) PushLayer(l Layer) error {
	if err := l.OnAttach(e); err != nil {
		return err
	}
	e.Layers.Push(l)
	return nil
}

// Window abstraction.
type Window interface {
	PollEvents()
	SwapBuffers()
	ShouldClose() bool
	RequestClose()
	FramebufferSize() (int, int)
	// Size is the window size in screen coordinates (CSS pixels).
	Size() (int, int)
	SetTitle(title string)
	SetEventCallback(cb func(Event))
}

// Config for the engine run.
type Config struct {
	Title      string
	Width      int
	Height     int
	VSync      bool
	ClearColor [4]float32 // RGBA
}
