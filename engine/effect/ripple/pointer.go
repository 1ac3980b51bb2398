package ripple

import "github.com/hubastard/liquid/engine/core"

// PointerState is the impulse fed to the simulation: a position in
// simulation space (device pixels, origin bottom-left) and whether a press
// is active. An inactive state always has a zero position.
type PointerState struct {
	X, Y   float32
	Active bool
}

// Tracker turns pointer events in window coordinates into a PointerState.
// Handlers only write the state; the simulation reads it once per tick.
type Tracker struct {
	state PointerState
	vp    core.Viewport
}

func (t *Tracker) SetViewport(vp core.Viewport) { t.vp = vp }

// State returns the impulse to use for the next tick.
func (t *Tracker) State() PointerState { return t.state }

// ToSimulation converts a window position (CSS pixels, origin top-left)
// into simulation space.
func (t *Tracker) ToSimulation(x, y float64) (float32, float32) {
	dpr := t.vp.DPR
	if dpr <= 0 {
		dpr = 1
	}
	return float32(x * dpr), float32((t.vp.Height - y) * dpr)
}

func (t *Tracker) Down(x, y float64) {
	sx, sy := t.ToSimulation(x, y)
	t.state = PointerState{X: sx, Y: sy, Active: true}
}

func (t *Tracker) Move(x, y float64) {
	if !t.state.Active {
		return
	}
	t.state.X, t.state.Y = t.ToSimulation(x, y)
}

// Up ends the press. The impulse is inert from the next tick on.
func (t *Tracker) Up() { t.state = PointerState{} }

func (t *Tracker) Leave() {
	if t.state.Active {
		t.state = PointerState{}
	}
}

// Handle applies a pointer event and reports whether it was one.
// Only the left button presses.
func (t *Tracker) Handle(ev core.Event) bool {
	switch e := ev.(type) {
	case core.EventMouseButton:
		if e.Button != core.MouseButtonLeft {
			return false
		}
		if e.Down {
			t.Down(e.X, e.Y)
		} else {
			t.Up()
		}
	case core.EventMouseMove:
		t.Move(e.X, e.Y)
	case core.EventMouseLeave:
		t.Leave()
	default:
		return false
	}
	return true
}
