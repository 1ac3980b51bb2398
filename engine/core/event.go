package core

// Event model.
type Event interface{ isEvent() }

type EventCloseRequested struct{}

func (EventCloseRequested) isEvent() {}

// EventResize carries the window size in screen coordinates and the
// framebuffer size in device pixels.
type EventResize struct {
	W, H     int
	FbW, FbH int
}

func (EventResize) isEvent() {}

// Viewport derives the viewport described by the resize.
func (e EventResize) Viewport() Viewport { return ViewportFromSizes(e.W, e.H, e.FbW, e.FbH) }

type EventKey struct {
	Key  Key
	Down bool
	Mods Mod
}

func (EventKey) isEvent() {}

// EventMouseMove positions are in screen coordinates, origin top-left.
type EventMouseMove struct{ X, Y float64 }

func (EventMouseMove) isEvent() {}

type EventMouseButton struct {
	Button MouseButton
	Down   bool
	X, Y   float64
}

func (EventMouseButton) isEvent() {}

// EventMouseLeave fires when the cursor exits the window surface.
type EventMouseLeave struct{}

func (EventMouseLeave) isEvent() {}

type EventScroll struct{ Xoff, Yoff float64 }

func (EventScroll) isEvent() {}

// EventDrop lists files dropped onto the window.
type EventDrop struct{ Paths []string }

func (EventDrop) isEvent() {}

// Key/mod enums (subset; add as needed).
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
	KeyR
	KeyLeftShift
	KeyRightShift
)

type Mod int

const (
	ModNone  Mod = 0
	ModShift Mod = 1 << 0
	ModCtrl  Mod = 1 << 1
	ModAlt   Mod = 1 << 2
	ModSuper Mod = 1 << 3
)

type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
	MouseButtonOther
)
