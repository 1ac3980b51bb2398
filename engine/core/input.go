package core

// Input keeps the latest keyboard and cursor state reported by the window.
type Input struct {
	keys           map[Key]bool
	mouseX, mouseY float64
	buttons        map[MouseButton]bool
}

func NewInput() *Input { return &Input{keys: map[Key]bool{}, buttons: map[MouseButton]bool{}} }

func (in *Input) Handle(ev Event) {
	switch e := ev.(type) {
	case EventKey:
		in.keys[e.Key] = e.Down
	case EventMouseMove:
		in.mouseX, in.mouseY = e.X, e.Y
	case EventMouseButton:
		in.buttons[e.Button] = e.Down
		in.mouseX, in.mouseY = e.X, e.Y
	case EventMouseLeave:
		clear(in.buttons)
	}
}

func (in *Input) IsKeyDown(k Key) bool            { return in.keys[k] }
func (in *Input) IsButtonDown(b MouseButton) bool { return in.buttons[b] }
func (in *Input) Mouse() (float64, float64)       { return in.mouseX, in.mouseY }
