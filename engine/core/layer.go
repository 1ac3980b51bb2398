package core

// Layer is a slice of the application with its own lifecycle. Updates run
// bottom to top, events are offered top to bottom.
type Layer interface {
	OnAttach(e *Engine) error
	OnDetach(e *Engine)
	OnUpdate(e *Engine, dt float64)
	OnEvent(e *Engine, ev Event) bool // true stops propagation
}

type LayerStack struct{ layers []Layer }

func (ls *LayerStack) Len() int { return len(ls.layers) }

func (ls *LayerStack) Push(l Layer) { ls.layers = append(ls.layers, l) }

// Pop removes the top layer without detaching it.
func (ls *LayerStack) Pop() (Layer, bool) {
	n := len(ls.layers)
	if n == 0 {
		return nil, false
	}
	top := ls.layers[n-1]
	ls.layers[n-1] = nil
	ls.layers = ls.layers[:n-1]
	return top, true
}

// Update runs OnUpdate on every layer, bottom first.
func (ls *LayerStack) Update(e *Engine, dt float64) {
	for _, l := range ls.layers {
		l.OnUpdate(e, dt)
	}
}

// Dispatch offers ev from the top down and reports whether a layer took it.
func (ls *LayerStack) Dispatch(e *Engine, ev Event) bool {
	for i := len(ls.layers) - 1; i >= 0; i-- {
		if ls.layers[i].OnEvent(e, ev) {
			return true
		}
	}
	return false
}

// DetachAll pops and detaches every layer, top first.
func (ls *LayerStack) DetachAll(e *Engine) {
	for {
		l, ok := ls.Pop()
		if !ok {
			return
		}
		l.OnDetach(e)
	}
}
