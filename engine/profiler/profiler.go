//go:build profile

package profiler

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const Enabled = true

// Init must be called once before any scope is recorded, with the number
// of scope events the ring keeps. Calling it again discards the recording.
// Example: profiler.Init(1 << 16)
func Init(capacity int) {
	if capacity <= 0 {
		capacity = 1 << 20
	}
	rec.reset(capacity)
}

// Start begins a scope and returns an end func to be deferred.
func Start(name string) func() {
	if !rec.ready.Load() {
		return func() {}
	}
	id := rec.id(name)
	begin := time.Now().UnixNano()
	rec.record(event{at: begin, scope: id, open: true})
	return func() {
		end := max(time.Now().UnixNano(), begin)
		rec.record(event{at: end, scope: id})
	}
}

// Scopes aggregates the recorded runs per scope name, slowest total first.
func Scopes() []Scope {
	names := rec.scopeNames()
	byID := map[int32]*Scope{}
	var opened []int64

	for _, e := range balance(rec.snapshot()) {
		if e.open {
			opened = append(opened, e.at)
			continue
		}
		begin := opened[len(opened)-1]
		opened = opened[:len(opened)-1]

		s := byID[e.scope]
		if s == nil {
			s = &Scope{Name: names[e.scope]}
			byID[e.scope] = s
		}
		d := time.Duration(e.at - begin)
		s.Count++
		s.Total += d
		s.Max = max(s.Max, d)
	}

	out := make([]Scope, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// WriteSpeedscope dumps the recording as an evented speedscope profile.
func WriteSpeedscope(path string) error {
	evs := balance(rec.snapshot())
	if len(evs) == 0 {
		return errors.New("profiler: no events to dump")
	}

	names := rec.scopeNames()
	frames := make([]ssFrame, len(names))
	for i, n := range names {
		frames[i] = ssFrame{Name: n}
	}

	base := evs[0].at
	out := make([]ssEvent, len(evs))
	var last int64
	for i, e := range evs {
		at := max((e.at-base)/1000, last) // µs, monotonic
		typ := "C"
		if e.open {
			typ = "O"
		}
		out[i] = ssEvent{Type: typ, At: at, Frame: int(e.scope)}
		last = at
	}

	doc := ssFile{
		Schema: "https://www.speedscope.app/file-format-schema.json",
		Shared: ssShared{Frames: frames},
		Profiles: []ssProfile{{
			Type:     "evented",
			Name:     "liquid ticks",
			Unit:     "microseconds",
			EndValue: last,
			Events:   out,
		}},
		Exporter: "liquid-profiler",
		Name:     "liquid capture",
	}
	return writeJSON(path, &doc)
}

type event struct {
	at    int64 // unix ns
	scope int32
	open  bool
}

// recorder is a fixed ring of scope events plus the scope name table.
type recorder struct {
	ready atomic.Bool
	size  uint64
	next  atomic.Uint64
	buf   []event

	mu    sync.Mutex
	names []string
	ids   map[string]int32
}

var rec recorder

func (r *recorder) reset(capacity int) {
	r.ready.Store(false)
	r.size = uint64(capacity)
	r.buf = make([]event, r.size)
	r.next.Store(0)
	r.mu.Lock()
	if r.ids == nil {
		r.ids = map[string]int32{}
	}
	r.mu.Unlock()
	r.ready.Store(true)
}

func (r *recorder) record(e event) {
	i := r.next.Add(1) - 1
	r.buf[i%r.size] = e
}

// snapshot returns the retained events in write order.
func (r *recorder) snapshot() []event {
	if !r.ready.Load() {
		return nil
	}
	n := r.next.Load()
	first := uint64(0)
	if n > r.size {
		first = n - r.size
	}
	out := make([]event, 0, n-first)
	for k := first; k < n; k++ {
		out = append(out, r.buf[k%r.size])
	}
	return out
}

func (r *recorder) id(name string) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[name]; ok {
		return id
	}
	id := int32(len(r.names))
	r.ids[name] = id
	r.names = append(r.names, name)
	return id
}

func (r *recorder) scopeNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// balance drops closes whose open was overwritten in the ring, or that do
// not match the innermost open scope, and closes scopes still open at the
// end at the last timestamp.
func balance(evs []event) []event {
	out := make([]event, 0, len(evs))
	var stack []int32
	for _, e := range evs {
		if e.open {
			stack = append(stack, e.scope)
			out = append(out, e)
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != e.scope {
			continue
		}
		stack = stack[:len(stack)-1]
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	end := out[len(out)-1].at
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, event{at: end, scope: stack[i]})
	}
	return out
}

type ssFile struct {
	Schema             string      `json:"$schema"`
	Shared             ssShared    `json:"shared"`
	Profiles           []ssProfile `json:"profiles"`
	ActiveProfileIndex int         `json:"activeProfileIndex,omitempty"`
	Exporter           string      `json:"exporter,omitempty"`
	Name               string      `json:"name,omitempty"`
}

type ssShared struct {
	Frames []ssFrame `json:"frames"`
}

type ssFrame struct {
	Name string `json:"name"`
}

type ssProfile struct {
	Type       string    `json:"type"` // "evented"
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	StartValue int64     `json:"startValue"`
	EndValue   int64     `json:"endValue"`
	Events     []ssEvent `json:"events"`
}

type ssEvent struct {
	Type  string `json:"type"` // "O" or "C"
	At    int64  `json:"at"`
	Frame int    `json:"frame"`
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
