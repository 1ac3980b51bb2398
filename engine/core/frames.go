package core

import "time"

// FrameID identifies a pending frame request.
type FrameID uint64

// FrameSource delivers display-refresh callbacks, one per request.
type FrameSource interface {
	RequestFrame(cb func(now time.Time)) FrameID
	CancelFrame(id FrameID)
}

// FrameQueue is the FrameSource driven by the main loop: callbacks requested
// before Dispatch run on that Dispatch, callbacks requested while
// dispatching wait for the next one.
type FrameQueue struct {
	next    FrameID
	pending []frameReq
	running []frameReq
}

type frameReq struct {
	id FrameID
	cb func(time.Time)
}

func NewFrameQueue() *FrameQueue { return &FrameQueue{} }

func (q *FrameQueue) RequestFrame(cb func(now time.Time)) FrameID {
	q.next++
	q.pending = append(q.pending, frameReq{id: q.next, cb: cb})
	return q.next
}

func (q *FrameQueue) CancelFrame(id FrameID) {
	for i, r := range q.pending {
		if r.id == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
	// cancelled from inside a callback of the current dispatch
	for i := range q.running {
		if q.running[i].id == id {
			q.running[i].cb = nil
			return
		}
	}
}

// Pending reports how many callbacks wait for the next Dispatch.
func (q *FrameQueue) Pending() int { return len(q.pending) }

// Dispatch runs the callbacks that were pending when it was called and
// returns how many ran.
func (q *FrameQueue) Dispatch(now time.Time) int {
	q.running, q.pending = q.pending, q.running[:0]
	n := 0
	for i := range q.running {
		cb := q.running[i].cb
		if cb == nil {
			continue
		}
		q.running[i].cb = nil
		cb(now)
		n++
	}
	q.running = q.running[:0]
	return n
}
