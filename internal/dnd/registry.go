package dnd

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
)

// Handle identifies a drop target. Handles stay comparable and safe to
// pass between goroutines; a handle whose target was destroyed never
// resolves again, even after its slot is reused.
// The zero Handle never refers to a target.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return "target(none)"
	}
	return fmt.Sprintf("target(%d.%d)", h.index, h.gen)
}

// Callbacks are invoked by Bridge.Update on the simulation goroutine.
// Nil fields are skipped.
type Callbacks struct {
	OnEnter    func(Event)
	OnDragOver func(Event)
	OnDrop     func(Event)
	OnLeave    func(Event)
}

type slotState uint8

const (
	slotFree slotState = iota
	slotPending
	slotActive
	slotRemoving
)

// dropTarget is a rectangle of a window, in window coordinates.
type dropTarget struct {
	window xproto.Window
	rect   image.Rectangle
	cb     Callbacks
}

type slot struct {
	gen    uint32
	state  slotState
	target dropTarget
}

// registry is the set of drop targets.
// Adds and removes are deferred to apply, which the simulation
// goroutine runs at the start of each Update.
type registry struct {
	mu       sync.Mutex
	slots    []slot
	free     []uint32
	active   []Handle // registration order
	toAdd    []Handle
	toRemove []Handle
}

func (r *registry) create(t dropTarget) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{gen: 1})
	}
	s := &r.slots[idx]
	s.state = slotPending
	s.target = t
	h := Handle{index: idx, gen: s.gen}
	r.toAdd = append(r.toAdd, h)
	return h
}

// destroy queues h for removal. It reports whether h referred to a
// live target that was not already being removed.
func (r *registry) destroy(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slotLocked(h)
	if s == nil {
		return false
	}
	switch s.state {
	case slotPending:
		r.toAdd = removeHandle(r.toAdd, h)
		r.releaseLocked(h.index)
	case slotActive:
		s.state = slotRemoving
		r.toRemove = append(r.toRemove, h)
	default:
		return false
	}
	return true
}

// apply moves pending targets into the active set and drops the ones
// queued for removal. It returns how many of each were applied.
func (r *registry) apply() (added, removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.toAdd {
		r.slots[h.index].state = slotActive
		r.active = append(r.active, h)
	}
	for _, h := range r.toRemove {
		r.active = removeHandle(r.active, h)
		r.releaseLocked(h.index)
	}
	added, removed = len(r.toAdd), len(r.toRemove)
	r.toAdd = r.toAdd[:0]
	r.toRemove = r.toRemove[:0]
	return added, removed
}

// hitTest returns the first active target of win containing p.
func (r *registry) hitTest(win xproto.Window, p image.Point) (Handle, image.Rectangle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.active {
		s := &r.slots[h.index]
		if s.state != slotActive || s.target.window != win {
			continue
		}
		if p.In(s.target.rect) {
			return h, s.target.rect
		}
	}
	return Handle{}, image.Rectangle{}
}

// lookup returns a copy of the target of h if it is active.
func (r *registry) lookup(h Handle) (dropTarget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slotLocked(h)
	if s == nil || s.state != slotActive {
		return dropTarget{}, false
	}
	return s.target, true
}

// reset destroys every target. Generations survive so that handles
// issued before the reset stay dead.
func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if r.slots[i].state != slotFree {
			r.releaseLocked(uint32(i))
		}
	}
	r.active = nil
	r.toAdd = nil
	r.toRemove = nil
}

func (r *registry) counts() (active, toAdd, toRemove int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active), len(r.toAdd), len(r.toRemove)
}

func (r *registry) slotLocked(h Handle) *slot {
	if h.IsZero() || int(h.index) >= len(r.slots) {
		return nil
	}
	s := &r.slots[h.index]
	if s.gen != h.gen || s.state == slotFree {
		return nil
	}
	return s
}

func (r *registry) releaseLocked(idx uint32) {
	s := &r.slots[idx]
	s.state = slotFree
	s.target = dropTarget{}
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	r.free = append(r.free, idx)
}

func removeHandle(hs []Handle, h Handle) []Handle {
	for i := range hs {
		if hs[i] == h {
			return append(hs[:i], hs[i+1:]...)
		}
	}
	return hs
}
