// Package dnd bridges the X11 drag and drop protocol (XDND) into a
// polled queue of operations for a single-threaded simulation loop.
//
// A Bridge has two sides. The protocol side (StartUp, ShutDown,
// MakeDNDAware, HandleClientMessage, HandleSelectionNotify,
// ExpirePending) must only be used from the goroutine that owns the
// display connection. The simulation side (Update) must only be used
// from the simulation goroutine, once per tick. CreateDropTarget,
// DestroyDropTarget and Stats are safe from any goroutine.
package dnd

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/google/uuid"
	"github.com/justyntemme/dropzone/internal/debug"
)

// ErrClosed is returned by protocol side calls made after ShutDown.
var ErrClosed = errors.New("dnd: bridge is shut down")

// Options configures a Bridge.
type Options struct {
	// Types lists the accepted data types, most preferred first.
	// Defaults to TypeURIList.
	Types []string

	// Actions lists the accepted XDND action names.
	// Defaults to copy, move and link.
	Actions []string

	// PayloadTimeout bounds the wait for the selection data of a drop.
	// Zero waits until a new drag or ShutDown.
	PayloadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if len(o.Types) == 0 {
		o.Types = []string{TypeURIList}
	}
	if len(o.Actions) == 0 {
		o.Actions = []string{ActionCopy, ActionMove, ActionLink}
	}
	return o
}

type dataType struct {
	name string
	atom xproto.Atom
}

// Stats is a point in time view of the shared collections.
type Stats struct {
	ActiveTargets  int
	PendingAdds    int
	PendingRemoves int
	QueuedOps      int
}

// Bridge is one drag and drop endpoint bound to a display connection.
type Bridge struct {
	conn    Conn
	opts    Options
	atoms   atoms
	types   []dataType
	actions map[xproto.Atom]bool
	now     func() time.Time

	targets registry
	queue   opQueue
	closed  atomic.Bool

	// Protocol goroutine only.
	sess    session
	pending *pendingDrop
	aware   map[xproto.Window]bool

	// Simulation goroutine only.
	hovered      Handle
	hoverSession uuid.UUID
}

// StartUp interns the protocol atoms on conn and returns a ready Bridge.
func StartUp(conn Conn, opts Options) (*Bridge, error) {
	opts = opts.withDefaults()
	a, err := internAtoms(conn)
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		conn:    conn,
		opts:    opts,
		atoms:   a,
		actions: make(map[xproto.Atom]bool, len(opts.Actions)),
		aware:   make(map[xproto.Window]bool),
		now:     time.Now,
	}
	for _, name := range opts.Types {
		atom, err := conn.InternAtom(name)
		if err != nil {
			return nil, fmt.Errorf("dnd: intern type %s: %w", name, err)
		}
		b.types = append(b.types, dataType{name: name, atom: atom})
	}
	for _, name := range opts.Actions {
		atom, err := conn.InternAtom(name)
		if err != nil {
			return nil, fmt.Errorf("dnd: intern action %s: %w", name, err)
		}
		b.actions[atom] = true
	}
	debug.Log(debug.DND, "bridge started: types=%v actions=%v timeout=%v", opts.Types, opts.Actions, opts.PayloadTimeout)
	return b, nil
}

// ShutDown drops the session, any queued operations and all drop
// targets. It is safe to call more than once.
func (b *Bridge) ShutDown() {
	if b.closed.Swap(true) {
		return
	}
	b.sess = session{}
	b.pending = nil
	b.aware = make(map[xproto.Window]bool)
	b.queue.reset()
	b.targets.reset()
	debug.Log(debug.DND, "bridge shut down")
}

// MakeDNDAware advertises win as a drop destination.
func (b *Bridge) MakeDNDAware(win xproto.Window) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if b.aware[win] {
		return nil
	}
	if err := b.conn.ChangeAtomProperty(win, b.atoms.aware, []uint32{Version}); err != nil {
		return fmt.Errorf("dnd: mark window 0x%x aware: %w", uint32(win), err)
	}
	b.aware[win] = true
	debug.Log(debug.X11, "window 0x%x is drag and drop aware", uint32(win))
	return nil
}

// CreateDropTarget registers the rectangle (x, y, width, height) of win,
// in window coordinates. The target takes part in hit testing from the
// next Update on.
// After ShutDown it returns the zero Handle.
func (b *Bridge) CreateDropTarget(win xproto.Window, x, y, width, height int, cb Callbacks) Handle {
	if b.closed.Load() {
		return Handle{}
	}
	h := b.targets.create(dropTarget{
		window: win,
		rect:   image.Rect(x, y, x+width, y+height),
		cb:     cb,
	})
	debug.Log(debug.TARGET, "target %v queued: window=0x%x rect=(%d,%d %dx%d)", h, uint32(win), x, y, width, height)
	return h
}

// DestroyDropTarget unregisters h. Destroying a target that was never
// applied cancels its registration. It reports whether h was live.
func (b *Bridge) DestroyDropTarget(h Handle) bool {
	ok := b.targets.destroy(h)
	if ok {
		debug.Log(debug.TARGET, "target %v queued for removal", h)
	}
	return ok
}

// Stats returns the current sizes of the target registry and queue.
func (b *Bridge) Stats() Stats {
	var s Stats
	s.ActiveTargets, s.PendingAdds, s.PendingRemoves = b.targets.counts()
	s.QueuedOps = b.queue.len()
	return s
}

// Update applies pending target changes and dispatches queued
// operations to target callbacks, in order. Operations whose target was
// destroyed are dropped.
func (b *Bridge) Update() {
	if b.closed.Load() {
		return
	}
	if added, removed := b.targets.apply(); added+removed > 0 {
		debug.Log(debug.TARGET, "applied %d adds, %d removes", added, removed)
	}
	ops := b.queue.drain()
	if len(ops) > 0 {
		debug.Log(debug.QUEUE, "dispatching %d ops", len(ops))
	}
	for _, op := range ops {
		b.dispatch(op)
	}
}

func (b *Bridge) dispatch(op Op) {
	// A session that ended without reaching us still owns the hover.
	if !b.hovered.IsZero() && op.Session != b.hoverSession {
		b.clearHover(op.Pos)
	}

	if op.Kind == OpLeave {
		if op.Target.IsZero() || op.Target == b.hovered {
			b.clearHover(op.Pos)
		}
		return
	}

	h := op.Target
	if h.IsZero() {
		h, _ = b.targets.hitTest(op.Window, op.Pos)
	}
	t, ok := b.targets.lookup(h)
	if h != b.hovered {
		b.clearHover(op.Pos)
		if ok {
			b.hovered, b.hoverSession = h, op.Session
			call(t.cb.OnEnter, Event{Kind: OpEnter, Target: h, Pos: op.Pos, Session: op.Session})
		}
	}
	if !ok {
		return
	}

	switch op.Kind {
	case OpDragOver:
		call(t.cb.OnDragOver, Event{Kind: OpDragOver, Target: h, Pos: op.Pos, Session: op.Session})
	case OpDrop:
		b.hovered, b.hoverSession = Handle{}, uuid.Nil
		call(t.cb.OnDrop, Event{Kind: OpDrop, Target: h, Pos: op.Pos, Files: op.Files, Session: op.Session})
	}
}

func (b *Bridge) clearHover(pos image.Point) {
	if b.hovered.IsZero() {
		return
	}
	h, sess := b.hovered, b.hoverSession
	b.hovered, b.hoverSession = Handle{}, uuid.Nil
	if t, ok := b.targets.lookup(h); ok {
		call(t.cb.OnLeave, Event{Kind: OpLeave, Target: h, Pos: pos, Session: sess})
	}
}

// call runs a target callback. A panic is logged and does not stop the
// dispatch of the remaining ops.
func call(fn func(Event), ev Event) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			debug.Log(debug.DND, "callback for %v panicked on %v: %v", ev.Target, ev.Kind, r)
		}
	}()
	fn(ev)
}
