package dnd

import (
	"image"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/google/uuid"
	"github.com/justyntemme/dropzone/internal/debug"
)

// State is the state of the drag session.
type State int

const (
	Inactive State = iota
	Entered
	Active
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Entered:
		return "Entered"
	case Active:
		return "Active"
	}
	return "Unknown"
}

// session is the protocol side view of the current drag.
type session struct {
	state    State
	id       uuid.UUID
	version  int
	source   xproto.Window
	window   xproto.Window
	dataType dataType
	typeList AtomListReply // in flight until the first position
	action   xproto.Atom
	pos      image.Point
	target   Handle
}

// pendingDrop is a drop waiting for its selection data.
type pendingDrop struct {
	session uuid.UUID
	version int
	source  xproto.Window
	window  xproto.Window
	target  Handle
	pos     image.Point
	action  xproto.Atom
	since   time.Time
}

// State returns the session state. Protocol goroutine only.
func (b *Bridge) State() State { return b.sess.state }

// AwaitingPayload reports whether a drop is waiting for its selection
// data. Protocol goroutine only.
func (b *Bridge) AwaitingPayload() bool { return b.pending != nil }

// HandleClientMessage processes an XDND client message sent to one of
// our windows. It returns false if ev is not drag and drop traffic.
func (b *Bridge) HandleClientMessage(ev xproto.ClientMessageEvent) bool {
	if b.closed.Load() || !b.atoms.isMessage(ev.Type) {
		return false
	}
	if ev.Format != 32 {
		debug.Log(debug.DND, "malformed client message (format %d), aborting session", ev.Format)
		b.closeSession("malformed message")
		return true
	}

	d := data32(ev)
	debug.Log(debug.XDND, "<- type=%d window=0x%x data=%x", ev.Type, uint32(ev.Window), d)
	switch ev.Type {
	case b.atoms.enter:
		b.handleEnter(ev.Window, parseEnter(d))
	case b.atoms.position:
		b.handlePosition(ev.Window, parsePosition(d))
	case b.atoms.leave:
		b.handleLeave(xproto.Window(d[0]))
	case b.atoms.drop:
		b.handleDrop(ev.Window, parseDrop(d))
	}
	return true
}

// HandleSelectionNotify completes a drop waiting for its data. It
// returns false if ev does not concern the drag and drop selection.
func (b *Bridge) HandleSelectionNotify(ev xproto.SelectionNotifyEvent) bool {
	if b.closed.Load() || ev.Selection != b.atoms.selection {
		return false
	}
	p := b.pending
	if p == nil || ev.Requestor != p.window {
		debug.Log(debug.DND, "unexpected selection notify for window 0x%x", uint32(ev.Requestor))
		return true
	}
	b.pending = nil

	if ev.Property == xproto.AtomNone {
		debug.Log(debug.DND, "session %s: source refused the conversion", p.session)
		b.failPending(p)
		return true
	}
	data, err := b.conn.ReadProperty(p.window, ev.Property)
	if err != nil {
		debug.Log(debug.DND, "session %s: reading drop data: %v", p.session, err)
		b.failPending(p)
		return true
	}

	files := ParseURIList(data)
	debug.Log(debug.DND, "session %s: dropped %d files on %v", p.session, len(files), p.target)
	b.queue.push(Op{Kind: OpDrop, Target: p.target, Window: p.window, Pos: p.pos, Files: files, Session: p.session})
	b.sendFinished(p.source, p.window, p.version, len(files) > 0, p.action)
	return true
}

// ExpirePending abandons a drop whose selection data has not arrived
// within Options.PayloadTimeout. It reports whether a drop was abandoned.
func (b *Bridge) ExpirePending(now time.Time) bool {
	p := b.pending
	if p == nil || b.opts.PayloadTimeout <= 0 || now.Sub(p.since) < b.opts.PayloadTimeout {
		return false
	}
	debug.Log(debug.DND, "session %s: no drop data after %v", p.session, now.Sub(p.since))
	b.pending = nil
	b.failPending(p)
	return true
}

func (b *Bridge) handleEnter(win xproto.Window, m enterMsg) {
	if b.pending != nil {
		debug.Log(debug.DND, "session %s: drop data never arrived, abandoning", b.pending.session)
		p := b.pending
		b.pending = nil
		b.failPending(p)
	}
	b.closeSession("new drag entered")

	if m.version < minVersion {
		debug.Log(debug.DND, "ignoring enter from 0x%x: protocol version %d", uint32(m.source), m.version)
		return
	}

	s := session{
		state:   Entered,
		id:      uuid.New(),
		version: min(m.version, Version),
		source:  m.source,
		window:  win,
	}
	if m.moreTypes {
		s.typeList = b.conn.RequestAtomList(m.source, b.atoms.typeList)
	} else if !b.negotiate(&s, m.types) {
		debug.Log(debug.DND, "ignoring enter from 0x%x: no acceptable type in %v", uint32(m.source), m.types)
		return
	}
	b.sess = s
	debug.Log(debug.DND, "session %s entered: source=0x%x version=%d", s.id, uint32(s.source), s.version)
}

func (b *Bridge) handlePosition(win xproto.Window, m positionMsg) {
	s := &b.sess
	reject := statusMsg{target: win}
	if s.state == Inactive || m.source != s.source {
		b.sendStatus(m.source, reject)
		return
	}

	if s.typeList != nil {
		offered, err := s.typeList.Reply()
		s.typeList = nil
		if err != nil || !b.negotiate(s, offered) {
			debug.Log(debug.DND, "session %s: no acceptable type (err=%v)", s.id, err)
			b.sendStatus(m.source, reject)
			b.closeSession("type negotiation failed")
			return
		}
	}

	action := m.action
	if s.version < 2 || action == xproto.AtomNone {
		action = b.atoms.actionCopy
	}
	if !b.actions[action] {
		debug.Log(debug.DND, "session %s: unsupported action %d", s.id, action)
		b.sendStatus(m.source, reject)
		b.closeSession("unsupported action")
		return
	}
	s.action = action

	x, y, err := b.conn.TranslateCoordinates(win, m.root.X, m.root.Y)
	if err != nil {
		debug.Log(debug.X11, "translate coordinates: %v", err)
		b.sendStatus(m.source, reject)
		return
	}
	pos := image.Pt(x, y)
	s.window = win
	s.pos = pos

	h, rect := b.targets.hitTest(win, pos)
	if h != s.target {
		if !s.target.IsZero() {
			b.queue.push(Op{Kind: OpLeave, Target: s.target, Window: win, Pos: pos, Session: s.id})
		}
		if !h.IsZero() {
			b.queue.push(Op{Kind: OpEnter, Target: h, Window: win, Pos: pos, Session: s.id})
		}
		s.target = h
	}
	b.queue.push(Op{Kind: OpDragOver, Target: h, Window: win, Pos: pos, Session: s.id})

	if h.IsZero() {
		b.sendStatus(m.source, reject)
		return
	}
	if s.state == Entered {
		s.state = Active
		debug.Log(debug.DND, "session %s active over %v", s.id, h)
	}
	b.sendStatus(m.source, statusMsg{
		target: win,
		accept: true,
		rect:   rect.Add(m.root.Sub(pos)),
		action: action,
	})
}

func (b *Bridge) handleLeave(source xproto.Window) {
	s := b.sess
	if s.state == Inactive {
		debug.Log(debug.DND, "stray leave from 0x%x", uint32(source))
		return
	}
	if source != s.source {
		debug.Log(debug.DND, "leave from 0x%x during a drag from 0x%x", uint32(source), uint32(s.source))
		b.closeSession("leave from another source")
		return
	}
	b.queue.push(Op{Kind: OpLeave, Target: s.target, Window: s.window, Pos: s.pos, Session: s.id})
	b.sess = session{}
	debug.Log(debug.DND, "session %s left", s.id)
}

func (b *Bridge) handleDrop(win xproto.Window, m dropMsg) {
	s := b.sess
	if s.state == Inactive || m.source != s.source {
		debug.Log(debug.DND, "drop from 0x%x outside its session", uint32(m.source))
		b.closeSession("drop from another source")
		b.sendFinished(m.source, win, Version, false, xproto.AtomNone)
		return
	}
	b.sess = session{}

	if s.target.IsZero() {
		debug.Log(debug.DND, "session %s: drop outside any target", s.id)
		b.queue.push(Op{Kind: OpLeave, Window: s.window, Pos: s.pos, Session: s.id})
		b.sendFinished(m.source, win, s.version, false, xproto.AtomNone)
		return
	}

	if s.dataType.name != TypeURIList {
		b.queue.push(Op{Kind: OpDrop, Target: s.target, Window: s.window, Pos: s.pos, Session: s.id})
		b.sendFinished(m.source, win, s.version, true, s.action)
		return
	}

	p := &pendingDrop{
		session: s.id,
		version: s.version,
		source:  s.source,
		window:  s.window,
		target:  s.target,
		pos:     s.pos,
		action:  s.action,
		since:   b.now(),
	}
	err := b.conn.ConvertSelection(s.window, b.atoms.selection, s.dataType.atom, xproto.AtomPrimary, m.time)
	if err != nil {
		debug.Log(debug.X11, "session %s: convert selection: %v", s.id, err)
		b.failPending(p)
		return
	}
	b.pending = p
	debug.Log(debug.DND, "session %s: waiting for drop data", s.id)
}

// negotiate picks the most preferred accepted type among offered.
func (b *Bridge) negotiate(s *session, offered []xproto.Atom) bool {
	for _, t := range b.types {
		for _, o := range offered {
			if o == t.atom {
				s.dataType = t
				return true
			}
		}
	}
	return false
}

// closeSession ends the current session, if any, telling the hovered
// target it was left.
func (b *Bridge) closeSession(reason string) {
	s := b.sess
	if s.state == Inactive {
		return
	}
	if !s.target.IsZero() {
		b.queue.push(Op{Kind: OpLeave, Target: s.target, Window: s.window, Pos: s.pos, Session: s.id})
	}
	b.sess = session{}
	debug.Log(debug.DND, "session %s closed: %s", s.id, reason)
}

// failPending gives up on a drop: the target is left and the source is
// told the drop was not accepted.
func (b *Bridge) failPending(p *pendingDrop) {
	b.queue.push(Op{Kind: OpLeave, Target: p.target, Window: p.window, Pos: p.pos, Session: p.session})
	b.sendFinished(p.source, p.window, p.version, false, xproto.AtomNone)
}

func (b *Bridge) sendStatus(dst xproto.Window, m statusMsg) {
	d := m.data32()
	debug.Log(debug.XDND, "-> XdndStatus to 0x%x data=%x", uint32(dst), d)
	if err := b.conn.SendClientMessage(dst, b.atoms.status, d); err != nil {
		debug.Log(debug.X11, "send XdndStatus: %v", err)
	}
}

func (b *Bridge) sendFinished(dst, win xproto.Window, version int, accepted bool, action xproto.Atom) {
	d := finishedMsg{target: win, accepted: accepted, action: action}.data32(version)
	debug.Log(debug.XDND, "-> XdndFinished to 0x%x data=%x", uint32(dst), d)
	if err := b.conn.SendClientMessage(dst, b.atoms.finished, d); err != nil {
		debug.Log(debug.X11, "send XdndFinished: %v", err)
	}
}
