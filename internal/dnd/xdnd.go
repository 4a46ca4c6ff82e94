package dnd

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
)

// Version is the XDND protocol version advertised in XdndAware.
const Version = 5

// Sources older than this are treated as not drag and drop aware.
const minVersion = 3

// TypeURIList is the data type used to transfer file lists.
const TypeURIList = "text/uri-list"

// XDND action atom names.
const (
	ActionCopy    = "XdndActionCopy"
	ActionMove    = "XdndActionMove"
	ActionLink    = "XdndActionLink"
	ActionPrivate = "XdndActionPrivate"
)

const (
	enterMoreTypes = 1 << 0

	statusAccept        = 1 << 0
	statusSendPositions = 1 << 1

	finishedAccepted = 1 << 0
)

// atoms holds the interned XDND atoms.
type atoms struct {
	aware     xproto.Atom
	selection xproto.Atom
	typeList  xproto.Atom

	enter    xproto.Atom
	position xproto.Atom
	status   xproto.Atom
	leave    xproto.Atom
	drop     xproto.Atom
	finished xproto.Atom

	actionCopy xproto.Atom
}

func internAtoms(c Conn) (atoms, error) {
	var a atoms
	names := [...]struct {
		name string
		dst  *xproto.Atom
	}{
		{"XdndAware", &a.aware},
		{"XdndSelection", &a.selection},
		{"XdndTypeList", &a.typeList},
		{"XdndEnter", &a.enter},
		{"XdndPosition", &a.position},
		{"XdndStatus", &a.status},
		{"XdndLeave", &a.leave},
		{"XdndDrop", &a.drop},
		{"XdndFinished", &a.finished},
		{ActionCopy, &a.actionCopy},
	}
	for _, n := range names {
		atom, err := c.InternAtom(n.name)
		if err != nil {
			return atoms{}, fmt.Errorf("dnd: intern %s: %w", n.name, err)
		}
		*n.dst = atom
	}
	return a, nil
}

// isMessage reports whether t is one of the client message types sent
// by a drag source.
func (a *atoms) isMessage(t xproto.Atom) bool {
	switch t {
	case a.enter, a.position, a.leave, a.drop:
		return t != xproto.AtomNone
	}
	return false
}

// data32 copies the 32-bit view of a client message, zero padded.
func data32(ev xproto.ClientMessageEvent) [5]uint32 {
	var d [5]uint32
	copy(d[:], ev.Data.Data32)
	return d
}

type enterMsg struct {
	source    xproto.Window
	version   int
	moreTypes bool
	types     []xproto.Atom
}

func parseEnter(d [5]uint32) enterMsg {
	m := enterMsg{
		source:    xproto.Window(d[0]),
		version:   int(d[1] >> 24),
		moreTypes: d[1]&enterMoreTypes != 0,
	}
	for _, t := range d[2:] {
		if t != uint32(xproto.AtomNone) {
			m.types = append(m.types, xproto.Atom(t))
		}
	}
	return m
}

type positionMsg struct {
	source xproto.Window
	root   image.Point
	time   xproto.Timestamp
	action xproto.Atom
}

func parsePosition(d [5]uint32) positionMsg {
	return positionMsg{
		source: xproto.Window(d[0]),
		root:   image.Pt(int(int16(d[2]>>16)), int(int16(d[2]&0xffff))),
		time:   xproto.Timestamp(d[3]),
		action: xproto.Atom(d[4]),
	}
}

type dropMsg struct {
	source xproto.Window
	time   xproto.Timestamp
}

func parseDrop(d [5]uint32) dropMsg {
	return dropMsg{source: xproto.Window(d[0]), time: xproto.Timestamp(d[2])}
}

type statusMsg struct {
	target xproto.Window
	accept bool
	rect   image.Rectangle
	action xproto.Atom
}

func (m statusMsg) data32() [5]uint32 {
	flags := uint32(statusSendPositions)
	action := xproto.Atom(xproto.AtomNone)
	if m.accept {
		flags |= statusAccept
		action = m.action
	}
	return [5]uint32{
		uint32(m.target),
		flags,
		pack16(m.rect.Min.X, m.rect.Min.Y),
		pack16(m.rect.Dx(), m.rect.Dy()),
		uint32(action),
	}
}

type finishedMsg struct {
	target   xproto.Window
	accepted bool
	action   xproto.Atom
}

// data32 encodes m for a peer speaking version. The accepted flag and
// action only exist from version 5 on.
func (m finishedMsg) data32(version int) [5]uint32 {
	d := [5]uint32{uint32(m.target)}
	if version >= 5 && m.accepted {
		d[1] = finishedAccepted
		d[2] = uint32(m.action)
	}
	return d
}

func pack16(hi, lo int) uint32 {
	return uint32(uint16(hi))<<16 | uint32(uint16(lo))
}
