package dnd

import "github.com/BurntSushi/xgb/xproto"

// Conn is the native display connection the bridge talks through.
// Every method is called from the protocol goroutine only.
type Conn interface {
	// InternAtom returns the atom named name, creating it if needed.
	InternAtom(name string) (xproto.Atom, error)

	// ChangeAtomProperty replaces prop on win with values, stored as
	// a format 32 ATOM list.
	ChangeAtomProperty(win xproto.Window, prop xproto.Atom, values []uint32) error

	// RequestAtomList starts reading the ATOM list property prop of win
	// without waiting for the reply.
	RequestAtomList(win xproto.Window, prop xproto.Atom) AtomListReply

	// SendClientMessage sends a format 32 client message of type
	// msgType to dst.
	SendClientMessage(dst xproto.Window, msgType xproto.Atom, data [5]uint32) error

	// ConvertSelection asks the owner of selection to store its data,
	// converted to target, into prop on requestor. Completion is
	// reported with a SelectionNotify event.
	ConvertSelection(requestor xproto.Window, selection, target, prop xproto.Atom, t xproto.Timestamp) error

	// ReadProperty reads the whole value of prop on win and deletes it.
	ReadProperty(win xproto.Window, prop xproto.Atom) ([]byte, error)

	// TranslateCoordinates maps a root window position into the
	// coordinate space of win.
	TranslateCoordinates(win xproto.Window, rootX, rootY int) (x, y int, err error)
}

// AtomListReply is an atom list property read that is still in flight.
type AtomListReply interface {
	// Reply waits for and decodes the property value.
	Reply() ([]xproto.Atom, error)
}
