package dnd

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/BurntSushi/xgb/xproto"
)

const (
	testWindow xproto.Window = 0x400001
	testSource xproto.Window = 0x800001
)

type sentMsg struct {
	dst  xproto.Window
	typ  xproto.Atom
	data [5]uint32
}

type conversion struct {
	requestor xproto.Window
	selection xproto.Atom
	target    xproto.Atom
	prop      xproto.Atom
	time      xproto.Timestamp
}

type atomListReply struct {
	atoms []xproto.Atom
	err   error
}

func (r atomListReply) Reply() ([]xproto.Atom, error) { return r.atoms, r.err }

// fakeConn records everything the bridge sends and serves canned replies.
type fakeConn struct {
	atoms map[string]xproto.Atom
	next  xproto.Atom

	aware       map[xproto.Window][]uint32
	typeLists   map[xproto.Window][]xproto.Atom
	selection   map[xproto.Window][]byte
	sent        []sentMsg
	conversions []conversion

	// origin of every window in root coordinates
	origin image.Point

	failConvert   bool
	failTranslate bool
	failRead      bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		atoms:     make(map[string]xproto.Atom),
		next:      100,
		aware:     make(map[xproto.Window][]uint32),
		typeLists: make(map[xproto.Window][]xproto.Atom),
		selection: make(map[xproto.Window][]byte),
	}
}

func (c *fakeConn) InternAtom(name string) (xproto.Atom, error) {
	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	c.next++
	c.atoms[name] = c.next
	return c.next, nil
}

func (c *fakeConn) atom(name string) xproto.Atom {
	a, _ := c.InternAtom(name)
	return a
}

func (c *fakeConn) ChangeAtomProperty(win xproto.Window, prop xproto.Atom, values []uint32) error {
	c.aware[win] = append([]uint32(nil), values...)
	return nil
}

func (c *fakeConn) RequestAtomList(win xproto.Window, prop xproto.Atom) AtomListReply {
	list, ok := c.typeLists[win]
	if !ok {
		return atomListReply{err: errors.New("no such property")}
	}
	return atomListReply{atoms: list}
}

func (c *fakeConn) SendClientMessage(dst xproto.Window, msgType xproto.Atom, data [5]uint32) error {
	c.sent = append(c.sent, sentMsg{dst: dst, typ: msgType, data: data})
	return nil
}

func (c *fakeConn) ConvertSelection(requestor xproto.Window, selection, target, prop xproto.Atom, t xproto.Timestamp) error {
	if c.failConvert {
		return errors.New("convert failed")
	}
	c.conversions = append(c.conversions, conversion{requestor, selection, target, prop, t})
	return nil
}

func (c *fakeConn) ReadProperty(win xproto.Window, prop xproto.Atom) ([]byte, error) {
	if c.failRead {
		return nil, errors.New("read failed")
	}
	data := c.selection[win]
	delete(c.selection, win)
	return data, nil
}

func (c *fakeConn) TranslateCoordinates(win xproto.Window, rootX, rootY int) (int, int, error) {
	if c.failTranslate {
		return 0, 0, errors.New("translate failed")
	}
	return rootX - c.origin.X, rootY - c.origin.Y, nil
}

// lastSent returns the last message of the given type, failing the test
// if there is none.
func (c *fakeConn) lastSent(t *testing.T, name string) sentMsg {
	t.Helper()
	typ := c.atom(name)
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].typ == typ {
			return c.sent[i]
		}
	}
	t.Fatalf("no %s message was sent", name)
	return sentMsg{}
}

func (c *fakeConn) countSent(name string) int {
	typ := c.atom(name)
	n := 0
	for _, m := range c.sent {
		if m.typ == typ {
			n++
		}
	}
	return n
}

func newTestBridge(t *testing.T, opts Options) (*Bridge, *fakeConn) {
	t.Helper()
	c := newFakeConn()
	b, err := StartUp(c, opts)
	if err != nil {
		t.Fatalf("StartUp: %v", err)
	}
	clock := time.Unix(1700000000, 0)
	b.now = func() time.Time { return clock }
	return b, c
}

func (c *fakeConn) message(name string, d ...uint32) xproto.ClientMessageEvent {
	var data [5]uint32
	copy(data[:], d)
	return xproto.ClientMessageEvent{
		Format: 32,
		Window: testWindow,
		Type:   c.atom(name),
		Data:   xproto.ClientMessageDataUnionData32New(data[:]),
	}
}

func (c *fakeConn) enter(version int, types ...string) xproto.ClientMessageEvent {
	d := [5]uint32{uint32(testSource), uint32(version) << 24}
	if len(types) > 3 {
		d[1] |= enterMoreTypes
	}
	for i := 0; i < len(types) && i < 3; i++ {
		d[2+i] = uint32(c.atom(types[i]))
	}
	return c.message("XdndEnter", d[:]...)
}

func (c *fakeConn) position(x, y int, action string) xproto.ClientMessageEvent {
	var a uint32
	if action != "" {
		a = uint32(c.atom(action))
	}
	return c.message("XdndPosition", uint32(testSource), 0, pack16(x, y), 0, a)
}

func (c *fakeConn) drop(ts uint32) xproto.ClientMessageEvent {
	return c.message("XdndDrop", uint32(testSource), 0, ts)
}

func (c *fakeConn) leave() xproto.ClientMessageEvent {
	return c.message("XdndLeave", uint32(testSource))
}

func (c *fakeConn) selectionNotify(prop xproto.Atom) xproto.SelectionNotifyEvent {
	return xproto.SelectionNotifyEvent{
		Requestor: testWindow,
		Selection: c.atom("XdndSelection"),
		Target:    c.atom(TypeURIList),
		Property:  prop,
	}
}

// recorder collects callback invocations.
type recorder struct {
	events []Event
}

func (r *recorder) callbacks() Callbacks {
	rec := func(ev Event) { r.events = append(r.events, ev) }
	return Callbacks{OnEnter: rec, OnDragOver: rec, OnDrop: rec, OnLeave: rec}
}

func (r *recorder) kinds() []OpKind {
	var ks []OpKind
	for _, ev := range r.events {
		ks = append(ks, ev.Kind)
	}
	return ks
}

func equalKinds(a, b []OpKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
