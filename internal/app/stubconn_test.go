package app

import (
	"path/filepath"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/justyntemme/dropzone/internal/config"
	"github.com/justyntemme/dropzone/internal/dnd"
	"github.com/justyntemme/dropzone/internal/ui"
)

const (
	testWindow xproto.Window = 0x400001
	testSource xproto.Window = 0x800001
)

type atomReply struct{}

func (atomReply) Reply() ([]xproto.Atom, error) { return nil, nil }

// stubConn is a display connection that accepts everything and serves
// one canned selection.
type stubConn struct {
	atoms     map[string]xproto.Atom
	next      xproto.Atom
	selection []byte
}

func newStubConn() *stubConn {
	return &stubConn{atoms: make(map[string]xproto.Atom), next: 100}
}

func (c *stubConn) InternAtom(name string) (xproto.Atom, error) {
	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	c.next++
	c.atoms[name] = c.next
	return c.next, nil
}

func (c *stubConn) atom(name string) xproto.Atom {
	a, _ := c.InternAtom(name)
	return a
}

func (c *stubConn) ChangeAtomProperty(xproto.Window, xproto.Atom, []uint32) error { return nil }
func (c *stubConn) RequestAtomList(xproto.Window, xproto.Atom) dnd.AtomListReply  { return atomReply{} }
func (c *stubConn) SendClientMessage(xproto.Window, xproto.Atom, [5]uint32) error { return nil }

func (c *stubConn) ConvertSelection(xproto.Window, xproto.Atom, xproto.Atom, xproto.Atom, xproto.Timestamp) error {
	return nil
}

func (c *stubConn) ReadProperty(xproto.Window, xproto.Atom) ([]byte, error) {
	data := c.selection
	c.selection = nil
	return data, nil
}

func (c *stubConn) TranslateCoordinates(_ xproto.Window, x, y int) (int, int, error) {
	return x, y, nil
}

func (c *stubConn) message(name string, d ...uint32) xproto.ClientMessageEvent {
	var data [5]uint32
	copy(data[:], d)
	return xproto.ClientMessageEvent{
		Format: 32,
		Window: testWindow,
		Type:   c.atom(name),
		Data:   xproto.ClientMessageDataUnionData32New(data[:]),
	}
}

// hover sends an enter and one position at (x, y).
func (c *stubConn) hover(b *dnd.Bridge, x, y int) {
	b.HandleClientMessage(c.message("XdndEnter", uint32(testSource), dnd.Version<<24, uint32(c.atom(dnd.TypeURIList))))
	b.HandleClientMessage(c.message("XdndPosition", uint32(testSource), 0, uint32(x)<<16|uint32(y), 0, uint32(c.atom(dnd.ActionCopy))))
}

// dropURIs completes a hover by dropping uris.
func (c *stubConn) dropURIs(b *dnd.Bridge, uris string) {
	c.selection = []byte(uris)
	b.HandleClientMessage(c.message("XdndDrop", uint32(testSource), 0, 0))
	b.HandleSelectionNotify(xproto.SelectionNotifyEvent{
		Requestor: testWindow,
		Selection: c.atom("XdndSelection"),
		Target:    c.atom(dnd.TypeURIList),
		Property:  xproto.AtomPrimary,
	})
}

var testZones = []config.Zone{
	{Name: "inbox", X: 0, Y: 0, Width: 100, Height: 100},
	{Name: "archive", X: 100, Y: 0, Width: 100, Height: 100, ExpandDirs: true},
}

// testDropView is a pending drop of paths, not yet journaled.
func testDropView(session, zone string, paths ...string) ui.DropView {
	d := ui.DropView{Session: session, Zone: zone, Pending: true}
	for _, p := range paths {
		d.Files = append(d.Files, ui.FileView{Path: p, Size: -1})
	}
	return d
}

// newTestOrchestrator returns an orchestrator wired to a stub display,
// with the journal disabled and the fs worker not started.
func newTestOrchestrator(t *testing.T) (*Orchestrator, *stubConn) {
	t.Helper()
	c := newStubConn()
	b, err := dnd.StartUp(c, dnd.Options{})
	if err != nil {
		t.Fatalf("StartUp: %v", err)
	}
	t.Cleanup(b.ShutDown)

	o := NewOrchestrator(config.NewManager(filepath.Join(t.TempDir(), "config.json")), false)
	o.bridge = b
	o.dropWin = testWindow
	o.state = NewStateOwner(10, nil)
	o.zones = newZoneSet(b, testWindow, o)
	o.zones.sync(testZones)
	o.state.SetZones(testZones)
	b.Update()
	return o, c
}
