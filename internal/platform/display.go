// Package platform is the native X11 layer behind the drag and drop
// bridge: the display connection, our windows and the event pump.
package platform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/justyntemme/dropzone/internal/debug"
	"github.com/justyntemme/dropzone/internal/dnd"
)

// ErrNoScreen is returned by Open when the display has no usable screen.
var ErrNoScreen = errors.New("platform: display has no screen")

// maxTypeList bounds the XdndTypeList read, in atoms.
const maxTypeList = 1024

// propChunk is how much of a property is read per GetProperty call, in
// bytes.
const propChunk = 1 << 20

// Display is an X11 connection implementing dnd.Conn.
type Display struct {
	X      *xgb.Conn
	screen *xproto.ScreenInfo

	mu    sync.Mutex
	atoms map[string]xproto.Atom

	wmProtocols xproto.Atom
	wmDelete    xproto.Atom
	wmName      xproto.Atom
	utf8String  xproto.Atom

	closeOnce sync.Once
}

var _ dnd.Conn = (*Display)(nil)

// Open connects to the X display name. An empty name uses $DISPLAY.
func Open(name string) (*Display, error) {
	X, err := xgb.NewConnDisplay(name)
	if err != nil {
		return nil, fmt.Errorf("platform: connect to display %q: %w", name, err)
	}
	setup := xproto.Setup(X)
	if setup == nil || len(setup.Roots) == 0 {
		X.Close()
		return nil, ErrNoScreen
	}
	d := &Display{
		X:      X,
		screen: setup.DefaultScreen(X),
		atoms:  make(map[string]xproto.Atom),
	}
	for atomName, dst := range map[string]*xproto.Atom{
		"WM_PROTOCOLS":     &d.wmProtocols,
		"WM_DELETE_WINDOW": &d.wmDelete,
		"WM_NAME":          &d.wmName,
		"UTF8_STRING":      &d.utf8String,
	} {
		if *dst, err = d.InternAtom(atomName); err != nil {
			X.Close()
			return nil, err
		}
	}
	debug.Log(debug.X11, "connected to display %q, root=0x%x", name, uint32(d.screen.Root))
	return d, nil
}

// Close closes the connection. It is safe to call more than once and
// from any goroutine.
func (d *Display) Close() {
	d.closeOnce.Do(func() {
		d.X.Close()
		debug.Log(debug.X11, "display closed")
	})
}

// Root returns the root window of the default screen.
func (d *Display) Root() xproto.Window { return d.screen.Root }

// InternAtom returns the atom named name. Results are cached.
func (d *Display) InternAtom(name string) (xproto.Atom, error) {
	d.mu.Lock()
	if a, ok := d.atoms[name]; ok {
		d.mu.Unlock()
		return a, nil
	}
	d.mu.Unlock()

	reply, err := xproto.InternAtom(d.X, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("platform: intern atom %s: %w", name, err)
	}
	d.mu.Lock()
	d.atoms[name] = reply.Atom
	d.mu.Unlock()
	return reply.Atom, nil
}

// CreateWindow creates and maps a top level window of the given size and
// asks the window manager to send WM_DELETE_WINDOW instead of killing
// the connection.
func (d *Display) CreateWindow(title string, width, height int) (xproto.Window, error) {
	wid, err := xproto.NewWindowId(d.X)
	if err != nil {
		return 0, fmt.Errorf("platform: allocate window id: %w", err)
	}
	s := d.screen
	err = xproto.CreateWindowChecked(d.X, s.RootDepth, wid, s.Root,
		0, 0, uint16(width), uint16(height), 0,
		xproto.WindowClassInputOutput, s.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{ // values must be in the order defined by the protocol
			s.WhitePixel,
			xproto.EventMaskStructureNotify | xproto.EventMaskPropertyChange,
		}).Check()
	if err != nil {
		return 0, fmt.Errorf("platform: create window: %w", err)
	}

	err = xproto.ChangePropertyChecked(d.X, xproto.PropModeReplace, wid, d.wmName,
		d.utf8String, 8, uint32(len(title)), []byte(title)).Check()
	if err != nil {
		return 0, fmt.Errorf("platform: set window title: %w", err)
	}
	if err := d.ChangeAtomProperty(wid, d.wmProtocols, []uint32{uint32(d.wmDelete)}); err != nil {
		return 0, err
	}
	if err := xproto.MapWindowChecked(d.X, wid).Check(); err != nil {
		return 0, fmt.Errorf("platform: map window: %w", err)
	}
	debug.Log(debug.X11, "created window 0x%x %q (%dx%d)", uint32(wid), title, width, height)
	return wid, nil
}

// DestroyWindow destroys a window made by CreateWindow.
func (d *Display) DestroyWindow(win xproto.Window) error {
	if err := xproto.DestroyWindowChecked(d.X, win).Check(); err != nil {
		return fmt.Errorf("platform: destroy window 0x%x: %w", uint32(win), err)
	}
	return nil
}

// ChangeAtomProperty implements dnd.Conn.
func (d *Display) ChangeAtomProperty(win xproto.Window, prop xproto.Atom, values []uint32) error {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		xgb.Put32(buf[4*i:], v)
	}
	err := xproto.ChangePropertyChecked(d.X, xproto.PropModeReplace, win, prop,
		xproto.AtomAtom, 32, uint32(len(values)), buf).Check()
	if err != nil {
		return fmt.Errorf("platform: change property %d on 0x%x: %w", prop, uint32(win), err)
	}
	return nil
}

// RequestAtomList implements dnd.Conn.
func (d *Display) RequestAtomList(win xproto.Window, prop xproto.Atom) dnd.AtomListReply {
	return atomListCookie{xproto.GetProperty(d.X, false, win, prop, xproto.AtomAtom, 0, maxTypeList)}
}

type atomListCookie struct {
	cookie xproto.GetPropertyCookie
}

func (c atomListCookie) Reply() ([]xproto.Atom, error) {
	reply, err := c.cookie.Reply()
	if err != nil {
		return nil, fmt.Errorf("platform: read atom list: %w", err)
	}
	if reply == nil || reply.Format != 32 {
		return nil, errors.New("platform: atom list property missing or malformed")
	}
	return decodeAtoms(reply.Value, reply.ValueLen), nil
}

// decodeAtoms reads n format 32 atoms from value.
func decodeAtoms(value []byte, n uint32) []xproto.Atom {
	if limit := uint32(len(value) / 4); n > limit {
		n = limit
	}
	atoms := make([]xproto.Atom, 0, n)
	for i := uint32(0); i < n; i++ {
		atoms = append(atoms, xproto.Atom(xgb.Get32(value[4*i:])))
	}
	return atoms
}

// SendClientMessage implements dnd.Conn.
func (d *Display) SendClientMessage(dst xproto.Window, msgType xproto.Atom, data [5]uint32) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: dst,
		Type:   msgType,
		Data:   xproto.ClientMessageDataUnionData32New(data[:]),
	}
	err := xproto.SendEventChecked(d.X, false, dst, xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
	if err != nil {
		return fmt.Errorf("platform: send client message to 0x%x: %w", uint32(dst), err)
	}
	return nil
}

// ConvertSelection implements dnd.Conn.
func (d *Display) ConvertSelection(requestor xproto.Window, selection, target, prop xproto.Atom, t xproto.Timestamp) error {
	if err := xproto.ConvertSelectionChecked(d.X, requestor, selection, target, prop, t).Check(); err != nil {
		return fmt.Errorf("platform: convert selection: %w", err)
	}
	return nil
}

// ReadProperty implements dnd.Conn. Large values are read in chunks;
// the property is deleted once the last chunk has been read.
func (d *Display) ReadProperty(win xproto.Window, prop xproto.Atom) ([]byte, error) {
	var data []byte
	offset := uint32(0)
	for {
		// offset and length are in 32-bit units
		reply, err := xproto.GetProperty(d.X, true, win, prop, xproto.AtomAny, offset/4, propChunk/4).Reply()
		if err != nil {
			return nil, fmt.Errorf("platform: read property %d: %w", prop, err)
		}
		data = append(data, reply.Value...)
		offset += uint32(len(reply.Value))
		if reply.BytesAfter == 0 || len(reply.Value) == 0 {
			return data, nil
		}
	}
}

// TranslateCoordinates implements dnd.Conn.
func (d *Display) TranslateCoordinates(win xproto.Window, rootX, rootY int) (int, int, error) {
	reply, err := xproto.TranslateCoordinates(d.X, d.screen.Root, win, int16(rootX), int16(rootY)).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("platform: translate coordinates: %w", err)
	}
	return int(reply.DstX), int(reply.DstY), nil
}
