package platform

import (
	"context"
	"errors"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/justyntemme/dropzone/internal/debug"
	"github.com/justyntemme/dropzone/internal/dnd"
)

// ErrDisconnected is returned by Pump when the X server closes the
// connection.
var ErrDisconnected = errors.New("platform: display connection closed")

// expireInterval is how often Pump checks for a drop whose data never
// arrived while no events come in.
const expireInterval = 250 * time.Millisecond

type xevent struct {
	ev  xgb.Event
	err xgb.Error
}

// Pump is the event loop of the protocol goroutine. It routes drag and
// drop traffic into b and calls onClose when the window manager asks to
// close one of our windows. Pump returns when ctx is done or the
// connection is lost; it must be the only caller of b's protocol side
// while it runs.
func (d *Display) Pump(ctx context.Context, b *dnd.Bridge, onClose func(xproto.Window)) error {
	events := make(chan xevent)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(events)
		for {
			ev, err := d.X.WaitForEvent()
			if ev == nil && err == nil {
				return
			}
			select {
			case events <- xevent{ev, err}:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(expireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			b.ExpirePending(now)
		case xe, ok := <-events:
			if !ok {
				return ErrDisconnected
			}
			if xe.err != nil {
				debug.Log(debug.X11, "x error: %v", xe.err)
				continue
			}
			d.route(xe.ev, b, onClose)
			b.ExpirePending(time.Now())
		}
	}
}

func (d *Display) route(ev xgb.Event, b *dnd.Bridge, onClose func(xproto.Window)) {
	switch e := ev.(type) {
	case xproto.ClientMessageEvent:
		if b.HandleClientMessage(e) {
			return
		}
		if e.Type == d.wmProtocols && e.Format == 32 && xproto.Atom(e.Data.Data32[0]) == d.wmDelete {
			debug.Log(debug.X11, "window 0x%x close requested", uint32(e.Window))
			if onClose != nil {
				onClose(e.Window)
			}
		}
	case xproto.SelectionNotifyEvent:
		if !b.HandleSelectionNotify(e) {
			debug.Log(debug.X11, "ignoring selection notify for selection %d", e.Selection)
		}
	case xproto.DestroyNotifyEvent:
		debug.Log(debug.X11, "window 0x%x destroyed", uint32(e.Window))
	}
}
