package app

import (
	"context"
	"time"

	"github.com/justyntemme/dropzone/internal/config"
	"github.com/justyntemme/dropzone/internal/debug"
	"github.com/justyntemme/dropzone/internal/dnd"
	"github.com/justyntemme/dropzone/internal/store"
	"github.com/justyntemme/dropzone/internal/ui"
)

func tickInterval(rate int) time.Duration {
	if rate <= 0 {
		rate = 60
	}
	return time.Second / time.Duration(rate)
}

// runSimulation is the simulation goroutine: it dispatches queued drag
// and drop operations once per tick until ctx is done. Zone callbacks
// run from here.
func (o *Orchestrator) runSimulation(ctx context.Context, tickRate int) error {
	ticker := time.NewTicker(tickInterval(tickRate))
	defer ticker.Stop()
	debug.Log(debug.APP, "simulation running at %d ticks/s", tickRate)

	for {
		select {
		case <-ctx.Done():
			return nil
		case rate := <-o.tickRate:
			ticker.Reset(tickInterval(rate))
			debug.Log(debug.APP, "tick rate changed to %d", rate)
		case <-ticker.C:
			o.bridge.Update()
			o.state.SetStats(o.bridge.Stats())
		}
	}
}

func (o *Orchestrator) ZoneEnter(z config.Zone, ev dnd.Event) {
	debug.Log(debug.APP, "drag entered %s at %v (session %s)", z.Name, ev.Pos, ev.Session)
	o.state.SetHover(z.Name, true)
}

func (o *Orchestrator) ZoneLeave(z config.Zone, ev dnd.Event) {
	debug.Log(debug.APP, "drag left %s", z.Name)
	o.state.SetHover(z.Name, false)
}

// ZoneDrop journals the drop and asks the fs worker to resolve its files.
func (o *Orchestrator) ZoneDrop(z config.Zone, ev dnd.Event) {
	session := ev.Session.String()
	now := time.Now()
	files := make([]ui.FileView, len(ev.Files))
	for i, p := range ev.Files {
		files[i] = ui.FileView{Path: p, Size: -1}
	}
	o.state.SetHover(z.Name, false)
	o.state.AddDrop(ui.DropView{
		Session: session,
		Zone:    z.Name,
		Pos:     ev.Pos,
		At:      now,
		Files:   files,
		Pending: true,
	})

	if o.store == nil {
		id := o.localID.Add(-1)
		o.state.SetDropID(session, id)
		o.resolveDrop(id, z, ev.Files)
		return
	}
	o.zoneByDrop.Store(session, z)
	o.requestStore(store.Request{Op: store.RecordDrop, Drop: store.Drop{
		Session: session,
		Zone:    z.Name,
		X:       ev.Pos.X,
		Y:       ev.Pos.Y,
		Files:   append([]string(nil), ev.Files...),
		At:      now,
	}})
}
