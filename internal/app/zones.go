package app

import (
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/justyntemme/dropzone/internal/config"
	"github.com/justyntemme/dropzone/internal/debug"
	"github.com/justyntemme/dropzone/internal/dnd"
)

// zoneSink receives drop target callbacks on the simulation goroutine.
type zoneSink interface {
	ZoneEnter(z config.Zone, ev dnd.Event)
	ZoneLeave(z config.Zone, ev dnd.Event)
	ZoneDrop(z config.Zone, ev dnd.Event)
}

type zoneTarget struct {
	zone   config.Zone
	handle dnd.Handle
}

// zoneSet keeps one drop target per configured zone. sync may be called
// from any goroutine; the registry calls it makes are thread safe.
type zoneSet struct {
	mu      sync.Mutex
	bridge  *dnd.Bridge
	win     xproto.Window
	sink    zoneSink
	targets map[string]zoneTarget
}

func newZoneSet(b *dnd.Bridge, win xproto.Window, sink zoneSink) *zoneSet {
	return &zoneSet{
		bridge:  b,
		win:     win,
		sink:    sink,
		targets: make(map[string]zoneTarget),
	}
}

// sync makes the registered targets match zones. Unchanged zones keep
// their targets; changed zones are destroyed and registered again.
func (zs *zoneSet) sync(zones []config.Zone) (added, removed int) {
	zs.mu.Lock()
	defer zs.mu.Unlock()

	wanted := make(map[string]config.Zone, len(zones))
	for _, z := range zones {
		wanted[z.Name] = z
	}
	for name, t := range zs.targets {
		if z, ok := wanted[name]; ok && z == t.zone {
			continue
		}
		zs.bridge.DestroyDropTarget(t.handle)
		delete(zs.targets, name)
		removed++
	}
	for _, z := range zones {
		if _, ok := zs.targets[z.Name]; ok {
			continue
		}
		zs.targets[z.Name] = zoneTarget{zone: z, handle: zs.register(z)}
		added++
	}
	if added+removed > 0 {
		debug.Log(debug.APP, "zones synced: %d added, %d removed", added, removed)
	}
	return added, removed
}

func (zs *zoneSet) register(z config.Zone) dnd.Handle {
	sink := zs.sink
	return zs.bridge.CreateDropTarget(zs.win, z.X, z.Y, z.Width, z.Height, dnd.Callbacks{
		OnEnter: func(ev dnd.Event) { sink.ZoneEnter(z, ev) },
		OnLeave: func(ev dnd.Event) { sink.ZoneLeave(z, ev) },
		OnDrop:  func(ev dnd.Event) { sink.ZoneDrop(z, ev) },
	})
}

// handle returns the target of zone name.
func (zs *zoneSet) handle(name string) (dnd.Handle, bool) {
	zs.mu.Lock()
	defer zs.mu.Unlock()
	t, ok := zs.targets[name]
	return t.handle, ok
}

// clear destroys every zone target.
func (zs *zoneSet) clear() {
	zs.mu.Lock()
	defer zs.mu.Unlock()
	for name, t := range zs.targets {
		zs.bridge.DestroyDropTarget(t.handle)
		delete(zs.targets, name)
	}
}
