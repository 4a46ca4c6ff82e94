// Package app wires the drag and drop bridge to its embedding engine:
// the native event pump, the simulation loop, the drop journal, the fs
// worker and the inspector panel.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"gioui.org/app"
	"gioui.org/io/system"
	"gioui.org/op"
	"gioui.org/unit"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/dustin/go-humanize/english"
	"golang.org/x/sync/errgroup"

	"github.com/justyntemme/dropzone/internal/config"
	"github.com/justyntemme/dropzone/internal/debug"
	"github.com/justyntemme/dropzone/internal/dnd"
	"github.com/justyntemme/dropzone/internal/fs"
	"github.com/justyntemme/dropzone/internal/platform"
	"github.com/justyntemme/dropzone/internal/store"
	"github.com/justyntemme/dropzone/internal/trash"
	"github.com/justyntemme/dropzone/internal/ui"
)

// Journal settings keys
const (
	settingFilter     = "panel.filter"
	settingThumbnails = "panel.thumbnails"
)

// journalStatID marks fs responses that fill in journaled file details.
const journalStatID int64 = 0

type Orchestrator struct {
	cfg   *config.Manager
	debug bool

	display *platform.Display
	dropWin xproto.Window
	bridge  *dnd.Bridge
	zones   *zoneSet

	fs      *fs.System
	store   *store.DB // nil when the journal is disabled
	watcher *ConfigWatcher
	state   *StateOwner

	window *app.Window // nil when the panel is disabled
	panel  *ui.Panel

	tickRate   chan int
	localID    atomic.Int64 // Ids for drops that are not journaled, counting down
	gen        atomic.Int64 // fs request generation
	zoneByDrop sync.Map     // session -> config.Zone, until the journal answers
	loadedSet  bool         // processEvents only
}

func NewOrchestrator(cfg *config.Manager, debug bool) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		debug:    debug,
		fs:       fs.NewSystem(),
		tickRate: make(chan int, 1),
	}
}

// Run opens the display and runs every loop until ctx is done, the drop
// window or panel is closed, or the display connection is lost.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.debug {
		if debugEnabled {
			log.Println("Starting dropzone in DEBUG mode")
		} else {
			log.Println("-debug has no effect: rebuild with -tags debug")
		}
	}

	cfg := o.cfg.Get()
	if err := o.openDisplay(cfg); err != nil {
		return err
	}
	defer o.display.Close()
	defer o.bridge.ShutDown()

	if cfg.Panel.Enabled {
		o.window = new(app.Window)
		o.window.Option(app.Title(cfg.Display.Title+" inspector"), app.Size(unit.Dp(720), unit.Dp(480)))
		var thumbs *ui.ThumbnailCache
		if cfg.Panel.Thumbnails {
			thumbs = ui.NewThumbnailCache(200, cfg.Panel.ThumbnailSize)
			thumbs.OnLoaded = func(string) { o.window.Invalidate() }
		}
		o.panel = ui.NewPanel(thumbs, cfg.Panel.ThumbnailSize)
		o.panel.SetDarkMode(o.cfg.IsDarkMode())
		o.panel.SetHotkeys(config.NewHotkeyMatcher(cfg.Hotkeys))
		defer o.panel.Close()
	}
	o.state = NewStateOwner(cfg.Panel.RecentDrops, o.invalidate)
	if err := o.cfg.ParseError(); err != nil {
		o.state.SetConfigError(err.Error())
	}

	if cfg.Journal.Enabled {
		o.store = store.NewDB()
		if err := o.store.Open(o.cfg.JournalPath()); err != nil {
			log.Printf("Failed to open drop journal, continuing without it: %v", err)
			o.store = nil
		} else {
			defer o.store.Close()
			go o.store.Start()
			o.requestStore(store.Request{Op: store.Prune, Limit: cfg.Journal.Keep})
			o.requestStore(store.Request{Op: store.FetchSettings})
		}
	}
	if bin, err := trash.NewBin(""); err != nil {
		log.Printf("Trash zones disabled: %v", err)
	} else {
		o.fs.Trash = bin
	}
	go o.fs.Start()

	if w, err := NewConfigWatcher(o.cfg.Path(), 0); err != nil {
		log.Printf("Config hot reload disabled: %v", err)
	} else {
		o.watcher = w
		defer w.Close()
	}

	o.zones = newZoneSet(o.bridge, o.dropWin, o)
	o.zones.sync(cfg.Zones)
	o.state.SetZones(cfg.Zones)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.display.Pump(ctx, o.bridge, func(win xproto.Window) {
			if win == o.dropWin {
				debug.Log(debug.APP, "drop window closed")
				cancel()
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error { return o.runSimulation(ctx, cfg.Sim.TickRate) })
	g.Go(func() error {
		o.processEvents(ctx)
		return nil
	})
	if o.window != nil {
		g.Go(func() error {
			defer cancel()
			return o.runPanel(ctx)
		})
	}

	err := g.Wait()
	o.zones.clear()
	debug.Log(debug.APP, "stopped: %v", err)
	return err
}

// openDisplay connects to X, creates the drop window and starts the bridge.
func (o *Orchestrator) openDisplay(cfg config.Config) error {
	d, err := platform.Open(cfg.Display.Name)
	if err != nil {
		return err
	}
	win, err := d.CreateWindow(cfg.Display.Title, cfg.Display.Width, cfg.Display.Height)
	if err != nil {
		d.Close()
		return fmt.Errorf("create drop window: %w", err)
	}
	b, err := dnd.StartUp(d, dnd.Options{
		Types:          cfg.DnD.Types,
		Actions:        cfg.DnD.Actions,
		PayloadTimeout: cfg.DnD.PayloadTimeout(),
	})
	if err != nil {
		d.Close()
		return fmt.Errorf("start drag and drop: %w", err)
	}
	if err := b.MakeDNDAware(win); err != nil {
		b.ShutDown()
		d.Close()
		return fmt.Errorf("make window drop aware: %w", err)
	}
	o.display, o.dropWin, o.bridge = d, win, b
	debug.Log(debug.APP, "drop window 0x%x ready (%dx%d)", uint32(win), cfg.Display.Width, cfg.Display.Height)
	return nil
}

// runPanel is the Gio event loop of the inspector window.
func (o *Orchestrator) runPanel(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		o.window.Perform(system.ActionClose)
	}()

	var ops op.Ops
	var zoneNames []string
	for {
		switch e := o.window.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)

			if names := o.state.ZoneNames(); !slices.Equal(names, zoneNames) {
				zoneNames = names
				o.panel.SyncZones(names)
			}
			if settings, ok := o.state.TakeSettings(); ok {
				o.applySettings(settings)
			}

			snap := o.state.Snapshot()
			evt := o.panel.Layout(gtx, &snap)
			if o.debug && evt.Action != ui.ActionNone {
				log.Printf("[DEBUG] Panel action: %d, Zone: %q", evt.Action, evt.Zone)
			}
			o.handlePanelEvent(evt)
			e.Frame(gtx.Ops)
		}
	}
}

// applySettings restores panel state saved in the journal. UI goroutine only.
func (o *Orchestrator) applySettings(settings map[string]string) {
	if v, ok := settings[settingFilter]; ok {
		o.panel.SetFilter(v)
	}
	if v, ok := settings[settingThumbnails]; ok {
		if on, err := strconv.ParseBool(v); err == nil {
			o.panel.SetThumbnails(on)
		}
	}
}

func (o *Orchestrator) handlePanelEvent(evt ui.PanelEvent) {
	switch evt.Action {
	case ui.ActionFilterZone:
		o.requestStore(store.Request{Op: store.SaveSetting, Key: settingFilter, Value: evt.Zone})
	case ui.ActionChangeTheme:
		theme := "light"
		if evt.DarkMode {
			theme = "dark"
		}
		o.cfg.SetTheme(theme)
	case ui.ActionToggleThumbnails:
		o.requestStore(store.Request{Op: store.SaveSetting, Key: settingThumbnails, Value: strconv.FormatBool(evt.Thumbnails)})
	case ui.ActionOpenFile:
		if err := openPath(evt.Path); err != nil {
			log.Printf("Open %s: %v", evt.Path, err)
			o.notify("Could not open "+evt.Path, ui.ToastError)
		}
	case ui.ActionPruneJournal:
		o.requestStore(store.Request{Op: store.Prune, Limit: o.cfg.Get().Journal.Keep})
	}
}

// notify shows a toast on the panel, if there is one.
func (o *Orchestrator) notify(msg string, typ ui.ToastType) {
	if o.panel == nil {
		return
	}
	o.panel.ShowToast(msg, typ)
	o.invalidate()
}

func (o *Orchestrator) invalidate() {
	if o.window != nil {
		o.window.Invalidate()
	}
}

// requestStore sends req to the journal worker without blocking the caller.
func (o *Orchestrator) requestStore(req store.Request) {
	if o.store == nil {
		return
	}
	select {
	case o.store.RequestChan <- req:
	default:
		go func() { o.store.RequestChan <- req }()
	}
}

// requestFS sends req to the fs worker without blocking the caller.
func (o *Orchestrator) requestFS(req fs.Request) {
	select {
	case o.fs.RequestChan <- req:
	default:
		go func() { o.fs.RequestChan <- req }()
	}
}

// resolveDrop asks the fs worker for the files of drop id.
func (o *Orchestrator) resolveDrop(id int64, z config.Zone, paths []string) {
	op := fs.StatDrop
	switch {
	case z.Trash:
		op = fs.TrashDrop
	case z.ExpandDirs:
		op = fs.ExpandDrop
	}
	o.requestFS(fs.Request{Op: op, Paths: paths, Gen: o.gen.Add(1), DropID: id, Zone: z.Name})
}

func (o *Orchestrator) processEvents(ctx context.Context) {
	var storeResp <-chan store.Response
	if o.store != nil {
		storeResp = o.store.ResponseChan
	}
	var reload <-chan struct{}
	if o.watcher != nil {
		reload = o.watcher.Notify()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-o.fs.ResponseChan:
			o.handleFSResponse(resp)
		case p := <-o.fs.ProgressChan:
			o.state.SetProgress(p.Label)
		case resp := <-storeResp:
			o.handleStoreResponse(resp)
		case <-reload:
			o.reloadConfig()
		}
	}
}

func (o *Orchestrator) handleFSResponse(resp fs.Response) {
	if resp.Err != nil {
		log.Printf("FS Error: %v", resp.Err)
	}
	if resp.DropID == journalStatID {
		o.state.ApplyFileStats(resp.Entries, resp.Missing)
		return
	}
	if resp.Cancelled {
		// A newer walk replaced this one; settle for the dropped paths
		if paths := o.state.DropPaths(resp.DropID); len(paths) > 0 {
			o.requestFS(fs.Request{Op: fs.StatDrop, Paths: paths, Gen: o.gen.Add(1), DropID: resp.DropID, Zone: resp.Zone})
		}
		return
	}
	if resp.Op == fs.ExpandDrop {
		o.state.SetProgress("")
	}
	if !o.state.ResolveDrop(resp.DropID, resp.Entries, resp.Missing) {
		debug.Log(debug.APP, "fs response for unknown drop %d", resp.DropID)
		return
	}
	msg := english.Plural(len(resp.Entries), "file", "") + " dropped on " + resp.Zone
	switch {
	case resp.Op == fs.TrashDrop && resp.Err != nil:
		o.notify("Could not trash everything: "+resp.Err.Error(), ui.ToastError)
		return
	case resp.Op == fs.TrashDrop:
		msg = "Moved " + english.Plural(len(resp.Entries), "item", "") + " to the trash"
	}
	if len(resp.Missing) > 0 {
		o.notify(msg+", "+english.Plural(len(resp.Missing), "path", "")+" missing", ui.ToastWarning)
		return
	}
	o.notify(msg, ui.ToastSuccess)
}

func (o *Orchestrator) handleStoreResponse(resp store.Response) {
	if resp.Err != nil {
		log.Printf("Store Error: %v", resp.Err)
		o.notify("Journal error: "+resp.Err.Error(), ui.ToastError)
	}

	switch resp.Op {
	case store.RecordDrop:
		o.handleRecorded(resp)
	case store.FetchRecent:
		if resp.Err != nil {
			return
		}
		o.state.SetJournal(resp.Drops)
		if paths := o.state.UnstattedPaths(); len(paths) > 0 {
			o.requestFS(fs.Request{Op: fs.StatDrop, Paths: paths, DropID: journalStatID})
		}
	case store.Prune:
		if resp.Pruned > 0 {
			log.Printf("Journal: pruned %d old drops", resp.Pruned)
		}
		o.requestStore(store.Request{Op: store.FetchRecent, Limit: o.cfg.Get().Panel.RecentDrops})
	case store.FetchSettings:
		// Saves answer with the settings too; only the first read restores state
		if resp.Err == nil && !o.loadedSet {
			o.loadedSet = true
			o.state.SetSettings(resp.Settings)
		}
	}
}

// handleRecorded continues a drop once the journal has assigned its id.
// A drop the journal failed to record continues under a local id.
func (o *Orchestrator) handleRecorded(resp store.Response) {
	for _, d := range resp.Drops {
		v, ok := o.zoneByDrop.LoadAndDelete(d.Session)
		if !ok {
			continue
		}
		id := d.ID
		if resp.Err != nil || id <= 0 {
			id = o.localID.Add(-1)
		}
		o.continueDrop(d.Session, id, v.(config.Zone))
	}
}

func (o *Orchestrator) continueDrop(session string, id int64, z config.Zone) {
	if !o.state.SetDropID(session, id) {
		return
	}
	o.resolveDrop(id, z, o.state.DropPaths(id))
}

// reloadConfig re-reads the config file and applies what can change
// while running: zones, tick rate and the error banner.
func (o *Orchestrator) reloadConfig() {
	before := o.cfg.Get()
	if err := o.cfg.Load(); err != nil {
		log.Printf("Config reload failed: %v", err)
		return
	}
	if err := o.cfg.ParseError(); err != nil {
		// Keep running with what we have
		o.state.SetConfigError(err.Error())
		return
	}
	o.state.SetConfigError("")

	cfg := o.cfg.Get()
	added, removed := o.zones.sync(cfg.Zones)
	o.state.SetZones(cfg.Zones)
	if cfg.Sim.TickRate != before.Sim.TickRate {
		// Only this goroutine sends, so after draining the send cannot block
		select {
		case <-o.tickRate:
		default:
		}
		o.tickRate <- cfg.Sim.TickRate
	}
	if !slices.Equal(cfg.DnD.Types, before.DnD.Types) || !slices.Equal(cfg.DnD.Actions, before.DnD.Actions) ||
		cfg.Display != before.Display || cfg.Hotkeys != before.Hotkeys {
		log.Printf("Config: display, dnd and hotkey changes apply after a restart")
	}
	debug.Log(debug.CONFIG, "reloaded: %d zones added, %d removed", added, removed)
}

// Main runs the orchestrator next to the Gio main loop and exits the
// process when it stops.
func Main(cfg *config.Manager, debug bool) {
	go func() {
		o := NewOrchestrator(cfg, debug)
		if err := o.Run(context.Background()); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}
