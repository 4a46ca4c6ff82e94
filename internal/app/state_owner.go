package app

import (
	"image"
	"sync"

	"github.com/justyntemme/dropzone/internal/config"
	"github.com/justyntemme/dropzone/internal/debug"
	"github.com/justyntemme/dropzone/internal/dnd"
	"github.com/justyntemme/dropzone/internal/fs"
	"github.com/justyntemme/dropzone/internal/store"
	"github.com/justyntemme/dropzone/internal/ui"
)

// StateOwner is the single source of truth for what the panel shows.
// The simulation loop, the worker response loop and the config watcher
// write to it; the UI goroutine reads it through Snapshot.
//
// All mutations go through StateOwner methods which hold the mutex.
type StateOwner struct {
	mu sync.RWMutex

	zones     []ui.ZoneView
	drops     []ui.DropView // Newest first
	maxDrops  int
	hovered   string // Zone under the current drag, empty if none
	stats     dnd.Stats
	progress  string
	configErr string

	// Settings from the journal, handed to the UI goroutine once
	settings      map[string]string
	settingsFresh bool

	invalidate func()
}

// NewStateOwner creates a state owner keeping at most maxDrops drops.
// invalidate is called after every change that affects the panel.
func NewStateOwner(maxDrops int, invalidate func()) *StateOwner {
	if maxDrops <= 0 {
		maxDrops = 20
	}
	if invalidate == nil {
		invalidate = func() {}
	}
	return &StateOwner{maxDrops: maxDrops, invalidate: invalidate}
}

// Snapshot returns a copy of the state for one frame
// Uses RLock for concurrent read access
func (s *StateOwner) Snapshot() ui.PanelState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zones := make([]ui.ZoneView, len(s.zones))
	copy(zones, s.zones)
	drops := make([]ui.DropView, len(s.drops))
	for i, d := range s.drops {
		d.Files = append([]ui.FileView(nil), d.Files...)
		drops[i] = d
	}
	return ui.PanelState{
		Zones:       zones,
		Drops:       drops,
		Protocol:    s.dragStatusLocked(),
		Targets:     s.stats.ActiveTargets,
		Queued:      s.stats.QueuedOps,
		Progress:    s.progress,
		ConfigError: s.configErr,
	}
}

func (s *StateOwner) dragStatusLocked() string {
	switch {
	case s.hovered != "":
		return "over " + s.hovered
	case s.stats.PendingAdds+s.stats.PendingRemoves > 0:
		return "updating targets"
	default:
		return "idle"
	}
}

// ZoneNames returns the configured zone names in order.
func (s *StateOwner) ZoneNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.zones))
	for i, z := range s.zones {
		names[i] = z.Name
	}
	return names
}

// SetZones replaces the zone list, keeping drop counts of zones that
// still exist.
func (s *StateOwner) SetZones(zones []config.Zone) {
	s.mu.Lock()
	counts := make(map[string]int, len(s.zones))
	for _, z := range s.zones {
		counts[z.Name] = z.Drops
	}
	views := make([]ui.ZoneView, len(zones))
	for i, z := range zones {
		views[i] = ui.ZoneView{
			Name:       z.Name,
			Rect:       image.Rect(z.X, z.Y, z.X+z.Width, z.Y+z.Height),
			ExpandDirs: z.ExpandDirs,
			Trash:      z.Trash,
			Hovered:    z.Name == s.hovered,
			Drops:      counts[z.Name],
		}
	}
	s.zones = views
	s.mu.Unlock()
	s.invalidate()
}

// SetHover marks zone as under the drag or not.
func (s *StateOwner) SetHover(zone string, on bool) {
	s.mu.Lock()
	switch {
	case on:
		s.hovered = zone
	case s.hovered == zone:
		s.hovered = ""
	}
	for i := range s.zones {
		s.zones[i].Hovered = s.zones[i].Name == s.hovered
	}
	s.mu.Unlock()
	s.invalidate()
}

// AddDrop records a drop that is still being resolved.
func (s *StateOwner) AddDrop(d ui.DropView) {
	s.mu.Lock()
	for i := range s.zones {
		if s.zones[i].Name == d.Zone {
			s.zones[i].Drops++
		}
	}
	s.drops = append([]ui.DropView{d}, s.drops...)
	if len(s.drops) > s.maxDrops {
		s.drops = s.drops[:s.maxDrops]
	}
	s.mu.Unlock()
	debug.Log(debug.APP, "drop added: session=%s zone=%s files=%d", d.Session, d.Zone, len(d.Files))
	s.invalidate()
}

// SetDropID assigns the journal id to the drop of session.
func (s *StateOwner) SetDropID(session string, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.drops {
		if s.drops[i].Session == session {
			s.drops[i].ID = id
			return true
		}
	}
	return false
}

// DropPaths returns the dropped paths of drop id, as delivered.
func (s *StateOwner) DropPaths(id int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.drops {
		if d.ID == id {
			paths := make([]string, len(d.Files))
			for i, f := range d.Files {
				paths[i] = f.Path
			}
			return paths
		}
	}
	return nil
}

// ResolveDrop replaces the files of drop id by what the fs worker found.
func (s *StateOwner) ResolveDrop(id int64, entries []fs.Entry, missing []string) bool {
	s.mu.Lock()
	found := false
	for i := range s.drops {
		if s.drops[i].ID != id {
			continue
		}
		files := make([]ui.FileView, 0, len(entries)+len(missing))
		for _, e := range entries {
			files = append(files, ui.FileView{Path: e.Path, Size: e.Size, IsDir: e.IsDir})
		}
		for _, p := range missing {
			files = append(files, ui.FileView{Path: p, Size: -1, Missing: true})
		}
		s.drops[i].Files = files
		s.drops[i].Pending = false
		found = true
		break
	}
	s.mu.Unlock()
	if found {
		s.invalidate()
	}
	return found
}

// SetJournal replaces the listed drops with the journal's, keeping drops
// that have not been journaled yet at the front.
func (s *StateOwner) SetJournal(drops []store.Drop) {
	s.mu.Lock()
	var list []ui.DropView
	for _, d := range s.drops {
		if d.ID <= 0 {
			list = append(list, d)
		}
	}
	known := make(map[int64]ui.DropView, len(s.drops))
	for _, d := range s.drops {
		if d.ID > 0 {
			known[d.ID] = d
		}
	}
	for _, d := range drops {
		if k, ok := known[d.ID]; ok {
			list = append(list, k)
			continue
		}
		files := make([]ui.FileView, len(d.Files))
		for i, p := range d.Files {
			files[i] = ui.FileView{Path: p, Size: -1}
		}
		list = append(list, ui.DropView{
			ID:      d.ID,
			Session: d.Session,
			Zone:    d.Zone,
			Pos:     image.Pt(d.X, d.Y),
			At:      d.At,
			Files:   files,
		})
	}
	if len(list) > s.maxDrops {
		list = list[:s.maxDrops]
	}
	s.drops = list
	s.mu.Unlock()
	s.invalidate()
}

// UnstattedPaths returns the files of journaled drops whose size is not
// known yet.
func (s *StateOwner) UnstattedPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var paths []string
	seen := make(map[string]bool)
	for _, d := range s.drops {
		if d.Pending {
			continue
		}
		for _, f := range d.Files {
			if f.Size < 0 && !f.Missing && !seen[f.Path] {
				seen[f.Path] = true
				paths = append(paths, f.Path)
			}
		}
	}
	return paths
}

// ApplyFileStats fills in file details for every listed drop.
func (s *StateOwner) ApplyFileStats(entries []fs.Entry, missing []string) {
	byPath := make(map[string]fs.Entry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	gone := make(map[string]bool, len(missing))
	for _, p := range missing {
		gone[p] = true
	}

	s.mu.Lock()
	for i := range s.drops {
		for j := range s.drops[i].Files {
			f := &s.drops[i].Files[j]
			if e, ok := byPath[f.Path]; ok {
				f.Size, f.IsDir, f.Missing = e.Size, e.IsDir, false
			} else if gone[f.Path] {
				f.Missing = true
			}
		}
	}
	s.mu.Unlock()
	s.invalidate()
}

// SetStats stores the bridge counters and reports whether they changed.
func (s *StateOwner) SetStats(st dnd.Stats) bool {
	s.mu.Lock()
	changed := s.stats != st
	s.stats = st
	s.mu.Unlock()
	if changed {
		s.invalidate()
	}
	return changed
}

func (s *StateOwner) SetProgress(label string) {
	s.mu.Lock()
	s.progress = label
	s.mu.Unlock()
	s.invalidate()
}

func (s *StateOwner) SetConfigError(msg string) {
	s.mu.Lock()
	s.configErr = msg
	s.mu.Unlock()
	s.invalidate()
}

// SetSettings stores settings read from the journal for the UI goroutine.
func (s *StateOwner) SetSettings(settings map[string]string) {
	s.mu.Lock()
	s.settings = settings
	s.settingsFresh = true
	s.mu.Unlock()
	s.invalidate()
}

// TakeSettings returns settings stored since the last call, if any.
func (s *StateOwner) TakeSettings() (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settingsFresh {
		return nil, false
	}
	s.settingsFresh = false
	return s.settings, true
}
