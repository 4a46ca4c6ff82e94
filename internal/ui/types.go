package ui

import (
	"image"
	"time"

	"github.com/dustin/go-humanize"
)

type PanelAction int

const (
	ActionNone PanelAction = iota
	ActionFilterZone       // Zone filter changed; Zone is empty for all zones
	ActionChangeTheme      // DarkMode carries the new setting
	ActionPruneJournal     // Trim the journal to its configured size
	ActionToggleThumbnails // Thumbnails carries the new setting
	ActionOpenFile         // Open Path with the default application
)

// PanelEvent is what one frame of the panel asks the orchestrator to do.
type PanelEvent struct {
	Action     PanelAction
	Zone       string
	DarkMode   bool
	Thumbnails bool
	Path       string
}

// ZoneView is a drop zone as shown in the panel.
type ZoneView struct {
	Name       string
	Rect       image.Rectangle // In drop window coordinates
	ExpandDirs bool
	Trash      bool // Drops are moved to the trash
	Hovered    bool // A drag is currently over the zone
	Drops      int  // Drops received since start
}

// FileView is one dropped file after the fs worker resolved it.
type FileView struct {
	Path    string
	Size    int64
	IsDir   bool
	Missing bool
}

// DropView is one journaled drop.
type DropView struct {
	ID      int64
	Session string
	Zone    string
	Pos     image.Point
	At      time.Time
	Files   []FileView
	Pending bool // Still being expanded by the fs worker
}

// PanelState is the snapshot the orchestrator hands the panel each frame.
type PanelState struct {
	Zones       []ZoneView
	Drops       []DropView // Newest first
	Protocol    string     // Session state of the bridge
	Targets     int
	Queued      int
	Progress    string // Directory expansion progress, if any
	ConfigError string
}

// formatSize renders a byte count with binary units, e.g. "1.5 KiB".
func formatSize(bytes int64) string {
	if bytes < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(bytes))
}
