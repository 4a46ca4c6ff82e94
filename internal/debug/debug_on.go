//go:build debug

// Package debug provides a centralized, categorized debug logging system.
// Build with -tags debug to enable logging.
package debug

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Enabled indicates whether debug logging is active
const Enabled = true

// Category represents a debug logging category
type Category string

const (
	// Core categories
	APP    Category = "APP"    // Orchestration, lifecycle, simulation loop
	DND    Category = "DND"    // Drag and drop session state changes
	TARGET Category = "TARGET" // Drop target registration and hit testing
	X11    Category = "X11"    // Display connection, windows, atoms
	STORE  Category = "STORE"  // Drop journal
	FS     Category = "FS"     // Dropped directory expansion
	UI     Category = "UI"     // Inspector panel
	CONFIG Category = "CONFIG" // Config load and hot reload

	// Verbose categories
	XDND  Category = "XDND"  // Every XDND client message in and out
	QUEUE Category = "QUEUE" // Operation queue push/drain
)

var (
	enabledCategories = map[Category]bool{
		APP:    true,
		DND:    true,
		TARGET: true,
		X11:    true,
		STORE:  true,
		FS:     true,
		UI:     true,
		CONFIG: true,
		// Verbose categories disabled by default
		XDND:  false,
		QUEUE: false,
	}
	categoryMu sync.RWMutex

	logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)

	// Category tags are colored when stderr is a terminal
	colorTags = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
)

var tagColors = map[Category]string{
	APP:    "\x1b[36m",
	DND:    "\x1b[32m",
	XDND:   "\x1b[92m",
	TARGET: "\x1b[33m",
	QUEUE:  "\x1b[93m",
	X11:    "\x1b[35m",
	STORE:  "\x1b[34m",
	FS:     "\x1b[94m",
	UI:     "\x1b[95m",
	CONFIG: "\x1b[96m",
}

func tag(cat Category) string {
	if !colorTags {
		return "[" + string(cat) + "]"
	}
	c, ok := tagColors[cat]
	if !ok {
		c = "\x1b[37m"
	}
	return c + "[" + string(cat) + "]\x1b[0m"
}

func init() {
	// Format: DROPZONE_DEBUG=DND,X11 or DROPZONE_DEBUG=all or DROPZONE_DEBUG=none
	if env := os.Getenv("DROPZONE_DEBUG"); env != "" {
		categoryMu.Lock()
		defer categoryMu.Unlock()

		env = strings.ToUpper(env)
		switch env {
		case "ALL":
			for cat := range enabledCategories {
				enabledCategories[cat] = true
			}
		case "NONE":
			for cat := range enabledCategories {
				enabledCategories[cat] = false
			}
		default:
			for cat := range enabledCategories {
				enabledCategories[cat] = false
			}
			for _, cat := range strings.Split(env, ",") {
				cat = strings.TrimSpace(cat)
				enabledCategories[Category(cat)] = true
			}
		}
	}
}

// Log logs a debug message for the specified category
func Log(cat Category, format string, args ...interface{}) {
	categoryMu.RLock()
	enabled := enabledCategories[cat]
	categoryMu.RUnlock()

	if !enabled {
		return
	}

	msg := fmt.Sprintf(format, args...)
	logger.Printf("%s %s", tag(cat), msg)
}

// Enable enables a debug category
func Enable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = true
	categoryMu.Unlock()
}

// Disable disables a debug category
func Disable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = false
	categoryMu.Unlock()
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}

// EnableAll enables all debug categories including verbose ones
func EnableAll() {
	categoryMu.Lock()
	for cat := range enabledCategories {
		enabledCategories[cat] = true
	}
	categoryMu.Unlock()
}

// DisableAll disables all debug categories
func DisableAll() {
	categoryMu.Lock()
	for cat := range enabledCategories {
		enabledCategories[cat] = false
	}
	categoryMu.Unlock()
}

// ListEnabled returns a slice of currently enabled categories
func ListEnabled() []Category {
	categoryMu.RLock()
	defer categoryMu.RUnlock()

	var enabled []Category
	for cat, on := range enabledCategories {
		if on {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}
