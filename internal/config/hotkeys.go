package config

import (
	"strings"

	"gioui.org/io/event"
	"gioui.org/io/key"
)

// Hotkey is a parsed keyboard shortcut
type Hotkey struct {
	Key       key.Name
	Modifiers key.Modifiers
}

var modifierNames = map[string]key.Modifiers{
	"ctrl": key.ModCtrl, "control": key.ModCtrl,
	"shift": key.ModShift,
	"alt": key.ModAlt, "option": key.ModAlt,
	"super": key.ModSuper, "meta": key.ModSuper, "win": key.ModSuper,
}

// namedKeys maps lower case key names to Gio's
var namedKeys = map[string]key.Name{
	"f1": key.NameF1, "f2": key.NameF2, "f3": key.NameF3, "f4": key.NameF4,
	"f5": key.NameF5, "f6": key.NameF6, "f7": key.NameF7, "f8": key.NameF8,
	"f9": key.NameF9, "f10": key.NameF10, "f11": key.NameF11, "f12": key.NameF12,

	"up": key.NameUpArrow, "down": key.NameDownArrow,
	"left": key.NameLeftArrow, "right": key.NameRightArrow,
	"home": key.NameHome, "end": key.NameEnd,
	"pageup": key.NamePageUp, "pgup": key.NamePageUp,
	"pagedown": key.NamePageDown, "pgdn": key.NamePageDown,

	"enter": key.NameReturn, "return": key.NameReturn,
	"tab": key.NameTab, "space": key.NameSpace,
	"backspace": key.NameDeleteBackward,
	"delete": key.NameDeleteForward, "del": key.NameDeleteForward,
	"escape": key.NameEscape, "esc": key.NameEscape,
}

// shiftedNumbers maps number keys to what Gio reports with Shift held
// on a US layout
var shiftedNumbers = map[string]string{
	"1": "!", "2": "@", "3": "#", "4": "$", "5": "%",
	"6": "^", "7": "&", "8": "*", "9": "(", "0": ")",
}

// ParseHotkey parses a shortcut like "Ctrl+Shift+P". Unknown key names
// are kept as they are.
func ParseHotkey(s string) Hotkey {
	var h Hotkey
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m, ok := modifierNames[strings.ToLower(part)]; ok {
			h.Modifiers |= m
			continue
		}
		h.Key = parseKeyName(part)
	}
	if h.Modifiers.Contain(key.ModShift) {
		if shifted, ok := shiftedNumbers[string(h.Key)]; ok {
			h.Key = key.Name(shifted)
		}
	}
	return h
}

func parseKeyName(s string) key.Name {
	if len(s) == 1 {
		return key.Name(strings.ToUpper(s))
	}
	if n, ok := namedKeys[strings.ToLower(s)]; ok {
		return n
	}
	return key.Name(s)
}

// Matches reports whether k is this shortcut, with exactly its modifiers
func (h Hotkey) Matches(k key.Event) bool {
	return h.Key != "" && k.Name == h.Key && k.Modifiers == h.Modifiers
}

func (h Hotkey) IsEmpty() bool {
	return h.Key == ""
}

// String returns the shortcut in the form ParseHotkey reads
func (h Hotkey) String() string {
	if h.Key == "" {
		return ""
	}
	var parts []string
	for _, m := range []struct {
		mod  key.Modifiers
		name string
	}{{key.ModCtrl, "Ctrl"}, {key.ModShift, "Shift"}, {key.ModAlt, "Alt"}, {key.ModSuper, "Super"}} {
		if h.Modifiers.Contain(m.mod) {
			parts = append(parts, m.name)
		}
	}
	keyStr := string(h.Key)
	if h.Modifiers.Contain(key.ModShift) {
		for plain, shifted := range shiftedNumbers {
			if shifted == keyStr {
				keyStr = plain
			}
		}
	}
	return strings.Join(append(parts, keyStr), "+")
}

// Filter returns a key.Filter that matches this hotkey
func (h Hotkey) Filter(focus event.Tag) key.Filter {
	return key.Filter{
		Focus:    focus,
		Name:     h.Key,
		Required: h.Modifiers,
	}
}

// HotkeysConfig holds the panel keyboard shortcuts, like "Ctrl+Shift+P".
// An empty string disables the shortcut.
type HotkeysConfig struct {
	FocusSearch      string `json:"focusSearch"`
	Escape           string `json:"escape"` // Clears the search, then the zone filter
	Prune            string `json:"prune"`
	ToggleTheme      string `json:"toggleTheme"`
	ToggleThumbnails string `json:"toggleThumbnails"`
	NextZone         string `json:"nextZone"`
	PrevZone         string `json:"prevZone"`
}

// DefaultHotkeys returns the default panel shortcuts
func DefaultHotkeys() HotkeysConfig {
	return HotkeysConfig{
		FocusSearch:      "Ctrl+F",
		Escape:           "Escape",
		Prune:            "Ctrl+Shift+P",
		ToggleTheme:      "Ctrl+D",
		ToggleThumbnails: "Ctrl+T",
		NextZone:         "Ctrl+Tab",
		PrevZone:         "Ctrl+Shift+Tab",
	}
}

// HotkeyMatcher holds the parsed panel shortcuts
type HotkeyMatcher struct {
	FocusSearch      Hotkey
	Escape           Hotkey
	Prune            Hotkey
	ToggleTheme      Hotkey
	ToggleThumbnails Hotkey
	NextZone         Hotkey
	PrevZone         Hotkey
}

// NewHotkeyMatcher creates a matcher from config
func NewHotkeyMatcher(cfg HotkeysConfig) *HotkeyMatcher {
	return &HotkeyMatcher{
		FocusSearch:      ParseHotkey(cfg.FocusSearch),
		Escape:           ParseHotkey(cfg.Escape),
		Prune:            ParseHotkey(cfg.Prune),
		ToggleTheme:      ParseHotkey(cfg.ToggleTheme),
		ToggleThumbnails: ParseHotkey(cfg.ToggleThumbnails),
		NextZone:         ParseHotkey(cfg.NextZone),
		PrevZone:         ParseHotkey(cfg.PrevZone),
	}
}

// Filters returns one key.Filter per configured shortcut, without
// duplicates.
func (m *HotkeyMatcher) Filters(focus event.Tag) []event.Filter {
	all := []Hotkey{m.FocusSearch, m.Escape, m.Prune, m.ToggleTheme, m.ToggleThumbnails, m.NextZone, m.PrevZone}
	seen := make(map[Hotkey]bool, len(all))
	filters := make([]event.Filter, 0, len(all))
	for _, hk := range all {
		if hk.IsEmpty() || seen[hk] {
			continue
		}
		seen[hk] = true
		filters = append(filters, hk.Filter(focus))
	}
	return filters
}
