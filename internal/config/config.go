package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/justyntemme/dropzone/internal/debug"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Display DisplayConfig `json:"display"`
	Sim     SimConfig     `json:"sim"`
	DnD     DnDConfig     `json:"dnd"`
	Zones   []Zone        `json:"zones"`
	Journal JournalConfig `json:"journal"`
	Panel   PanelConfig   `json:"panel"`
	Hotkeys HotkeysConfig `json:"hotkeys"`
}

// DisplayConfig holds the X11 connection and drop window settings
type DisplayConfig struct {
	Name   string `json:"name"` // X display, empty for $DISPLAY
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SimConfig holds simulation loop settings
type SimConfig struct {
	TickRate int `json:"tickRate"` // Updates per second
}

// DnDConfig holds drag and drop protocol settings
type DnDConfig struct {
	Types            []string `json:"types"`   // Accepted data types, most preferred first
	Actions          []string `json:"actions"` // Accepted XDND action atom names
	PayloadTimeoutMs int      `json:"payloadTimeoutMs"`
}

// PayloadTimeout returns the drop data timeout, zero for none
func (c DnDConfig) PayloadTimeout() time.Duration {
	return time.Duration(c.PayloadTimeoutMs) * time.Millisecond
}

// Zone is a named drop target rectangle in drop window coordinates
type Zone struct {
	Name       string `json:"name"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ExpandDirs bool   `json:"expandDirs"` // Walk dropped directories into their files
	Trash      bool   `json:"trash"`      // Move dropped files to the trash
}

// JournalConfig holds drop journal settings
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"` // Empty for the default next to config.json
	Keep    int    `json:"keep"` // Drops kept after pruning, 0 keeps all
}

// PanelConfig holds inspector panel settings
type PanelConfig struct {
	Enabled       bool   `json:"enabled"`
	Theme         string `json:"theme"` // "light" or "dark"
	Thumbnails    bool   `json:"thumbnails"`
	ThumbnailSize int    `json:"thumbnailSize"` // Max edge in pixels
	RecentDrops   int    `json:"recentDrops"`   // Drops listed in the panel
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error  // Stores parsing or validation error if config failed to load
	display  string // -display override, never saved
}

// NewManager creates a configuration manager for the file at path.
// An empty path uses ConfigPath().
func NewManager(path string) *Manager {
	if path == "" {
		path = ConfigPath()
	}
	return &Manager{
		config: DefaultConfig(),
		path:   path,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			Title:  "dropzone",
			Width:  480,
			Height: 320,
		},
		Sim: SimConfig{
			TickRate: 60,
		},
		DnD: DnDConfig{
			Types:   []string{"text/uri-list"},
			Actions: []string{"XdndActionCopy", "XdndActionMove", "XdndActionLink"},
		},
		Zones: []Zone{
			{Name: "inbox", X: 0, Y: 0, Width: 240, Height: 320},
			{Name: "archive", X: 240, Y: 0, Width: 240, Height: 320, ExpandDirs: true},
		},
		Journal: JournalConfig{
			Enabled: true,
			Keep:    500,
		},
		Panel: PanelConfig{
			Enabled:       true,
			Theme:         "light",
			Thumbnails:    true,
			ThumbnailSize: 96,
			RecentDrops:   20,
		},
		Hotkeys: DefaultHotkeys(),
	}
}

// ConfigPath returns the config file path: ~/.config/dropzone/config.json
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dropzone", "config.json")
}

// Validate reports the first problem with c, or nil
func (c *Config) Validate() error {
	if c.Sim.TickRate < 1 || c.Sim.TickRate > 1000 {
		return fmt.Errorf("sim.tickRate must be between 1 and 1000, got %d", c.Sim.TickRate)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.DnD.PayloadTimeoutMs < 0 {
		return errors.New("dnd.payloadTimeoutMs must not be negative")
	}
	for _, t := range c.DnD.Types {
		if t == "" {
			return errors.New("dnd.types contains an empty type")
		}
	}
	if c.Journal.Keep < 0 {
		return errors.New("journal.keep must not be negative")
	}

	seen := make(map[string]bool, len(c.Zones))
	for i, z := range c.Zones {
		if z.Name == "" {
			return fmt.Errorf("zone %d has no name", i)
		}
		if seen[z.Name] {
			return fmt.Errorf("zone %q is defined twice", z.Name)
		}
		seen[z.Name] = true
		if z.Width <= 0 || z.Height <= 0 {
			return fmt.Errorf("zone %q is empty (%dx%d)", z.Name, z.Width, z.Height)
		}
		if z.Trash && z.ExpandDirs {
			return fmt.Errorf("zone %q cannot both expand dirs and trash", z.Name)
		}
		for _, o := range c.Zones[:i] {
			if z.overlaps(o) {
				return fmt.Errorf("zones %q and %q overlap", o.Name, z.Name)
			}
		}
	}
	return nil
}

func (z Zone) overlaps(o Zone) bool {
	return z.X < o.X+o.Width && o.X < z.X+z.Width &&
		z.Y < o.Y+o.Height && o.Y < z.Y+z.Height
}

// Path returns the config file path the manager loads from
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Load reads the configuration from the config file
// If the file doesn't exist, creates it with defaults
// If parsing or validation fails, stores the error and returns defaults
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parseErr = nil

	// Ensure config directory exists
	configDir := filepath.Dir(m.path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		log.Printf("Config: failed to create directory %s: %v", configDir, err)
		return err
	}

	// Try to read existing config
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		// Create default config file
		log.Printf("Config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			log.Printf("Config: failed to save default config: %v", saveErr)
			return saveErr
		}
		return nil
	}
	if err != nil {
		log.Printf("Config: failed to read %s: %v", m.path, err)
		return err
	}

	// Missing keys keep their defaults
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		// Store error for UI display, use defaults
		log.Printf("Config: JSON parse error: %v", err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil // Don't return error - we're using defaults
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Config: invalid config: %v", err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil
	}

	debug.Log(debug.CONFIG, "loaded %s: %d zones, tick rate %d", m.path, len(cfg.Zones), cfg.Sim.TickRate)
	m.config = cfg
	return nil
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	cfg := *m.config
	cfg.Zones = append([]Zone(nil), m.config.Zones...)
	if m.display != "" {
		cfg.Display.Name = m.display
	}
	return cfg
}

// OverrideDisplay makes Get report name as the X display, whatever the
// file says. The override is not saved.
func (m *Manager) OverrideDisplay(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.display = name
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// GetZones returns a copy of the configured drop zones
func (m *Manager) GetZones() []Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Zone(nil), m.config.Zones...)
}

// IsDarkMode returns true if the panel uses the dark theme
func (m *Manager) IsDarkMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Panel.Theme == "dark"
}

// SetTheme updates the panel theme and saves it. A config file that
// failed to load is left alone so the user's edits are not overwritten.
func (m *Manager) SetTheme(theme string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Panel.Theme = theme
	if m.parseErr != nil {
		return
	}
	if err := m.saveUnlocked(); err != nil {
		log.Printf("Config: failed to save theme: %v", err)
	}
}

// JournalPath returns the drop journal database path
func (m *Manager) JournalPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.Journal.Path != "" {
		return m.config.Journal.Path
	}
	return filepath.Join(filepath.Dir(m.path), "journal.db")
}

// GenerateConfig backs up the config at path and writes a fresh default
// config. An empty path uses ConfigPath().
// Returns the backup path if a backup was created, or empty string if no existing config
func GenerateConfig(path string) (backupPath string, err error) {
	if path == "" {
		path = ConfigPath()
	}

	// Check if existing config exists
	if _, err := os.Stat(path); err == nil {
		// Create backup with timestamp
		timestamp := time.Now().Format("20060102-150405")
		backupPath = filepath.Join(filepath.Dir(path), "config.backup."+timestamp+".json")

		// Read existing config
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read existing config: %w", err)
		}

		// Write backup
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
	}

	// Ensure config directory exists
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return backupPath, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write fresh default config
	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return backupPath, fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return backupPath, fmt.Errorf("failed to write config: %w", err)
	}

	return backupPath, nil
}
