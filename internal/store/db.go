// Package store keeps the drop journal: every drop delivered to a zone,
// with its files, in a SQLite database owned by a worker goroutine.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/justyntemme/dropzone/internal/debug"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type EventType int

const (
	RecordDrop EventType = iota
	FetchRecent
	Prune
	FetchSettings
	SaveSetting
)

// Drop is one journaled drop.
type Drop struct {
	ID      int64
	Session string
	Zone    string
	X, Y    int
	Files   []string
	At      time.Time
}

type Request struct {
	Op    EventType
	Drop  Drop   // RecordDrop
	Limit int    // FetchRecent: max drops; Prune: drops to keep
	Zone  string // FetchRecent: only this zone, empty for all
	Key   string
	Value string
}

type Response struct {
	Op       EventType
	Drops    []Drop            // Newest first
	Pruned   int64             // Prune: drops deleted
	Settings map[string]string // Key-value settings
	Err      error
}

type DB struct {
	conn         *sql.DB
	RequestChan  chan Request
	ResponseChan chan Response
}

func NewDB() *DB {
	return &DB{
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
	}
}

// Open initializes the database connection and schema
func (d *DB) Open(dbPath string) error {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}

	// Pragmas are per connection and only the worker goroutine uses the db
	db.SetMaxOpenConns(1)

	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return err
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS drops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		zone TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		dropped_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS drops_zone ON drops (zone, id);
	CREATE TABLE IF NOT EXISTS drop_files (
		drop_id INTEGER NOT NULL REFERENCES drops(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		path TEXT NOT NULL,
		PRIMARY KEY (drop_id, position)
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	d.conn = db
	debug.Log(debug.STORE, "journal opened at %s", dbPath)
	return nil
}

func (d *DB) Start() {
	for req := range d.RequestChan {
		switch req.Op {
		case RecordDrop:
			d.handleRecord(req.Drop)
		case FetchRecent:
			d.handleFetchRecent(req.Zone, req.Limit)
		case Prune:
			d.handlePrune(req.Limit)
		case FetchSettings:
			d.handleFetchSettings()
		case SaveSetting:
			d.handleSaveSetting(req.Key, req.Value)
		}
	}
}

func (d *DB) handleRecord(drop Drop) {
	id, err := d.insertDrop(drop)
	if err != nil {
		log.Printf("Store Error recording drop: %v", err)
		// The drop is echoed back unjournaled (ID 0) so the caller can carry on
		d.ResponseChan <- Response{Op: RecordDrop, Drops: []Drop{drop}, Err: err}
		return
	}
	drop.ID = id
	debug.Log(debug.STORE, "recorded drop %d: zone=%s files=%d", id, drop.Zone, len(drop.Files))
	d.ResponseChan <- Response{Op: RecordDrop, Drops: []Drop{drop}}
}

func (d *DB) insertDrop(drop Drop) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if drop.At.IsZero() {
		drop.At = time.Now()
	}
	res, err := tx.Exec("INSERT INTO drops (session, zone, x, y, dropped_at) VALUES (?, ?, ?, ?, ?)",
		drop.Session, drop.Zone, drop.X, drop.Y, drop.At.UnixNano())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, path := range drop.Files {
		if _, err := tx.Exec("INSERT INTO drop_files (drop_id, position, path) VALUES (?, ?, ?)", id, i, path); err != nil {
			return 0, err
		}
	}
	return id, tx.Commit()
}

func (d *DB) handleFetchRecent(zone string, limit int) {
	drops, err := d.fetchRecent(zone, limit)
	if err != nil {
		d.ResponseChan <- Response{Op: FetchRecent, Err: err}
		return
	}
	d.ResponseChan <- Response{Op: FetchRecent, Drops: drops}
}

func (d *DB) fetchRecent(zone string, limit int) ([]Drop, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	query := "SELECT id, session, zone, x, y, dropped_at FROM drops"
	args := []any{}
	if zone != "" {
		query += " WHERE zone = ?"
		args = append(args, zone)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drops []Drop
	index := make(map[int64]int)
	for rows.Next() {
		var dr Drop
		var at int64
		if err := rows.Scan(&dr.ID, &dr.Session, &dr.Zone, &dr.X, &dr.Y, &at); err != nil {
			return nil, err
		}
		dr.At = time.Unix(0, at)
		index[dr.ID] = len(drops)
		drops = append(drops, dr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(drops) == 0 {
		return drops, nil
	}

	ids := make([]any, 0, len(drops))
	for _, dr := range drops {
		ids = append(ids, dr.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	fileRows, err := d.conn.Query(
		"SELECT drop_id, path FROM drop_files WHERE drop_id IN ("+placeholders+") ORDER BY drop_id, position", ids...)
	if err != nil {
		return nil, err
	}
	defer fileRows.Close()
	for fileRows.Next() {
		var id int64
		var path string
		if err := fileRows.Scan(&id, &path); err != nil {
			return nil, err
		}
		i := index[id]
		drops[i].Files = append(drops[i].Files, path)
	}
	return drops, fileRows.Err()
}

// handlePrune keeps the newest keep drops. keep <= 0 keeps everything.
func (d *DB) handlePrune(keep int) {
	if keep <= 0 {
		d.ResponseChan <- Response{Op: Prune}
		return
	}
	res, err := d.conn.Exec(
		"DELETE FROM drops WHERE id NOT IN (SELECT id FROM drops ORDER BY id DESC LIMIT ?)", keep)
	if err != nil {
		log.Printf("Store Error pruning journal: %v", err)
		d.ResponseChan <- Response{Op: Prune, Err: err}
		return
	}
	n, _ := res.RowsAffected()
	if _, err := d.conn.Exec("DELETE FROM drop_files WHERE drop_id NOT IN (SELECT id FROM drops)"); err != nil {
		log.Printf("Store Error pruning files: %v", err)
	}
	if n > 0 {
		debug.Log(debug.STORE, "pruned %d drops", n)
	}
	d.ResponseChan <- Response{Op: Prune, Pruned: n}
}

func (d *DB) handleFetchSettings() {
	rows, err := d.conn.Query("SELECT key, value FROM settings")
	if err != nil {
		d.ResponseChan <- Response{Op: FetchSettings, Err: err}
		return
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err == nil {
			settings[key] = value
		}
	}

	d.ResponseChan <- Response{Op: FetchSettings, Settings: settings}
}

func (d *DB) handleSaveSetting(key, value string) {
	// Use INSERT OR REPLACE to upsert the setting
	_, err := d.conn.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		log.Printf("Store Error saving setting: %v", err)
	}
	// Trigger a fetch to sync settings
	d.handleFetchSettings()
}

func (d *DB) Close() {
	if d.conn != nil {
		d.conn.Close()
	}
}
