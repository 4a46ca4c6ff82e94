package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigWatcherNotifies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewConfigWatcher(path, 20)
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(`{"sim":{"tickRate":30}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Notify():
	case <-time.After(5 * time.Second):
		t.Fatal("no reload signal after writing the config")
	}
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	w, err := NewConfigWatcher(path, 20)
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "journal.db"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Notify():
		t.Error("reload signal for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConfigWatcherCloseTwice(t *testing.T) {
	w, err := NewConfigWatcher(filepath.Join(t.TempDir(), "config.json"), 0)
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
