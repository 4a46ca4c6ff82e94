package trash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestBin(t *testing.T) *Bin {
	t.Helper()
	b, err := NewBin(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	b.now = func() time.Time { return time.Date(2026, 1, 15, 10, 30, 45, 0, time.Local) }
	return b
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMove(t *testing.T) {
	b := newTestBin(t)
	src := filepath.Join(t.TempDir(), "my notes.txt")
	writeFile(t, src, "hello")

	dest, err := b.Move(src)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still exists: %v", err)
	}
	if data, err := os.ReadFile(dest); err != nil || string(data) != "hello" {
		t.Errorf("trashed file = %q, %v", data, err)
	}

	info, err := os.ReadFile(filepath.Join(b.Path(), "info", "my notes.txt.trashinfo"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(info), "my%20notes.txt") || !strings.Contains(string(info), "DeletionDate=2026-01-15T10:30:45") {
		t.Errorf("trashinfo = %s", info)
	}
	if strings.Contains(string(info), "%2F") {
		t.Errorf("slashes escaped in trashinfo: %s", info)
	}
}

func TestMoveNameConflicts(t *testing.T) {
	b := newTestBin(t)
	var dests []string
	for i := 0; i < 3; i++ {
		src := filepath.Join(t.TempDir(), "photo.jpg")
		writeFile(t, src, "x")
		dest, err := b.Move(src)
		if err != nil {
			t.Fatalf("Move %d: %v", i, err)
		}
		dests = append(dests, filepath.Base(dest))
	}
	want := []string{"photo.jpg", "photo.1.jpg", "photo.2.jpg"}
	for i := range want {
		if dests[i] != want[i] {
			t.Errorf("dests = %v, want %v", dests, want)
			break
		}
	}
}

func TestMoveSkipsOrphanedFiles(t *testing.T) {
	b := newTestBin(t)
	// files/a exists without its info file
	writeFile(t, filepath.Join(b.Path(), "files", "a"), "orphan")

	src := filepath.Join(t.TempDir(), "a")
	writeFile(t, src, "new")
	dest, err := b.Move(src)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dest) != "a.1" {
		t.Errorf("dest = %s", dest)
	}
	if _, err := os.Stat(filepath.Join(b.Path(), "info", "a.trashinfo")); !os.IsNotExist(err) {
		t.Error("info file created for the orphan")
	}
}

func TestMoveMissing(t *testing.T) {
	b := newTestBin(t)
	if _, err := b.Move(filepath.Join(t.TempDir(), "nope")); !os.IsNotExist(err) {
		t.Errorf("Move of a missing file = %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(b.Path(), "info"))
	if len(entries) != 0 {
		t.Errorf("info left behind: %v", entries)
	}
}

func TestList(t *testing.T) {
	b := newTestBin(t)
	if items, err := b.List(); err != nil || len(items) != 0 {
		t.Fatalf("empty List = %v, %v", items, err)
	}

	dir := filepath.Join(t.TempDir(), "src dir")
	writeFile(t, filepath.Join(dir, "x.go"), "package x")
	if _, err := b.Move(dir); err != nil {
		t.Fatal(err)
	}

	items, err := b.List()
	if err != nil || len(items) != 1 {
		t.Fatalf("List = %v, %v", items, err)
	}
	it := items[0]
	if it.OriginalPath != dir || !it.IsDir || it.Name != "src dir" {
		t.Errorf("item = %+v", it)
	}
	if !it.DeletedAt.Equal(b.now()) {
		t.Errorf("deleted at %v", it.DeletedAt)
	}
}
