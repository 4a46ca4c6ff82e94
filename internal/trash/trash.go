// Package trash moves dropped files into the freedesktop.org trash, so
// a trash zone never deletes anything outright.
//
// Layout under $XDG_DATA_HOME/Trash:
//   - files/ holds the trashed files
//   - info/ holds one NAME.trashinfo per file:
//
//     [Trash Info]
//     Path=/original/path/to/file
//     DeletionDate=2024-01-15T10:30:45
package trash

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/justyntemme/dropzone/internal/debug"
)

const dateLayout = "2006-01-02T15:04:05"

// Item is a file or directory in the trash
type Item struct {
	Name         string    // Name in the trash
	OriginalPath string    // Full path it was trashed from
	TrashPath    string    // Current path in trash
	DeletedAt    time.Time // When it was trashed
	IsDir        bool
}

// Bin is one trash directory.
type Bin struct {
	dir string
	now func() time.Time
}

// NewBin returns the trash under dataHome. An empty dataHome uses
// $XDG_DATA_HOME, then ~/.local/share.
func NewBin(dataHome string) (*Bin, error) {
	if dataHome == "" {
		dataHome = os.Getenv("XDG_DATA_HOME")
	}
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("no trash location: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return &Bin{dir: filepath.Join(dataHome, "Trash"), now: time.Now}, nil
}

// Path returns the trash directory.
func (b *Bin) Path() string { return b.dir }

func (b *Bin) filesDir() string { return filepath.Join(b.dir, "files") }
func (b *Bin) infoDir() string  { return filepath.Join(b.dir, "info") }

// Move moves path into the trash and returns where it went.
func (b *Bin) Move(path string) (string, error) {
	if err := os.MkdirAll(b.filesDir(), 0o700); err != nil {
		return "", fmt.Errorf("cannot create trash files directory: %w", err)
	}
	if err := os.MkdirAll(b.infoDir(), 0o700); err != nil {
		return "", fmt.Errorf("cannot create trash info directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(absPath); err != nil {
		return "", err
	}

	infoFile, destName, err := b.reserve(filepath.Base(absPath))
	if err != nil {
		return "", err
	}
	infoPath := filepath.Join(b.infoDir(), destName+".trashinfo")
	escaped := (&url.URL{Path: absPath}).EscapedPath()
	_, err = fmt.Fprintf(infoFile, "[Trash Info]\nPath=%s\nDeletionDate=%s\n", escaped, b.now().Format(dateLayout))
	if cerr := infoFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(infoPath)
		return "", fmt.Errorf("cannot write trashinfo file: %w", err)
	}

	destPath := filepath.Join(b.filesDir(), destName)
	if err := os.Rename(absPath, destPath); err != nil {
		// Clean up info file on failure
		os.Remove(infoPath)
		return "", fmt.Errorf("cannot move file to trash: %w", err)
	}
	debug.Log(debug.FS, "trashed %s as %s", absPath, destName)
	return destPath, nil
}

// reserve creates the info file of a name nothing else in the trash
// uses. The info file is created first so two movers never pick the
// same name.
func (b *Bin) reserve(baseName string) (*os.File, string, error) {
	ext := filepath.Ext(baseName)
	stem := strings.TrimSuffix(baseName, ext)
	destName := baseName
	for counter := 1; ; counter++ {
		f, err := os.OpenFile(filepath.Join(b.infoDir(), destName+".trashinfo"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			if _, err := os.Lstat(filepath.Join(b.filesDir(), destName)); errors.Is(err, os.ErrNotExist) {
				return f, destName, nil
			}
			// A file without its info; leave both alone
			f.Close()
			os.Remove(f.Name())
		} else if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("cannot create trashinfo file: %w", err)
		}
		destName = fmt.Sprintf("%s.%d%s", stem, counter, ext)
	}
}

// List returns all items currently in the trash.
func (b *Bin) List() ([]Item, error) {
	entries, err := os.ReadDir(b.filesDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // Empty trash
		}
		return nil, err
	}

	var items []Item
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		item := Item{
			Name:      entry.Name(),
			TrashPath: filepath.Join(b.filesDir(), entry.Name()),
			DeletedAt: info.ModTime(),
			IsDir:     entry.IsDir(),
		}
		if origPath, delTime, err := parseTrashInfo(filepath.Join(b.infoDir(), entry.Name()+".trashinfo")); err == nil {
			item.OriginalPath = origPath
			if !delTime.IsZero() {
				item.DeletedAt = delTime
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func parseTrashInfo(path string) (originalPath string, deletionDate time.Time, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", time.Time{}, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if encoded, ok := strings.CutPrefix(line, "Path="); ok {
			originalPath = encoded
			if decoded, err := url.PathUnescape(encoded); err == nil {
				originalPath = decoded
			}
		} else if date, ok := strings.CutPrefix(line, "DeletionDate="); ok {
			if t, err := time.ParseInLocation(dateLayout, date, time.Local); err == nil {
				deletionDate = t
			}
		}
	}
	return originalPath, deletionDate, scanner.Err()
}
