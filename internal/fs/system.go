// Package fs resolves dropped paths into file entries on a worker
// goroutine, walking dropped directories for zones that ask for it.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/dropzone/internal/debug"
	"github.com/justyntemme/dropzone/internal/trash"
)

type OpType int

const (
	StatDrop   OpType = iota // Stat the dropped paths only
	ExpandDrop               // Walk dropped directories into their files
	CancelExpand
	TrashDrop // Move the dropped paths to the trash
)

// DefaultMaxDepth bounds ExpandDrop walks when the request does not.
const DefaultMaxDepth = 8

type Request struct {
	Op       OpType
	Paths    []string
	Gen      int64 // Generation counter to track stale requests
	DropID   int64 // Journal id of the drop, echoed back
	Zone     string
	MaxDepth int
}

type Entry struct {
	Name    string
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

type Response struct {
	Op        OpType
	Gen       int64
	DropID    int64
	Zone      string
	Entries   []Entry // Sorted by path
	Missing   []string
	Err       error
	Cancelled bool     // True if the walk was cancelled
	Trashed   []string // TrashDrop: trash location of each entry
}

// Progress represents a progress update during long walks
type Progress struct {
	Gen     int64
	Current int64
	Label   string
}

type System struct {
	RequestChan  chan Request
	ResponseChan chan Response
	ProgressChan chan Progress // Channel for progress updates
	Trash        *trash.Bin    // TrashDrop target, nil refuses trash drops

	// Cancellation support
	cancelMu   sync.Mutex
	cancelFunc context.CancelFunc
	currentGen int64
}

func NewSystem() *System {
	return &System{
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
		ProgressChan: make(chan Progress, 100), // Buffered to avoid blocking
	}
}

func (s *System) Start() {
	for req := range s.RequestChan {
		debug.Log(debug.FS, "Request: op=%d paths=%d gen=%d zone=%q", req.Op, len(req.Paths), req.Gen, req.Zone)

		switch req.Op {
		case CancelExpand:
			s.cancelMu.Lock()
			if s.cancelFunc != nil {
				debug.Log(debug.FS, "Cancelling current walk (gen %d)", s.currentGen)
				s.cancelFunc()
				s.cancelFunc = nil
			}
			s.cancelMu.Unlock()
			// Don't send a response for cancel - the walk goroutine will handle it

		case StatDrop:
			resp := s.statPaths(req.Paths)
			resp.Gen, resp.DropID, resp.Zone = req.Gen, req.DropID, req.Zone
			s.ResponseChan <- resp

		case TrashDrop:
			resp := s.trashPaths(req.Paths)
			resp.Gen, resp.DropID, resp.Zone = req.Gen, req.DropID, req.Zone
			s.ResponseChan <- resp

		case ExpandDrop:
			// Cancel any existing walk
			s.cancelMu.Lock()
			if s.cancelFunc != nil {
				debug.Log(debug.FS, "Cancelling previous walk before new one")
				s.cancelFunc()
			}
			ctx, cancel := context.WithCancel(context.Background())
			s.cancelFunc = cancel
			s.currentGen = req.Gen
			s.cancelMu.Unlock()

			// Run the walk in a goroutine so we can process cancel requests
			go func(ctx context.Context, req Request) {
				maxDepth := req.MaxDepth
				if maxDepth <= 0 {
					maxDepth = DefaultMaxDepth
				}
				resp := s.expandPaths(ctx, req.Paths, maxDepth, req.Gen)
				resp.Gen, resp.DropID, resp.Zone = req.Gen, req.DropID, req.Zone
				if ctx.Err() != nil {
					resp.Cancelled = true
					debug.Log(debug.FS, "Walk cancelled (gen %d)", req.Gen)
				}
				debug.Log(debug.FS, "ExpandDrop response: entries=%d missing=%d gen=%d cancelled=%v",
					len(resp.Entries), len(resp.Missing), resp.Gen, resp.Cancelled)
				s.ResponseChan <- resp
			}(ctx, req)
		}
	}
}

// skipDirRoots contains top-level directories to skip (without trailing slash)
var skipDirRoots = map[string]bool{
	"dev":        true,
	"proc":       true,
	"sys":        true,
	"run":        true,
	"snap":       true,
	"boot":       true,
	"lost+found": true,
}

// shouldSkipPath returns true if the path should not be walked.
// Extracts first path component after "/" and does single map lookup.
func shouldSkipPath(path string) bool {
	// Must start with "/" (Unix absolute path)
	if len(path) < 2 || path[0] != '/' {
		return false
	}
	// Find end of first component (e.g., "/dev/foo" -> "dev")
	rest := path[1:]
	slashIdx := strings.IndexByte(rest, '/')
	var firstComponent string
	if slashIdx == -1 {
		firstComponent = rest // No more slashes, e.g., "/dev"
	} else {
		firstComponent = rest[:slashIdx] // e.g., "/dev/foo" -> "dev"
	}
	return skipDirRoots[firstComponent]
}

func entryFor(path string, info os.FileInfo) Entry {
	return Entry{
		Name:    filepath.Base(path),
		Path:    path,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

// statPaths stats each dropped path without walking directories.
func (s *System) statPaths(paths []string) Response {
	resp := Response{Op: StatDrop}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			debug.Log(debug.FS, "statPaths: %q: %v", p, err)
			resp.Missing = append(resp.Missing, p)
			continue
		}
		resp.Entries = append(resp.Entries, entryFor(p, info))
	}
	sortEntries(resp.Entries)
	return resp
}

// trashPaths moves each dropped path to the trash. Entries describe the
// paths as they were before the move.
func (s *System) trashPaths(paths []string) Response {
	resp := Response{Op: TrashDrop}
	if s.Trash == nil {
		resp.Err = errors.New("trash is not available")
		resp.Missing = append(resp.Missing, paths...)
		return resp
	}
	var errs []error
	for _, p := range paths {
		info, err := os.Lstat(p)
		if err != nil {
			resp.Missing = append(resp.Missing, p)
			continue
		}
		dest, err := s.Trash.Move(p)
		if err != nil {
			debug.Log(debug.FS, "trashPaths: %q: %v", p, err)
			errs = append(errs, err)
			continue
		}
		resp.Entries = append(resp.Entries, entryFor(p, info))
		resp.Trashed = append(resp.Trashed, dest)
	}
	resp.Err = errors.Join(errs...)
	return resp
}

// expandPaths replaces every dropped directory by the regular files below
// it, up to maxDepth levels down. Dropped files are kept as they are.
func (s *System) expandPaths(ctx context.Context, paths []string, maxDepth int, gen int64) Response {
	resp := Response{Op: ExpandDrop}
	progress := &walkProgress{gen: gen, progressCh: s.ProgressChan}

	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		info, err := os.Stat(p)
		if err != nil {
			resp.Missing = append(resp.Missing, p)
			continue
		}
		if !info.IsDir() {
			resp.Entries = append(resp.Entries, entryFor(p, info))
			continue
		}
		if shouldSkipPath(p) {
			debug.Log(debug.FS, "expandPaths: not walking system directory %s", p)
			continue
		}
		entries, err := walkDir(ctx, p, maxDepth, progress)
		resp.Entries = append(resp.Entries, entries...)
		if err != nil {
			resp.Err = err
			break
		}
	}
	sortEntries(resp.Entries)
	return resp
}

type walkProgress struct {
	gen        int64
	mu         sync.Mutex
	files      int64
	progressCh chan Progress
}

func (p *walkProgress) add() {
	if p.progressCh == nil {
		return
	}
	p.mu.Lock()
	p.files++
	n := p.files
	p.mu.Unlock()

	// Only report every 64 files to avoid flooding
	if n%64 != 0 {
		return
	}
	select {
	case p.progressCh <- Progress{Gen: p.gen, Current: n, Label: fmt.Sprintf("Found %d files...", n)}:
	default:
		// Channel full, skip this update
	}
}

func walkDir(ctx context.Context, basePath string, maxDepth int, progress *walkProgress) ([]Entry, error) {
	debug.Log(debug.FS, "walkDir: starting path=%q maxDepth=%d", basePath, maxDepth)

	var results []Entry
	var mu sync.Mutex

	// Don't follow symlinks in recursive walks to avoid infinite loops
	// (e.g., symlinks pointing to parent directories)
	conf := &fastwalk.Config{
		Follow: false,
	}

	err := fastwalk.Walk(conf, basePath, func(fullPath string, d fs.DirEntry, err error) error {
		// Check for cancellation
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			debug.Log(debug.FS, "walkDir: error at %q: %v", fullPath, err)
			return nil // Skip errors, continue walking
		}
		if fullPath == basePath {
			return nil
		}
		if shouldSkipPath(fullPath) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if relDepth(basePath, fullPath) > maxDepth {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			debug.Log(debug.FS, "walkDir: skipping %q: stat error: %v", d.Name(), err)
			return nil
		}
		// Skip non-regular files (devices, sockets, etc.)
		if !info.Mode().IsRegular() {
			return nil
		}

		progress.add()
		mu.Lock()
		results = append(results, entryFor(fullPath, info))
		mu.Unlock()
		return nil
	})

	if err != nil && ctx.Err() == nil {
		debug.Log(debug.FS, "walkDir: walk error: %v", err)
		return results, err
	}
	debug.Log(debug.FS, "walkDir: complete, %d files", len(results))
	return results, nil
}

// relDepth is how many levels below base path is; direct children are 1.
func relDepth(base, path string) int {
	rel := strings.TrimPrefix(path[len(base):], string(filepath.Separator))
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// sortEntries orders entries by path; fastwalk visits in parallel.
func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
}
