package ui

import (
	"container/list"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gioui.org/op/paint"
	_ "golang.org/x/image/bmp" // Register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/justyntemme/dropzone/internal/debug"
)

// imageExts are the extensions the panel tries to thumbnail.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsImagePath reports whether path has an extension the cache can decode.
func IsImagePath(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// ThumbnailCache provides an LRU cache for thumbnails of dropped images.
// Thumbnails are stored at reduced resolution to minimize memory usage.
type ThumbnailCache struct {
	mu        sync.Mutex
	cache     map[string]*thumbnailEntry // path -> entry
	lru       *list.List                 // LRU list (front = most recent)
	maxSize   int                        // Maximum number of entries
	maxPixels int                        // Maximum thumbnail dimension (width or height)

	// Pending load requests
	pendingMu sync.Mutex
	pending   map[string]bool // Paths currently being loaded
	loadChan  chan string     // Channel for load requests
	stopChan  chan struct{}   // Channel to stop the loader
	stopOnce  sync.Once

	// OnLoaded is called from the loader goroutine after a thumbnail is
	// cached, typically to invalidate the window.
	OnLoaded func(path string)
}

type thumbnailEntry struct {
	path      string
	thumbnail paint.ImageOp
	size      image.Point // Original image dimensions
	element   *list.Element
}

// NewThumbnailCache creates a new thumbnail cache and starts its loader.
// maxEntries is the maximum number of thumbnails to cache.
// maxPixels is the maximum dimension (width or height) for thumbnails.
func NewThumbnailCache(maxEntries, maxPixels int) *ThumbnailCache {
	tc := newThumbnailCache(maxEntries, maxPixels)
	go tc.backgroundLoader()
	return tc
}

func newThumbnailCache(maxEntries, maxPixels int) *ThumbnailCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if maxPixels < 1 {
		maxPixels = 1
	}
	return &ThumbnailCache{
		cache:     make(map[string]*thumbnailEntry),
		lru:       list.New(),
		maxSize:   maxEntries,
		maxPixels: maxPixels,
		pending:   make(map[string]bool),
		loadChan:  make(chan string, 100), // Buffer for load requests
		stopChan:  make(chan struct{}),
	}
}

// Get retrieves a thumbnail from the cache and marks it recently used.
// Returns the thumbnail, original size, and whether it was found.
func (tc *ThumbnailCache) Get(path string) (paint.ImageOp, image.Point, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, ok := tc.cache[path]
	if !ok {
		return paint.ImageOp{}, image.Point{}, false
	}
	tc.lru.MoveToFront(entry.element)
	return entry.thumbnail, entry.size, true
}

// RequestLoad queues a path for background thumbnail loading.
// Does nothing if the path is already cached or being loaded.
func (tc *ThumbnailCache) RequestLoad(path string) {
	tc.mu.Lock()
	_, cached := tc.cache[path]
	tc.mu.Unlock()
	if cached {
		return
	}

	tc.pendingMu.Lock()
	if tc.pending[path] {
		tc.pendingMu.Unlock()
		return
	}
	tc.pending[path] = true
	tc.pendingMu.Unlock()

	// Queue for loading (non-blocking)
	select {
	case tc.loadChan <- path:
	default:
		// Channel full, drop this request
		tc.pendingMu.Lock()
		delete(tc.pending, path)
		tc.pendingMu.Unlock()
	}
}

// Clear removes all entries from the cache.
func (tc *ThumbnailCache) Clear() {
	tc.mu.Lock()
	tc.cache = make(map[string]*thumbnailEntry)
	tc.lru = list.New()
	tc.mu.Unlock()

	tc.pendingMu.Lock()
	tc.pending = make(map[string]bool)
	tc.pendingMu.Unlock()

	debug.Log(debug.UI, "ThumbnailCache: cleared")
}

// Stop shuts down the background loader. It is safe to call twice.
func (tc *ThumbnailCache) Stop() {
	tc.stopOnce.Do(func() { close(tc.stopChan) })
}

// backgroundLoader processes thumbnail load requests in the background.
func (tc *ThumbnailCache) backgroundLoader() {
	for {
		select {
		case <-tc.stopChan:
			return
		case path := <-tc.loadChan:
			if tc.loadThumbnail(path) && tc.OnLoaded != nil {
				tc.OnLoaded(path)
			}
		}
	}
}

// loadThumbnail loads and caches a thumbnail for the given path.
func (tc *ThumbnailCache) loadThumbnail(path string) bool {
	defer func() {
		tc.pendingMu.Lock()
		delete(tc.pending, path)
		tc.pendingMu.Unlock()
	}()

	debug.Log(debug.UI, "ThumbnailCache: loading %s", path)

	file, err := os.Open(path)
	if err != nil {
		debug.Log(debug.UI, "ThumbnailCache: failed to open %s: %v", path, err)
		return false
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		debug.Log(debug.UI, "ThumbnailCache: failed to decode %s: %v", path, err)
		return false
	}

	originalSize := img.Bounds().Size()
	thumbnail := tc.scaleThumbnail(img)
	tc.put(path, paint.NewImageOp(thumbnail), originalSize)

	debug.Log(debug.UI, "ThumbnailCache: cached %s (original %dx%d, thumb %dx%d)",
		path, originalSize.X, originalSize.Y, thumbnail.Bounds().Dx(), thumbnail.Bounds().Dy())
	return true
}

// scaleThumbnail scales an image down to fit within maxPixels.
func (tc *ThumbnailCache) scaleThumbnail(src image.Image) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= tc.maxPixels && height <= tc.maxPixels {
		return src
	}

	var scale float64
	if width > height {
		scale = float64(tc.maxPixels) / float64(width)
	} else {
		scale = float64(tc.maxPixels) / float64(height)
	}

	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// put adds a thumbnail to the cache, evicting old entries if necessary.
func (tc *ThumbnailCache) put(path string, thumbnail paint.ImageOp, size image.Point) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if entry, ok := tc.cache[path]; ok {
		entry.thumbnail = thumbnail
		entry.size = size
		tc.lru.MoveToFront(entry.element)
		return
	}

	for tc.lru.Len() >= tc.maxSize {
		oldest := tc.lru.Back()
		if oldest == nil {
			break
		}
		oldEntry := oldest.Value.(*thumbnailEntry)
		delete(tc.cache, oldEntry.path)
		tc.lru.Remove(oldest)
		debug.Log(debug.UI, "ThumbnailCache: evicted %s", oldEntry.path)
	}

	entry := &thumbnailEntry{
		path:      path,
		thumbnail: thumbnail,
		size:      size,
	}
	entry.element = tc.lru.PushFront(entry)
	tc.cache[path] = entry
}

// Size returns the current number of cached thumbnails.
func (tc *ThumbnailCache) Size() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.cache)
}
