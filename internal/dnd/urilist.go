package dnd

import (
	"net/url"
	"strings"
)

// ParseURIList decodes a text/uri-list payload into local file paths.
// Comment lines and URIs that are not file: URIs are skipped.
func ParseURIList(data []byte) []string {
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if p, ok := filePath(line); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// filePath extracts the path of a file URI. Both file:///path and
// file://host/path are accepted; the host is ignored.
func filePath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || !strings.EqualFold(u.Scheme, "file") {
		return "", false
	}
	if u.Path == "" {
		// file:relative/path has no Path, only Opaque.
		if u.Opaque == "" {
			return "", false
		}
		p, err := url.PathUnescape(u.Opaque)
		if err != nil {
			return "", false
		}
		return p, true
	}
	return u.Path, true
}
