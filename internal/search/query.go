// Package search filters the drop history with a small query language:
// bare words match file names, and directives narrow by extension,
// size, drop time, zone or file state.
package search

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Directive types
type DirectiveType int

const (
	DirFilename DirectiveType = iota
	DirExt
	DirSize
	DirDropped
	DirZone
	DirIs
)

// Comparison operators for size/date
type Operator int

const (
	OpNone Operator = iota
	OpGreater
	OpLess
	OpGreaterEq
	OpLessEq
	OpEquals
)

// Directive represents a single search directive
type Directive struct {
	Type     DirectiveType
	Value    string
	Operator Operator
	NumValue int64     // Parsed size in bytes
	TimeVal  time.Time // Parsed date
}

// Query holds parsed search directives
type Query struct {
	Directives []Directive
	Raw        string
}

// Item is one dropped file as the matcher sees it.
type Item struct {
	Path    string
	Zone    string
	Size    int64 // Negative while unknown
	IsDir   bool
	Missing bool
	At      time.Time // When it was dropped
}

// Parse parses a search string into directives
// Examples:
//   - "foo" -> filename:foo
//   - "ext:jpg" -> files with .jpg extension
//   - "size:>1MB" -> files larger than 1MB
//   - "dropped:today" -> dropped since midnight
//   - "zone:inbox" -> dropped on the inbox zone
//   - "is:dir", "is:missing" -> directories, paths that are gone
func Parse(input string) *Query {
	return parseAt(input, time.Now())
}

func parseAt(input string, now time.Time) *Query {
	q := &Query{Raw: input}
	input = strings.TrimSpace(input)
	if input == "" {
		return q
	}

	// Split by spaces, but respect quotes
	for _, part := range splitRespectingQuotes(input) {
		q.Directives = append(q.Directives, parseDirective(part, now))
	}
	return q
}

func splitRespectingQuotes(s string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, r := range s {
		switch {
		case (r == '"' || r == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = r
		case r == quoteChar && inQuotes:
			inQuotes = false
			quoteChar = 0
		case r == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func parseDirective(s string, now time.Time) Directive {
	idx := strings.Index(s, ":")
	if idx <= 0 {
		return Directive{Type: DirFilename, Value: s}
	}
	directive := strings.ToLower(s[:idx])
	value := strings.Trim(s[idx+1:], "\"'")

	switch directive {
	case "filename", "name", "file":
		return Directive{Type: DirFilename, Value: value}

	case "ext", "extension", "type":
		if !strings.HasPrefix(value, ".") {
			value = "." + value
		}
		return Directive{Type: DirExt, Value: strings.ToLower(value)}

	case "size":
		op, numStr := parseOperator(value)
		return Directive{Type: DirSize, Value: value, Operator: op, NumValue: parseSize(numStr)}

	case "dropped", "date", "when":
		op, dateStr := parseOperator(value)
		return Directive{Type: DirDropped, Value: value, Operator: op, TimeVal: parseDate(dateStr, now)}

	case "zone", "in":
		return Directive{Type: DirZone, Value: strings.ToLower(value)}

	case "is":
		return Directive{Type: DirIs, Value: strings.ToLower(value)}
	}

	// Unknown directives are file names with a colon in them
	return Directive{Type: DirFilename, Value: s}
}

func parseOperator(s string) (Operator, string) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, ">="):
		return OpGreaterEq, strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, "<="):
		return OpLessEq, strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, ">"):
		return OpGreater, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "<"):
		return OpLess, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "="):
		return OpEquals, strings.TrimSpace(s[1:])
	default:
		return OpEquals, s
	}
}

// parseSize converts size strings like "1KB", "10MiB", "1.5G" to bytes.
// Unparsable sizes are zero.
func parseSize(s string) int64 {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}

// parseDate parses date strings like "2024-01-01", "2024-01", "today", "yesterday"
func parseDate(s string, now time.Time) time.Time {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case "yesterday":
		y, m, d := now.AddDate(0, 0, -1).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case "hour":
		return now.Add(-time.Hour)
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	}

	formats := []string{
		"2006-01-02",
		"2006-01",
		"2006/01/02",
		"01/02/2006",
	}
	for _, layout := range formats {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Match checks if it matches all directives in the query (AND logic)
func (q *Query) Match(it Item) bool {
	for _, d := range q.Directives {
		if !matchDirective(d, it) {
			return false
		}
	}
	return true
}

func matchDirective(d Directive, it Item) bool {
	name := strings.ToLower(filepath.Base(it.Path))
	switch d.Type {
	case DirFilename:
		return matchGlob(name, strings.ToLower(d.Value))

	case DirExt:
		return filepath.Ext(name) == d.Value

	case DirSize:
		if it.Size < 0 || it.IsDir {
			return false
		}
		return compareInt(it.Size, d.NumValue, d.Operator)

	case DirDropped:
		if d.TimeVal.IsZero() {
			return true
		}
		return compareTime(it.At, d.TimeVal, d.Operator)

	case DirZone:
		return strings.ToLower(it.Zone) == d.Value

	case DirIs:
		switch d.Value {
		case "dir", "folder":
			return it.IsDir
		case "file":
			return !it.IsDir && !it.Missing
		case "missing", "gone":
			return it.Missing
		case "pending":
			return it.Size < 0 && !it.Missing
		}
		return false
	}
	return true
}

// matchGlob does simple glob matching with * wildcards
func matchGlob(name, pattern string) bool {
	// If pattern has no wildcards, do substring match
	if !strings.Contains(pattern, "*") {
		return strings.Contains(name, pattern)
	}

	parts := strings.Split(pattern, "*")

	// Check prefix
	if parts[0] != "" && !strings.HasPrefix(name, parts[0]) {
		return false
	}

	// Check suffix
	last := parts[len(parts)-1]
	if last != "" && !strings.HasSuffix(name, last) {
		return false
	}

	// Check middle parts exist in order
	pos := len(parts[0])
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(name[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}
	return len(parts[0])+len(last) <= len(name)
}

func compareInt(val, target int64, op Operator) bool {
	switch op {
	case OpGreater:
		return val > target
	case OpLess:
		return val < target
	case OpGreaterEq:
		return val >= target
	case OpLessEq:
		return val <= target
	default:
		return val == target
	}
}

func compareTime(val, target time.Time, op Operator) bool {
	switch op {
	case OpGreater:
		return val.After(target)
	case OpLess:
		return val.Before(target)
	case OpGreaterEq:
		return !val.Before(target)
	case OpLessEq:
		return !val.After(target)
	default:
		// For equals, compare just the date part
		vy, vm, vd := val.In(target.Location()).Date()
		ty, tm, td := target.Date()
		return vy == ty && vm == tm && vd == td
	}
}

// IsEmpty returns true if query has no directives
func (q *Query) IsEmpty() bool {
	return len(q.Directives) == 0
}
