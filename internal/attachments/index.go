// Package attachments matches exported attachment files to messages by the
// timestamp embedded in their file names.
package attachments

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// KeyLayout is the canonical form both file names and row timestamps are
// reduced to before matching.
const KeyLayout = "2006-01-02 03:04:05 PM"

const nameLayout = "January 2, 2006 3:04:05 PM"

// Non-ASCII separators arrive escaped as \uf0XX, so the pattern never depends
// on the file system's encoding of those glyphs.
var namePattern = regexp.MustCompile(
	`([A-Za-z]+) (\d{1,2}), (\d{4}) at (\d{1,2})\\uf\d{3}(\d{2})\\uf\d{3}(\d{2}) (AM|PM)`,
)

// Index maps canonical timestamp keys to attachment paths in directory order.
type Index map[string][]string

// Build scans dir once. Files whose names carry no recognizable timestamp are
// left out.
func Build(dir string) (Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read attachments dir: %w", err)
	}
	idx := make(Index)
	for _, e := range entries {
		if !isFile(dir, e) {
			continue
		}
		key := NormalizeName(stem(e.Name()))
		if key == "" {
			continue
		}
		idx[key] = append(idx[key], filepath.Join(dir, e.Name()))
	}
	return idx, nil
}

// Lookup returns the files whose names normalize to key.
func (idx Index) Lookup(key string) []string {
	if idx == nil || key == "" {
		return nil
	}
	return idx[key]
}

// NormalizeName reduces a name like "November 6, 2012 at 12\uf02242\uf02224
// PM EST" (time separators are private-use glyphs) to "2012-11-06 12:42:24
// PM". It returns "" when the name does not fit.
func NormalizeName(name string) string {
	m := namePattern.FindStringSubmatch(escapeNonASCII(name))
	if m == nil {
		return ""
	}
	month, day, year, hour, minute, second, meridiem := m[1], m[2], m[3], m[4], m[5], m[6], m[7]
	t, err := time.Parse(nameLayout, fmt.Sprintf("%s %s, %s %s:%s:%s %s", month, day, year, hour, minute, second, meridiem))
	if err != nil {
		return ""
	}
	return t.Format(KeyLayout)
}

// KeyForTime formats a wall-clock time the way NormalizeName does.
func KeyForTime(t time.Time) string {
	return t.Format(KeyLayout)
}

func escapeNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > 127 {
			fmt.Fprintf(&b, `\u%04x`, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isFile(dir string, e os.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
