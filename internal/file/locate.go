package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// ErrOutputNotFound is returned by LocateOutput when no candidate matches.
var ErrOutputNotFound = errors.New("output file not found")

// mtimeSlack absorbs coarse filesystem timestamp resolution.
const mtimeSlack = 2 * time.Second

// LocateOutput finds the file an external tool produced for base+ext in dir
// when the tool did not honour the requested name exactly.
//
// Matching rule: only regular files with extension ext (case-insensitive)
// modified no earlier than since are considered. An exact name wins; otherwise
// a file whose normalized name (lowercase letters and digits only) equals the
// normalized base, or extends it, or is a truncation of at least half of it.
// Among several candidates the most recently modified one is returned.
func LocateOutput(dir, base, ext string, since time.Time) (string, error) {
	exact := filepath.Join(dir, base+ext)
	if Exists(exact) {
		return exact, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	wantNorm := normalizeName(base)
	threshold := since.Add(-mtimeSlack)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		entryExt := filepath.Ext(name)
		if !strings.EqualFold(entryExt, ext) {
			continue
		}
		if !similarNames(normalizeName(strings.TrimSuffix(name, entryExt)), wantNorm) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !since.IsZero() && info.ModTime().Before(threshold) {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s", ErrOutputNotFound, exact)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path, nil
}

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func similarNames(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	if got == want || strings.HasPrefix(got, want) {
		return true
	}
	// truncated by the tool
	return strings.HasPrefix(want, got) && len(got)*2 >= len(want)
}
