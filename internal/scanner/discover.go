package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DiscoverFiles lists the files directly inside dir that qualify for scanning:
// regular files ending in opts.Extension, not named in opts.ExcludeNames and not
// matching any of opts.ExcludePatterns. Names are returned in lexicographic order.
func DiscoverFiles(dir string, opts Options) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	if err := ValidatePatterns(opts.ExcludePatterns); err != nil {
		return nil, err
	}

	// os.ReadDir sorts by file name.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(opts.ExcludeNames))
	for _, name := range opts.ExcludeNames {
		excluded[name] = true
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !isRegularFile(dir, entry) {
			continue
		}
		if !strings.HasSuffix(name, opts.Extension) {
			continue
		}
		if excluded[name] {
			continue
		}
		if matchesAny(opts.ExcludePatterns, name) {
			continue
		}
		files = append(files, name)
	}

	sort.Strings(files)
	return files, nil
}

// ValidatePatterns reports the first malformed exclude pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// isRegularFile follows symlinks so a link to a source file is scanned.
func isRegularFile(dir string, entry os.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.Mode().IsRegular()
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
