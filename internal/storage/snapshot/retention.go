package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Prune removes old snapshots in dir, keeping the newest keep snapshots.
// The snapshot checkpoint_last points to, and anything newer, is always
// kept. keep <= 0 disables pruning. It returns the removed names.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	handles, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(handles) <= keep {
		return nil, nil
	}

	latest, err := resolvePointer(dir)
	if err != nil {
		// Without a trustworthy pointer nothing is provably safe to remove.
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	var removed []string
	for _, h := range handles[:len(handles)-keep] {
		if h.Name >= latest.Name {
			break
		}
		if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, h.Name)
	}
	return removed, nil
}

// CleanStaging removes staging files in dir left behind by interrupted
// writes that are older than maxAge.
func CleanStaging(dir string, maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, tempSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			removed = append(removed, name)
		}
	}
	return removed, nil
}
