package checkpoint

import (
	"errors"
	"sort"
	"time"

	"github.com/yndnr/moeckpt/internal/storage/snapshot"
)

// SaveReport describes one save cycle.
type SaveReport struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	Saved     map[string]*snapshot.Handle
	Errors    map[string]error
}

// Failed returns the names of components that were not saved, sorted.
func (r *SaveReport) Failed() []string {
	return sortedKeys(r.Errors)
}

// Err joins the per-component errors, or returns nil if every component
// was saved.
func (r *SaveReport) Err() error {
	return joinSorted(r.Errors)
}

// RestoreReport describes one LoadAll pass.
type RestoreReport struct {
	Restored map[string]*snapshot.Handle
	Errors   map[string]error
}

// Missing returns components that had no checkpoint.
func (r *RestoreReport) Missing() []string {
	var out []string
	for _, name := range sortedKeys(r.Errors) {
		if errors.Is(r.Errors[name], ErrNoCheckpoint) {
			out = append(out, name)
		}
	}
	return out
}

// Failed returns components whose checkpoint exists but could not be
// restored.
func (r *RestoreReport) Failed() []string {
	var out []string
	for _, name := range sortedKeys(r.Errors) {
		if !errors.Is(r.Errors[name], ErrNoCheckpoint) {
			out = append(out, name)
		}
	}
	return out
}

// Err joins the per-component errors.
func (r *RestoreReport) Err() error {
	return joinSorted(r.Errors)
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinSorted(m map[string]error) error {
	if len(m) == 0 {
		return nil
	}
	errs := make([]error, 0, len(m))
	for _, k := range sortedKeys(m) {
		errs = append(errs, m[k])
	}
	return errors.Join(errs...)
}
