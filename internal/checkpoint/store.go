package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/moeckpt/internal/storage/snapshot"
	"github.com/yndnr/moeckpt/internal/telemetry/metric"
)

const (
	dirPerm = 0o750

	// staleStagingAge is how old a leftover staging file must be before
	// NewStore removes it.
	staleStagingAge = time.Hour
)

// Config configures a Store. Only Dir is required.
type Config struct {
	// Dir is the checkpoint root. It must already exist and be writable.
	Dir string

	// Pointer selects the checkpoint_last backend. Empty means auto.
	Pointer snapshot.PointerKind

	// StagingDir, RateLimit and EncryptionKey are passed to the
	// snapshot writer.
	StagingDir    string
	RateLimit     int64
	EncryptionKey []byte

	// RetentionCount keeps the newest N snapshots per component.
	// Zero keeps everything.
	RetentionCount int

	// Parallelism bounds concurrent component saves. Zero means 1.
	Parallelism int

	Logger  *slog.Logger
	Metrics *metric.Registry
}

type component struct {
	name   string
	dir    string
	source StateSource
}

// Store saves and restores a fixed set of components under one root.
type Store struct {
	cfg        Config
	root       string
	components []component
	byName     map[string]int

	writer  *snapshot.Writer
	pointer snapshot.Pointer
	logger  *slog.Logger
	metrics *metric.Registry

	// saveMu serializes saves so pointer updates for a component are
	// strictly ordered.
	saveMu sync.Mutex
}

// NewStore validates the checkpoint root, creates one directory per
// component and returns a Store. The registry is copied; it cannot change
// afterwards.
func NewStore(cfg Config, sources map[string]StateSource) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.RetentionCount < 0 {
		return nil, fmt.Errorf("checkpoint: retention count must not be negative")
	}

	if err := checkRoot(cfg.Dir); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpointRoot, err)
	}

	names := make([]string, 0, len(sources))
	for name, src := range sources {
		if err := validateName(name); err != nil {
			return nil, err
		}
		if src == nil {
			return nil, fmt.Errorf("%w: %q has a nil source", ErrInvalidComponent, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	pointer, err := snapshot.DetectPointer(root, cfg.Pointer)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: pointer backend: %w", err)
	}
	writer, err := snapshot.NewWriter(snapshot.Config{
		StagingDir: cfg.StagingDir,
		RateLimit:  cfg.RateLimit,
		Key:        cfg.EncryptionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: snapshot writer: %w", err)
	}

	s := &Store{
		cfg:        cfg,
		root:       root,
		components: make([]component, 0, len(names)),
		byName:     make(map[string]int, len(names)),
		writer:     writer,
		pointer:    pointer,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}

	for i, name := range names {
		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrInvalidCheckpointRoot, name, err)
		}
		if err := probeWritable(dir); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCheckpointRoot, name, err)
		}
		if removed, _ := snapshot.CleanStaging(dir, staleStagingAge); len(removed) > 0 {
			s.logger.Warn("removed stale staging files", "component", name, "count", len(removed))
		}
		s.components = append(s.components, component{name: name, dir: dir, source: sources[name]})
		s.byName[name] = i
	}

	s.logger.Info("checkpoint store ready",
		"dir", root,
		"components", len(names),
		"pointer", pointer.Kind(),
		"retention", cfg.RetentionCount)

	return s, nil
}

// Root returns the absolute checkpoint root.
func (s *Store) Root() string {
	return s.root
}

// Components returns the registered component names, sorted.
func (s *Store) Components() []string {
	out := make([]string, len(s.components))
	for i, c := range s.components {
		out[i] = c.name
	}
	return out
}

// PointerKind reports the checkpoint_last backend in use.
func (s *Store) PointerKind() snapshot.PointerKind {
	return s.pointer.Kind()
}

// SaveAll saves every component. Components fail independently: the
// returned error joins one *WriteFailedError per failed component and is nil
// when all were saved. The report is never nil.
func (s *Store) SaveAll(ctx context.Context) (*SaveReport, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	report := &SaveReport{
		CycleID:   ulid.Make().String(),
		StartedAt: time.Now(),
		Saved:     make(map[string]*snapshot.Handle, len(s.components)),
		Errors:    make(map[string]error),
	}
	log := s.logger.With("cycle_id", report.CycleID)
	log.Debug("checkpoint cycle started", "dir", s.root, "components", len(s.components))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Parallelism)
	for _, c := range s.components {
		g.Go(func() error {
			h, err := s.saveOne(ctx, log, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors[c.name] = err
			} else {
				report.Saved[c.name] = h
			}
			return nil
		})
	}
	g.Wait()

	report.Duration = time.Since(report.StartedAt)
	s.metrics.ObserveCycle(len(report.Errors))

	if len(report.Errors) > 0 {
		log.Warn("checkpoint cycle finished with failures",
			"saved", len(report.Saved),
			"failed", report.Failed(),
			"elapsed", report.Duration)
	} else {
		log.Info("checkpoint cycle finished",
			"saved", len(report.Saved),
			"elapsed", report.Duration)
	}
	return report, report.Err()
}

// Save saves a single component.
func (s *Store) Save(ctx context.Context, name string) (*snapshot.Handle, error) {
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.saveOne(ctx, s.logger, c)
}

func (s *Store) saveOne(ctx context.Context, log *slog.Logger, c component) (h *snapshot.Handle, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, &WriteFailedError{Component: c.name, Err: fmt.Errorf("panic: %v", r)}
		}
		var size int64
		if h != nil {
			size = h.Size
		}
		s.metrics.ObserveSave(c.name, time.Since(start), size, err)
		if err != nil {
			log.Error("checkpoint save failed", "component", c.name, "error", err)
		}
	}()

	if err := os.MkdirAll(c.dir, dirPerm); err != nil {
		return nil, &WriteFailedError{Component: c.name, Err: fmt.Errorf("create dir: %w", err)}
	}

	data, err := c.source.Snapshot(ctx)
	if err != nil {
		return nil, &WriteFailedError{Component: c.name, Err: fmt.Errorf("capture state: %w", err)}
	}

	h, err = s.writer.Write(ctx, c.dir, c.name, data)
	if err != nil {
		return nil, &WriteFailedError{Component: c.name, Err: err}
	}
	if err := s.pointer.Update(c.dir, h); err != nil {
		return nil, &WriteFailedError{Component: c.name, Err: err}
	}

	log.Debug("checkpoint promoted",
		"component", c.name,
		"snapshot", h.Name,
		"size_bytes", h.Size)

	if s.cfg.RetentionCount > 0 {
		removed, err := snapshot.Prune(c.dir, s.cfg.RetentionCount)
		if err != nil {
			log.Warn("snapshot prune failed", "component", c.name, "error", err)
		} else if len(removed) > 0 {
			log.Debug("snapshots pruned", "component", c.name, "removed", len(removed))
		}
	}
	return h, nil
}

// LoadAll restores every component from its latest checkpoint. A component
// without a checkpoint, or with an unreadable one, keeps its current state;
// the condition is logged and recorded in the report.
func (s *Store) LoadAll(ctx context.Context) *RestoreReport {
	report := &RestoreReport{
		Restored: make(map[string]*snapshot.Handle, len(s.components)),
		Errors:   make(map[string]error),
	}
	for _, c := range s.components {
		h, err := s.loadOne(ctx, c)
		if err != nil {
			report.Errors[c.name] = err
			continue
		}
		report.Restored[c.name] = h
	}

	s.logger.Info("checkpoint restore finished",
		"restored", len(report.Restored),
		"missing", len(report.Missing()),
		"failed", len(report.Failed()))
	return report
}

// Load restores a single component.
func (s *Store) Load(ctx context.Context, name string) (*snapshot.Handle, error) {
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return s.loadOne(ctx, c)
}

func (s *Store) loadOne(ctx context.Context, c component) (h *snapshot.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, &ReadFailedError{Component: c.name, Err: fmt.Errorf("panic: %v", r)}
		}
		var missing *MissingCheckpointError
		switch {
		case err == nil:
			s.metrics.ObserveRestore(c.name, metric.RestoreOK)
			s.logger.Info("checkpoint restored", "component", c.name, "snapshot", h.Name)
		case errors.As(err, &missing):
			s.metrics.ObserveRestore(c.name, metric.RestoreMissing)
			s.logger.Warn("no checkpoint to restore, keeping current state", "component", c.name)
		default:
			s.metrics.ObserveRestore(c.name, metric.RestoreFailed)
			s.logger.Error("checkpoint restore failed, keeping current state",
				"component", c.name,
				"error", err)
		}
	}()

	h, err = s.pointer.Resolve(c.dir)
	if err != nil {
		return nil, &ReadFailedError{Component: c.name, Err: err}
	}
	if h == nil {
		return nil, &MissingCheckpointError{Component: c.name}
	}

	data, err := s.writer.Read(ctx, h)
	if err != nil {
		return nil, &ReadFailedError{Component: c.name, Err: err}
	}
	if err := c.source.Restore(ctx, data); err != nil {
		return nil, &ReadFailedError{Component: c.name, Err: fmt.Errorf("restore state: %w", err)}
	}
	return h, nil
}

// Latest resolves checkpoint_last for a component. It returns nil when the
// component has never been checkpointed.
func (s *Store) Latest(name string) (*snapshot.Handle, error) {
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return s.pointer.Resolve(c.dir)
}

// List returns a component's snapshots, oldest first.
func (s *Store) List(name string) ([]*snapshot.Handle, error) {
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return snapshot.List(c.dir)
}

// ReadSnapshot reads and verifies one snapshot without restoring it.
func (s *Store) ReadSnapshot(ctx context.Context, h *snapshot.Handle) ([]byte, error) {
	return s.writer.Read(ctx, h)
}

// SnapshotCounts returns the number of snapshots on disk per component.
func (s *Store) SnapshotCounts() map[string]int {
	out := make(map[string]int, len(s.components))
	for _, c := range s.components {
		hs, err := snapshot.List(c.dir)
		if err != nil {
			continue
		}
		out[c.name] = len(hs)
	}
	return out
}

func (s *Store) lookup(name string) (component, error) {
	i, ok := s.byName[name]
	if !ok {
		return component{}, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	return s.components[i], nil
}

func checkRoot(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: dir is required", ErrInvalidCheckpointRoot)
	}
	st, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCheckpointRoot, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidCheckpointRoot, dir)
	}
	if err := probeWritable(dir); err != nil {
		return fmt.Errorf("%w: %s is not writable: %v", ErrInvalidCheckpointRoot, dir, err)
	}
	return nil
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// validateName rejects names that are not a single, visible path element.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidComponent, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidComponent, name)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidComponent, name)
	}
	return nil
}
