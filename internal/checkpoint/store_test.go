package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/moeckpt/internal/storage/snapshot"
	"github.com/yndnr/moeckpt/internal/telemetry/metric"
)

// memSource is an in-memory StateSource for tests.
type memSource struct {
	mu        sync.Mutex
	state     []byte
	restored  int
	snapErr   error
	panicSnap bool
}

func (m *memSource) Snapshot(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicSnap {
		panic("boom")
	}
	if m.snapErr != nil {
		return nil, m.snapErr
	}
	return append([]byte(nil), m.state...), nil
}

func (m *memSource) Restore(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = append([]byte(nil), data...)
	m.restored++
	return nil
}

func (m *memSource) set(s string) {
	m.mu.Lock()
	m.state = []byte(s)
	m.mu.Unlock()
}

func (m *memSource) get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.state)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, cfg Config, sources map[string]StateSource) *Store {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	s, err := NewStore(cfg, sources)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestNewStore_InvalidRoot(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "plain")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"empty":   "",
		"missing": filepath.Join(base, "does-not-exist"),
		"file":    file,
	}
	for name, dir := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewStore(Config{Dir: dir, Logger: discardLogger()}, map[string]StateSource{"a": &memSource{}})
			if !errors.Is(err, ErrInvalidCheckpointRoot) {
				t.Fatalf("NewStore error = %v, want ErrInvalidCheckpointRoot", err)
			}
		})
	}
}

func TestNewStore_ReadOnlyRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o700)

	_, err := NewStore(Config{Dir: dir, Logger: discardLogger()}, map[string]StateSource{"a": &memSource{}})
	if !errors.Is(err, ErrInvalidCheckpointRoot) {
		t.Fatalf("NewStore error = %v, want ErrInvalidCheckpointRoot", err)
	}
}

func TestNewStore_InvalidComponent(t *testing.T) {
	for _, name := range []string{"", ".", "..", ".hidden", "a/b", `a\b`} {
		_, err := NewStore(Config{Dir: t.TempDir(), Logger: discardLogger()}, map[string]StateSource{name: &memSource{}})
		if !errors.Is(err, ErrInvalidComponent) {
			t.Errorf("NewStore(%q) error = %v, want ErrInvalidComponent", name, err)
		}
	}

	_, err := NewStore(Config{Dir: t.TempDir(), Logger: discardLogger()}, map[string]StateSource{"a": nil})
	if !errors.Is(err, ErrInvalidComponent) {
		t.Errorf("nil source error = %v, want ErrInvalidComponent", err)
	}
}

func TestNewStore_CreatesComponentDirs(t *testing.T) {
	root := t.TempDir()
	s := newTestStore(t, Config{Dir: root}, map[string]StateSource{
		"expert.1": &memSource{},
		"expert.0": &memSource{},
	})

	if got := s.Components(); len(got) != 2 || got[0] != "expert.0" || got[1] != "expert.1" {
		t.Fatalf("Components = %v", got)
	}
	for _, name := range s.Components() {
		st, err := os.Stat(filepath.Join(root, name))
		if err != nil || !st.IsDir() {
			t.Fatalf("component dir %s: %v", name, err)
		}
	}
	// Nothing is saved at construction.
	if h, err := s.Latest("expert.0"); err != nil || h != nil {
		t.Fatalf("Latest = %v, %v; want nil, nil", h, err)
	}
}

func TestStore_SaveAllLoadAll(t *testing.T) {
	ctx := context.Background()
	a := &memSource{state: []byte("alpha")}
	b := &memSource{state: []byte("beta")}
	s := newTestStore(t, Config{}, map[string]StateSource{"a": a, "b": b})

	report, err := s.SaveAll(ctx)
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if report.CycleID == "" || len(report.Saved) != 2 || len(report.Failed()) != 0 {
		t.Fatalf("report = %+v", report)
	}

	a.set("mutated")
	b.set("mutated")

	restored := s.LoadAll(ctx)
	if err := restored.Err(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if a.get() != "alpha" || b.get() != "beta" {
		t.Fatalf("restored = %q, %q", a.get(), b.get())
	}
}

func TestStore_LatestIsMonotonic(t *testing.T) {
	ctx := context.Background()
	src := &memSource{}
	s := newTestStore(t, Config{}, map[string]StateSource{"a": src})

	var prev *snapshot.Handle
	for i := 0; i < 5; i++ {
		src.set(strings.Repeat("x", i+1))
		if _, err := s.SaveAll(ctx); err != nil {
			t.Fatalf("SaveAll #%d: %v", i, err)
		}
		h, err := s.Latest("a")
		if err != nil || h == nil {
			t.Fatalf("Latest #%d = %v, %v", i, h, err)
		}
		if prev != nil && !h.CreatedAt.After(prev.CreatedAt) {
			t.Fatalf("Latest #%d = %v, not after %v", i, h.CreatedAt, prev.CreatedAt)
		}
		prev = h
	}

	hs, err := s.List("a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(hs) != 5 {
		t.Fatalf("List = %d snapshots, want 5 (nothing pruned by default)", len(hs))
	}
	if hs[len(hs)-1].Name != prev.Name {
		t.Fatalf("newest = %s, pointer = %s", hs[len(hs)-1].Name, prev.Name)
	}
}

func TestStore_RestoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := &memSource{state: []byte("v1")}
	s := newTestStore(t, Config{}, map[string]StateSource{"a": src})
	if _, err := s.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	for i := 0; i < 3; i++ {
		src.set("junk")
		if _, err := s.Load(ctx, "a"); err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
		if src.get() != "v1" {
			t.Fatalf("Load #%d state = %q", i, src.get())
		}
	}
	before, _ := s.List("a")
	s.LoadAll(ctx)
	after, _ := s.List("a")
	if len(before) != len(after) {
		t.Fatalf("restore changed snapshot count: %d -> %d", len(before), len(after))
	}
}

func TestStore_IndependentFailure(t *testing.T) {
	ctx := context.Background()
	a := &memSource{state: []byte("a1")}
	b := &memSource{state: []byte("b1")}
	s := newTestStore(t, Config{Parallelism: 2}, map[string]StateSource{"a": a, "b": b})

	if _, err := s.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	aFirst, _ := s.Latest("a")
	bFirst, _ := s.Latest("b")

	a.mu.Lock()
	a.snapErr = errors.New("device lost")
	a.mu.Unlock()
	b.set("b2")

	report, err := s.SaveAll(ctx)
	var wf *WriteFailedError
	if !errors.As(err, &wf) || wf.Component != "a" {
		t.Fatalf("SaveAll error = %v, want WriteFailedError for a", err)
	}
	if got := report.Failed(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("Failed = %v", got)
	}
	if _, ok := report.Saved["b"]; !ok {
		t.Fatalf("b not saved: %+v", report)
	}

	aNow, _ := s.Latest("a")
	bNow, _ := s.Latest("b")
	if aNow.Name != aFirst.Name {
		t.Fatalf("a pointer moved to %s", aNow.Name)
	}
	if bNow.Name == bFirst.Name {
		t.Fatalf("b pointer did not move")
	}
}

func TestStore_SourcePanicIsRecovered(t *testing.T) {
	ctx := context.Background()
	a := &memSource{panicSnap: true}
	b := &memSource{state: []byte("ok")}
	s := newTestStore(t, Config{}, map[string]StateSource{"a": a, "b": b})

	report, err := s.SaveAll(ctx)
	var wf *WriteFailedError
	if !errors.As(err, &wf) || wf.Component != "a" || !strings.Contains(wf.Error(), "panic") {
		t.Fatalf("SaveAll error = %v", err)
	}
	if _, ok := report.Saved["b"]; !ok {
		t.Fatalf("b not saved")
	}
}

func TestStore_ColdStartWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	src := &memSource{state: []byte("initial")}
	s := newTestStore(t, Config{Logger: logger}, map[string]StateSource{"a": src})

	report := s.LoadAll(context.Background())
	if got := report.Missing(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("Missing = %v", got)
	}
	if !errors.Is(report.Errors["a"], ErrNoCheckpoint) {
		t.Fatalf("error = %v, want ErrNoCheckpoint", report.Errors["a"])
	}
	if src.get() != "initial" || src.restored != 0 {
		t.Fatalf("state changed on cold start")
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"component":"a"`) {
		t.Fatalf("missing warning in log:\n%s", out)
	}
}

func TestStore_CorruptCheckpoint(t *testing.T) {
	ctx := context.Background()
	src := &memSource{state: []byte("good")}
	s := newTestStore(t, Config{}, map[string]StateSource{"a": src})
	if _, err := s.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	h, _ := s.Latest("a")
	if err := os.WriteFile(h.Path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}

	src.set("live")
	report := s.LoadAll(ctx)
	var rf *ReadFailedError
	if !errors.As(report.Errors["a"], &rf) {
		t.Fatalf("error = %v, want ReadFailedError", report.Errors["a"])
	}
	if got := report.Failed(); len(got) != 1 {
		t.Fatalf("Failed = %v", got)
	}
	if src.get() != "live" {
		t.Fatalf("state replaced by corrupt checkpoint: %q", src.get())
	}
}

func TestStore_Retention(t *testing.T) {
	ctx := context.Background()
	src := &memSource{state: []byte("x")}
	s := newTestStore(t, Config{RetentionCount: 2}, map[string]StateSource{"a": src})

	for i := 0; i < 5; i++ {
		if _, err := s.SaveAll(ctx); err != nil {
			t.Fatalf("SaveAll: %v", err)
		}
	}
	hs, err := s.List("a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(hs) != 2 {
		t.Fatalf("List = %d snapshots, want 2", len(hs))
	}
	latest, _ := s.Latest("a")
	if hs[1].Name != latest.Name {
		t.Fatalf("pruned the pointer target")
	}
}

func TestStore_EncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	key := bytes.Repeat([]byte{7}, 32)
	src := &memSource{state: []byte("secret weights")}
	s := newTestStore(t, Config{EncryptionKey: key}, map[string]StateSource{"a": src})
	if _, err := s.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	h, _ := s.Latest("a")
	raw, err := os.ReadFile(h.Path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("secret weights")) {
		t.Fatalf("plaintext found on disk")
	}

	src.set("")
	if _, err := s.Load(ctx, "a"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.get() != "secret weights" {
		t.Fatalf("state = %q", src.get())
	}
}

func TestStore_UnknownComponent(t *testing.T) {
	s := newTestStore(t, Config{}, map[string]StateSource{"a": &memSource{}})
	if _, err := s.Save(context.Background(), "nope"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("Save error = %v", err)
	}
	if _, err := s.Latest("nope"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("Latest error = %v", err)
	}
}

func TestStore_Metrics(t *testing.T) {
	reg := metric.NewRegistry()
	s := newTestStore(t, Config{Metrics: reg}, map[string]StateSource{"a": &memSource{state: []byte("x")}})
	if _, err := s.SaveAll(context.Background()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	s.LoadAll(context.Background())

	mfs, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{"moeckpt_save_duration_seconds", "moeckpt_restores_total"} {
		if !found[name] {
			t.Errorf("metric %s not exported", name)
		}
	}
}

func TestStore_SnapshotCounts(t *testing.T) {
	s := newTestStore(t, Config{}, map[string]StateSource{"a": &memSource{}, "b": &memSource{}})
	if _, err := s.Save(context.Background(), "a"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	counts := s.SnapshotCounts()
	if counts["a"] != 1 || counts["b"] != 0 {
		t.Fatalf("counts = %v", counts)
	}
}
