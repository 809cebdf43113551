package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/moeckpt/pkg/crypto/adaptive"
)

const (
	// FilePrefix starts every snapshot and pointer name.
	FilePrefix = "checkpoint_"

	// TimestampLayout is ISO-8601 basic format in UTC with nanoseconds.
	// It has no colons and sorts lexicographically in time order.
	TimestampLayout = "20060102T150405.000000000Z"

	tempSuffix = ".tmp"

	filePerm = 0o640
	dirPerm  = 0o750
)

var ErrInvalidName = errors.New("snapshot: not a snapshot name")

// Handle identifies one promoted snapshot.
type Handle struct {
	Component string    `json:"component"`
	Name      string    `json:"name"`
	Path      string    `json:"path" table:"wide"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum,omitempty" table:"wide"`
}

// FileName returns the snapshot file name for t.
func FileName(t time.Time) string {
	return FilePrefix + t.UTC().Format(TimestampLayout)
}

// ParseName extracts the timestamp from a snapshot file name.
func ParseName(name string) (time.Time, error) {
	if !strings.HasPrefix(name, FilePrefix) || name == LatestName {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	t, err := time.Parse(TimestampLayout, strings.TrimPrefix(name, FilePrefix))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return t, nil
}

// Config configures a Writer.
type Config struct {
	// StagingDir holds files while they are written. Empty means the
	// component directory itself (hidden dot-files).
	StagingDir string

	// RateLimit caps write throughput in bytes per second. Zero disables it.
	RateLimit int64

	// Key is the master key for payload encryption. Nil writes plaintext.
	Key []byte
}

// Writer writes snapshots and promotes them with an atomic rename.
// It is safe for concurrent use across different component directories.
type Writer struct {
	cfg     Config
	limiter *rate.Limiter

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewWriter creates a Writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Key != nil && len(cfg.Key) != adaptive.KeySize {
		return nil, adaptive.ErrKeySize
	}
	if cfg.StagingDir != "" {
		if err := os.MkdirAll(cfg.StagingDir, dirPerm); err != nil {
			return nil, fmt.Errorf("snapshot: create staging dir: %w", err)
		}
	}

	w := &Writer{cfg: cfg, now: time.Now}
	if cfg.RateLimit > 0 {
		burst := 1024 * 1024
		if int64(burst) > cfg.RateLimit {
			burst = int(cfg.RateLimit)
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return w, nil
}

// Write stores data as a new snapshot of component under dir.
//
// The snapshot becomes visible under its final name only once it is
// complete and synced. On error nothing is left behind.
func (w *Writer) Write(ctx context.Context, dir, component string, data []byte) (*Handle, error) {
	created := w.nextTimestamp(dir)
	name := FileName(created)

	hdr := fileHeader{
		Version:     headerVersion,
		Component:   component,
		CreatedAt:   created.UnixNano(),
		PayloadSize: int64(len(data)),
	}
	if w.cfg.Key != nil {
		c, err := adaptive.Derive(w.cfg.Key, component)
		if err != nil {
			return nil, fmt.Errorf("snapshot: derive key: %w", err)
		}
		sealed, err := c.Encrypt(data, []byte(component))
		if err != nil {
			return nil, fmt.Errorf("snapshot: encrypt: %w", err)
		}
		data = sealed
		hdr.Encrypted = true
		hdr.Cipher = string(c.Type())
	}

	tempPath := w.stagingPath(dir, component, name)
	checksum, size, err := w.writeTemp(ctx, tempPath, hdr, data)
	if err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	finalPath := filepath.Join(dir, name)
	if err := promote(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, err
	}
	if err := syncDir(dir); err != nil {
		return nil, fmt.Errorf("snapshot: sync dir: %w", err)
	}

	return &Handle{
		Component: component,
		Name:      name,
		Path:      finalPath,
		CreatedAt: created,
		Size:      size,
		Checksum:  checksum,
	}, nil
}

func (w *Writer) writeTemp(ctx context.Context, path string, hdr fileHeader, data []byte) (string, int64, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return "", 0, fmt.Errorf("snapshot: create temp file: %w", err)
	}

	var out io.Writer = file
	if w.limiter != nil {
		out = &rateWriter{ctx: ctx, w: file, limiter: w.limiter}
	}

	checksum, size, err := encodeTo(out, hdr, data)
	if err != nil {
		file.Close()
		return "", 0, fmt.Errorf("snapshot: write: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return "", 0, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", 0, fmt.Errorf("snapshot: close: %w", err)
	}
	return checksum, size, nil
}

func (w *Writer) stagingPath(dir, component, name string) string {
	suffix := "." + ulid.Make().String() + tempSuffix
	if w.cfg.StagingDir != "" {
		return filepath.Join(w.cfg.StagingDir, component+"."+name+suffix)
	}
	return filepath.Join(dir, "."+name+suffix)
}

// nextTimestamp returns a timestamp strictly after every one this writer
// has issued and not already taken in dir.
func (w *Writer) nextTimestamp(dir string) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	t := w.now().UTC()
	if !t.After(w.last) {
		t = w.last.Add(time.Nanosecond)
	}
	for {
		if _, err := os.Lstat(filepath.Join(dir, FileName(t))); err != nil {
			break
		}
		t = t.Add(time.Nanosecond)
	}
	w.last = t
	return t
}

// Read loads and verifies the snapshot h, returning the original payload.
func (w *Writer) Read(ctx context.Context, h *Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(h.Path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", h.Name, err)
	}
	hdr, data, checksum, err := decode(raw)
	if err != nil {
		return nil, err
	}
	h.Checksum = checksum

	if !hdr.Encrypted {
		return data, nil
	}
	if w.cfg.Key == nil {
		return nil, ErrKeyRequired
	}
	c, err := adaptive.DeriveWithType(w.cfg.Key, hdr.Component, adaptive.CipherType(hdr.Cipher))
	if err != nil {
		return nil, fmt.Errorf("snapshot: derive key: %w", err)
	}
	plain, err := c.Decrypt(data, []byte(hdr.Component))
	if err != nil {
		return nil, fmt.Errorf("snapshot: decrypt: %w", err)
	}
	return plain, nil
}

// List returns the promoted snapshots in dir, oldest first.
func List(dir string) ([]*Handle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	component := filepath.Base(dir)
	var handles []*Handle
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		created, err := ParseName(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		handles = append(handles, &Handle{
			Component: component,
			Name:      e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			CreatedAt: created,
			Size:      info.Size(),
		})
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Name < handles[j].Name })
	return handles, nil
}

// promote moves a finished staging file to its final name. When the staging
// file lives on another filesystem the rename is replaced by a copy into the
// destination directory followed by a local rename.
func promote(tempPath, finalPath string) error {
	err := os.Rename(tempPath, finalPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("snapshot: rename: %w", err)
	}

	local := filepath.Join(filepath.Dir(finalPath), "."+filepath.Base(finalPath)+"."+ulid.Make().String()+tempSuffix)
	if err := copyFile(tempPath, local); err != nil {
		os.Remove(local)
		return fmt.Errorf("snapshot: copy across filesystems: %w", err)
	}
	if err := os.Rename(local, finalPath); err != nil {
		os.Remove(local)
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	os.Remove(tempPath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// syncDir makes a rename in dir durable. Directories cannot be synced on
// Windows.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
