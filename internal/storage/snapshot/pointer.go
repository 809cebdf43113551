package snapshot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// LatestName is the name of the per-component pointer.
const LatestName = "checkpoint_last"

// maxPointerSize bounds how much of a pointer file is read.
const maxPointerSize = 4096

var (
	ErrDanglingPointer    = errors.New("snapshot: checkpoint_last points to a missing snapshot")
	ErrInvalidPointer     = errors.New("snapshot: checkpoint_last is malformed")
	ErrSymlinkUnsupported = errors.New("snapshot: symbolic links are not supported here")
)

// PointerKind names a Pointer backend.
type PointerKind string

const (
	PointerAuto    PointerKind = "auto"
	PointerSymlink PointerKind = "symlink"
	PointerFile    PointerKind = "file"
)

// Pointer maintains checkpoint_last for a component directory.
//
// Update replaces the pointer atomically. Resolve returns nil with a nil
// error when the component has never been checkpointed.
type Pointer interface {
	Kind() PointerKind
	Update(dir string, h *Handle) error
	Resolve(dir string) (*Handle, error)
}

// DetectPointer picks a backend for root. PointerAuto probes whether root
// supports symbolic links and falls back to pointer files.
func DetectPointer(root string, kind PointerKind) (Pointer, error) {
	switch kind {
	case PointerFile:
		return FilePointer{}, nil
	case PointerSymlink:
		if !symlinksSupported(root) {
			return nil, ErrSymlinkUnsupported
		}
		return SymlinkPointer{}, nil
	case PointerAuto, "":
		if symlinksSupported(root) {
			return SymlinkPointer{}, nil
		}
		return FilePointer{}, nil
	default:
		return nil, fmt.Errorf("snapshot: unknown pointer kind %q", kind)
	}
}

func symlinksSupported(root string) bool {
	probe := filepath.Join(root, ".symlink-probe."+ulid.Make().String())
	if err := os.Symlink(LatestName, probe); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}

// SymlinkPointer stores checkpoint_last as a relative symbolic link.
type SymlinkPointer struct{}

func (SymlinkPointer) Kind() PointerKind { return PointerSymlink }

func (SymlinkPointer) Update(dir string, h *Handle) error {
	tmp := pointerTempPath(dir)
	if err := os.Symlink(h.Name, tmp); err != nil {
		return fmt.Errorf("snapshot: create pointer link: %w", err)
	}
	return replacePointer(dir, tmp)
}

func (SymlinkPointer) Resolve(dir string) (*Handle, error) {
	return resolvePointer(dir)
}

// FilePointer stores checkpoint_last as a small file holding the snapshot
// name, for filesystems without symbolic links.
type FilePointer struct{}

func (FilePointer) Kind() PointerKind { return PointerFile }

func (FilePointer) Update(dir string, h *Handle) error {
	tmp := pointerTempPath(dir)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return fmt.Errorf("snapshot: create pointer file: %w", err)
	}
	if _, err := io.WriteString(f, h.Name+"\n"); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("snapshot: write pointer file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("snapshot: sync pointer file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: close pointer file: %w", err)
	}
	return replacePointer(dir, tmp)
}

func (FilePointer) Resolve(dir string) (*Handle, error) {
	return resolvePointer(dir)
}

func pointerTempPath(dir string) string {
	return filepath.Join(dir, "."+LatestName+"."+ulid.Make().String()+tempSuffix)
}

func replacePointer(dir, tmp string) error {
	if err := os.Rename(tmp, filepath.Join(dir, LatestName)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: replace pointer: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("snapshot: sync dir: %w", err)
	}
	return nil
}

// resolvePointer reads checkpoint_last in either form, so a directory written
// by one backend can be read by the other.
func resolvePointer(dir string) (*Handle, error) {
	path := filepath.Join(dir, LatestName)
	fi, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var name string
	if fi.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot: read pointer link: %w", err)
		}
		name = filepath.Base(target)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot: open pointer file: %w", err)
		}
		buf, err := io.ReadAll(io.LimitReader(f, maxPointerSize))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("snapshot: read pointer file: %w", err)
		}
		name = strings.TrimSpace(string(buf))
	}

	created, err := ParseName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPointer, err)
	}

	target := filepath.Join(dir, name)
	st, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDanglingPointer, name)
		}
		return nil, err
	}

	return &Handle{
		Component: filepath.Base(dir),
		Name:      name,
		Path:      target,
		CreatedAt: created,
		Size:      st.Size(),
	}, nil
}
