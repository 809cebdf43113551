package checkpoint

import "context"

// StateSource is a named unit of mutable state that can be captured and
// restored. The bytes are opaque to this package.
//
// Snapshot must return a consistent copy; the caller may hold the bytes
// after the call returns.
type StateSource interface {
	Snapshot(ctx context.Context) ([]byte, error)
	Restore(ctx context.Context, data []byte) error
}

// SourceFuncs adapts a pair of functions to StateSource.
type SourceFuncs struct {
	SnapshotFunc func(ctx context.Context) ([]byte, error)
	RestoreFunc  func(ctx context.Context, data []byte) error
}

func (f SourceFuncs) Snapshot(ctx context.Context) ([]byte, error) {
	return f.SnapshotFunc(ctx)
}

func (f SourceFuncs) Restore(ctx context.Context, data []byte) error {
	return f.RestoreFunc(ctx, data)
}
