package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Info describes a snapshot file without decrypting its payload.
type Info struct {
	Component   string    `json:"component" yaml:"component"`
	Name        string    `json:"name" yaml:"name"`
	Path        string    `json:"path" yaml:"path" table:"wide"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	FileSize    int64     `json:"file_size" yaml:"file_size" table:"bytes"`
	PayloadSize int64     `json:"payload_size" yaml:"payload_size" table:"bytes"`
	Encrypted   bool      `json:"encrypted" yaml:"encrypted"`
	Cipher      string    `json:"cipher,omitempty" yaml:"cipher,omitempty"`
	Checksum    string    `json:"checksum" yaml:"checksum" table:"wide"`
	Version     int       `json:"format_version" yaml:"format_version" table:"wide"`
}

// Inspect reads and verifies the snapshot at path and returns its header.
// Verification covers framing and checksum; decryption is not attempted.
func Inspect(path string) (*Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", filepath.Base(path), err)
	}
	hdr, _, checksum, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return &Info{
		Component:   hdr.Component,
		Name:        filepath.Base(path),
		Path:        path,
		CreatedAt:   time.Unix(0, hdr.CreatedAt).UTC(),
		FileSize:    int64(len(raw)),
		PayloadSize: hdr.PayloadSize,
		Encrypted:   hdr.Encrypted,
		Cipher:      hdr.Cipher,
		Checksum:    checksum,
		Version:     hdr.Version,
	}, nil
}

// Resolve reads checkpoint_last in dir regardless of which backend wrote
// it. It returns nil with a nil error when there is no pointer.
func Resolve(dir string) (*Handle, error) {
	return resolvePointer(dir)
}
