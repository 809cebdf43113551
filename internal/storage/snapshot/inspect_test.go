package snapshot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
)

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t, Config{})
	h, err := w.Write(context.Background(), dir, "expert-0", []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := Inspect(h.Path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Component != "expert-0" || info.Name != h.Name {
		t.Fatalf("info = %+v", info)
	}
	if !info.CreatedAt.Equal(h.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", info.CreatedAt, h.CreatedAt)
	}
	if info.PayloadSize != 7 || info.FileSize != h.Size || info.Checksum != h.Checksum {
		t.Fatalf("sizes/checksum = %+v, handle %+v", info, h)
	}
	if info.Encrypted {
		t.Fatal("Encrypted = true")
	}

	if err := os.WriteFile(h.Path, []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Inspect(h.Path); !errors.Is(err, ErrTruncated) {
		t.Fatalf("Inspect(junk) error = %v, want ErrTruncated", err)
	}
}

func TestInspect_EncryptedWithoutKey(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t, Config{Key: bytes.Repeat([]byte{1}, 32)})
	h, err := w.Write(context.Background(), dir, "expert-0", []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := Inspect(h.Path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !info.Encrypted || info.Cipher == "" {
		t.Fatalf("info = %+v", info)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	if h, err := Resolve(dir); h != nil || err != nil {
		t.Fatalf("Resolve(empty) = %v, %v", h, err)
	}
	w := newTestWriter(t, Config{})
	h, err := w.Write(context.Background(), dir, "c", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := (FilePointer{}).Update(dir, h); err != nil {
		t.Fatal(err)
	}
	got, err := Resolve(dir)
	if err != nil || got.Name != h.Name {
		t.Fatalf("Resolve = %v, %v", got, err)
	}
}
