package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var magicBytes = []byte("MOECKPT1")

const (
	checksumSize  = sha256.Size
	headerVersion = 1
)

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrTruncated        = errors.New("snapshot: truncated file")
	ErrKeyRequired      = errors.New("snapshot: encrypted snapshot requires a key")
)

type fileHeader struct {
	Version     int    `json:"version"`
	Component   string `json:"component"`
	CreatedAt   int64  `json:"created_at"`
	PayloadSize int64  `json:"payload_size"`
	Encrypted   bool   `json:"encrypted"`
	Cipher      string `json:"cipher,omitempty"`
}

// encodeTo writes the framed snapshot to w and returns the hex checksum
// and the number of bytes written.
func encodeTo(w io.Writer, hdr fileHeader, data []byte) (string, int64, error) {
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return "", 0, fmt.Errorf("snapshot: marshal header: %w", err)
	}

	hash := sha256.New()
	mw := io.MultiWriter(w, hash)

	var hdrLen [4]byte
	binary.BigEndian.PutUint32(hdrLen[:], uint32(len(hdrJSON)))
	var dataLen [8]byte
	binary.BigEndian.PutUint64(dataLen[:], uint64(len(data)))

	var n int64
	for _, part := range [][]byte{magicBytes, hdrLen[:], hdrJSON, dataLen[:], data} {
		m, err := mw.Write(part)
		n += int64(m)
		if err != nil {
			return "", n, err
		}
	}

	// Trailer is not part of the hash.
	sum := hash.Sum(nil)
	m, err := w.Write(sum)
	n += int64(m)
	if err != nil {
		return "", n, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	return hex.EncodeToString(sum), n, nil
}

// decode verifies raw and splits it into header and payload.
func decode(raw []byte) (fileHeader, []byte, string, error) {
	var hdr fileHeader
	if len(raw) < len(magicBytes)+4+8+checksumSize {
		return hdr, nil, "", ErrTruncated
	}

	body := raw[:len(raw)-checksumSize]
	expected := raw[len(raw)-checksumSize:]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], expected) {
		return hdr, nil, "", ErrChecksumMismatch
	}
	if !bytes.Equal(body[:len(magicBytes)], magicBytes) {
		return hdr, nil, "", ErrInvalidMagic
	}

	rest := body[len(magicBytes):]
	hdrLen := int(binary.BigEndian.Uint32(rest[:4]))
	rest = rest[4:]
	if hdrLen == 0 || hdrLen > len(rest)-8 {
		return hdr, nil, "", ErrTruncated
	}
	if err := json.Unmarshal(rest[:hdrLen], &hdr); err != nil {
		return hdr, nil, "", fmt.Errorf("snapshot: unmarshal header: %w", err)
	}
	rest = rest[hdrLen:]

	dataLen := binary.BigEndian.Uint64(rest[:8])
	rest = rest[8:]
	if dataLen != uint64(len(rest)) {
		return hdr, nil, "", ErrTruncated
	}
	return hdr, rest, hex.EncodeToString(expected), nil
}
