// Package adaptive provides authenticated encryption for checkpoint payloads.
//
// The cipher is chosen from the hardware the process runs on:
//
//   - AES-256-GCM when the CPU has AES acceleration (amd64, arm64)
//   - ChaCha20-Poly1305 everywhere else
//
// Keys for individual components are derived from one master key with
// HKDF-SHA256, so a leaked component key does not expose the others.
//
// Usage:
//
//	master, err := adaptive.ParseKey(cfg.EncryptionKey)
//	c, err := adaptive.Derive(master, "expert-0")
//	sealed, err := c.Encrypt(payload, []byte("expert-0"))
package adaptive
