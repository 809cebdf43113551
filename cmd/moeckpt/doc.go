// Package main provides the entry point for moeckpt.
//
// moeckpt reads a checkpoint root directly:
//
//   - list components and their snapshots
//   - show a snapshot header or extract its payload
//   - verify checksums and checkpoint_last pointers
//   - prune old snapshots
//
// save asks a running moeckpt-server to checkpoint immediately.
//
// Usage:
//
//	moeckpt --dir /var/lib/moeckpt list
//	moeckpt --config server.yaml verify
//	moeckpt -o json show expert.0
package main
