// Package snapshot writes, promotes and resolves per-component checkpoint
// files.
//
// Layout under a component directory:
//
//	checkpoint_<YYYYMMDDThhmmss.nnnnnnnnnZ>   immutable snapshot
//	checkpoint_last                           pointer to the newest snapshot
//	.<name>.<ulid>.tmp                        staging file, never visible
//
// Snapshot file format:
//
//	[magic:8 "MOECKPT1"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:8][Data:DataLen]   (opaque payload, or AEAD-sealed payload)
//	[checksum:32 SHA-256 of all bytes above]
//
// Promotion is a single rename of a fully written, fsynced staging file, so
// a directory listing either shows a complete snapshot or nothing. The
// checkpoint_last pointer is replaced the same way: a new link or pointer
// file is created under a temporary name and renamed over the old one.
package snapshot
