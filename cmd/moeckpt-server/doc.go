// Package main provides the entry point for moeckpt-server.
//
// The server hosts a set of experts, restores each from its latest
// checkpoint, saves them all once, and then checkpoints them every
// checkpoint.period until it receives SIGINT or SIGTERM.
//
// Usage:
//
//	moeckpt-server --config /etc/moeckpt/server.yaml
//
// Every setting can be overridden from the environment, for example
// MOECKPT_CHECKPOINT_DIR or MOECKPT_LOG_LEVEL.
package main
