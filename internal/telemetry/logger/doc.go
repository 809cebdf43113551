// Package logger builds the process *slog.Logger.
//
//   - logger.go: handler selection (json, text, console) and level control
//   - context.go: carrying a request-scoped logger through a context
//   - redact.go: masking of key material and secrets
//
// Core packages never import this package; they take a *slog.Logger.
package logger
