// Package config defines the moeckpt-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets for logs
//   - convert.go: mapping to checkpoint.Config
//
// Configuration is loaded via internal/infra/confloader from a YAML file and
// MOECKPT_* environment variables.
package config
