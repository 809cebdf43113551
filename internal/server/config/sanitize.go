package config

import "github.com/yndnr/moeckpt/internal/telemetry/logger"

// Sanitize returns a copy of the config with sensitive fields masked, for
// logging or display.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Experts.Names = append([]string(nil), cfg.Experts.Names...)
	if sanitized.Checkpoint.EncryptionKey != "" {
		sanitized.Checkpoint.EncryptionKey = logger.MaskKey(sanitized.Checkpoint.EncryptionKey)
	}
	return &sanitized
}
