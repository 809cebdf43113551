package config

import "time"

// ServerConfig is the root configuration for moeckpt-server.
type ServerConfig struct {
	Checkpoint CheckpointSection `koanf:"checkpoint" yaml:"checkpoint" json:"checkpoint"`
	Experts    ExpertsSection    `koanf:"experts" yaml:"experts" json:"experts"`
	Server     ServerSection     `koanf:"server" yaml:"server" json:"server"`
	Log        LogSection        `koanf:"log" yaml:"log" json:"log"`
}

// CheckpointSection configures the checkpoint store and scheduler.
type CheckpointSection struct {
	// Dir is the checkpoint root. It must exist before startup.
	Dir string `koanf:"dir" yaml:"dir" json:"dir"`

	// Period between the end of one save cycle and the start of the next.
	Period time.Duration `koanf:"period" yaml:"period" json:"period"`

	// RetentionCount keeps the newest N snapshots per component. 0 keeps all.
	RetentionCount int `koanf:"retention_count" yaml:"retention_count" json:"retention_count"`

	// Parallelism bounds concurrent component saves.
	Parallelism int `koanf:"parallelism" yaml:"parallelism" json:"parallelism"`

	// StagingDir holds in-progress writes. Empty stages inside each
	// component directory.
	StagingDir string `koanf:"staging_dir" yaml:"staging_dir" json:"staging_dir"`

	// Pointer is auto, symlink or file.
	Pointer string `koanf:"pointer" yaml:"pointer" json:"pointer"`

	// WriteRateBytes caps snapshot write throughput. 0 is unlimited.
	WriteRateBytes int64 `koanf:"write_rate_bytes" yaml:"write_rate_bytes" json:"write_rate_bytes"`

	// EncryptionKey is a 32-byte key, hex or base64. Empty disables
	// encryption.
	EncryptionKey string `koanf:"encryption_key" yaml:"encryption_key" json:"encryption_key"`

	// SaveOnShutdown runs one more save cycle after the scheduler stops.
	SaveOnShutdown bool `koanf:"save_on_shutdown" yaml:"save_on_shutdown" json:"save_on_shutdown"`
}

// ExpertsSection configures the hosted experts.
type ExpertsSection struct {
	Names []string `koanf:"names" yaml:"names" json:"names"`
	Dim   int      `koanf:"dim" yaml:"dim" json:"dim"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	// MetricsAddr serves /metrics and POST /checkpoint. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr" yaml:"metrics_addr" json:"metrics_addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level" json:"level"`
	Format string `koanf:"format" yaml:"format" json:"format"`
}
