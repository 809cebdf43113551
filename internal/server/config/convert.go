package config

import (
	"fmt"
	"log/slog"

	"github.com/yndnr/moeckpt/internal/checkpoint"
	"github.com/yndnr/moeckpt/internal/storage/snapshot"
	"github.com/yndnr/moeckpt/internal/telemetry/metric"
	"github.com/yndnr/moeckpt/pkg/crypto/adaptive"
)

// ToStoreConfig maps the checkpoint section to checkpoint.Config.
func ToStoreConfig(cfg *ServerConfig, logger *slog.Logger, metrics *metric.Registry) (checkpoint.Config, error) {
	if cfg == nil {
		return checkpoint.Config{}, fmt.Errorf("server config is nil")
	}
	c := cfg.Checkpoint

	var key []byte
	if c.EncryptionKey != "" {
		k, err := adaptive.ParseKey(c.EncryptionKey)
		if err != nil {
			return checkpoint.Config{}, fmt.Errorf("checkpoint.encryption_key: %w", err)
		}
		key = k
	}

	return checkpoint.Config{
		Dir:            c.Dir,
		Pointer:        snapshot.PointerKind(c.Pointer),
		StagingDir:     c.StagingDir,
		RateLimit:      c.WriteRateBytes,
		EncryptionKey:  key,
		RetentionCount: c.RetentionCount,
		Parallelism:    c.Parallelism,
		Logger:         logger,
		Metrics:        metrics,
	}, nil
}
