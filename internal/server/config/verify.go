package config

import (
	"errors"
	"fmt"
	"net"
	"slices"

	"github.com/yndnr/moeckpt/internal/telemetry/logger"
	"github.com/yndnr/moeckpt/pkg/crypto/adaptive"
)

// Verify validates the configuration. All problems are reported together.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	return errors.Join(
		verifyCheckpoint(&cfg.Checkpoint),
		verifyExperts(&cfg.Experts),
		verifyServer(&cfg.Server),
		verifyLog(&cfg.Log),
	)
}

func verifyCheckpoint(c *CheckpointSection) error {
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.New("checkpoint.dir is required"))
	}
	if c.Period <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint.period must be positive, got %v", c.Period))
	}
	if c.RetentionCount < 0 {
		errs = append(errs, errors.New("checkpoint.retention_count must not be negative"))
	}
	if c.Parallelism < 0 {
		errs = append(errs, errors.New("checkpoint.parallelism must not be negative"))
	}
	if c.WriteRateBytes < 0 {
		errs = append(errs, errors.New("checkpoint.write_rate_bytes must not be negative"))
	}
	switch c.Pointer {
	case "", "auto", "symlink", "file":
	default:
		errs = append(errs, fmt.Errorf("checkpoint.pointer must be auto, symlink or file, got %q", c.Pointer))
	}
	if c.EncryptionKey != "" {
		if _, err := adaptive.ParseKey(c.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("checkpoint.encryption_key: %w", err))
		}
	}
	return errors.Join(errs...)
}

func verifyExperts(e *ExpertsSection) error {
	var errs []error
	if len(e.Names) == 0 {
		errs = append(errs, errors.New("experts.names must not be empty"))
	}
	seen := make(map[string]bool, len(e.Names))
	for _, name := range e.Names {
		if seen[name] {
			errs = append(errs, fmt.Errorf("experts.names: duplicate %q", name))
		}
		seen[name] = true
	}
	if e.Dim <= 0 {
		errs = append(errs, errors.New("experts.dim must be positive"))
	}
	return errors.Join(errs...)
}

func verifyServer(s *ServerSection) error {
	if s.MetricsAddr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.MetricsAddr); err != nil {
		return fmt.Errorf("server.metrics_addr: %w", err)
	}
	return nil
}

func verifyLog(l *LogSection) error {
	var errs []error
	if _, err := logger.ParseLevel(l.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if !slices.Contains([]string{"", "json", "text", "console"}, l.Format) {
		errs = append(errs, fmt.Errorf("log.format must be json, text or console, got %q", l.Format))
	}
	return errors.Join(errs...)
}
