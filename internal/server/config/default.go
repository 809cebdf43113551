package config

import "time"

// Default configuration values.
const (
	DefaultCheckpointDir = "/var/lib/moeckpt"
	DefaultPeriod        = time.Minute
	DefaultParallelism   = 1
	DefaultPointer       = "auto"

	DefaultExpertDim = 16

	DefaultMetricsAddr = "127.0.0.1:9464"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Checkpoint: CheckpointSection{
			Dir:            DefaultCheckpointDir,
			Period:         DefaultPeriod,
			Parallelism:    DefaultParallelism,
			Pointer:        DefaultPointer,
			SaveOnShutdown: true,
		},
		Experts: ExpertsSection{
			Names: []string{"expert.0", "expert.1"},
			Dim:   DefaultExpertDim,
		},
		Server: ServerSection{
			MetricsAddr: DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
