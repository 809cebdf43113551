// Package metric provides Prometheus metrics for checkpointing.
//
//   - prometheus.go: Registry with save/restore instruments and /metrics handler
//   - collector.go: scrape-time collector for snapshots kept on disk
//
// Metrics:
//
//   - moeckpt_save_duration_seconds{component}
//   - moeckpt_save_failures_total{component}
//   - moeckpt_last_success_timestamp_seconds{component}
//   - moeckpt_snapshot_bytes{component}
//   - moeckpt_cycles_total{result}
//   - moeckpt_restores_total{component,result}
//   - moeckpt_snapshots_on_disk{component}
//
// All Registry methods are safe to call on a nil *Registry.
package metric
