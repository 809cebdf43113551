package metric

import "github.com/prometheus/client_golang/prometheus"

// DiskCollector reports how many snapshots each component keeps on disk.
// Counting happens at scrape time.
type DiskCollector struct {
	count func() map[string]int
	desc  *prometheus.Desc
}

// NewDiskCollector creates a collector backed by count.
func NewDiskCollector(count func() map[string]int) *DiskCollector {
	return &DiskCollector{
		count: count,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "snapshots_on_disk"),
			"Promoted snapshots present in the component directory.",
			[]string{"component"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *DiskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *DiskCollector) Collect(ch chan<- prometheus.Metric) {
	for component, n := range c.count() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), component)
	}
}
