package cache

import "github.com/prometheus/client_golang/prometheus"

// Metric descriptors for the cache counter set, in the standard text
// exposition format: monotonic counters plus point-in-time gauges.
var (
	descReads = prometheus.NewDesc(
		"strata_cache_reads_total",
		"Total get calls against the cached object store.",
		nil, nil)
	descHits = prometheus.NewDesc(
		"strata_cache_hits_total",
		"Get calls served from the resident cache.",
		nil, nil)
	descMisses = prometheus.NewDesc(
		"strata_cache_misses_total",
		"Get calls that fell through to the backend.",
		nil, nil)
	descEvictions = prometheus.NewDesc(
		"strata_cache_evictions_total",
		"Entries evicted to make room for new admissions.",
		nil, nil)
	descBytesResident = prometheus.NewDesc(
		"strata_cache_bytes_resident",
		"Stored size of all resident cache entries.",
		nil, nil)
	descEntryCount = prometheus.NewDesc(
		"strata_cache_entry_count",
		"Number of resident cache entries.",
		nil, nil)
)

// StatsCollector exposes a Stats counter set as Prometheus metrics
// without copying values into a second set of counters.
type StatsCollector struct {
	stats *Stats
}

// NewStatsCollector creates a collector reading from stats.
func NewStatsCollector(stats *Stats) *StatsCollector {
	return &StatsCollector{stats: stats}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descReads
	ch <- descHits
	ch <- descMisses
	ch <- descEvictions
	ch <- descBytesResident
	ch <- descEntryCount
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	ch <- prometheus.MustNewConstMetric(descReads, prometheus.CounterValue, float64(snap.Reads))
	ch <- prometheus.MustNewConstMetric(descHits, prometheus.CounterValue, float64(snap.Hits))
	ch <- prometheus.MustNewConstMetric(descMisses, prometheus.CounterValue, float64(snap.Misses))
	ch <- prometheus.MustNewConstMetric(descEvictions, prometheus.CounterValue, float64(snap.Evictions))
	ch <- prometheus.MustNewConstMetric(descBytesResident, prometheus.GaugeValue, float64(snap.BytesResident))
	ch <- prometheus.MustNewConstMetric(descEntryCount, prometheus.GaugeValue, float64(snap.EntryCount))
}

var _ prometheus.Collector = (*StatsCollector)(nil)
