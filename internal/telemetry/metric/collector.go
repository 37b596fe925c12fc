package metric

import "github.com/prometheus/client_golang/prometheus"

// ActorSource reports registry statistics.
type ActorSource interface {
	// Count returns the number of registered actors.
	Count() int
	// ModuleLoads returns how many times actor sources were loaded.
	ModuleLoads() int64
}

// Collector exports registry statistics at scrape time.
type Collector struct {
	source ActorSource

	actors *prometheus.Desc
	loads  *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source ActorSource) *Collector {
	return &Collector{
		source: source,
		actors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "actor", "registered"),
			"Registered actors, built-ins included.",
			nil, nil,
		),
		loads: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "actor", "module_loads_total"),
			"Actor source loads.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.actors
	ch <- c.loads
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.actors, prometheus.GaugeValue, float64(c.source.Count()))
	ch <- prometheus.MustNewConstMetric(c.loads, prometheus.CounterValue, float64(c.source.ModuleLoads()))
}
