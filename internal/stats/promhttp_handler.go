package stats

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// collectorAdapter satisfies prometheus.Collector by reading a Registry
// Snapshot on every scrape, letting an HTTP scrape endpoint sit beside
// the stdlib-based PrometheusExporter without duplicating the metric
// descriptions.
type collectorAdapter struct {
	registry  *Registry
	scoreDesc *prometheus.Desc
}

func newCollectorAdapter(registry *Registry, namespace string) *collectorAdapter {
	return &collectorAdapter{
		registry: registry,
		scoreDesc: prometheus.NewDesc(
			namespace+"_health_score",
			"Overall and per-component health score (0-100).",
			[]string{"component"}, nil,
		),
	}
}

func (c *collectorAdapter) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.scoreDesc
}

func (c *collectorAdapter) Collect(ch chan<- prometheus.Metric) {
	snap := c.registry.Snapshot(context.Background())
	ch <- prometheus.MustNewConstMetric(c.scoreDesc, prometheus.GaugeValue, float64(snap.OverallScore), "overall")
	for name, score := range snap.ComponentScore {
		ch <- prometheus.MustNewConstMetric(c.scoreDesc, prometheus.GaugeValue, float64(score), sanitizeIdentifier(name))
	}
}

// ScrapeHandler returns an http.Handler exposing this Registry's health
// scores in live Prometheus exposition format via client_golang's own
// registry and promhttp, for suites that want a pull-based scrape
// endpoint rather than (or alongside) PrometheusExporter's push/batch
// text output.
func (r *Registry) ScrapeHandler(namespace string) http.Handler {
	if namespace == "" {
		namespace = "tradingsuite"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(newCollectorAdapter(r, namespace))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
