package stats

import (
	"bytes"
	"fmt"
	"sort"
)

// PrometheusExporter renders a Snapshot as Prometheus text exposition
// format (HELP/TYPE comments, counter/gauge/histogram metric families).
type PrometheusExporter struct {
	Namespace string
}

func (e PrometheusExporter) Export(snap Snapshot) ([]byte, error) {
	ns := e.Namespace
	if ns == "" {
		ns = "tradingsuite"
	}
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# HELP %s_health_score Overall and per-component health score (0-100).\n", ns)
	fmt.Fprintf(&buf, "# TYPE %s_health_score gauge\n", ns)
	fmt.Fprintf(&buf, "%s_health_score{component=\"overall\"} %d\n", ns, snap.OverallScore)

	names := make([]string, 0, len(snap.Components))
	for name := range snap.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		label := sanitizeIdentifier(name)
		fmt.Fprintf(&buf, "%s_health_score{component=%q} %d\n", ns, label, snap.ComponentScore[name])
	}

	fmt.Fprintf(&buf, "# HELP %s_operations_total Operation tallies per component.\n", ns)
	fmt.Fprintf(&buf, "# TYPE %s_operations_total counter\n", ns)
	for _, name := range names {
		label := sanitizeIdentifier(name)
		ops := snap.Components[name].Operations
		for _, op := range sortedKeys(ops) {
			fmt.Fprintf(&buf, "%s_operations_total{component=%q,op=%q} %d\n", ns, label, op, ops[op])
		}
	}

	fmt.Fprintf(&buf, "# HELP %s_errors_total Error tallies per component.\n", ns)
	fmt.Fprintf(&buf, "# TYPE %s_errors_total counter\n", ns)
	for _, name := range names {
		label := sanitizeIdentifier(name)
		errs := snap.Components[name].Errors
		for _, kind := range sortedKeys(errs) {
			fmt.Fprintf(&buf, "%s_errors_total{component=%q,kind=%q} %d\n", ns, label, kind, errs[kind])
		}
	}

	fmt.Fprintf(&buf, "# HELP %s_latency_seconds Operation latency histograms per component.\n", ns)
	fmt.Fprintf(&buf, "# TYPE %s_latency_seconds histogram\n", ns)
	for _, name := range names {
		label := sanitizeIdentifier(name)
		cs := snap.Components[name]
		ops := make([]string, 0, len(cs.Latencies))
		for op := range cs.Latencies {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			writeHistogram(&buf, ns, label, op, cs.Latencies[op])
		}
	}

	return buf.Bytes(), nil
}

func writeHistogram(buf *bytes.Buffer, ns, component, op string, h HistogramSnapshot) {
	var cumulative int64
	for i, bound := range h.Bounds {
		cumulative += h.Counts[i]
		fmt.Fprintf(buf, "%s_latency_seconds_bucket{component=%q,op=%q,le=%q} %d\n", ns, component, op, fmt.Sprintf("%g", bound), cumulative)
	}
	cumulative += h.Counts[len(h.Counts)-1]
	fmt.Fprintf(buf, "%s_latency_seconds_bucket{component=%q,op=%q,le=\"+Inf\"} %d\n", ns, component, op, cumulative)
	fmt.Fprintf(buf, "%s_latency_seconds_sum{component=%q,op=%q} %g\n", ns, component, op, h.Sum)
	fmt.Fprintf(buf, "%s_latency_seconds_count{component=%q,op=%q} %d\n", ns, component, op, h.Count)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
