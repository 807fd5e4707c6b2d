package stats

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
)

// CSVExporter renders one row per (component, operation-counter) plus
// one row per (component, error-kind) and one per gauge, a flat shape
// suited to spreadsheet ingestion.
type CSVExporter struct{}

func (CSVExporter) Export(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"component", "metric_type", "metric", "value", "status", "score"}); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(snap.Components))
	for name := range snap.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cs := snap.Components[name]
		status := string(snap.ComponentStatus[name])
		score := strconv.Itoa(snap.ComponentScore[name])
		clean := sanitizeIdentifier(name)

		if err := writeSorted(w, clean, "operation", cs.Operations, status, score); err != nil {
			return nil, err
		}
		if err := writeSorted(w, clean, "error", cs.Errors, status, score); err != nil {
			return nil, err
		}

		gaugeKeys := make([]string, 0, len(cs.Gauges))
		for k := range cs.Gauges {
			gaugeKeys = append(gaugeKeys, k)
		}
		sort.Strings(gaugeKeys)
		for _, k := range gaugeKeys {
			if err := w.Write([]string{clean, "gauge", sanitizeIdentifier(k), strconv.FormatFloat(cs.Gauges[k], 'f', 6, 64), status, score}); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSorted(w *csv.Writer, component, metricType string, counts map[string]int64, status, score string) error {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.Write([]string{component, metricType, sanitizeIdentifier(k), strconv.FormatInt(counts[k], 10), status, score}); err != nil {
			return err
		}
	}
	return nil
}
