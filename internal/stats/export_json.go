package stats

import "encoding/json"

// JSONExporter renders a Snapshot as a single JSON document.
type JSONExporter struct {
	// Indent pretty-prints when non-empty.
	Indent string
}

type jsonSnapshot struct {
	CapturedAt      string                       `json:"captured_at"`
	OverallScore    int                          `json:"overall_score"`
	OverallStatus   string                       `json:"overall_status"`
	Components      map[string]jsonComponent     `json:"components"`
}

type jsonComponent struct {
	Score      int                          `json:"score"`
	Status     string                       `json:"status"`
	Operations map[string]int64             `json:"operations"`
	Errors     map[string]int64             `json:"errors"`
	Gauges     map[string]float64           `json:"gauges"`
	Latencies  map[string]HistogramSnapshot `json:"latencies"`
}

func (e JSONExporter) Export(snap Snapshot) ([]byte, error) {
	out := jsonSnapshot{
		CapturedAt:    snap.CapturedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		OverallScore:  snap.OverallScore,
		OverallStatus: string(snap.OverallStatus),
		Components:    make(map[string]jsonComponent, len(snap.Components)),
	}
	for name, cs := range snap.Components {
		out.Components[sanitizeIdentifier(name)] = jsonComponent{
			Score:      snap.ComponentScore[name],
			Status:     string(snap.ComponentStatus[name]),
			Operations: cs.Operations,
			Errors:     cs.Errors,
			Gauges:     cs.Gauges,
			Latencies:  cs.Latencies,
		}
	}
	if e.Indent != "" {
		return json.MarshalIndent(out, "", e.Indent)
	}
	return json.Marshal(out)
}
