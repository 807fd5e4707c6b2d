package stats

import "encoding/json"

// datadogSeries mirrors the shape of a single entry in Datadog's
// `series` submission payload (metric name, points as [timestamp,
// value] pairs, and tags); encoded as a small typed struct with stdlib
// JSON.
type datadogSeries struct {
	Metric string          `json:"metric"`
	Points [][2]float64    `json:"points"`
	Type   string          `json:"type"`
	Tags   []string        `json:"tags,omitempty"`
}

type datadogPayload struct {
	Series []datadogSeries `json:"series"`
}

// DatadogExporter renders a Snapshot as a Datadog-style metrics
// submission payload.
type DatadogExporter struct {
	MetricPrefix string
}

func (e DatadogExporter) Export(snap Snapshot) ([]byte, error) {
	prefix := e.MetricPrefix
	if prefix == "" {
		prefix = "tradingsuite"
	}
	ts := float64(snap.CapturedAt.Unix())

	payload := datadogPayload{}
	payload.Series = append(payload.Series, datadogSeries{
		Metric: prefix + ".health.score",
		Points: [][2]float64{{ts, float64(snap.OverallScore)}},
		Type:   "gauge",
		Tags:   []string{"component:overall"},
	})

	for name, cs := range snap.Components {
		tag := "component:" + sanitizeIdentifier(name)
		payload.Series = append(payload.Series, datadogSeries{
			Metric: prefix + ".health.score",
			Points: [][2]float64{{ts, float64(snap.ComponentScore[name])}},
			Type:   "gauge",
			Tags:   []string{tag},
		})
		for op, n := range cs.Operations {
			payload.Series = append(payload.Series, datadogSeries{
				Metric: prefix + ".operations." + sanitizeIdentifier(op),
				Points: [][2]float64{{ts, float64(n)}},
				Type:   "count",
				Tags:   []string{tag},
			})
		}
		for kind, n := range cs.Errors {
			payload.Series = append(payload.Series, datadogSeries{
				Metric: prefix + ".errors." + sanitizeIdentifier(kind),
				Points: [][2]float64{{ts, float64(n)}},
				Type:   "count",
				Tags:   []string{tag},
			})
		}
		for g, v := range cs.Gauges {
			payload.Series = append(payload.Series, datadogSeries{
				Metric: prefix + ".gauges." + sanitizeIdentifier(g),
				Points: [][2]float64{{ts, v}},
				Type:   "gauge",
				Tags:   []string{tag},
			})
		}
	}

	return json.Marshal(payload)
}
