package stats

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		CapturedAt:   time.Unix(1700000000, 0),
		OverallScore: 92,
		OverallStatus: StatusHealthy,
		Components: map[string]ComponentSnapshot{
			"orders": {
				Name:       "orders",
				Operations: map[string]int64{"place": 5},
				Errors:     map[string]int64{"validation": 1},
				Gauges:     map[string]float64{GaugeBufferUtil: 0.1},
				Latencies: map[string]HistogramSnapshot{
					"place": {Bounds: []float64{0.01, 0.1}, Counts: []int64{3, 2, 0}, Sum: 0.4, Count: 5},
				},
			},
		},
		ComponentScore:  map[string]int{"orders": 95},
		ComponentStatus: map[string]Status{"orders": StatusHealthy},
	}
}

func TestJSONExporter_RoundTrips(t *testing.T) {
	out, err := JSONExporter{}.Export(sampleSnapshot())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, float64(92), decoded["overall_score"])
}

func TestCSVExporter_IncludesComponentRows(t *testing.T) {
	out, err := CSVExporter{}.Export(sampleSnapshot())
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "orders,operation,place,5")
	assert.Contains(t, text, "orders,error,validation,1")
}

func TestPrometheusExporter_EmitsHelpAndTypeLines(t *testing.T) {
	out, err := PrometheusExporter{}.Export(sampleSnapshot())
	require.NoError(t, err)
	text := string(out)
	assert.True(t, strings.Contains(text, "# HELP tradingsuite_health_score"))
	assert.True(t, strings.Contains(text, `tradingsuite_health_score{component="orders"} 95`))
}

func TestDatadogExporter_EmitsSeriesPerComponent(t *testing.T) {
	out, err := DatadogExporter{}.Export(sampleSnapshot())
	require.NoError(t, err)

	var payload datadogPayload
	require.NoError(t, json.Unmarshal(out, &payload))
	assert.NotEmpty(t, payload.Series)

	found := false
	for _, s := range payload.Series {
		if s.Metric == "tradingsuite.operations.place" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSanitizeIdentifier_StripsDisallowedCharacters(t *testing.T) {
	assert.Equal(t, "account_123", sanitizeIdentifier("account#123"))
}
