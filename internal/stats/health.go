package stats

// Status is a component or overall health classification.
type Status string

const (
	StatusHealthy   Status = "Healthy"
	StatusDegraded  Status = "Degraded"
	StatusUnhealthy Status = "Unhealthy"
)

// HealthThresholds set the score cutoffs classifying a 0-100 score.
// Healthy is inclusive of HealthyMin and above; Degraded spans
// [DegradedMin, HealthyMin); anything below DegradedMin is Unhealthy.
type HealthThresholds struct {
	HealthyMin  int
	DegradedMin int
}

// DefaultHealthThresholds matches the suite's default {Healthy >= 80,
// Degraded 50-79, Unhealthy < 50}.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{HealthyMin: 80, DegradedMin: 50}
}

// Classify maps a 0-100 score to a Status.
func (t HealthThresholds) Classify(score int) Status {
	switch {
	case score >= t.HealthyMin:
		return StatusHealthy
	case score >= t.DegradedMin:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// HealthWeights are the relative contributions of each health input to
// the overall 0-100 score. They need not sum to 1; Score normalizes.
type HealthWeights struct {
	ConnectionHealth float64
	ValidationReject float64
	RetryRate        float64
	BufferUtil       float64
	ErrorRateDelta   float64
}

// DefaultHealthWeights gives every input equal weight.
func DefaultHealthWeights() HealthWeights {
	return HealthWeights{
		ConnectionHealth: 1,
		ValidationReject: 1,
		RetryRate:        1,
		BufferUtil:       1,
		ErrorRateDelta:   1,
	}
}

// HealthInputs are the per-component signals Score combines, each
// already normalized to [0, 1] where 1 is the best possible state.
type HealthInputs struct {
	ConnectionHealth float64
	ValidationReject float64
	RetryRate        float64
	BufferUtil       float64
	ErrorRateDelta   float64
}

// Score combines HealthInputs under w into a 0-100 health score. Each
// input is clamped to [0, 1] before weighting so a single malformed
// input cannot push the score out of range.
func Score(w HealthWeights, in HealthInputs) int {
	total := w.ConnectionHealth + w.ValidationReject + w.RetryRate + w.BufferUtil + w.ErrorRateDelta
	if total <= 0 {
		return 0
	}
	weighted := w.ConnectionHealth*clamp01(in.ConnectionHealth) +
		w.ValidationReject*clamp01(in.ValidationReject) +
		w.RetryRate*clamp01(in.RetryRate) +
		w.BufferUtil*clamp01(in.BufferUtil) +
		w.ErrorRateDelta*clamp01(in.ErrorRateDelta)
	score := int((weighted / total) * 100)
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
