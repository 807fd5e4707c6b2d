// Package config is the suite's typed, recognized-option configuration
// surface: a mapstructure-tagged struct bindable with viper. Loading
// from file/env is the embedding application's job; this package owns
// the struct shape, defaults and validation.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Feature names recognized in Features; features ⊆ {orderbook,
// risk_manager}.
const (
	FeatureOrderbook   = "orderbook"
	FeatureRiskManager = "risk_manager"
)

// SessionMode selects how Clock classifies moments into RTH/ETH.
type SessionMode string

const (
	SessionModeETH    SessionMode = "ETH"
	SessionModeRTH    SessionMode = "RTH"
	SessionModeCustom SessionMode = "Custom"
)

// SessionWindow is one product's custom RTH window, used when
// SessionConfig.Mode is Custom.
type SessionWindow struct {
	Contract   string `mapstructure:"contract"`
	StartHour  int    `mapstructure:"start_hour"`
	StartMin   int    `mapstructure:"start_minute"`
	EndHour    int    `mapstructure:"end_hour"`
	EndMin     int    `mapstructure:"end_minute"`
}

// SessionConfig selects the session classification mode.
type SessionConfig struct {
	Mode    SessionMode     `mapstructure:"mode"`
	Windows []SessionWindow `mapstructure:"windows"`
}

// Validation holds tick/price/volume/timestamp sanity thresholds.
type Validation struct {
	MaxPriceDeviationPct float64 `mapstructure:"max_price_deviation_pct"`
	MaxVolumeMultiple    float64 `mapstructure:"max_volume_multiple"`
	MaxClockSkew         string  `mapstructure:"max_clock_skew"`
}

// Buffers holds per-subsystem bounded-buffer capacities and the
// backpressure watermark.
type Buffers struct {
	EventQueueCapacity int     `mapstructure:"event_queue_capacity"`
	BarRingCapacity    int     `mapstructure:"bar_ring_capacity"`
	TradeRingCapacity  int     `mapstructure:"trade_ring_capacity"`
	BackpressureAt     float64 `mapstructure:"backpressure_at"`
}

// CircuitBreaker configures the shared breaker policy (transport auth,
// reconciliation, stream reconnect).
type CircuitBreaker struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	Window           string `mapstructure:"window"`
	BaseCooldown     string `mapstructure:"base_cooldown"`
	MaxCooldown      string `mapstructure:"max_cooldown"`
}

// Retry configures exponential backoff with jitter for transient
// transport failures.
type Retry struct {
	MaxAttempts  int     `mapstructure:"max_attempts"`
	BaseDelay    string  `mapstructure:"base_delay"`
	MaxDelay     string  `mapstructure:"max_delay"`
	JitterFactor float64 `mapstructure:"jitter_factor"`
}

// HealthWeights is the mapstructure-bindable mirror of
// stats.HealthWeights, kept as a separate plain-float struct here so
// config stays free of internal/stats's types.
type HealthWeights struct {
	ConnectionHealth float64 `mapstructure:"connection_health"`
	ValidationReject float64 `mapstructure:"validation_reject"`
	RetryRate        float64 `mapstructure:"retry_rate"`
	BufferUtil       float64 `mapstructure:"buffer_util"`
	ErrorRateDelta   float64 `mapstructure:"error_rate_delta"`
}

// Config is the Suite's full recognized-option surface.
type Config struct {
	Contract    string        `mapstructure:"contract"`
	Timeframes  []string      `mapstructure:"timeframes"`
	Features    []string      `mapstructure:"features"`
	InitialDays int           `mapstructure:"initial_days"`
	Timezone    string        `mapstructure:"timezone"`
	Session     SessionConfig `mapstructure:"session_config"`

	Validation     Validation     `mapstructure:"validation"`
	Buffers        Buffers        `mapstructure:"buffers"`
	CircuitBreaker CircuitBreaker `mapstructure:"circuit_breaker"`
	Retry          Retry          `mapstructure:"retry"`
	HealthWeights  HealthWeights  `mapstructure:"health_weights"`
}

// HasFeature reports whether name is enabled.
func (c *Config) HasFeature(name string) bool {
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Validate checks the required fields and closed vocabularies (contract
// required, features restricted to the known set).
func (c *Config) Validate() error {
	if c.Contract == "" {
		return fmt.Errorf("config: contract is required")
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("config: at least one timeframe is required")
	}
	for _, f := range c.Features {
		if f != FeatureOrderbook && f != FeatureRiskManager {
			return fmt.Errorf("config: unrecognized feature %q", f)
		}
	}
	switch c.Session.Mode {
	case SessionModeETH, SessionModeRTH, SessionModeCustom, "":
	default:
		return fmt.Errorf("config: unrecognized session mode %q", c.Session.Mode)
	}
	return nil
}

// Default returns a Config populated with the suite's defaults; callers
// bind a viper instance over it to layer file/env overrides.
func Default() *Config {
	return &Config{
		Timeframes:  []string{"1m", "5m"},
		InitialDays: 5,
		Timezone:    "America/New_York",
		Session:     SessionConfig{Mode: SessionModeRTH},
		Validation: Validation{
			MaxPriceDeviationPct: 0.10,
			MaxVolumeMultiple:    20,
			MaxClockSkew:         "5s",
		},
		Buffers: Buffers{
			EventQueueCapacity: 10000,
			BarRingCapacity:    1000,
			TradeRingCapacity:  10000,
			BackpressureAt:     0.95,
		},
		CircuitBreaker: CircuitBreaker{
			FailureThreshold: 10,
			Window:           "300s",
			BaseCooldown:     "1s",
			MaxCooldown:      "60s",
		},
		Retry: Retry{
			MaxAttempts:  5,
			BaseDelay:    "200ms",
			MaxDelay:     "10s",
			JitterFactor: 0.2,
		},
		HealthWeights: HealthWeights{
			ConnectionHealth: 1,
			ValidationReject: 1,
			RetryRate:        1,
			BufferUtil:       1,
			ErrorRateDelta:   1,
		},
	}
}

// Load binds v (already pointed at a config file/env source by the
// embedding application) over Default() and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
