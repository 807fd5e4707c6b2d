package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValidOnceContractIsSet(t *testing.T) {
	cfg := Default()
	cfg.Contract = "CON.F.US.ES.H26"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RequiresContract(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownFeature(t *testing.T) {
	cfg := Default()
	cfg.Contract = "CON.F.US.ES.H26"
	cfg.Features = []string{"bogus"}
	assert.Error(t, cfg.Validate())
}

func TestHasFeature(t *testing.T) {
	cfg := Default()
	cfg.Features = []string{FeatureOrderbook}
	assert.True(t, cfg.HasFeature(FeatureOrderbook))
	assert.False(t, cfg.HasFeature(FeatureRiskManager))
}

func TestLoad_LayersOverridesOverDefaults(t *testing.T) {
	v := viper.New()
	v.Set("contract", "CON.F.US.MNQ.H26")
	v.Set("initial_days", 10)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "CON.F.US.MNQ.H26", cfg.Contract)
	assert.Equal(t, 10, cfg.InitialDays)
	// Unset keys keep Default()'s values.
	assert.Equal(t, "America/New_York", cfg.Timezone)
}
