package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aforo/internal/config"
)

func TestParserConfig_PrimaryConfig_LegacyFallback(t *testing.T) {
	cfg := config.ParserConfig{
		Provider:     "claude",
		APIKey:       "sk-legacy",
		DefaultModel: "claude-sonnet-4-20250514",
		MaxRetries:   3,
		TimeoutSecs:  30,
	}

	primary := cfg.PrimaryConfig()

	assert.Equal(t, "claude", primary.Provider)
	assert.Equal(t, "sk-legacy", primary.APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", primary.DefaultModel)
	assert.Equal(t, 3, primary.MaxRetries)
	assert.Equal(t, 30, primary.TimeoutSecs)
}

func TestParserConfig_PrimaryConfig_ExplicitPrimary(t *testing.T) {
	cfg := config.ParserConfig{
		Provider: "legacy-should-be-ignored",
		Primary: config.ParserProviderConfig{
			Provider: "gemini",
			APIKey:   "gk-primary",
		},
	}

	primary := cfg.PrimaryConfig()

	assert.Equal(t, "gemini", primary.Provider)
	assert.Equal(t, "gk-primary", primary.APIKey)
}

func TestParserConfig_Chain(t *testing.T) {
	cfg := config.ParserConfig{
		Primary:  config.ParserProviderConfig{Provider: "claude"},
		Tertiary: config.ParserProviderConfig{Provider: "openai"},
	}

	chain := cfg.Chain()

	require.Len(t, chain, 2)
	assert.Equal(t, "claude", chain[0].Provider)
	assert.Equal(t, "openai", chain[1].Provider)
	assert.Nil(t, cfg.SecondaryConfig())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Pipeline.ClassifierThreshold)
	assert.Equal(t, 0.9, cfg.Pipeline.BandGreen)
	assert.Equal(t, 0.6, cfg.Pipeline.BandYellow)
	assert.Equal(t, 150, cfg.Pipeline.TextModeMinChars)
	assert.Equal(t, 0.02, cfg.Consolidate.WeightTolerance)
	assert.Equal(t, 0.015, cfg.Finance.DefaultInsuranceRate)
	assert.Equal(t, 0.0, cfg.Finance.WeightCoverageThreshold)
	assert.Equal(t, 3, cfg.Resilience.RetryMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Resilience.RetryInitialBackoff)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "claude", cfg.Parser.PrimaryConfig().Provider)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AFORO_PIPELINE_BAND_GREEN", "0.95")
	t.Setenv("AFORO_CONSOLIDATE_WEIGHT_TOLERANCE", "0.05")
	t.Setenv("AFORO_PARSER_SECONDARY_PROVIDER", "gemini")
	t.Setenv("AFORO_EMAIL_REVIEWER_EMAILS", "a@example.com, b@example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 0.95, cfg.Pipeline.BandGreen)
	assert.Equal(t, 0.05, cfg.Consolidate.WeightTolerance)
	require.NotNil(t, cfg.Parser.SecondaryConfig())
	assert.Equal(t, "gemini", cfg.Parser.SecondaryConfig().Provider)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.ReviewerEmails)
}

func TestLoad_RejectsInvertedBands(t *testing.T) {
	t.Setenv("AFORO_PIPELINE_BAND_GREEN", "0.5")
	t.Setenv("AFORO_PIPELINE_BAND_YELLOW", "0.8")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, config.InitLogger(config.LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, config.InitLogger(config.LogConfig{Level: "loud", Format: "console"}))
}
