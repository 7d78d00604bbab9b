package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_Enabled(t *testing.T) {
	cfg := &Config{}
	enabled := true
	cfg.App.DefaultConfigs = &enabled

	applyDefaults(cfg)

	assert.Equal(t, "fieldwatch-agent", cfg.App.Name)
	assert.Equal(t, 8401, cfg.Server.Port)
	assert.Equal(t, 9401, cfg.Metrics.Port)
	assert.Equal(t, "noop", cfg.Tracing.Exporter)
}

func TestApplyDefaults_Disabled(t *testing.T) {
	cfg := &Config{}
	disabled := false
	cfg.App.DefaultConfigs = &disabled

	applyDefaults(cfg)

	assert.Empty(t, cfg.App.Name)
	assert.Zero(t, cfg.Server.Port)
}

func TestApplyDefaults_NilMeansEnabled(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	assert.Equal(t, "fieldwatch-agent", cfg.App.Name)
}

func TestShouldApplyDefaults_EnvironmentOverride(t *testing.T) {
	os.Setenv("FIELDWATCH_DEFAULT_CONFIGS", "false")
	defer os.Unsetenv("FIELDWATCH_DEFAULT_CONFIGS")

	cfg := &Config{}
	enabled := true
	cfg.App.DefaultConfigs = &enabled

	assert.False(t, shouldApplyDefaults(cfg))
}

func TestValidateConfig_RejectsBadLogLevel(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.App.LogLevel = "not-a-level"

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestValidateConfig_RejectsPortConflict(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Metrics.Port = cfg.Server.Port

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port conflict")
}

func TestValidateConfig_RejectsTracingEndpointMissing(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = ""

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestValidateConfig_RequiresExportBrokersWhenEnabled(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Export.Enabled = true
	cfg.Export.Brokers = nil

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker")
}

func TestValidateConfig_ValidDefaultsPass(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestApplyEnvironmentOverrides_ServerPort(t *testing.T) {
	os.Setenv("FIELDWATCH_SERVER_PORT", "9999")
	defer os.Unsetenv("FIELDWATCH_SERVER_PORT")

	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
}
