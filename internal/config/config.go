package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"fieldwatch-agent/pkg/apperror"
)

// LoadConfig loads configuration from an optional YAML file, then applies
// defaults and environment-variable overrides, then validates the result.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		if err := loadConfigFile(configFile, cfg); err != nil {
			fmt.Printf("Warning: failed to load config file %s: %v\n", configFile, err)
		} else {
			fmt.Printf("Loaded configuration from file: %s\n", configFile)
		}
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// shouldApplyDefaults mirrors the teacher's default_configs escape hatch:
// an environment variable always wins, otherwise an explicit YAML false
// disables defaulting, otherwise (nil, unspecified) defaults apply.
func shouldApplyDefaults(cfg *Config) bool {
	if envValue := os.Getenv("FIELDWATCH_DEFAULT_CONFIGS"); envValue != "" {
		if enabled, err := strconv.ParseBool(envValue); err == nil {
			return enabled
		}
	}
	if cfg.App.DefaultConfigs == nil {
		return true
	}
	return *cfg.App.DefaultConfigs
}

func applyDefaults(cfg *Config) {
	if !shouldApplyDefaults(cfg) {
		return
	}

	if cfg.App.Name == "" {
		cfg.App.Name = "fieldwatch-agent"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "v0.1.0"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "production"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "json"
	}

	if cfg.Agent.DumpDir == "" {
		cfg.Agent.DumpDir = "/var/run/fieldwatch-agent/dumps"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8401
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	cfg.Server.Enabled = true
	if cfg.Server.ReadTimeout == "" {
		cfg.Server.ReadTimeout = "10s"
	}
	if cfg.Server.WriteTimeout == "" {
		cfg.Server.WriteTimeout = "10s"
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9401
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "fieldwatch"
	}
	cfg.Metrics.Enabled = true

	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "noop"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1.0
	}

	if cfg.ResourceMonitor.PollInterval == "" {
		cfg.ResourceMonitor.PollInterval = "15s"
	}
	if cfg.ResourceMonitor.MaxRSSBytes == 0 {
		cfg.ResourceMonitor.MaxRSSBytes = 1 << 30 // 1GiB
	}
	if cfg.ResourceMonitor.MaxGoroutines == 0 {
		cfg.ResourceMonitor.MaxGoroutines = 10000
	}
	if cfg.ResourceMonitor.MaxHistoryEntries == 0 {
		cfg.ResourceMonitor.MaxHistoryEntries = 1_000_000
	}
	cfg.ResourceMonitor.Enabled = true

	if cfg.Export.Topic == "" {
		cfg.Export.Topic = "fieldwatch.modifications"
	}
	if cfg.Export.SASL.Mechanism == "" {
		cfg.Export.SASL.Mechanism = "SCRAM-SHA-512"
	}
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return defaultValue
}

// applyEnvironmentOverrides applies FIELDWATCH_-prefixed environment
// variables on top of whatever the YAML file (and defaults) produced.
func applyEnvironmentOverrides(cfg *Config) {
	cfg.App.Name = getEnvString("FIELDWATCH_APP_NAME", cfg.App.Name)
	cfg.App.Environment = getEnvString("FIELDWATCH_APP_ENVIRONMENT", cfg.App.Environment)
	cfg.App.LogLevel = getEnvString("FIELDWATCH_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFormat = getEnvString("FIELDWATCH_LOG_FORMAT", cfg.App.LogFormat)

	cfg.Agent.Debug = getEnvBool("FIELDWATCH_AGENT_DEBUG", cfg.Agent.Debug)
	cfg.Agent.DumpDir = getEnvString("FIELDWATCH_AGENT_DUMP_DIR", cfg.Agent.DumpDir)
	cfg.Agent.StackCaptureDefault = getEnvBool("FIELDWATCH_STACK_CAPTURE_DEFAULT", cfg.Agent.StackCaptureDefault)

	cfg.Server.Enabled = getEnvBool("FIELDWATCH_SERVER_ENABLED", cfg.Server.Enabled)
	cfg.Server.Host = getEnvString("FIELDWATCH_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("FIELDWATCH_SERVER_PORT", cfg.Server.Port)

	cfg.Metrics.Enabled = getEnvBool("FIELDWATCH_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Port = getEnvInt("FIELDWATCH_METRICS_PORT", cfg.Metrics.Port)
	cfg.Metrics.Path = getEnvString("FIELDWATCH_METRICS_PATH", cfg.Metrics.Path)

	cfg.Tracing.Enabled = getEnvBool("FIELDWATCH_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnvString("FIELDWATCH_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = getEnvString("FIELDWATCH_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRatio = getEnvFloat("FIELDWATCH_TRACING_SAMPLE_RATIO", cfg.Tracing.SampleRatio)

	cfg.ResourceMonitor.Enabled = getEnvBool("FIELDWATCH_RESOURCE_MONITOR_ENABLED", cfg.ResourceMonitor.Enabled)
	cfg.ResourceMonitor.PollInterval = getEnvString("FIELDWATCH_RESOURCE_MONITOR_POLL_INTERVAL", cfg.ResourceMonitor.PollInterval)

	cfg.Reload.Enabled = getEnvBool("FIELDWATCH_RELOAD_ENABLED", cfg.Reload.Enabled)
	cfg.Reload.Path = getEnvString("FIELDWATCH_RELOAD_PATH", cfg.Reload.Path)

	cfg.Export.Enabled = getEnvBool("FIELDWATCH_EXPORT_ENABLED", cfg.Export.Enabled)
	cfg.Export.Brokers = getEnvStringSlice("FIELDWATCH_EXPORT_BROKERS", cfg.Export.Brokers)
	cfg.Export.Topic = getEnvString("FIELDWATCH_EXPORT_TOPIC", cfg.Export.Topic)
	cfg.Export.SASL.Enabled = getEnvBool("FIELDWATCH_EXPORT_SASL_ENABLED", cfg.Export.SASL.Enabled)
	cfg.Export.SASL.Username = getEnvString("FIELDWATCH_EXPORT_SASL_USERNAME", cfg.Export.SASL.Username)
	cfg.Export.SASL.Password = getEnvString("FIELDWATCH_EXPORT_SASL_PASSWORD", cfg.Export.SASL.Password)
}

// ValidateConfig performs comprehensive configuration validation.
func ValidateConfig(cfg *Config) error {
	v := &configValidator{cfg: cfg}
	return v.Validate()
}

type configValidator struct {
	cfg    *Config
	errors []error
}

func (v *configValidator) addError(component, operation, message string) {
	err := apperror.ConfigError(operation, message).WithMetadata("component", component)
	v.errors = append(v.errors, err)
}

func (v *configValidator) Validate() error {
	v.validateApp()
	v.validateServer()
	v.validateMetrics()
	v.validateTracing()
	v.validateResourceMonitor()
	v.validateExport()

	if len(v.errors) == 1 {
		return v.errors[0]
	}
	if len(v.errors) > 1 {
		msgs := make([]string, len(v.errors))
		for i, err := range v.errors {
			msgs[i] = err.Error()
		}
		return apperror.ConfigError("validate", fmt.Sprintf("multiple validation errors: %s", strings.Join(msgs, "; ")))
	}
	return nil
}

func (v *configValidator) validateApp() {
	if v.cfg.App.Name == "" {
		v.addError("app", "validate_name", "application name cannot be empty")
	}
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true}
	if !validLevels[v.cfg.App.LogLevel] {
		v.addError("app", "validate_log_level", fmt.Sprintf("invalid log level: %s", v.cfg.App.LogLevel))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[v.cfg.App.LogFormat] {
		v.addError("app", "validate_log_format", fmt.Sprintf("invalid log format: %s", v.cfg.App.LogFormat))
	}
}

func (v *configValidator) validateServer() {
	if !v.cfg.Server.Enabled {
		return
	}
	if v.cfg.Server.Port <= 0 || v.cfg.Server.Port > 65535 {
		v.addError("server", "validate_port", fmt.Sprintf("invalid server port: %d", v.cfg.Server.Port))
	}
	if v.cfg.Server.Host == "" {
		v.addError("server", "validate_host", "server host cannot be empty when enabled")
	}
	if v.cfg.Server.ReadTimeout != "" {
		if _, err := time.ParseDuration(v.cfg.Server.ReadTimeout); err != nil {
			v.addError("server", "validate_read_timeout", fmt.Sprintf("invalid read timeout: %s", v.cfg.Server.ReadTimeout))
		}
	}
	if v.cfg.Server.WriteTimeout != "" {
		if _, err := time.ParseDuration(v.cfg.Server.WriteTimeout); err != nil {
			v.addError("server", "validate_write_timeout", fmt.Sprintf("invalid write timeout: %s", v.cfg.Server.WriteTimeout))
		}
	}
}

func (v *configValidator) validateMetrics() {
	if !v.cfg.Metrics.Enabled {
		return
	}
	if v.cfg.Metrics.Port <= 0 || v.cfg.Metrics.Port > 65535 {
		v.addError("metrics", "validate_port", fmt.Sprintf("invalid metrics port: %d", v.cfg.Metrics.Port))
	}
	if v.cfg.Metrics.Path == "" {
		v.addError("metrics", "validate_path", "metrics path cannot be empty when enabled")
	}
	if v.cfg.Server.Enabled && v.cfg.Server.Port == v.cfg.Metrics.Port {
		v.addError("metrics", "validate_port_conflict", "metrics port conflicts with server port")
	}
}

func (v *configValidator) validateTracing() {
	if !v.cfg.Tracing.Enabled {
		return
	}
	validExporters := map[string]bool{"otlp": true, "jaeger": true, "noop": true}
	if !validExporters[v.cfg.Tracing.Exporter] {
		v.addError("tracing", "validate_exporter", fmt.Sprintf("invalid exporter: %s", v.cfg.Tracing.Exporter))
	}
	if v.cfg.Tracing.Exporter != "noop" && v.cfg.Tracing.Endpoint == "" {
		v.addError("tracing", "validate_endpoint", "endpoint cannot be empty for a non-noop exporter")
	}
	if v.cfg.Tracing.SampleRatio < 0 || v.cfg.Tracing.SampleRatio > 1 {
		v.addError("tracing", "validate_sample_ratio", "sample ratio must be within [0,1]")
	}
}

func (v *configValidator) validateResourceMonitor() {
	if !v.cfg.ResourceMonitor.Enabled {
		return
	}
	if _, err := time.ParseDuration(v.cfg.ResourceMonitor.PollInterval); err != nil {
		v.addError("resource_monitor", "validate_poll_interval", fmt.Sprintf("invalid poll interval: %s", v.cfg.ResourceMonitor.PollInterval))
	}
	if v.cfg.ResourceMonitor.MaxGoroutines <= 0 {
		v.addError("resource_monitor", "validate_max_goroutines", "max goroutines must be positive")
	}
}

func (v *configValidator) validateExport() {
	if !v.cfg.Export.Enabled {
		return
	}
	if len(v.cfg.Export.Brokers) == 0 {
		v.addError("export", "validate_brokers", "at least one broker is required when enabled")
	}
	if v.cfg.Export.Topic == "" {
		v.addError("export", "validate_topic", "topic cannot be empty when enabled")
	}
	if v.cfg.Export.SASL.Enabled {
		validMechanisms := map[string]bool{"SCRAM-SHA-256": true, "SCRAM-SHA-512": true}
		if !validMechanisms[v.cfg.Export.SASL.Mechanism] {
			v.addError("export", "validate_sasl_mechanism", fmt.Sprintf("invalid SASL mechanism: %s", v.cfg.Export.SASL.Mechanism))
		}
		if v.cfg.Export.SASL.Username == "" {
			v.addError("export", "validate_sasl_username", "SASL username cannot be empty when enabled")
		}
	}
}
