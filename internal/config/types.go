package config

// Config is the root configuration tree, loaded from YAML and overridden
// by environment variables in LoadConfig.
type Config struct {
	App             AppConfig             `yaml:"app"`
	Agent           AgentConfig           `yaml:"agent"`
	Server          ServerConfig          `yaml:"server"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	Tracing         TracingConfig         `yaml:"tracing"`
	ResourceMonitor ResourceMonitorConfig `yaml:"resource_monitor"`
	Reload          ReloadConfig          `yaml:"reload"`
	Export          ExportConfig          `yaml:"export"`
}

// AppConfig carries process-identity and logging settings.
type AppConfig struct {
	Name           string `yaml:"name"`
	Version        string `yaml:"version"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	DefaultConfigs *bool  `yaml:"default_configs"`
}

// FieldLocatorConfig names one tracked field, mirroring
// historystore.FieldLocator but keyed on class/field only (no owner —
// owner-scoped tracking is an API-time concern, not a config-time one).
type FieldLocatorConfig struct {
	Class string `yaml:"class"`
	Field string `yaml:"field"`
}

// AgentConfig configures the engine itself: which fields start tracked,
// the stack-capture default handed to agentruntime.WithStackCaptureDefault
// (which no entry point reads), and the DEBUG flag and descriptor-dump
// directory (spec.md §6's DEBUG flag), which are loaded but not acted on.
type AgentConfig struct {
	Debug               bool                  `yaml:"debug"`
	DumpDir             string                `yaml:"dump_dir"`
	StackCaptureDefault bool                  `yaml:"stack_capture_default"`
	TrackedFields       []FieldLocatorConfig  `yaml:"tracked_fields"`
}

// ServerConfig configures the HTTP API (internal/server).
type ServerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures the otel tracer provider.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // "otlp" | "jaeger" | "noop"
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ResourceMonitorConfig configures self process-memory/goroutine watching.
type ResourceMonitorConfig struct {
	Enabled           bool   `yaml:"enabled"`
	PollInterval      string `yaml:"poll_interval"`
	MaxRSSBytes       uint64 `yaml:"max_rss_bytes"`
	MaxGoroutines     int    `yaml:"max_goroutines"`
	MaxHistoryEntries int    `yaml:"max_history_entries"`
}

// ReloadConfig configures fsnotify-based hot reload of Agent.Debug and
// Agent.TrackedFields.
type ReloadConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ExportConfig configures the optional Kafka publisher for modification
// events (pkg/export).
type ExportConfig struct {
	Enabled bool       `yaml:"enabled"`
	Brokers []string   `yaml:"brokers"`
	Topic   string     `yaml:"topic"`
	SASL    SASLConfig `yaml:"sasl"`
}

// SASLConfig configures SCRAM authentication against the Kafka brokers.
type SASLConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mechanism string `yaml:"mechanism"` // "SCRAM-SHA-256" | "SCRAM-SHA-512"
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}
