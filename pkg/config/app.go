package config

import (
	"fmt"
	"os"
	"time"
)

// EnvPrefix prefixes every environment override of AppConfig.
const EnvPrefix = "PLAYGROUND"

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "CONFIG_PATH"

// AppConfig is the process configuration.
type AppConfig struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Scheduler     SchedulerConfig     `yaml:"scheduler" json:"scheduler"`
	Timing        TimingConfig        `yaml:"timing" json:"timing"`
	API           APIConfig           `yaml:"api" json:"api"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig holds listen addresses. An empty address disables the server.
type ServerConfig struct {
	APIAddr string `yaml:"api_addr" json:"api_addr"`
	WSAddr  string `yaml:"ws_addr" json:"ws_addr"`
}

// SchedulerConfig sizes the dispatch and background executors.
type SchedulerConfig struct {
	Workers   int `yaml:"workers" json:"workers"`
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// TimingConfig scales every scenario duration. Scale 1 runs at the
// nominal speed; 0.1 runs ten times faster.
type TimingConfig struct {
	Scale       float64       `yaml:"scale" json:"scale"`
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// APIConfig configures the command API.
type APIConfig struct {
	// JWTSecret enables HS256 bearer auth on /api/ when set.
	JWTSecret string `yaml:"jwt_secret" json:"jwt_secret"`
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	LogLevel        string  `yaml:"log_level" json:"log_level"`
	LogFormat       string  `yaml:"log_format" json:"log_format"`
	TracingExporter string  `yaml:"tracing_exporter" json:"tracing_exporter"`
	ZipkinEndpoint  string  `yaml:"zipkin_endpoint" json:"zipkin_endpoint"`
	SampleRate      float64 `yaml:"sample_rate" json:"sample_rate"`
	MetricsEnabled  bool    `yaml:"metrics_enabled" json:"metrics_enabled"`
}

// Default returns a configuration that runs out of the box.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			APIAddr: ":8080",
			WSAddr:  ":8081",
		},
		Scheduler: SchedulerConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Timing: TimingConfig{
			Scale:       1,
			SettleDelay: time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:        "info",
			LogFormat:       "json",
			TracingExporter: "none",
			SampleRate:      1,
			MetricsEnabled:  true,
		},
	}
}

// Validators returns the checks an AppConfig must pass.
func (c *AppConfig) Validators() []Validator {
	return []Validator{
		RangeValidator("Scheduler.Workers", 1, 1024),
		RangeValidator("Scheduler.QueueSize", 1, 1<<20),
		RangeValidator("Timing.Scale", 0.001, 100),
		RangeValidator("Timing.SettleDelay", 0, float64(time.Minute)),
		OneOfValidator("Observability.LogLevel", "debug", "info", "warn", "error"),
		OneOfValidator("Observability.LogFormat", "json", "text"),
		OneOfValidator("Observability.TracingExporter", "none", "stdout", "zipkin"),
		RangeValidator("Observability.SampleRate", 0, 1),
		ValidatorFunc(func(any) error {
			if c.Observability.TracingExporter == "zipkin" && c.Observability.ZipkinEndpoint == "" {
				return fmt.Errorf("zipkin_endpoint is required for the zipkin exporter")
			}
			return nil
		}),
	}
}

// Validate runs Validators.
func (c *AppConfig) Validate() error {
	return Validate(c, c.Validators()...)
}

// LoadApp starts from Default, overlays the file at path (if any, falling
// back to $CONFIG_PATH), applies PLAYGROUND_* overrides and validates.
func LoadApp(path string) (AppConfig, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if err := LoadWithEnv(path, EnvPrefix, &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
