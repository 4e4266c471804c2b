package config

import (
	"runtime"
	"time"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

// BaseConfig is the configuration structure shared by every plugin.
// Plugins embed it with the yaml inline tag.
type BaseConfig struct {
	// Name identifies the plugin instance. For the time-partitioned sink it is also the dataset name.
	Name string `yaml:"name" json:"name"`
	// Type is the registered plugin type (e.g. "database", "tpfs")
	Type string `yaml:"type" json:"type"`

	// Performance settings control concurrency and batching
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Timeouts define connection and per-query limits
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Observability switches metrics export and span export
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// PerformanceConfig contains concurrency and batching settings.
type PerformanceConfig struct {
	// Workers bounds how many split tasks run at the same time
	Workers int `yaml:"workers" json:"workers"`
	// BatchSize controls how many records a writer buffers before flushing
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BufferSize sets the capacity of record channels
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// MaxOpenConns caps the size of the database connection pool
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`
}

// TimeoutConfig contains timeout settings.
type TimeoutConfig struct {
	// Connection timeout for establishing connections and catalog checks
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Query timeout for a single split query; zero means no limit
	Query time.Duration `yaml:"query" json:"query"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics publishes the plugin's counters to Prometheus. Local
	// totals reported by Metrics() are kept either way.
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing exports OpenTelemetry spans for runs using this plugin
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
}

// NewBaseConfig creates a new BaseConfig with sensible defaults.
//
// Example:
//
//	cfg := config.NewBaseConfig("orders", "database")
//	cfg.Performance.Workers = 8
func NewBaseConfig(name, pluginType string) *BaseConfig {
	return &BaseConfig{
		Name: name,
		Type: pluginType,
		Performance: PerformanceConfig{
			Workers:      runtime.NumCPU(),
			BatchSize:    1000,
			BufferSize:   10000,
			MaxOpenConns: 10,
		},
		Timeouts: TimeoutConfig{
			Connection: 10 * time.Second,
			Query:      0,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableTracing: false,
		},
	}
}

// Validate checks required fields and value ranges.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if bc.Type == "" {
		return errors.New(errors.ErrorTypeConfig, "type is required")
	}
	if bc.Performance.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size must be positive")
	}
	if bc.Performance.BufferSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "buffer_size cannot be negative")
	}
	if bc.Performance.Workers < 0 {
		return errors.New(errors.ErrorTypeConfig, "workers cannot be negative")
	}
	if bc.Timeouts.Connection < 0 || bc.Timeouts.Query < 0 {
		return errors.New(errors.ErrorTypeConfig, "timeouts cannot be negative")
	}
	return nil
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}
