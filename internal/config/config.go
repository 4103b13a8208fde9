// Package config loads stackmesh configuration from file and
// environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Detection  DetectionConfig  `mapstructure:"detection"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

// DetectionConfig tunes the matching pipeline.
type DetectionConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	SchemaThreshold     float64 `mapstructure:"schema_threshold"`
	Workers             int     `mapstructure:"workers"`
}

// ResilienceConfig tunes error/metric retention and the degradation
// thresholds.
type ResilienceConfig struct {
	MaxErrors               int     `mapstructure:"max_errors"`
	MaxMetrics              int     `mapstructure:"max_metrics"`
	ErrorRetentionHours     int     `mapstructure:"error_retention_hours"`
	MetricRetentionHours    int     `mapstructure:"metric_retention_hours"`
	SlowOpMs                int     `mapstructure:"slow_op_ms"`
	MemoryLimitMB           float64 `mapstructure:"memory_limit_mb"`
	EvictionIntervalMinutes int     `mapstructure:"eviction_interval_minutes"`
}

// ErrorRetention returns the configured error retention window.
func (r ResilienceConfig) ErrorRetention() time.Duration {
	return time.Duration(r.ErrorRetentionHours) * time.Hour
}

// MetricRetention returns the configured metric retention window.
func (r ResilienceConfig) MetricRetention() time.Duration {
	return time.Duration(r.MetricRetentionHours) * time.Hour
}

// SlowOpThreshold returns the configured slow-operation threshold.
func (r ResilienceConfig) SlowOpThreshold() time.Duration {
	return time.Duration(r.SlowOpMs) * time.Millisecond
}

// EvictionInterval returns the configured eviction ticker interval.
func (r ResilienceConfig) EvictionInterval() time.Duration {
	return time.Duration(r.EvictionIntervalMinutes) * time.Minute
}

// GraphConfig configures the Neo4j persistence boundary.
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// ServerConfig configures the monitoring HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if t := c.Detection.SimilarityThreshold; t < 0 || t > 1 {
		warnings = append(warnings, fmt.Sprintf("detection similarity_threshold %.2f is outside [0.0, 1.0]", t))
	}
	if t := c.Detection.SchemaThreshold; t < 0 || t > 1 {
		warnings = append(warnings, fmt.Sprintf("detection schema_threshold %.2f is outside [0.0, 1.0]", t))
	}
	if c.Resilience.MaxErrors < 0 {
		warnings = append(warnings, fmt.Sprintf("resilience max_errors %d is negative", c.Resilience.MaxErrors))
	}
	if c.Resilience.MaxMetrics < 0 {
		warnings = append(warnings, fmt.Sprintf("resilience max_metrics %d is negative", c.Resilience.MaxMetrics))
	}
	if r := c.Tracing.SampleRate; r < 0 || r > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", r))
	}

	return warnings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("detection.similarity_threshold", 0.3)
	v.SetDefault("detection.schema_threshold", 0.7)
	v.SetDefault("detection.workers", 0)
	v.SetDefault("resilience.max_errors", 1000)
	v.SetDefault("resilience.max_metrics", 5000)
	v.SetDefault("resilience.error_retention_hours", 24)
	v.SetDefault("resilience.metric_retention_hours", 6)
	v.SetDefault("resilience.slow_op_ms", 5000)
	v.SetDefault("resilience.memory_limit_mb", 100)
	v.SetDefault("resilience.eviction_interval_minutes", 5)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from file and environment. A missing file
// is not an error: defaults plus environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("STACKMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
