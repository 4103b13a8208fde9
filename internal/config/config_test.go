package config

import (
	"strings"
	"testing"
)

func TestValidate_Empty(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Validate()
	if len(warnings) != 0 {
		t.Errorf("empty config should have no warnings, got %v", warnings)
	}
}

func TestValidate_SimilarityThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      bool // true = should warn
	}{
		{"zero", 0, false},
		{"normal", 0.3, false},
		{"max", 1.0, false},
		{"negative", -0.5, true},
		{"too_high", 1.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Detection: DetectionConfig{SimilarityThreshold: tt.threshold}}
			warnings := cfg.Validate()
			hasWarn := false
			for _, w := range warnings {
				if strings.Contains(w, "similarity_threshold") {
					hasWarn = true
				}
			}
			if hasWarn != tt.want {
				t.Errorf("threshold=%.1f: hasWarn=%v, want=%v", tt.threshold, hasWarn, tt.want)
			}
		})
	}
}

func TestValidate_NegativeCaps(t *testing.T) {
	cfg := &Config{Resilience: ResilienceConfig{MaxErrors: -1, MaxMetrics: -5}}
	warnings := cfg.Validate()
	var errCap, metCap bool
	for _, w := range warnings {
		if strings.Contains(w, "max_errors") {
			errCap = true
		}
		if strings.Contains(w, "max_metrics") {
			metCap = true
		}
	}
	if !errCap || !metCap {
		t.Errorf("expected warnings about both caps, got %v", warnings)
	}
}

func TestValidate_SampleRate(t *testing.T) {
	cfg := &Config{Tracing: TracingConfig{SampleRate: 2.0}}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "sample_rate") {
			found = true
		}
	}
	if !found {
		t.Error("expected warning about sample_rate")
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if cfg.Detection.SimilarityThreshold != 0.3 {
		t.Errorf("expected default similarity threshold 0.3, got %f", cfg.Detection.SimilarityThreshold)
	}
	if cfg.Resilience.MaxErrors != 1000 || cfg.Resilience.MaxMetrics != 5000 {
		t.Errorf("unexpected retention caps: %+v", cfg.Resilience)
	}
	if cfg.Resilience.ErrorRetentionHours != 24 || cfg.Resilience.MetricRetentionHours != 6 {
		t.Errorf("unexpected retention windows: %+v", cfg.Resilience)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STACKMESH_RESILIENCE_MAX_ERRORS", "250")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Resilience.MaxErrors != 250 {
		t.Errorf("expected env override 250, got %d", cfg.Resilience.MaxErrors)
	}
}

func TestResilienceConfig_DurationHelpers(t *testing.T) {
	r := ResilienceConfig{
		ErrorRetentionHours:     24,
		MetricRetentionHours:    6,
		SlowOpMs:                5000,
		EvictionIntervalMinutes: 5,
	}
	if r.ErrorRetention().Hours() != 24 {
		t.Errorf("error retention: %v", r.ErrorRetention())
	}
	if r.MetricRetention().Hours() != 6 {
		t.Errorf("metric retention: %v", r.MetricRetention())
	}
	if r.SlowOpThreshold().Milliseconds() != 5000 {
		t.Errorf("slow op threshold: %v", r.SlowOpThreshold())
	}
	if r.EvictionInterval().Minutes() != 5 {
		t.Errorf("eviction interval: %v", r.EvictionInterval())
	}
}
