// Package resilience supervises the detection pipeline: it classifies
// and records errors, keeps bounded performance samples, computes an
// aggregate health status, and offers a primary/fallback execution
// wrapper for graceful degradation.
package resilience

import "time"

// ErrorKind is the closed classification of recordable failures.
type ErrorKind string

const (
	KindPatternMatchFailure       ErrorKind = "pattern_match_failure"
	KindSchemaCompatibilityError  ErrorKind = "schema_compatibility_error"
	KindGraphConstructionError    ErrorKind = "graph_construction_error"
	KindMemoryPressure            ErrorKind = "memory_pressure"
	KindPerformanceDegradation    ErrorKind = "performance_degradation"
	KindSchemaDriftDetected       ErrorKind = "schema_drift_detected"
	KindRelationshipAccuracyAlert ErrorKind = "relationship_accuracy_alert"
)

// Severity grades an error record independently of its kind.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// recoveryStrategies maps each kind to the fixed, descriptive strategy
// string attached to its records for observability.
var recoveryStrategies = map[ErrorKind]string{
	KindPatternMatchFailure:       "retry with simplified segment-overlap matching",
	KindSchemaCompatibilityError:  "skip field-level analysis and report structural match only",
	KindGraphConstructionError:    "drop the pair and continue with remaining relationships",
	KindMemoryPressure:            "request garbage collection and reduce batch size",
	KindPerformanceDegradation:    "enable result caching and batch partitioning",
	KindSchemaDriftDetected:       "flag interface for contract review",
	KindRelationshipAccuracyAlert: "queue relationship for manual validation",
}

// RecoveryStrategy returns the fixed strategy string for a kind.
func RecoveryStrategy(kind ErrorKind) string {
	return recoveryStrategies[kind]
}

// ErrorRecord is one classified failure kept in the bounded error
// table.
type ErrorRecord struct {
	ID               uint64            `json:"id"`
	Kind             ErrorKind         `json:"kind"`
	Severity         Severity          `json:"severity"`
	Message          string            `json:"message"`
	Context          map[string]string `json:"context,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	RecoveryStrategy string            `json:"recovery_strategy"`
	FallbackApplied  bool              `json:"fallback_applied"`
}

// MetricSample is one performance observation kept in the bounded
// metric table.
type MetricSample struct {
	Operation    string    `json:"operation"`
	DurationMs   float64   `json:"duration_ms"`
	MemoryMB     float64   `json:"memory_mb"`
	CacheHitRate float64   `json:"cache_hit_rate"`
	ErrorCount   int       `json:"error_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// Subscriber receives error and metric events as they are recorded.
// Callbacks run synchronously on the recording goroutine and must not
// block.
type Subscriber interface {
	OnError(ErrorRecord)
	OnMetric(MetricSample)
}
