package resilience

import "time"

// HealthStatus is the aggregate health of the supervised pipeline.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// statisticsWindow bounds the on-demand aggregations below.
const statisticsWindow = time.Hour

// degradedHighErrors is how many high-severity errors inside the
// window flip the status to degraded.
const degradedHighErrors = 5

// Statistics is an on-demand snapshot over the last hour of records.
type Statistics struct {
	ErrorsBySeverity map[Severity]int  `json:"errors_by_severity"`
	ErrorsByKind     map[ErrorKind]int `json:"errors_by_kind"`
	TotalErrors      int               `json:"total_errors"`
	TotalMetrics     int               `json:"total_metrics"`
	MeanDurationMs   float64           `json:"mean_duration_ms"`
	MeanMemoryMB     float64           `json:"mean_memory_mb"`
	MeanCacheHitRate float64           `json:"mean_cache_hit_rate"`
	Health           HealthStatus      `json:"health"`
}

// Statistics aggregates the error and metric windows. The snapshot is
// eventually consistent: it reflects the tables at the moment the
// read lock was held.
func (h *Handler) Statistics() Statistics {
	h.mu.RLock()
	errs := make([]ErrorRecord, len(h.errors))
	copy(errs, h.errors)
	mets := make([]MetricSample, len(h.metrics))
	copy(mets, h.metrics)
	h.mu.RUnlock()

	now := time.Now()
	cutoff := now.Add(-statisticsWindow)

	s := Statistics{
		ErrorsBySeverity: make(map[Severity]int),
		ErrorsByKind:     make(map[ErrorKind]int),
	}
	for _, e := range errs {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		s.ErrorsBySeverity[e.Severity]++
		s.ErrorsByKind[e.Kind]++
		s.TotalErrors++
	}

	var sumDur, sumMem, sumHit float64
	for _, m := range mets {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		sumDur += m.DurationMs
		sumMem += m.MemoryMB
		sumHit += m.CacheHitRate
		s.TotalMetrics++
	}
	if s.TotalMetrics > 0 {
		n := float64(s.TotalMetrics)
		s.MeanDurationMs = sumDur / n
		s.MeanMemoryMB = sumMem / n
		s.MeanCacheHitRate = sumHit / n
	}

	s.Health = h.healthFrom(s)
	return s
}

// Health computes the current aggregate status from the record
// windows.
func (h *Handler) Health() HealthStatus {
	return h.Statistics().Health
}

func (h *Handler) healthFrom(s Statistics) HealthStatus {
	if s.ErrorsBySeverity[SeverityCritical] > 0 {
		return HealthCritical
	}
	if s.ErrorsBySeverity[SeverityHigh] > degradedHighErrors {
		return HealthDegraded
	}
	if s.MeanDurationMs > 2*float64(h.opts.SlowOpThreshold.Milliseconds()) {
		return HealthDegraded
	}
	return HealthHealthy
}
