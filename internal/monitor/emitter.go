package monitor

import (
	"time"

	"github.com/stackmesh/stackmesh/internal/relation"
	"github.com/stackmesh/stackmesh/internal/resilience"
)

// Emitter forwards resilience events and detection milestones to the
// hub. It implements resilience.Subscriber so the handler pushes error
// and metric records as they are stored.
type Emitter struct {
	hub *Hub
}

// NewEmitter creates an emitter bound to a hub.
func NewEmitter(hub *Hub) *Emitter {
	return &Emitter{hub: hub}
}

// OnError broadcasts a stored error record.
func (e *Emitter) OnError(rec resilience.ErrorRecord) {
	e.hub.Broadcast(&Event{
		Type:      "error.recorded",
		Timestamp: time.Now(),
		Data:      rec,
	})
}

// OnMetric broadcasts a stored metric sample.
func (e *Emitter) OnMetric(sample resilience.MetricSample) {
	e.hub.Broadcast(&Event{
		Type:      "metric.recorded",
		Timestamp: time.Now(),
		Data:      sample,
	})
}

// DetectionStarted announces a detection run over the stream.
func (e *Emitter) DetectionStarted(callSites, routes int) {
	e.hub.Broadcast(&Event{
		Type:      "detection.started",
		Timestamp: time.Now(),
		Data: map[string]int{
			"call_sites": callSites,
			"routes":     routes,
		},
	})
}

// DetectionCompleted announces a finished run with its results.
func (e *Emitter) DetectionCompleted(rels []relation.CrossStackRelationship, duration time.Duration) {
	e.hub.Broadcast(&Event{
		Type:      "detection.completed",
		Timestamp: time.Now(),
		Data: map[string]any{
			"relationships": len(rels),
			"duration_ms":   duration.Milliseconds(),
		},
	})
}

// HealthChanged announces a health status transition.
func (e *Emitter) HealthChanged(status resilience.HealthStatus) {
	e.hub.Broadcast(&Event{
		Type:      "health.changed",
		Timestamp: time.Now(),
		Data:      map[string]string{"status": string(status)},
	})
}

var _ resilience.Subscriber = (*Emitter)(nil)
