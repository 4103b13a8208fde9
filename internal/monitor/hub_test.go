package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stackmesh/stackmesh/internal/resilience"
)

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()
	rec := httptest.NewRecorder()

	client, err := NewClient(hub, rec)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Broadcast(&Event{Type: "detection.started", Timestamp: time.Now()})

	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: ") {
		t.Errorf("expected SSE data frame, got %q", body)
	}
	if !strings.Contains(body, `"detection.started"`) {
		t.Errorf("event type missing from frame: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
	// A second unregister of the same client is a no-op.
	hub.Unregister(client)
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(&Event{Type: "noop"})
}

func TestEmitter_ForwardsResilienceEvents(t *testing.T) {
	hub := NewHub()
	rec := httptest.NewRecorder()
	client, err := NewClient(hub, rec)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	hub.Register(client)

	emitter := NewEmitter(hub)
	emitter.OnError(resilience.ErrorRecord{
		Kind:     resilience.KindSchemaDriftDetected,
		Severity: resilience.SeverityLow,
		Message:  "drifted",
	})
	emitter.OnMetric(resilience.MetricSample{Operation: "detect"})

	body := rec.Body.String()
	if !strings.Contains(body, `"error.recorded"`) {
		t.Errorf("missing error event: %q", body)
	}
	if !strings.Contains(body, `"metric.recorded"`) {
		t.Errorf("missing metric event: %q", body)
	}
	if !strings.Contains(body, "schema_drift_detected") {
		t.Errorf("missing error kind payload: %q", body)
	}
}

func TestEmitter_DetectionLifecycle(t *testing.T) {
	hub := NewHub()
	rec := httptest.NewRecorder()
	client, err := NewClient(hub, rec)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	hub.Register(client)

	emitter := NewEmitter(hub)
	emitter.DetectionStarted(3, 5)
	emitter.DetectionCompleted(nil, 120*time.Millisecond)

	body := rec.Body.String()
	if !strings.Contains(body, `"detection.started"`) || !strings.Contains(body, `"detection.completed"`) {
		t.Errorf("missing lifecycle events: %q", body)
	}
}
