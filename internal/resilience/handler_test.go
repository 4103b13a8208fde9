package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestHandler(opts Options) *Handler {
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.DisableGC = true
	if opts.EvictionInterval == 0 {
		opts.EvictionInterval = time.Hour
	}
	return NewHandler(opts)
}

func TestRecordError_Basics(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	rec := h.RecordError(KindPatternMatchFailure, SeverityLow, "no data to analyze", nil)

	if rec.ID == 0 {
		t.Error("expected non-zero record id")
	}
	if rec.RecoveryStrategy == "" {
		t.Error("expected a recovery strategy string")
	}
	if rec.FallbackApplied {
		t.Error("pattern match failures do not mark fallbackApplied")
	}

	errs := h.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 stored error, got %d", len(errs))
	}
	if errs[0].Kind != KindPatternMatchFailure || errs[0].Severity != SeverityLow {
		t.Errorf("stored record mismatch: %+v", errs[0])
	}
}

func TestRecordError_PerformanceDegradationMarksFallback(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	rec := h.RecordError(KindPerformanceDegradation, SeverityMedium, "slow", nil)
	if !rec.FallbackApplied {
		t.Error("performance degradation records must mark fallbackApplied")
	}
}

func TestBoundedRetention_Overflow(t *testing.T) {
	const max = 10
	h := newTestHandler(Options{MaxErrors: max})
	defer h.Close()

	for i := 0; i < max+7; i++ {
		h.RecordError(KindPatternMatchFailure, SeverityLow, fmt.Sprintf("e%d", i), nil)
	}

	errs := h.Errors()
	if len(errs) != max {
		t.Fatalf("table size %d exceeds cap %d", len(errs), max)
	}
	// Most recent by timestamp are retained: the first message kept is e7.
	if errs[0].Message != "e7" {
		t.Errorf("expected oldest surviving record e7, got %s", errs[0].Message)
	}
	if errs[max-1].Message != "e16" {
		t.Errorf("expected newest record e16, got %s", errs[max-1].Message)
	}
}

func TestBoundedRetention_MetricsOverflow(t *testing.T) {
	const max = 5
	h := newTestHandler(Options{MaxMetrics: max})
	defer h.Close()

	for i := 0; i < max+3; i++ {
		h.RecordMetrics(fmt.Sprintf("op%d", i), 1, 1, 1, 0)
	}

	mets := h.Metrics()
	if len(mets) != max {
		t.Fatalf("metric table size %d exceeds cap %d", len(mets), max)
	}
	if mets[0].Operation != "op3" {
		t.Errorf("expected oldest surviving sample op3, got %s", mets[0].Operation)
	}
}

func TestEvictionIsIdempotent(t *testing.T) {
	h := newTestHandler(Options{MaxErrors: 3})
	defer h.Close()

	for i := 0; i < 5; i++ {
		h.RecordError(KindPatternMatchFailure, SeverityLow, fmt.Sprintf("e%d", i), nil)
	}

	h.mu.Lock()
	h.evictLocked(time.Now())
	h.evictLocked(time.Now())
	h.mu.Unlock()

	if got := len(h.Errors()); got != 3 {
		t.Errorf("expected 3 errors after double eviction, got %d", got)
	}
}

func TestRecordMetrics_SlowOperationGeneratesError(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	h.RecordMetrics("detect", 6000, 10, 0.9, 0)

	errs := h.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 generated error, got %d", len(errs))
	}
	if errs[0].Kind != KindPerformanceDegradation || errs[0].Severity != SeverityMedium {
		t.Errorf("unexpected generated error: %+v", errs[0])
	}
	if !errs[0].FallbackApplied {
		t.Error("generated degradation record must mark fallbackApplied")
	}
}

func TestRecordMetrics_MemoryPressureGeneratesError(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	h.RecordMetrics("detect", 10, 250, 0.9, 0)

	errs := h.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 generated error, got %d", len(errs))
	}
	if errs[0].Kind != KindMemoryPressure {
		t.Errorf("expected memory pressure, got %s", errs[0].Kind)
	}
}

func TestRecordMetrics_WithinThresholdsIsSilent(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	h.RecordMetrics("detect", 100, 10, 0.9, 0)
	if got := len(h.Errors()); got != 0 {
		t.Errorf("expected no generated errors, got %d", got)
	}
}

func TestExecute_PrimarySucceeds(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	got, err := Execute(context.Background(), h, "op",
		func(context.Context) (int, error) { return 42, nil },
		func(context.Context) (int, error) { t.Fatal("fallback must not run"); return 0, nil },
	)
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %d err %v", got, err)
	}
	if len(h.Errors()) != 0 {
		t.Error("success must not record errors")
	}
}

func TestExecute_GracefulDegradation(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	got, err := Execute(context.Background(), h, "op",
		func(context.Context) (string, error) { return "", errors.New("boom") },
		func(context.Context) (string, error) { return "degraded", nil },
	)
	if err != nil {
		t.Fatalf("expected fallback result, got error %v", err)
	}
	if got != "degraded" {
		t.Errorf("expected degraded result, got %q", got)
	}

	var medium, high int
	for _, e := range h.Errors() {
		switch e.Severity {
		case SeverityMedium:
			medium++
		case SeverityHigh:
			high++
		}
	}
	if medium != 1 || high != 0 {
		t.Errorf("expected exactly one medium and zero high errors, got %d/%d", medium, high)
	}
}

func TestExecute_DoubleFailurePropagates(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	_, err := Execute(context.Background(), h, "op",
		func(context.Context) (int, error) { return 0, errors.New("primary down") },
		func(context.Context) (int, error) { return 0, errors.New("fallback down") },
	)
	if err == nil {
		t.Fatal("double failure must propagate")
	}

	var high []ErrorRecord
	for _, e := range h.Errors() {
		if e.Severity == SeverityHigh {
			high = append(high, e)
		}
	}
	if len(high) != 1 {
		t.Fatalf("expected one high-severity record, got %d", len(high))
	}
	// The high-severity record references the original failure.
	if want := "primary down"; !containsStr(high[0].Message, want) {
		t.Errorf("high record %q does not mention %q", high[0].Message, want)
	}
}

func TestExecute_PrimaryPanicTriggersFallback(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	got, err := Execute(context.Background(), h, "op",
		func(context.Context) (int, error) { panic("unexpected shape") },
		func(context.Context) (int, error) { return 7, nil },
	)
	if err != nil || got != 7 {
		t.Errorf("expected panic converted to fallback, got %d err %v", got, err)
	}
}

func TestHealth_Ladder(t *testing.T) {
	t.Run("healthy by default", func(t *testing.T) {
		h := newTestHandler(Options{})
		defer h.Close()
		if got := h.Health(); got != HealthHealthy {
			t.Errorf("expected healthy, got %s", got)
		}
	})

	t.Run("critical on any critical error", func(t *testing.T) {
		h := newTestHandler(Options{})
		defer h.Close()
		h.RecordError(KindGraphConstructionError, SeverityCritical, "fatal", nil)
		if got := h.Health(); got != HealthCritical {
			t.Errorf("expected critical, got %s", got)
		}
	})

	t.Run("degraded above high error budget", func(t *testing.T) {
		h := newTestHandler(Options{})
		defer h.Close()
		for i := 0; i < 6; i++ {
			h.RecordError(KindPatternMatchFailure, SeverityHigh, "bad", nil)
		}
		if got := h.Health(); got != HealthDegraded {
			t.Errorf("expected degraded, got %s", got)
		}
	})

	t.Run("degraded on slow mean execution", func(t *testing.T) {
		h := newTestHandler(Options{})
		defer h.Close()
		h.RecordMetrics("detect", 4000, 1, 1, 0)
		// Mean 11000ms > 2x the 5000ms threshold; the second sample
		// also generates a medium degradation record, which alone
		// would not flip the status.
		h.RecordMetrics("detect", 18000, 1, 1, 0)
		if got := h.Health(); got != HealthDegraded {
			t.Errorf("expected degraded, got %s", got)
		}
	})
}

func TestStatistics_Aggregates(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	h.RecordError(KindPatternMatchFailure, SeverityLow, "a", nil)
	h.RecordError(KindSchemaCompatibilityError, SeverityMedium, "b", nil)
	h.RecordMetrics("detect", 100, 20, 0.5, 0)
	h.RecordMetrics("detect", 300, 40, 1.0, 1)

	s := h.Statistics()
	if s.TotalErrors != 2 {
		t.Errorf("expected 2 errors, got %d", s.TotalErrors)
	}
	if s.ErrorsByKind[KindPatternMatchFailure] != 1 {
		t.Errorf("unexpected kind counts: %v", s.ErrorsByKind)
	}
	if s.TotalMetrics != 2 {
		t.Errorf("expected 2 metrics, got %d", s.TotalMetrics)
	}
	if s.MeanDurationMs != 200 {
		t.Errorf("expected mean 200ms, got %f", s.MeanDurationMs)
	}
	if s.MeanMemoryMB != 30 {
		t.Errorf("expected mean 30MB, got %f", s.MeanMemoryMB)
	}
	if s.Health != HealthHealthy {
		t.Errorf("expected healthy, got %s", s.Health)
	}
}

type captureSubscriber struct {
	errs []ErrorRecord
	mets []MetricSample
}

func (c *captureSubscriber) OnError(r ErrorRecord)  { c.errs = append(c.errs, r) }
func (c *captureSubscriber) OnMetric(m MetricSample) { c.mets = append(c.mets, m) }

func TestSubscribe_ReceivesEvents(t *testing.T) {
	h := newTestHandler(Options{})
	defer h.Close()

	sub := &captureSubscriber{}
	h.Subscribe(sub)

	h.RecordError(KindSchemaDriftDetected, SeverityLow, "drifted", nil)
	h.RecordMetrics("analyze", 5, 1, 1, 0)

	if len(sub.errs) != 1 || sub.errs[0].Kind != KindSchemaDriftDetected {
		t.Errorf("expected drift event, got %v", sub.errs)
	}
	if len(sub.mets) != 1 || sub.mets[0].Operation != "analyze" {
		t.Errorf("expected metric event, got %v", sub.mets)
	}
}

func containsStr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
