package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Options configures a Handler. Zero fields fall back to defaults.
type Options struct {
	MaxErrors        int           // error table cap (default 1000)
	MaxMetrics       int           // metric table cap (default 5000)
	ErrorRetention   time.Duration // default 24h
	MetricRetention  time.Duration // default 6h
	SlowOpThreshold  time.Duration // default 5s
	MemoryLimitMB    float64       // default 100
	EvictionInterval time.Duration // default 5m
	DisableGC        bool          // skip runtime.GC on memory pressure
	Logger           *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxErrors <= 0 {
		o.MaxErrors = 1000
	}
	if o.MaxMetrics <= 0 {
		o.MaxMetrics = 5000
	}
	if o.ErrorRetention <= 0 {
		o.ErrorRetention = 24 * time.Hour
	}
	if o.MetricRetention <= 0 {
		o.MetricRetention = 6 * time.Hour
	}
	if o.SlowOpThreshold <= 0 {
		o.SlowOpThreshold = 5 * time.Second
	}
	if o.MemoryLimitMB <= 0 {
		o.MemoryLimitMB = 100
	}
	if o.EvictionInterval <= 0 {
		o.EvictionInterval = 5 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Handler owns the bounded error and metric tables and the background
// eviction task. Construct with NewHandler and release with Close; it
// is safe for concurrent use.
type Handler struct {
	opts Options

	mu          sync.RWMutex
	errors      []ErrorRecord
	metrics     []MetricSample
	nextID      uint64
	subscribers []Subscriber

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHandler creates a handler and starts its periodic eviction task.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		opts: opts.withDefaults(),
		done: make(chan struct{}),
	}
	h.wg.Add(1)
	go h.evictLoop()
	return h
}

// Close stops the background eviction task. Recording after Close is
// still safe; only the periodic cleanup stops.
func (h *Handler) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	h.wg.Wait()
}

func (h *Handler) evictLoop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.opts.EvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.mu.Lock()
			h.evictLocked(time.Now())
			h.mu.Unlock()
		}
	}
}

// evictLocked drops entries past retention and trims to the caps,
// oldest first. Records are appended in timestamp order, so trimming
// the front always removes the oldest. Safe to run twice.
func (h *Handler) evictLocked(now time.Time) {
	errCutoff := now.Add(-h.opts.ErrorRetention)
	h.errors = dropBefore(h.errors, func(r ErrorRecord) time.Time { return r.Timestamp }, errCutoff)
	if n := len(h.errors) - h.opts.MaxErrors; n > 0 {
		h.errors = append(h.errors[:0], h.errors[n:]...)
	}

	metCutoff := now.Add(-h.opts.MetricRetention)
	h.metrics = dropBefore(h.metrics, func(m MetricSample) time.Time { return m.Timestamp }, metCutoff)
	if n := len(h.metrics) - h.opts.MaxMetrics; n > 0 {
		h.metrics = append(h.metrics[:0], h.metrics[n:]...)
	}
}

func dropBefore[T any](s []T, ts func(T) time.Time, cutoff time.Time) []T {
	i := 0
	for i < len(s) && ts(s[i]).Before(cutoff) {
		i++
	}
	if i == 0 {
		return s
	}
	return append(s[:0], s[i:]...)
}

// Subscribe registers a subscriber for error and metric events.
func (h *Handler) Subscribe(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, s)
}

// RecordError classifies and stores one failure. Memory-pressure
// records request a garbage collection; performance-degradation
// records are marked fallbackApplied as a signal that downstream
// batching should adapt.
func (h *Handler) RecordError(kind ErrorKind, severity Severity, message string, errCtx map[string]string) ErrorRecord {
	rec := ErrorRecord{
		Kind:             kind,
		Severity:         severity,
		Message:          message,
		Context:          errCtx,
		Timestamp:        time.Now(),
		RecoveryStrategy: RecoveryStrategy(kind),
		FallbackApplied:  kind == KindPerformanceDegradation,
	}

	h.mu.Lock()
	h.nextID++
	rec.ID = h.nextID
	h.errors = append(h.errors, rec)
	if len(h.errors) > h.opts.MaxErrors {
		h.errors = append(h.errors[:0], h.errors[len(h.errors)-h.opts.MaxErrors:]...)
	}
	subs := h.snapshotSubscribersLocked()
	h.mu.Unlock()

	if kind == KindMemoryPressure && !h.opts.DisableGC {
		runtime.GC()
	}

	h.opts.Logger.Debug("error recorded",
		"kind", string(kind), "severity", string(severity), "message", message)

	for _, s := range subs {
		s.OnError(rec)
	}
	return rec
}

// RecordMetrics stores one performance sample. Samples exceeding the
// duration or memory thresholds additionally generate error records.
func (h *Handler) RecordMetrics(operation string, durationMs, memoryMB, cacheHitRate float64, errorCount int) MetricSample {
	sample := MetricSample{
		Operation:    operation,
		DurationMs:   durationMs,
		MemoryMB:     memoryMB,
		CacheHitRate: cacheHitRate,
		ErrorCount:   errorCount,
		Timestamp:    time.Now(),
	}

	h.mu.Lock()
	h.metrics = append(h.metrics, sample)
	if len(h.metrics) > h.opts.MaxMetrics {
		h.metrics = append(h.metrics[:0], h.metrics[len(h.metrics)-h.opts.MaxMetrics:]...)
	}
	subs := h.snapshotSubscribersLocked()
	h.mu.Unlock()

	for _, s := range subs {
		s.OnMetric(sample)
	}

	if durationMs > float64(h.opts.SlowOpThreshold.Milliseconds()) {
		h.RecordError(KindPerformanceDegradation, SeverityMedium,
			fmt.Sprintf("operation %s took %.0fms", operation, durationMs),
			map[string]string{"operation": operation})
	}
	if memoryMB > h.opts.MemoryLimitMB {
		h.RecordError(KindMemoryPressure, SeverityHigh,
			fmt.Sprintf("operation %s used %.1fMB", operation, memoryMB),
			map[string]string{"operation": operation})
	}
	return sample
}

// HeapMB reports the current heap allocation in megabytes, the unit
// metric samples carry.
func HeapMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024)
}

// snapshotSubscribersLocked returns nil when nobody is listening so
// callers can skip event fan-out entirely.
func (h *Handler) snapshotSubscribersLocked() []Subscriber {
	if len(h.subscribers) == 0 {
		return nil
	}
	subs := make([]Subscriber, len(h.subscribers))
	copy(subs, h.subscribers)
	return subs
}

// Errors returns a snapshot of the error table, oldest first.
func (h *Handler) Errors() []ErrorRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ErrorRecord, len(h.errors))
	copy(out, h.errors)
	return out
}

// Metrics returns a snapshot of the metric table, oldest first.
func (h *Handler) Metrics() []MetricSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]MetricSample, len(h.metrics))
	copy(out, h.metrics)
	return out
}

// Execute runs primary and falls back on failure. A primary failure
// records one medium-severity error before the fallback runs; if the
// fallback fails too, a high-severity error referencing the original
// failure is recorded and the fallback's error is returned, since no
// further degradation path exists. Panics in either function are
// converted to errors.
func Execute[T any](ctx context.Context, h *Handler, name string, primary, fallback func(context.Context) (T, error)) (T, error) {
	result, err := safeCall(ctx, primary)
	if err == nil {
		return result, nil
	}

	h.RecordError(KindPatternMatchFailure, SeverityMedium,
		fmt.Sprintf("%s failed, attempting fallback: %v", name, err),
		map[string]string{"operation": name})

	fbResult, fbErr := safeCall(ctx, fallback)
	if fbErr == nil {
		return fbResult, nil
	}

	h.RecordError(KindPatternMatchFailure, SeverityHigh,
		fmt.Sprintf("%s fallback failed after primary error %q: %v", name, err, fbErr),
		map[string]string{"operation": name})

	var zero T
	return zero, fmt.Errorf("%s: fallback failed: %w", name, fbErr)
}

func safeCall[T any](ctx context.Context, fn func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
