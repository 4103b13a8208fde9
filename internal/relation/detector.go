package relation

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/stackmesh/stackmesh/internal/pattern"
	"github.com/stackmesh/stackmesh/internal/resilience"
	"github.com/stackmesh/stackmesh/internal/schema"
)

// DefaultThreshold is the similarity score a pair must exceed to be
// materialized into a relationship.
const DefaultThreshold = 0.3

// Config tunes a Detector. Zero fields fall back to defaults.
type Config struct {
	// Threshold is the similarity acceptance bar (default 0.3).
	Threshold float64
	// Workers bounds the parallel cross-product partitions
	// (default runtime.NumCPU).
	Workers int
}

// Detector runs detection over call sites and routes, supervised by a
// resilience handler.
type Detector struct {
	cfg      Config
	handler  *resilience.Handler
	analyzer *schema.Analyzer

	// Types indexes extracted frontend type descriptions by name so
	// request/response carriers can get a schema verdict attached.
	Types map[string]*schema.TypeDescription
}

// NewDetector creates a detector. The handler is required; the
// analyzer may be nil when no schema information will be supplied.
func NewDetector(cfg Config, handler *resilience.Handler, analyzer *schema.Analyzer) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if analyzer == nil {
		analyzer = schema.NewAnalyzer(0)
	}
	return &Detector{cfg: cfg, handler: handler, analyzer: analyzer}
}

// Detect scores the full cross product of call sites and routes and
// returns the surviving pairs, best first. It runs through the
// resilience fallback wrapper: total failure of the primary path
// degrades to coarse segment-overlap matching, and only a failure of
// both paths propagates. Nil inputs are treated as empty.
func (d *Detector) Detect(ctx context.Context, callSites []CallSite, routes []RouteDefinition) ([]CrossStackRelationship, error) {
	return resilience.Execute(ctx, d.handler, "relationship_detection",
		func(ctx context.Context) ([]CrossStackRelationship, error) {
			return d.detectPrimary(ctx, callSites, routes)
		},
		func(ctx context.Context) ([]CrossStackRelationship, error) {
			return d.detectFallback(callSites, routes), nil
		},
	)
}

func (d *Detector) detectPrimary(ctx context.Context, callSites []CallSite, routes []RouteDefinition) ([]CrossStackRelationship, error) {
	if len(callSites) == 0 && len(routes) == 0 {
		d.handler.RecordError(resilience.KindPatternMatchFailure, resilience.SeverityLow,
			"no call sites or routes to analyze", nil)
		return []CrossStackRelationship{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Partition by call site: the cross product has no ordering
	// dependency between partitions, results are sorted afterwards.
	workers := d.cfg.Workers
	if workers > len(callSites) {
		workers = len(callSites)
	}
	if workers < 1 {
		workers = 1
	}

	partitions := make([][]CrossStackRelationship, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var out []CrossStackRelationship
			for i := w; i < len(callSites); i += workers {
				out = append(out, d.scoreOne(callSites[i], routes)...)
			}
			partitions[w] = out
		}(w)
	}
	wg.Wait()

	var results []CrossStackRelationship
	for _, p := range partitions {
		results = append(results, p...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity.Score != results[j].Similarity.Score {
			return results[i].Similarity.Score > results[j].Similarity.Score
		}
		return results[i].Route.Path < results[j].Route.Path
	})
	if results == nil {
		results = []CrossStackRelationship{}
	}
	return results, nil
}

// scoreOne compares one call site against every route. A failure
// inside a single pairwise comparison is recorded and skipped; it
// never aborts the batch.
func (d *Detector) scoreOne(cs CallSite, routes []RouteDefinition) []CrossStackRelationship {
	var out []CrossStackRelationship
	for _, route := range routes {
		rel, ok := d.scorePair(cs, route)
		if ok {
			out = append(out, rel)
		}
	}
	return out
}

func (d *Detector) scorePair(cs CallSite, route RouteDefinition) (rel CrossStackRelationship, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.handler.RecordError(resilience.KindGraphConstructionError, resilience.SeverityMedium,
				fmt.Sprintf("pair %s vs %s could not be materialized: %v", cs.URL, route.Path, r),
				map[string]string{"call_site": cs.URL, "route": route.Path})
			ok = false
		}
	}()

	sim := pattern.Score(cs.Pattern, route.Pattern)
	if sim.Score <= d.cfg.Threshold {
		return CrossStackRelationship{}, false
	}

	tags := []string{"url_pattern_match"}
	if methodsAgree(cs.Method, route.Method) {
		tags = append(tags, "http_method_match")
	}
	tags = append(tags, sim.Evidence...)

	rel = CrossStackRelationship{
		CallSite:     cs,
		Route:        route,
		Similarity:   sim,
		EvidenceTags: tags,
	}

	if compat := d.analyzeSchemas(cs, route); compat != nil {
		rel.SchemaCompatibility = compat
	}
	return rel, true
}

// analyzeSchemas attaches a schema verdict when the pair carries typed
// request information on both sides.
func (d *Detector) analyzeSchemas(cs CallSite, route RouteDefinition) *schema.Compatibility {
	if cs.RequestType == "" || len(route.ValidationRules) == 0 {
		return nil
	}
	desc, ok := d.Types[cs.RequestType]
	if !ok {
		return nil
	}
	compat := d.analyzer.Analyze(desc, route.ValidationRules)
	if compat.Drift != nil {
		d.handler.RecordError(resilience.KindSchemaDriftDetected, resilience.SeverityLow,
			fmt.Sprintf("schema drift observed on %s", cs.RequestType),
			map[string]string{"interface": cs.RequestType})
	}
	return &compat
}

func methodsAgree(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return strings.EqualFold(a, b)
}
