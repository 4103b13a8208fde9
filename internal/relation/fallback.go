package relation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stackmesh/stackmesh/internal/pattern"
	"github.com/stackmesh/stackmesh/internal/resilience"
)

// fallbackConfidence scales the coarse overlap ratio to reflect the
// reduced confidence of the degraded path.
const fallbackConfidence = 0.6

// detectFallback is the degraded matching path: only method-agreeing
// pairs are considered and similarity is a coarse per-segment overlap
// ratio. It never returns an error; an internal failure yields an
// empty list plus a high-severity record.
func (d *Detector) detectFallback(callSites []CallSite, routes []RouteDefinition) (results []CrossStackRelationship) {
	defer func() {
		if r := recover(); r != nil {
			d.handler.RecordError(resilience.KindPatternMatchFailure, resilience.SeverityHigh,
				fmt.Sprintf("fallback matching failed: %v", r), nil)
			results = []CrossStackRelationship{}
		}
	}()

	results = []CrossStackRelationship{}
	for _, cs := range callSites {
		for _, route := range routes {
			if !methodsAgree(cs.Method, route.Method) {
				continue
			}
			score := segmentOverlap(cs.Pattern.Normalized, route.Pattern.Normalized) * fallbackConfidence
			if score <= d.cfg.Threshold {
				continue
			}
			results = append(results, CrossStackRelationship{
				CallSite: cs,
				Route:    route,
				Similarity: pattern.SimilarityResult{
					Score:     score,
					MatchType: pattern.MatchPartial,
					Evidence:  []string{"fallback_segment_overlap"},
				},
				EvidenceTags: []string{"http_method_match", "fallback_segment_overlap"},
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity.Score > results[j].Similarity.Score
	})
	return results
}

// segmentOverlap is the fraction of positionally-aligned segments
// that are literally equal or where one contains the other.
func segmentOverlap(a, b string) float64 {
	segsA := nonEmptySegments(a)
	segsB := nonEmptySegments(b)

	aligned := len(segsA)
	if len(segsB) < aligned {
		aligned = len(segsB)
	}
	if aligned == 0 {
		return 0
	}

	matched := 0
	for i := 0; i < aligned; i++ {
		sa, sb := segsA[i], segsB[i]
		if sa == sb || strings.Contains(sa, sb) || strings.Contains(sb, sa) {
			matched++
		}
	}
	return float64(matched) / float64(aligned)
}

func nonEmptySegments(s string) []string {
	var out []string
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
