package pattern

import (
	"math"
	"strings"
)

// MatchType is the coarse category of a similarity result.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchParameters MatchType = "parameters"
	MatchStructure  MatchType = "structure"
	MatchPartial    MatchType = "partial"
	MatchNone       MatchType = "none"
)

// ParameterPairing records one positionally-aligned parameter pair and
// whether the two names were judged compatible.
type ParameterPairing struct {
	SourceParam string `json:"source_param"`
	TargetParam string `json:"target_param"`
	Compatible  bool   `json:"compatible"`
}

// SimilarityResult is the outcome of comparing two normalized
// patterns: a score in [0,1], a match category, and an evidence trail
// a human can inspect to understand the score.
type SimilarityResult struct {
	Score             float64            `json:"score"`
	MatchType         MatchType          `json:"match_type"`
	Evidence          []string           `json:"evidence,omitempty"`
	ParameterPairings []ParameterPairing `json:"parameter_pairings,omitempty"`
}

// Segment weight split: static agreement dominates, parameter
// alignment counts for structure, name compatibility refines.
const (
	weightStatic     = 0.6
	weightParameters = 0.3
	weightParamCompat = 0.1
)

// Score compares two normalized patterns segment by segment. It is a
// pure function, deterministic, and symmetric in its arguments.
func Score(a, b NormalizedPattern) SimilarityResult {
	if a.Normalized == b.Normalized && a.Normalized != "" {
		mt := MatchExact
		if len(a.Parameters) > 0 || len(b.Parameters) > 0 {
			mt = MatchParameters
		}
		return SimilarityResult{
			Score:     1.0,
			MatchType: mt,
			Evidence:  []string{"exact_skeleton_match"},
		}
	}

	segsA := splitSegments(a.Normalized)
	segsB := splitSegments(b.Normalized)

	if len(segsA) != len(segsB) {
		delta := len(segsA) - len(segsB)
		if delta < 0 {
			delta = -delta
		}
		score := 0.3 - 0.1*float64(delta)
		if score < 0 {
			score = 0
		}
		return SimilarityResult{
			Score:     round3(score),
			MatchType: MatchNone,
			Evidence:  []string{"segment_count_mismatch"},
		}
	}

	var (
		evidence      []string
		pairings      []ParameterPairing
		matching      int
		paramSegments int
		compatible    int
	)

	for i := range segsA {
		sa, sb := segsA[i], segsB[i]
		pa, pb := isParamSegment(sa), isParamSegment(sb)
		switch {
		case pa && pb:
			// An aligned parameter pair counts as a matching segment
			// as well: two routes that differ only in parameter names
			// must still be able to clear the parameters threshold.
			matching++
			paramSegments++
			nameA, nameB := paramName(sa), paramName(sb)
			ok := CompatibleParams(nameA, nameB)
			pairings = append(pairings, ParameterPairing{
				SourceParam: nameA,
				TargetParam: nameB,
				Compatible:  ok,
			})
			if ok {
				compatible++
				evidence = append(evidence, "parameter_match")
			} else {
				evidence = append(evidence, "parameter_mismatch")
			}
		case !pa && !pb && sa == sb:
			matching++
			evidence = append(evidence, "static_segment_match:"+sa)
		case pa != pb:
			evidence = append(evidence, "segment_type_mismatch")
		default:
			evidence = append(evidence, "static_segment_mismatch")
		}
	}

	total := len(segsA)
	paramRatio := 1.0
	if len(pairings) > 0 {
		paramRatio = float64(compatible) / float64(len(pairings))
	}
	score := 0.0
	if total > 0 {
		score = weightStatic*float64(matching)/float64(total) +
			weightParameters*float64(paramSegments)/float64(total) +
			weightParamCompat*paramRatio
	}
	score = round3(clamp01(score))

	return SimilarityResult{
		Score:             score,
		MatchType:         classify(score, paramSegments),
		Evidence:          evidence,
		ParameterPairings: pairings,
	}
}

func classify(score float64, paramSegments int) MatchType {
	switch {
	case paramSegments > 0 && score >= 0.7:
		return MatchParameters
	case score >= 0.95 && paramSegments == 0:
		return MatchExact
	case score >= 0.7:
		return MatchParameters
	case score >= 0.5:
		return MatchStructure
	case score >= 0.3:
		return MatchPartial
	default:
		return MatchNone
	}
}

func splitSegments(skeleton string) []string {
	var segs []string
	for _, s := range strings.Split(skeleton, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func isParamSegment(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func paramName(seg string) string {
	return strings.TrimSuffix(strings.TrimPrefix(seg, "{"), "}")
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
