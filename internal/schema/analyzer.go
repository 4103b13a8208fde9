// Package schema compares a frontend type description against a
// backend validation-rule set and estimates how compatible the two
// sides of a data contract are.
package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// Field is one named field of a frontend type description.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// TypeDescription is a named frontend type: the shape the caller
// believes it sends or receives.
type TypeDescription struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// ValidationRule is one backend validation entry for a request field.
type ValidationRule struct {
	Field    string `json:"field"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// FieldMatch records a field that agreed on both sides.
type FieldMatch struct {
	Field      string `json:"field"`
	SourceType string `json:"source_type"`
	TargetType string `json:"target_type"`
}

// FieldMismatch records a field that disagreed, with a short issue
// classification for human review.
type FieldMismatch struct {
	Field      string `json:"field"`
	SourceType string `json:"source_type,omitempty"`
	TargetType string `json:"target_type,omitempty"`
	Issue      string `json:"issue"`
}

// Compatibility is the outcome of comparing one frontend type against
// one backend rule set.
type Compatibility struct {
	Compatible bool            `json:"compatible"`
	Score      float64         `json:"score"`
	Matches    []FieldMatch    `json:"matches,omitempty"`
	Mismatches []FieldMismatch `json:"mismatches,omitempty"`
	Drift      *DriftRecord    `json:"drift,omitempty"`
}

// CompatibleThreshold is the default score at or above which the two
// sides are considered compatible.
const CompatibleThreshold = 0.7

// Analyzer compares frontend types against backend validation rules.
// The zero value is not usable; construct with NewAnalyzer.
type Analyzer struct {
	threshold float64
}

// NewAnalyzer returns an analyzer using the given acceptance
// threshold, or the default when threshold is zero.
func NewAnalyzer(threshold float64) *Analyzer {
	if threshold <= 0 {
		threshold = CompatibleThreshold
	}
	return &Analyzer{threshold: threshold}
}

// Analyze compares a frontend type against a backend rule set field by
// field. It is defensive on malformed input: a nil type or nil rule
// set yields an incompatible result with a single "invalid input"
// mismatch instead of an error.
func (a *Analyzer) Analyze(frontend *TypeDescription, rules []ValidationRule) Compatibility {
	if frontend == nil || rules == nil {
		return Compatibility{
			Compatible: false,
			Score:      0,
			Mismatches: []FieldMismatch{{Field: "all", Issue: "invalid input"}},
		}
	}

	ruleIndex := make(map[string]ValidationRule, len(rules))
	for _, r := range rules {
		ruleIndex[r.Field] = r
	}

	result := Compatibility{}
	for _, f := range frontend.Fields {
		rule, ok := ruleIndex[CamelToSnake(f.Name)]
		if !ok {
			rule, ok = ruleIndex[f.Name]
		}
		if !ok {
			result.Mismatches = append(result.Mismatches, FieldMismatch{
				Field:      f.Name,
				SourceType: f.Type,
				Issue:      "no corresponding validation rule found",
			})
			continue
		}

		typeOK := TypesCompatible(f.Type, rule.Type)
		// Strict-opposite rule: optional on the frontend iff not
		// required on the backend. Conditionally-required backend
		// rules count as required here.
		requiredOK := f.Optional == !rule.Required

		if typeOK && requiredOK {
			result.Matches = append(result.Matches, FieldMatch{
				Field:      f.Name,
				SourceType: f.Type,
				TargetType: rule.Type,
			})
			continue
		}

		var issues []string
		if !typeOK {
			issues = append(issues, fmt.Sprintf("type mismatch: %s vs %s", f.Type, rule.Type))
		}
		if !requiredOK {
			issues = append(issues, "required/optional mismatch")
		}
		result.Mismatches = append(result.Mismatches, FieldMismatch{
			Field:      f.Name,
			SourceType: f.Type,
			TargetType: rule.Type,
			Issue:      strings.Join(issues, "; "),
		})
	}

	total := len(frontend.Fields)
	if total > 0 {
		result.Score = float64(len(result.Matches)) / float64(total)
	}
	result.Compatible = result.Score >= a.threshold

	// Side observation, not a blocking step: a named type with
	// mismatches gets a drift record against the rule-set view.
	if len(result.Mismatches) > 0 && frontend.Name != "" {
		result.Drift = driftFromRules(frontend, rules)
	}

	return result
}

// typeEquivalents groups backend/frontend spellings that denote the
// same runtime shape. Matching is substring containment in both
// directions, so "string|null" and "string" land in the same class.
var typeEquivalents = []string{
	"string", "number", "boolean", "array", "object", "any",
}

var typeSynonyms = map[string]string{
	"integer": "number",
	"int":     "number",
	"float":   "number",
	"double":  "number",
	"bool":    "boolean",
	"unknown": "any",
}

// TypesCompatible reports whether two type spellings denote the same
// equivalence class after case/whitespace normalization.
func TypesCompatible(a, b string) bool {
	na, nb := normalizeType(a), normalizeType(b)
	if na == nb && na != "" {
		return true
	}
	ca, cb := typeClass(na), typeClass(nb)
	if ca == "any" || cb == "any" {
		return true
	}
	return ca != "" && ca == cb
}

func typeClass(t string) string {
	if syn, ok := typeSynonyms[strings.TrimSuffix(t, "|null")]; ok {
		return syn
	}
	for _, base := range typeEquivalents {
		if strings.Contains(t, base) {
			return base
		}
	}
	return ""
}

func normalizeType(t string) string {
	var b strings.Builder
	for _, r := range t {
		if !unicode.IsSpace(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// CamelToSnake converts a camelCase field name to the snake_case
// convention used by backend validators.
func CamelToSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
