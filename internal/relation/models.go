// Package relation builds confidence-ranked relationships between
// frontend call sites and backend route definitions.
package relation

import (
	"github.com/stackmesh/stackmesh/internal/pattern"
	"github.com/stackmesh/stackmesh/internal/schema"
)

// SourceLocation points at the expression in frontend source that
// produced a call site.
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// CallSite is a single HTTP-call expression found in frontend source.
// Pattern is filled by the loader/extractor via pattern.Normalize.
type CallSite struct {
	URL          string                    `json:"url"`
	Method       string                    `json:"method"`
	Pattern      pattern.NormalizedPattern `json:"pattern"`
	RequestType  string                    `json:"request_type,omitempty"`
	ResponseType string                    `json:"response_type,omitempty"`
	Location     SourceLocation            `json:"location"`
	Component    string                    `json:"component,omitempty"`
}

// RouteDefinition is a single HTTP-endpoint declaration found in
// backend source.
type RouteDefinition struct {
	Path            string                    `json:"path"`
	Method          string                    `json:"method"`
	Pattern         pattern.NormalizedPattern `json:"pattern"`
	Controller      string                    `json:"controller,omitempty"`
	Action          string                    `json:"action,omitempty"`
	ValidationRules []schema.ValidationRule   `json:"validation_rules,omitempty"`
	ResponseSchema  *schema.TypeDescription   `json:"response_schema,omitempty"`
	SourceFile      string                    `json:"source_file,omitempty"`
}

// CrossStackRelationship is one surviving (call site, route) pair with
// its similarity verdict and provenance. Never mutated after creation;
// re-run the pipeline to refresh.
type CrossStackRelationship struct {
	CallSite            CallSite                  `json:"call_site"`
	Route               RouteDefinition           `json:"route"`
	Similarity          pattern.SimilarityResult  `json:"similarity"`
	SchemaCompatibility *schema.Compatibility     `json:"schema_compatibility,omitempty"`
	EvidenceTags        []string                  `json:"evidence_tags"`
}
