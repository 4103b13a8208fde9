package schema

import "fmt"

// DriftSeverity grades how disruptive a schema divergence is.
type DriftSeverity string

const (
	DriftLow    DriftSeverity = "low"
	DriftMedium DriftSeverity = "medium"
	DriftHigh   DriftSeverity = "high"
)

// FieldChange records one modified field between two snapshots.
type FieldChange struct {
	Field   string `json:"field"`
	OldType string `json:"old_type"`
	NewType string `json:"new_type"`
}

// DriftRecord describes the divergence between two snapshots of the
// same logical interface. Computed on demand; the caller decides
// whether to persist a history.
type DriftRecord struct {
	InterfaceName     string        `json:"interface_name"`
	FieldsAdded       []string      `json:"fields_added,omitempty"`
	FieldsRemoved     []string      `json:"fields_removed,omitempty"`
	FieldsModified    []FieldChange `json:"fields_modified,omitempty"`
	Severity          DriftSeverity `json:"severity"`
	RecommendedAction string        `json:"recommended_action"`
}

// ComputeDrift compares two snapshots of a logical interface and
// reports fields added, removed, and modified between them.
func ComputeDrift(interfaceName string, old, new []Field) *DriftRecord {
	oldIndex := make(map[string]Field, len(old))
	for _, f := range old {
		oldIndex[f.Name] = f
	}
	newIndex := make(map[string]Field, len(new))
	for _, f := range new {
		newIndex[f.Name] = f
	}

	d := &DriftRecord{InterfaceName: interfaceName}

	for _, f := range old {
		nf, ok := newIndex[f.Name]
		if !ok {
			d.FieldsRemoved = append(d.FieldsRemoved, f.Name)
			continue
		}
		if !TypesCompatible(f.Type, nf.Type) {
			d.FieldsModified = append(d.FieldsModified, FieldChange{
				Field:   f.Name,
				OldType: f.Type,
				NewType: nf.Type,
			})
		}
	}
	for _, f := range new {
		if _, ok := oldIndex[f.Name]; !ok {
			d.FieldsAdded = append(d.FieldsAdded, f.Name)
		}
	}

	d.Severity, d.RecommendedAction = gradeDrift(d)
	return d
}

// gradeDrift assigns severity: removals and type changes break
// existing consumers, additions are usually safe.
func gradeDrift(d *DriftRecord) (DriftSeverity, string) {
	switch {
	case len(d.FieldsRemoved) > 0 || len(d.FieldsModified) > 0:
		return DriftHigh, fmt.Sprintf(
			"review %s: %d removed and %d modified field(s) can break existing consumers",
			d.InterfaceName, len(d.FieldsRemoved), len(d.FieldsModified))
	case len(d.FieldsAdded) > 0:
		return DriftMedium, fmt.Sprintf(
			"verify new field(s) of %s are optional for older consumers", d.InterfaceName)
	default:
		return DriftLow, "no action required"
	}
}

// driftFromRules builds the rule-set view of an interface and diffs
// the frontend type against it, using the backend naming convention.
func driftFromRules(frontend *TypeDescription, rules []ValidationRule) *DriftRecord {
	backendView := make([]Field, 0, len(rules))
	for _, r := range rules {
		backendView = append(backendView, Field{
			Name:     r.Field,
			Type:     r.Type,
			Optional: !r.Required,
		})
	}
	frontendView := make([]Field, 0, len(frontend.Fields))
	for _, f := range frontend.Fields {
		frontendView = append(frontendView, Field{
			Name:     CamelToSnake(f.Name),
			Type:     f.Type,
			Optional: f.Optional,
		})
	}
	return ComputeDrift(frontend.Name, backendView, frontendView)
}
