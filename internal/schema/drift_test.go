package schema

import "testing"

func TestComputeDrift_NoChanges(t *testing.T) {
	fields := []Field{
		{Name: "id", Type: "number"},
		{Name: "name", Type: "string"},
	}
	d := ComputeDrift("User", fields, fields)

	if len(d.FieldsAdded)+len(d.FieldsRemoved)+len(d.FieldsModified) != 0 {
		t.Errorf("expected no drift, got %+v", d)
	}
	if d.Severity != DriftLow {
		t.Errorf("expected low severity, got %s", d.Severity)
	}
}

func TestComputeDrift_AddedOnly(t *testing.T) {
	old := []Field{{Name: "id", Type: "number"}}
	new := []Field{{Name: "id", Type: "number"}, {Name: "email", Type: "string"}}

	d := ComputeDrift("User", old, new)

	if len(d.FieldsAdded) != 1 || d.FieldsAdded[0] != "email" {
		t.Errorf("expected email added, got %v", d.FieldsAdded)
	}
	if d.Severity != DriftMedium {
		t.Errorf("additions alone are medium severity, got %s", d.Severity)
	}
}

func TestComputeDrift_RemovedAndModified(t *testing.T) {
	old := []Field{
		{Name: "id", Type: "number"},
		{Name: "name", Type: "string"},
		{Name: "age", Type: "number"},
	}
	new := []Field{
		{Name: "id", Type: "string"},
		{Name: "name", Type: "string"},
	}

	d := ComputeDrift("User", old, new)

	if len(d.FieldsRemoved) != 1 || d.FieldsRemoved[0] != "age" {
		t.Errorf("expected age removed, got %v", d.FieldsRemoved)
	}
	if len(d.FieldsModified) != 1 || d.FieldsModified[0].Field != "id" {
		t.Errorf("expected id modified, got %v", d.FieldsModified)
	}
	if d.Severity != DriftHigh {
		t.Errorf("removals/modifications are high severity, got %s", d.Severity)
	}
	if d.RecommendedAction == "" {
		t.Error("expected a recommended action")
	}
}

func TestComputeDrift_EquivalentTypeSpellingsNotModified(t *testing.T) {
	old := []Field{{Name: "count", Type: "number"}}
	new := []Field{{Name: "count", Type: "integer"}}

	d := ComputeDrift("Stats", old, new)
	if len(d.FieldsModified) != 0 {
		t.Errorf("equivalent spellings must not count as modified, got %v", d.FieldsModified)
	}
}
