// Package merge consolidates two duplicate student identities into one.
//
// The engine walks a declarative catalog of dependent relations. For each
// relation it partitions the source student's records into transferable and
// conflicting sets, discards conflicts, and reassigns the rest to the target.
// Scalar profile fields are reconciled with a fill-gap policy, the source is
// deleted, and the whole sequence commits as one transaction or not at all.
package merge

import (
	"fmt"
	"regexp"

	"github.com/lherron/roster/internal/store"
)

// Relation describes one collection of records that reference a student.
type Relation struct {
	// Name is a human-readable label used in logs and telemetry.
	Name string
	// Table and OtherKey locate the records in the store. OtherKey is the
	// second half of a (student, other) uniqueness constraint.
	Table    string
	OtherKey string
	// Unique is true when (student_uuid, OtherKey) must be unique.
	Unique bool
	// ReportKey is the key used for this relation in merge reports.
	ReportKey string
}

// Spec returns the store-level descriptor for the relation.
func (r Relation) Spec() store.RelationSpec {
	return store.RelationSpec{Table: r.Table, OtherKey: r.OtherKey}
}

// Catalog is the ordered list of relations a merge processes. Order only
// affects report and log order.
type Catalog []Relation

var reportKeyRe = regexp.MustCompile(`^[a-z][A-Za-z0-9]*$`)

// DefaultCatalog returns every relation that references a student.
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "enrollment", Table: "enrollments", OtherKey: "class_uuid", Unique: true, ReportKey: "enrollments"},
		{Name: "note", Table: "student_notes", ReportKey: "notes"},
		{Name: "payment", Table: "payments", ReportKey: "payments"},
		{Name: "lesson request", Table: "lesson_requests", ReportKey: "lessonRequests"},
		{Name: "lesson-pack purchase", Table: "lesson_pack_purchases", ReportKey: "lessonPackPurchases"},
		{Name: "waiver", Table: "waivers", ReportKey: "waivers"},
		{Name: "instructor relationship", Table: "student_instructors", OtherKey: "instructor_uuid", Unique: true, ReportKey: "relationships"},
	}
}

// Validate checks that the catalog is internally consistent.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("relation catalog is empty")
	}

	names := make(map[string]bool, len(c))
	tables := make(map[string]bool, len(c))
	keys := make(map[string]bool, len(c))
	for i, rel := range c {
		if rel.Name == "" {
			return fmt.Errorf("relation %d: name is required", i)
		}
		if names[rel.Name] {
			return fmt.Errorf("relation %q: duplicate name", rel.Name)
		}
		names[rel.Name] = true

		if err := rel.Spec().Validate(); err != nil {
			return fmt.Errorf("relation %q: %w", rel.Name, err)
		}
		if tables[rel.Table] {
			return fmt.Errorf("relation %q: table %s already listed", rel.Name, rel.Table)
		}
		tables[rel.Table] = true

		if rel.Unique && rel.OtherKey == "" {
			return fmt.Errorf("relation %q: unique relations need an other key", rel.Name)
		}

		if !reportKeyRe.MatchString(rel.ReportKey) {
			return fmt.Errorf("relation %q: invalid report key %q", rel.Name, rel.ReportKey)
		}
		if keys[rel.ReportKey] {
			return fmt.Errorf("relation %q: duplicate report key %q", rel.Name, rel.ReportKey)
		}
		keys[rel.ReportKey] = true
	}
	return nil
}

// ReportKeys returns the report keys in catalog order.
func (c Catalog) ReportKeys() []string {
	keys := make([]string, len(c))
	for i, rel := range c {
		keys[i] = rel.ReportKey
	}
	return keys
}
