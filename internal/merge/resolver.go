package merge

import (
	"context"
	"fmt"

	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/store"
)

// RelationReader is the read side of per-relation store access.
type RelationReader interface {
	ListByStudent(ctx context.Context, rel store.RelationSpec, studentUUID string) ([]domain.DependentRecord, error)
	ListOtherKeysByStudent(ctx context.Context, rel store.RelationSpec, studentUUID string) (map[string]struct{}, error)
}

// Resolution partitions a source student's records in one relation.
type Resolution struct {
	Transferable []string
	Conflicting  []string
}

// Resolve classifies every source record of rel as transferable or
// conflicting. A record conflicts when the target already holds a record with
// the same other key. Resolve only reads.
func Resolve(ctx context.Context, r RelationReader, rel Relation, sourceUUID, targetUUID string) (Resolution, error) {
	var res Resolution

	records, err := r.ListByStudent(ctx, rel.Spec(), sourceUUID)
	if err != nil {
		return res, err
	}

	if !rel.Unique {
		for _, rec := range records {
			res.Transferable = append(res.Transferable, rec.UUID)
		}
		return res, nil
	}

	taken, err := r.ListOtherKeysByStudent(ctx, rel.Spec(), targetUUID)
	if err != nil {
		return res, err
	}

	for _, rec := range records {
		if rec.OtherKey == nil {
			return res, fmt.Errorf("%s record %s has no %s", rel.Name, rec.UUID, rel.OtherKey)
		}
		if _, ok := taken[*rec.OtherKey]; ok {
			res.Conflicting = append(res.Conflicting, rec.UUID)
		} else {
			res.Transferable = append(res.Transferable, rec.UUID)
		}
	}
	return res, nil
}
