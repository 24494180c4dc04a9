package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

func (e *Engine) changeEntityType(ctx context.Context, d *models.ChangeEntityTypeDetails, performedBy string) (*Outcome, error) {
	ids, err := e.deps.Store.ResolveEntityIdentifiers(ctx, d.EntityUUID)
	if err != nil {
		return nil, resolveError(err)
	}
	current, ok := ids[d.EntityUUID]
	if !ok {
		nf := &NotFoundError{Kind: models.KindChangeEntityType, Table: "entity", UUIDs: []string{d.EntityUUID}}
		return e.notFound(ctx, d, performedBy, nil, nf)
	}

	intent := map[string]any{"entity": current}
	return e.run(ctx, d, performedBy, intent, func(ctx context.Context) (*mutation, error) {
		updated, err := e.deps.Store.ChangeEntityType(ctx, d.EntityUUID, d.NewType)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, fmt.Errorf("%w: entity %s deleted before its type changed", db.ErrNotFound, d.EntityUUID)
		}
		return &mutation{
			results: []models.Result{{
				Message: fmt.Sprintf("Entity (%s) type has been changed from \"%s\" to \"%s\"", updated.Slug, current.Type, d.NewType),
				Success: true,
			}},
			meta: map[string]any{"previousType": current.Type, "slug": updated.Slug},
		}, nil
	})
}

func (e *Engine) mergeEntities(ctx context.Context, d *models.MergeEntitiesDetails, performedBy string) (*Outcome, error) {
	all := append(append([]string{}, d.OriginalEntityUUIDList...), d.NewEntityUUID)
	ids, err := e.deps.Store.ResolveEntityIdentifiers(ctx, all...)
	if err != nil {
		return nil, resolveError(err)
	}

	var missing []string
	for _, id := range all {
		if _, ok := ids[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		nf := &NotFoundError{Kind: models.KindMergeEntities, Table: "entity", UUIDs: missing}
		return e.notFound(ctx, d, performedBy, nil, nf)
	}

	slugs := make([]string, 0, len(d.OriginalEntityUUIDList))
	types := make([]string, 0, len(d.OriginalEntityUUIDList))
	originals := make([]models.EntityIdentifier, 0, len(d.OriginalEntityUUIDList))
	for _, id := range d.OriginalEntityUUIDList {
		slugs = append(slugs, ids[id].Slug)
		types = append(types, ids[id].Type)
		originals = append(originals, ids[id])
	}
	target := ids[d.NewEntityUUID]

	intent := map[string]any{"originals": originals, "target": target}
	return e.run(ctx, d, performedBy, intent, func(ctx context.Context) (*mutation, error) {
		count, err := e.deps.Store.MergeEntities(ctx, d.OriginalEntityUUIDList, d.NewEntityUUID)
		if err != nil {
			return nil, err
		}
		return &mutation{
			results: []models.Result{{
				Message: fmt.Sprintf("%d resources have been updated while changing slugs \"%s\" and types \"%s\" into entity %s (%s)",
					count, strings.Join(slugs, ", "), strings.Join(types, ", "), target.Slug, target.Type),
				Success: true,
			}},
			meta: map[string]any{"updatedResources": count},
		}, nil
	})
}
