package actions

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/histograph-go/internal/models"
	"github.com/raphaelgruber/histograph-go/internal/offsets"
)

func (e *Engine) linkEntity(ctx context.Context, d *models.LinkEntityDetails, performedBy string) (*Outcome, error) {
	entity, resource, err := e.deps.Store.ResolveLinkIdentifiers(ctx, d.EntityUUID, d.ResourceUUID)
	if err != nil {
		return nil, resolveError(err)
	}
	if nf := missingLinkEnds(models.KindLinkEntity, d.EntityUUID, d.ResourceUUID, entity, resource); nf != nil {
		return e.notFound(ctx, d, performedBy, nil, nf)
	}

	mentions := d.Context
	if mentions == nil {
		mentions = models.Context{}
	}
	if d.ContextLocation != "" {
		res, err := e.deps.Store.GetResourceText(ctx, d.ResourceUUID)
		if err != nil {
			return nil, resolveError(err)
		}
		if res == nil {
			nf := &NotFoundError{Kind: models.KindLinkEntity, Table: "resource", UUIDs: []string{d.ResourceUUID}}
			return e.notFound(ctx, d, performedBy, nil, nf)
		}
		mentions, err = offsets.Adjust(mentions, offsets.FieldTexts(res), offsets.Field(d.ContextLocation))
		if err != nil {
			verr := &ValidationError{Kind: models.KindLinkEntity}
			verr.add("contextLocation", err.Error())
			return nil, verr
		}
	}

	intent := map[string]any{"entity": entity, "resource": resource}
	return e.run(ctx, d, performedBy, intent, func(ctx context.Context) (*mutation, error) {
		existing, err := e.deps.Store.GetAppearance(ctx, d.EntityUUID, d.ResourceUUID)
		if err != nil {
			return nil, err
		}

		var linked *models.LinkResult
		if existing == nil {
			linked, err = e.deps.Store.CreateAppearance(ctx, d.EntityUUID, d.ResourceUUID,
				offsets.SortedLanguages(mentions), offsets.Merge(nil, mentions))
		} else {
			merged := *existing
			merged.Frequency = existing.Frequency + 1
			merged.Languages = offsets.UnionLanguages(existing.Languages, offsets.SortedLanguages(mentions))
			merged.Context = offsets.Merge(existing.Context, mentions)
			linked, err = e.deps.Store.UpdateAppearance(ctx, &merged, existing.Frequency)
		}
		if err != nil {
			return nil, err
		}

		return &mutation{
			results: []models.Result{{
				Message: fmt.Sprintf("Entity (%s) is linked to resource (%s)", linked.EntityUUID, linked.ResourceUUID),
				Success: true,
			}},
			meta: map[string]any{"context": mentions, "appearanceId": linked.AppearanceID},
		}, nil
	})
}

func (e *Engine) unlinkEntity(ctx context.Context, d *models.UnlinkEntityDetails, performedBy string) (*Outcome, error) {
	entity, resource, err := e.deps.Store.ResolveLinkIdentifiers(ctx, d.EntityUUID, d.ResourceUUID)
	if err != nil {
		return nil, resolveError(err)
	}
	if nf := missingLinkEnds(models.KindUnlinkEntity, d.EntityUUID, d.ResourceUUID, entity, resource); nf != nil {
		return e.notFound(ctx, d, performedBy, nil, nf)
	}

	intent := map[string]any{"entity": entity, "resource": resource}
	return e.run(ctx, d, performedBy, intent, func(ctx context.Context) (*mutation, error) {
		deleted, err := e.deps.Store.DeleteAppearance(ctx, d.EntityUUID, d.ResourceUUID)
		if err != nil {
			return nil, err
		}
		if deleted == nil {
			return &mutation{
				results: []models.Result{{
					Message: fmt.Sprintf("Entity (%s) is not linked to resource (%s), nothing to remove", d.EntityUUID, d.ResourceUUID),
					Success: false,
				}},
				meta: map[string]any{"removed": 0},
			}, nil
		}
		return &mutation{
			results: []models.Result{{
				Message: fmt.Sprintf("Entity (%s) is unlinked from resource (%s)", deleted.EntityUUID, deleted.ResourceUUID),
				Success: true,
			}},
			meta: map[string]any{"removed": 1, "appearanceId": deleted.AppearanceID},
		}, nil
	})
}

// missingLinkEnds reports the entity first, since without it nothing can link.
func missingLinkEnds(kind models.Kind, entityUUID, resourceUUID string, entity *models.EntityIdentifier, resource *models.ResourceIdentifier) *NotFoundError {
	switch {
	case entity == nil:
		return &NotFoundError{Kind: kind, Table: "entity", UUIDs: []string{entityUUID}}
	case resource == nil:
		return &NotFoundError{Kind: kind, Table: "resource", UUIDs: []string{resourceUUID}}
	}
	return nil
}
