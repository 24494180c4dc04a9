package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/metrics"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

// phraseQuery turns a keyphrase into a quoted full-text query.
func phraseQuery(keyphrase string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(keyphrase), `"`, "") + `"`
}

func (e *Engine) linkEntityBulk(ctx context.Context, d *models.LinkEntityBulkDetails, performedBy string) (*Outcome, error) {
	ids, err := e.deps.Store.ResolveEntityIdentifiers(ctx, d.EntityUUID)
	if err != nil {
		return nil, resolveError(err)
	}
	entity, ok := ids[d.EntityUUID]
	if !ok {
		nf := &NotFoundError{Kind: models.KindLinkEntityBulk, Table: "entity", UUIDs: []string{d.EntityUUID}}
		return e.notFound(ctx, d, performedBy, nil, nf)
	}

	link := models.KeyphraseLink{
		EntityUUID:   d.EntityUUID,
		EntitySlug:   entity.Slug,
		LanguageCode: d.LanguageCode,
		IndexName:    db.TextField(d.LanguageCode),
		Query:        phraseQuery(d.Keyphrase),
		Keyphrase:    strings.TrimSpace(d.Keyphrase),
	}

	intent := map[string]any{"entity": entity, "indexName": link.IndexName, "query": link.Query}
	return e.run(ctx, d, performedBy, intent, func(ctx context.Context) (*mutation, error) {
		res, err := e.deps.Store.LinkEntityByKeyphrase(ctx, link)
		if err != nil {
			return nil, err
		}
		entityUUID := d.EntityUUID
		if res.EntityUUID != nil {
			entityUUID = *res.EntityUUID
		}
		return &mutation{
			results: []models.Result{{
				Message: fmt.Sprintf("Entity %s is linked to %d resources", entityUUID, res.TotalResources),
				Success: true,
			}},
			meta: map[string]any{"totalResources": res.TotalResources},
		}, nil
	})
}

// unlinkEntityBulk drains the entity's edges in bounded batches. The total is
// the sum over all batches that reported removed edges; the closing empty
// batch contributes nothing.
func (e *Engine) unlinkEntityBulk(ctx context.Context, d *models.UnlinkEntityBulkDetails, performedBy string, o options) (*Outcome, error) {
	ids, err := e.deps.Store.ResolveEntityIdentifiers(ctx, d.EntityUUID)
	if err != nil {
		return nil, resolveError(err)
	}
	entity, ok := ids[d.EntityUUID]
	if !ok {
		nf := &NotFoundError{Kind: models.KindUnlinkEntityBulk, Table: "entity", UUIDs: []string{d.EntityUUID}}
		return e.notFound(ctx, d, performedBy, nil, nf)
	}

	intent := map[string]any{"entity": entity, "batchSize": o.batchSize}
	return e.run(ctx, d, performedBy, intent, func(ctx context.Context) (*mutation, error) {
		total, batches := 0, 0
		entityUUID := d.EntityUUID

		err := e.deps.Store.WithTransaction(ctx, func(tx db.Tx) error {
			for {
				start := time.Now()
				res, err := tx.UnlinkAppearanceBatch(ctx, d.EntityUUID, o.batchSize)
				e.deps.Metrics.Track(metrics.OpDBDrain, start, &err)
				if err != nil {
					return fmt.Errorf("batch %d: %w", batches+1, err)
				}
				if res.EntityUUID == nil || res.TotalResources == 0 {
					return nil
				}

				batches++
				total += res.TotalResources
				entityUUID = *res.EntityUUID
				e.deps.Logger.Debug("drain batch removed edges",
					"entity", entityUUID, "batch", batches, "removed", res.TotalResources, "total", total)
				if o.observer != nil {
					o.observer(BatchProgress{Batch: batches, Removed: res.TotalResources, Total: total})
				}
			}
		})
		if err != nil {
			return nil, err
		}

		return &mutation{
			results: []models.Result{{
				Message: fmt.Sprintf("Entity (%s) is unlinked from %d resources", entityUUID, total),
				Success: true,
			}},
			meta: map[string]any{"totalResources": total, "batches": batches},
		}, nil
	})
}
