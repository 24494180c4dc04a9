package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/raphaelgruber/histograph-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// appearanceRecord is the stored shape of an appears_in edge. Intervals are
// kept as plain nested arrays.
type appearanceRecord struct {
	ID        surrealmodels.RecordID `json:"id"`
	In        surrealmodels.RecordID `json:"in"`
	Out       surrealmodels.RecordID `json:"out"`
	Frequency int                    `json:"frequency"`
	Languages []string               `json:"languages"`
	Context   map[string][][]int     `json:"context"`
}

func (r appearanceRecord) toModel() *models.Appearance {
	ctx := make(models.Context, len(r.Context))
	for lang, pairs := range r.Context {
		intervals := make([]models.Interval, 0, len(pairs))
		for _, p := range pairs {
			if len(p) != 2 {
				continue
			}
			intervals = append(intervals, models.Interval{p[0], p[1]})
		}
		ctx[lang] = intervals
	}
	languages := r.Languages
	if languages == nil {
		languages = []string{}
	}
	return &models.Appearance{
		ID:        r.ID,
		Entity:    r.In,
		Resource:  r.Out,
		Frequency: r.Frequency,
		Languages: languages,
		Context:   ctx,
	}
}

func (r appearanceRecord) linkResult() (*models.LinkResult, error) {
	entityUUID, err := models.RecordIDString(r.In)
	if err != nil {
		return nil, fmt.Errorf("appears_in %s entity: %w", models.RecordIDKey(r.ID), err)
	}
	resourceUUID, err := models.RecordIDString(r.Out)
	if err != nil {
		return nil, fmt.Errorf("appears_in %s resource: %w", models.RecordIDKey(r.ID), err)
	}
	appearanceID, err := models.RecordIDString(r.ID)
	if err != nil {
		return nil, fmt.Errorf("appears_in id: %w", err)
	}
	return &models.LinkResult{
		EntityUUID:   entityUUID,
		ResourceUUID: resourceUUID,
		AppearanceID: appearanceID,
	}, nil
}

func storedContext(c models.Context) map[string][][]int {
	out := make(map[string][][]int, len(c))
	for lang, intervals := range c {
		pairs := make([][]int, 0, len(intervals))
		for _, iv := range intervals {
			pairs = append(pairs, []int{iv.Start(), iv.End()})
		}
		out[lang] = pairs
	}
	return out
}

// GetAppearance reads the appears_in edge between an entity and a resource.
// Returns nil if the pair is not linked.
func (c *Client) GetAppearance(ctx context.Context, entityUUID, resourceUUID string) (*models.Appearance, error) {
	rows, err := query[appearanceRecord](ctx, c, "get appearance", `
		SELECT * FROM appears_in
		WHERE in = type::record("entity", $entity_id) AND out = type::record("resource", $resource_id)
		LIMIT 1
	`, map[string]any{"entity_id": entityUUID, "resource_id": resourceUUID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel(), nil
}

// CreateAppearance relates an entity to a resource with frequency 1. If a
// concurrent writer created the edge first, the unique pair index rejects the
// write and ErrTransactionConflict is returned.
func (c *Client) CreateAppearance(ctx context.Context, entityUUID, resourceUUID string, languages []string, mentions models.Context) (*models.LinkResult, error) {
	if languages == nil {
		languages = []string{}
	}
	rows, err := query[appearanceRecord](ctx, c, "create appearance", `
		RELATE (type::record("entity", $entity_id))->appears_in->(type::record("resource", $resource_id)) CONTENT {
			frequency: 1,
			languages: $languages,
			context: $context
		} RETURN AFTER
	`, map[string]any{
		"entity_id":   entityUUID,
		"resource_id": resourceUUID,
		"languages":   languages,
		"context":     storedContext(mentions),
	})
	if err != nil {
		if errors.Is(err, ErrEntityAlreadyExists) {
			return nil, fmt.Errorf("%w: appearance of %s in %s created concurrently", ErrTransactionConflict, entityUUID, resourceUUID)
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create appearance: %w: entity %s or resource %s", ErrNotFound, entityUUID, resourceUUID)
	}
	return rows[0].linkResult()
}

// UpdateAppearance writes a merged appearance back, provided its frequency
// still equals expectedFrequency. A concurrent update in between makes the
// condition fail and ErrTransactionConflict is returned.
func (c *Client) UpdateAppearance(ctx context.Context, a *models.Appearance, expectedFrequency int) (*models.LinkResult, error) {
	rows, err := query[appearanceRecord](ctx, c, "update appearance", `
		UPDATE $id SET
			frequency = $frequency,
			languages = $languages,
			context = $context,
			updated = time::now()
		WHERE frequency = $expected
		RETURN AFTER
	`, map[string]any{
		"id":        a.ID,
		"frequency": a.Frequency,
		"languages": a.Languages,
		"context":   storedContext(a.Context),
		"expected":  expectedFrequency,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: appearance %s changed since it was read", ErrTransactionConflict, models.RecordIDKey(a.ID))
	}
	return rows[0].linkResult()
}

// DeleteAppearance removes the edge between an entity and a resource and
// returns the identifiers of the deleted edge. Returns nil if there was none.
func (c *Client) DeleteAppearance(ctx context.Context, entityUUID, resourceUUID string) (*models.LinkResult, error) {
	rows, err := query[appearanceRecord](ctx, c, "delete appearance", `
		DELETE appears_in
		WHERE in = type::record("entity", $entity_id) AND out = type::record("resource", $resource_id)
		RETURN BEFORE
	`, map[string]any{"entity_id": entityUUID, "resource_id": resourceUUID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].linkResult()
}

// LinkEntityByKeyphrase relates an entity to every resource whose canonical
// text in one language matches the keyphrase. Existing edges get their
// frequency incremented and the language added. Runs as one transaction.
func (c *Client) LinkEntityByKeyphrase(ctx context.Context, link models.KeyphraseLink) (*models.BulkResult, error) {
	if !languageCode.MatchString(link.LanguageCode) {
		return nil, fmt.Errorf("link by keyphrase: invalid language code %q", link.LanguageCode)
	}
	field := TextField(link.LanguageCode)

	sql := fmt.Sprintf(`
		BEGIN TRANSACTION;

		LET $entity = type::record("entity", $entity_id);
		IF !record::exists($entity) {
			THROW "%[2]s"
		};

		LET $matches = (
			SELECT VALUE id FROM resource
			WHERE %[1]s @@ $query
				AND string::contains(string::lowercase(%[1]s), string::lowercase($keyphrase))
		);

		FOR $res IN $matches {
			LET $existing = (SELECT id, languages FROM appears_in WHERE in = $entity AND out = $res)[0];
			IF $existing {
				UPDATE $existing.id SET
					frequency += 1,
					languages = array::union(languages, [$lang]),
					updated = time::now()
				RETURN NONE;
			} ELSE {
				RELATE $entity->appears_in->$res CONTENT {
					frequency: 1,
					languages: [$lang],
					context: {}
				} RETURN NONE;
			};
		};

		[{ entity_uuid: $entity_id, total_resources: array::len($matches) }];

		COMMIT TRANSACTION;
	`, field, notFoundMarker)

	rows, err := query[models.BulkResult](ctx, c, "link by keyphrase", sql, map[string]any{
		"entity_id": link.EntityUUID,
		"query":     link.Query,
		"keyphrase": link.Keyphrase,
		"lang":      link.LanguageCode,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &models.BulkResult{}, nil
	}
	return &rows[0], nil
}

// Tx is a unit of work opened by WithTransaction. Each call commits on its
// own, so a scope interrupted half-way leaves whole batches applied and can
// be re-run.
type Tx interface {
	UnlinkAppearanceBatch(ctx context.Context, entityUUID string, limit int) (*models.BulkResult, error)
}

type tx struct {
	c       *Client
	scope   string
	batches int
}

// WithTransaction runs fn inside one logical transaction scope.
func (c *Client) WithTransaction(ctx context.Context, fn func(Tx) error) error {
	t := &tx{c: c, scope: uuid.NewString()}
	c.log.Debug("transaction scope opened", "scope", t.scope)
	if err := fn(t); err != nil {
		c.log.Warn("transaction scope aborted", "scope", t.scope, "batches", t.batches, "error", err)
		return err
	}
	c.log.Debug("transaction scope closed", "scope", t.scope, "batches", t.batches)
	return nil
}

// UnlinkAppearanceBatch deletes up to limit appears_in edges of an entity.
// EntityUUID is nil in the result when no edge was left to delete.
func (t *tx) UnlinkAppearanceBatch(ctx context.Context, entityUUID string, limit int) (*models.BulkResult, error) {
	t.batches++
	rows, err := query[models.BulkResult](ctx, t.c, "unlink appearance batch", `
		BEGIN TRANSACTION;

		LET $batch = (SELECT VALUE id FROM appears_in WHERE in = type::record("entity", $entity_id) LIMIT $limit);
		DELETE appears_in WHERE id IN $batch RETURN NONE;

		[{
			entity_uuid: IF array::len($batch) > 0 THEN $entity_id ELSE NONE END,
			total_resources: array::len($batch)
		}];

		COMMIT TRANSACTION;
	`, map[string]any{"entity_id": entityUUID, "limit": limit})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &models.BulkResult{}, nil
	}
	return &rows[0], nil
}
