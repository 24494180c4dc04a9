// Package db provides SurrealDB query functions for the histograph graph.
package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/histograph-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// identifierRow is the shared projection of the identifier statements.
type identifierRow struct {
	UUID  string            `json:"uuid"`
	Slug  string            `json:"slug"`
	Name  string            `json:"name"`
	Type  string            `json:"type"`
	Title map[string]string `json:"title,omitempty"`
}

func (r identifierRow) entity() *models.EntityIdentifier {
	return &models.EntityIdentifier{UUID: r.UUID, Slug: r.Slug, Name: r.Name, Type: r.Type}
}

func (r identifierRow) resource() *models.ResourceIdentifier {
	res := models.Resource{Slug: r.Slug, Title: r.Title}
	return &models.ResourceIdentifier{UUID: r.UUID, Slug: r.Slug, Name: res.DisplayName()}
}

func entityRecord(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("entity", id)
}

// ResolveLinkIdentifiers fetches display identifiers of an entity and a
// resource. Either return value is nil when that record does not exist.
func (c *Client) ResolveLinkIdentifiers(ctx context.Context, entityUUID, resourceUUID string) (*models.EntityIdentifier, *models.ResourceIdentifier, error) {
	entities, err := query[identifierRow](ctx, c, "resolve entity", `
		SELECT record::id(id) AS uuid, slug, name, type FROM type::record("entity", $id)
	`, map[string]any{"id": entityUUID})
	if err != nil {
		return nil, nil, err
	}
	resources, err := query[identifierRow](ctx, c, "resolve resource", `
		SELECT record::id(id) AS uuid, slug, title FROM type::record("resource", $id)
	`, map[string]any{"id": resourceUUID})
	if err != nil {
		return nil, nil, err
	}

	var entity *models.EntityIdentifier
	if len(entities) > 0 {
		entity = entities[0].entity()
	}
	var resource *models.ResourceIdentifier
	if len(resources) > 0 {
		resource = resources[0].resource()
	}
	return entity, resource, nil
}

// ResolveEntityIdentifiers fetches display identifiers of several entities,
// keyed by uuid. Missing entities are absent from the map.
func (c *Client) ResolveEntityIdentifiers(ctx context.Context, uuids ...string) (map[string]models.EntityIdentifier, error) {
	ids := make([]surrealmodels.RecordID, 0, len(uuids))
	for _, id := range uuids {
		ids = append(ids, entityRecord(id))
	}

	rows, err := query[identifierRow](ctx, c, "resolve entities", `
		SELECT record::id(id) AS uuid, slug, name, type FROM $ids
	`, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.EntityIdentifier, len(rows))
	for _, r := range rows {
		out[r.UUID] = *r.entity()
	}
	return out, nil
}

// GetResourceText retrieves a resource with its multilingual fields.
// Returns nil if not found.
func (c *Client) GetResourceText(ctx context.Context, resourceUUID string) (*models.Resource, error) {
	rows, err := query[models.Resource](ctx, c, "get resource", `
		SELECT * FROM type::record("resource", $id)
	`, map[string]any{"id": resourceUUID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ChangeEntityType sets the type of an entity and returns its identifiers as
// stored after the update. Returns nil if the entity does not exist.
func (c *Client) ChangeEntityType(ctx context.Context, entityUUID, newType string) (*models.EntityIdentifier, error) {
	rows, err := query[models.Entity](ctx, c, "change entity type", `
		UPDATE type::record("entity", $id) SET
			type = $type,
			updated = time::now()
		RETURN AFTER
	`, map[string]any{"id": entityUUID, "type": newType})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	e := rows[0]
	id, err := models.RecordIDString(e.ID)
	if err != nil {
		return nil, fmt.Errorf("change entity type: %w", err)
	}
	return &models.EntityIdentifier{
		UUID: id,
		Slug: e.Slug,
		Name: e.Name,
		Type: e.Type,
	}, nil
}

// MergeEntities re-points every appears_in edge of the original entities onto
// the target, then deletes the originals, in one transaction. When the target
// already appears in a resource, the moved edge is folded into the existing
// one: frequencies add up, languages and per-language intervals are unioned.
// Returns the number of edges that were moved.
func (c *Client) MergeEntities(ctx context.Context, originalUUIDs []string, targetUUID string) (int, error) {
	sources := make([]surrealmodels.RecordID, 0, len(originalUUIDs))
	for _, id := range originalUUIDs {
		sources = append(sources, entityRecord(id))
	}

	rows, err := query[countRow](ctx, c, "merge entities", `
		BEGIN TRANSACTION;

		IF !record::exists($target) {
			THROW "`+notFoundMarker+`"
		};

		LET $edges = (SELECT id, out, frequency, languages, context FROM appears_in WHERE in IN $sources);

		FOR $edge IN $edges {
			LET $existing = (SELECT id, frequency, languages, context FROM appears_in WHERE in = $target AND out = $edge.out)[0];
			IF $existing {
				LET $langs = array::union(object::keys($existing.context), object::keys($edge.context));
				UPDATE $existing.id SET
					frequency = $existing.frequency + $edge.frequency,
					languages = array::union($existing.languages, $edge.languages),
					context = object::from_entries(array::map($langs, |$lang| [
						$lang,
						array::sort(array::union($existing.context[$lang] ?? [], $edge.context[$lang] ?? []))
					])),
					updated = time::now()
				RETURN NONE;
			} ELSE {
				LET $resource = $edge.out;
				RELATE $target->appears_in->$resource CONTENT {
					frequency: $edge.frequency,
					languages: $edge.languages,
					context: $edge.context
				} RETURN NONE;
			};
		};

		DELETE appears_in WHERE in IN $sources RETURN NONE;
		DELETE entity WHERE id IN $sources RETURN NONE;

		[{ count: array::len($edges) }];

		COMMIT TRANSACTION;
	`, map[string]any{"sources": sources, "target": entityRecord(targetUUID)})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

type countRow struct {
	Count int `json:"count"`
}

// CountAppearances returns the number of resources an entity appears in.
func (c *Client) CountAppearances(ctx context.Context, entityUUID string) (int, error) {
	rows, err := query[countRow](ctx, c, "count appearances", `
		SELECT count() AS count FROM appears_in WHERE in = type::record("entity", $id) GROUP ALL
	`, map[string]any{"id": entityUUID})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}
