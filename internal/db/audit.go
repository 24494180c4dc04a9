package db

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/raphaelgruber/histograph-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// actionRecord is the stored shape of an audit log entry.
type actionRecord struct {
	ID          surrealmodels.RecordID `json:"id"`
	Kind        string                 `json:"kind"`
	Details     map[string]any         `json:"details"`
	PerformedBy string                 `json:"performed_by"`
	CreatedAt   time.Time              `json:"created_at"`
	PerformedAt *time.Time             `json:"performed_at,omitempty"`
	Meta        map[string]any         `json:"meta,omitempty"`
}

func (r actionRecord) toModel() (*models.Action, error) {
	kind, ok := models.ParseKind(r.Kind)
	if !ok {
		return nil, fmt.Errorf("stored action %s has unknown kind %q", models.RecordIDKey(r.ID), r.Kind)
	}
	details, err := models.DetailsFromMap(kind, r.Details)
	if err != nil {
		return nil, fmt.Errorf("stored action %s: %w", models.RecordIDKey(r.ID), err)
	}
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return nil, fmt.Errorf("stored action %s: %w", models.RecordIDKey(r.ID), err)
	}
	return &models.Action{
		ID:          id,
		Kind:        kind,
		Details:     details,
		PerformedBy: r.PerformedBy,
		CreatedAt:   r.CreatedAt,
		PerformedAt: r.PerformedAt,
		Meta:        r.Meta,
	}, nil
}

// RecordIntent stores an action before its mutation runs. The store assigns
// created_at. Re-recording an existing id leaves the first record untouched
// and returns it.
func (c *Client) RecordIntent(ctx context.Context, a *models.Action) (*models.Action, error) {
	details, err := models.DetailsToMap(a.Details)
	if err != nil {
		return nil, fmt.Errorf("record intent: %w", err)
	}
	meta := a.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	rows, err := query[actionRecord](ctx, c, "record intent", `
		INSERT IGNORE INTO action {
			id: $id,
			kind: $kind,
			details: $details,
			performed_by: $performed_by,
			meta: $meta
		} RETURN NONE;
		SELECT * FROM type::record("action", $id);
	`, map[string]any{
		"id":           a.ID,
		"kind":         string(a.Kind),
		"details":      details,
		"performed_by": a.PerformedBy,
		"meta":         meta,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("record intent: action %s not readable after insert", a.ID)
	}
	return rows[0].toModel()
}

// RecordCompletion sets performed_at and merges meta into the stored meta.
// Completing an already completed action returns it unchanged.
func (c *Client) RecordCompletion(ctx context.Context, actionID string, meta map[string]any) (*models.Action, error) {
	current, err := c.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("record completion: %w: action %s", ErrNotFound, actionID)
	}
	if current.Completed() {
		return current, nil
	}

	merged := make(map[string]any, len(current.Meta)+len(meta))
	maps.Copy(merged, current.Meta)
	maps.Copy(merged, meta)

	rows, err := query[actionRecord](ctx, c, "record completion", `
		UPDATE type::record("action", $id) SET
			meta = $meta,
			performed_at = time::now()
		WHERE performed_at IS NONE
		RETURN NONE;
		SELECT * FROM type::record("action", $id);
	`, map[string]any{"id": actionID, "meta": merged})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("record completion: %w: action %s", ErrNotFound, actionID)
	}
	return rows[0].toModel()
}

// GetAction retrieves an action by id. Returns nil if not found.
func (c *Client) GetAction(ctx context.Context, id string) (*models.Action, error) {
	rows, err := query[actionRecord](ctx, c, "get action", `
		SELECT * FROM type::record("action", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel()
}

// ActionFilter narrows ListActions. Zero values mean no filter.
type ActionFilter struct {
	Kind           models.Kind
	PerformedBy    string
	IncompleteOnly bool
	Limit          int
}

// DefaultActionLimit caps ListActions when no limit is given.
const DefaultActionLimit = 50

// ListActions returns actions newest first.
func (c *Client) ListActions(ctx context.Context, filter ActionFilter) ([]models.Action, error) {
	var conds []string
	vars := map[string]any{}
	if filter.Kind != "" {
		conds = append(conds, "kind = $kind")
		vars["kind"] = string(filter.Kind)
	}
	if filter.PerformedBy != "" {
		conds = append(conds, "performed_by = $performed_by")
		vars["performed_by"] = filter.PerformedBy
	}
	if filter.IncompleteOnly {
		conds = append(conds, "performed_at IS NONE")
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultActionLimit
	}
	vars["limit"] = limit

	sql := fmt.Sprintf(`SELECT * FROM action %s ORDER BY created_at DESC LIMIT $limit`, where)
	rows, err := query[actionRecord](ctx, c, "list actions", sql, vars)
	if err != nil {
		return nil, err
	}

	actions := make([]models.Action, 0, len(rows))
	for _, r := range rows {
		a, err := r.toModel()
		if err != nil {
			c.log.Warn("skipping unreadable action", "id", models.RecordIDKey(r.ID), "error", err)
			continue
		}
		actions = append(actions, *a)
	}
	return actions, nil
}
