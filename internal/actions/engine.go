// Package actions records and performs audited mutations of the histograph
// graph. Every mutation is first written to the audit log as an intent, then
// applied to the store, then marked complete.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/metrics"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

// Store is the graph store the handlers mutate.
type Store interface {
	ResolveLinkIdentifiers(ctx context.Context, entityUUID, resourceUUID string) (*models.EntityIdentifier, *models.ResourceIdentifier, error)
	ResolveEntityIdentifiers(ctx context.Context, uuids ...string) (map[string]models.EntityIdentifier, error)
	GetResourceText(ctx context.Context, resourceUUID string) (*models.Resource, error)

	GetAppearance(ctx context.Context, entityUUID, resourceUUID string) (*models.Appearance, error)
	CreateAppearance(ctx context.Context, entityUUID, resourceUUID string, languages []string, mentions models.Context) (*models.LinkResult, error)
	UpdateAppearance(ctx context.Context, a *models.Appearance, expectedFrequency int) (*models.LinkResult, error)
	DeleteAppearance(ctx context.Context, entityUUID, resourceUUID string) (*models.LinkResult, error)

	ChangeEntityType(ctx context.Context, entityUUID, newType string) (*models.EntityIdentifier, error)
	MergeEntities(ctx context.Context, originalUUIDs []string, targetUUID string) (int, error)
	LinkEntityByKeyphrase(ctx context.Context, link models.KeyphraseLink) (*models.BulkResult, error)

	WithTransaction(ctx context.Context, fn func(db.Tx) error) error
}

// AuditLog persists actions. RecordIntent must be idempotent per action id
// and RecordCompletion must not overwrite an earlier completion.
type AuditLog interface {
	RecordIntent(ctx context.Context, a *models.Action) (*models.Action, error)
	RecordCompletion(ctx context.Context, actionID string, meta map[string]any) (*models.Action, error)
}

// Notifier is told about every recorded outcome.
type Notifier interface {
	Notify(ctx context.Context, o *Outcome)
}

// Dependencies holds the collaborators of an Engine.
// Notifier and Metrics may be nil.
type Dependencies struct {
	Store    Store
	Audit    AuditLog
	Notifier Notifier
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// Config holds engine settings.
type Config struct {
	// Languages accepted for keyphrase linking; each has a full-text index.
	Languages []string
	// BatchSize bounds each drain batch of a bulk unlink.
	BatchSize int
}

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 100

// Outcome is what CreateAction reports back.
type Outcome struct {
	Action    *models.Action  `json:"action"`
	Performed bool            `json:"performed"`
	Results   []models.Result `json:"results"`
}

// Engine dispatches actions to their handlers.
// It holds no locks; concurrent calls are isolated only by the store.
type Engine struct {
	deps      Dependencies
	cfg       Config
	validator *detailsValidator
	newID     func() string
}

// NewEngine creates an engine.
func NewEngine(deps Dependencies, cfg Config) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Engine{
		deps:      deps,
		cfg:       cfg,
		validator: newDetailsValidator(cfg.Languages),
		newID:     uuid.NewString,
	}
}

// CreateAction decodes raw details for kind, validates them and performs the
// action. Invalid kinds and malformed details fail before any store access.
//
// On a NotFoundError the returned Outcome is non-nil: the intent was recorded
// and performed is false.
func (e *Engine) CreateAction(ctx context.Context, kind string, raw json.RawMessage, performedBy string, opts ...Option) (*Outcome, error) {
	k, ok := models.ParseKind(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidActionKind, kind)
	}
	details, err := models.DecodeDetails(k, raw)
	if err != nil {
		verr := &ValidationError{Kind: k}
		verr.add("details", err.Error())
		return nil, verr
	}
	return e.Perform(ctx, details, performedBy, opts...)
}

// Perform validates already decoded details and performs the action.
func (e *Engine) Perform(ctx context.Context, details models.Details, performedBy string, opts ...Option) (out *Outcome, err error) {
	if details == nil {
		return nil, fmt.Errorf("%w: no details", ErrInvalidActionKind)
	}
	if err := e.validator.validate(details, performedBy); err != nil {
		return nil, err
	}

	o := options{batchSize: e.cfg.BatchSize}
	for _, opt := range opts {
		opt(&o)
	}

	kind := details.Kind()
	defer e.deps.Metrics.Track(metrics.ActionOp(string(kind)), time.Now(), &err)

	switch d := details.(type) {
	case *models.LinkEntityDetails:
		out, err = e.linkEntity(ctx, d, performedBy)
	case *models.UnlinkEntityDetails:
		out, err = e.unlinkEntity(ctx, d, performedBy)
	case *models.ChangeEntityTypeDetails:
		out, err = e.changeEntityType(ctx, d, performedBy)
	case *models.MergeEntitiesDetails:
		out, err = e.mergeEntities(ctx, d, performedBy)
	case *models.LinkEntityBulkDetails:
		out, err = e.linkEntityBulk(ctx, d, performedBy)
	case *models.UnlinkEntityBulkDetails:
		out, err = e.unlinkEntityBulk(ctx, d, performedBy, o)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidActionKind, kind)
	}

	if out != nil && (err == nil || errors.Is(err, ErrNotFound)) && e.deps.Notifier != nil {
		e.deps.Notifier.Notify(ctx, out)
	}
	return out, err
}

// mutation is what a handler's mutate step reports.
type mutation struct {
	results []models.Result
	meta    map[string]any
}

// run records the intent, applies mutate and records completion.
// A failure after the intent leaves the action incomplete.
func (e *Engine) run(ctx context.Context, details models.Details, performedBy string, intentMeta map[string]any, mutate func(context.Context) (*mutation, error)) (*Outcome, error) {
	action, err := e.recordIntent(ctx, details, performedBy, intentMeta)
	if err != nil {
		return nil, err
	}

	m, err := mutate(ctx)
	if err != nil {
		e.deps.Logger.Error("action left incomplete",
			"action_id", action.ID, "kind", action.Kind, "step", StepMutate, "error", err)
		return nil, &StoreError{ActionID: action.ID, Step: StepMutate, Err: err}
	}

	completed, err := e.deps.Audit.RecordCompletion(ctx, action.ID, m.meta)
	if err != nil {
		e.deps.Logger.Error("action left incomplete",
			"action_id", action.ID, "kind", action.Kind, "step", StepCompletion, "error", err)
		return nil, &StoreError{ActionID: action.ID, Step: StepCompletion, Err: err}
	}

	e.deps.Logger.Info("action performed",
		"action_id", completed.ID, "kind", completed.Kind, "performed_by", performedBy, "results", len(m.results))
	return &Outcome{Action: completed, Performed: true, Results: m.results}, nil
}

// notFound records the intent of an action whose records are missing and
// reports it without mutating anything.
func (e *Engine) notFound(ctx context.Context, details models.Details, performedBy string, intentMeta map[string]any, nf *NotFoundError) (*Outcome, error) {
	if intentMeta == nil {
		intentMeta = map[string]any{}
	}
	intentMeta["notFound"] = nf.UUIDs
	action, err := e.recordIntent(ctx, details, performedBy, intentMeta)
	if err != nil {
		return nil, err
	}
	e.deps.Logger.Warn("action skipped", "action_id", action.ID, "kind", action.Kind, "error", nf)
	return &Outcome{
		Action:    action,
		Performed: false,
		Results:   []models.Result{{Message: nf.Error(), Success: false}},
	}, nf
}

func (e *Engine) recordIntent(ctx context.Context, details models.Details, performedBy string, meta map[string]any) (*models.Action, error) {
	id := e.newID()
	action, err := e.deps.Audit.RecordIntent(ctx, &models.Action{
		ID:          id,
		Kind:        details.Kind(),
		Details:     details,
		PerformedBy: performedBy,
		Meta:        meta,
	})
	if err != nil {
		return nil, &StoreError{ActionID: id, Step: StepIntent, Err: err}
	}
	e.deps.Logger.Debug("action intent recorded", "action_id", action.ID, "kind", action.Kind)
	return action, nil
}

func resolveError(err error) error {
	return &StoreError{Step: StepResolve, Err: err}
}
