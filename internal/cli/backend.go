package cli

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/client"
	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

// Backend is where commands send actions: the database directly, or a
// histograph server.
type Backend interface {
	Perform(ctx context.Context, details models.Details, batchSize int, observer actions.BatchObserver) (*actions.Outcome, error)
	PerformRaw(ctx context.Context, kind string, raw json.RawMessage) (*actions.Outcome, error)
	GetAction(ctx context.Context, id string) (*models.Action, error)
	ListActions(ctx context.Context, filter db.ActionFilter) ([]models.Action, error)
	// CountAppearances sizes drain progress. ok is false when unknown.
	CountAppearances(ctx context.Context, entityUUID string) (n int, ok bool, err error)
}

// errRemoteOnly is returned by local backends for server-only features.
var errRemoteOnly = errors.New("this command needs --remote or --server")

type localBackend struct {
	engine *actions.Engine
	store  *db.Client
	user   string
}

func (b *localBackend) Perform(ctx context.Context, details models.Details, batchSize int, observer actions.BatchObserver) (*actions.Outcome, error) {
	opts := []actions.Option{actions.WithBatchSize(batchSize)}
	if observer != nil {
		opts = append(opts, actions.WithBatchObserver(observer))
	}
	return b.engine.Perform(ctx, details, b.user, opts...)
}

func (b *localBackend) PerformRaw(ctx context.Context, kind string, raw json.RawMessage) (*actions.Outcome, error) {
	return b.engine.CreateAction(ctx, kind, raw, b.user)
}

func (b *localBackend) GetAction(ctx context.Context, id string) (*models.Action, error) {
	return b.store.GetAction(ctx, id)
}

func (b *localBackend) ListActions(ctx context.Context, filter db.ActionFilter) ([]models.Action, error) {
	return b.store.ListActions(ctx, filter)
}

func (b *localBackend) CountAppearances(ctx context.Context, entityUUID string) (int, bool, error) {
	n, err := b.store.CountAppearances(ctx, entityUUID)
	return n, err == nil, err
}

// remoteBackend cannot observe drain batches; the server runs them.
type remoteBackend struct {
	client *client.Client
}

func (b *remoteBackend) Perform(ctx context.Context, details models.Details, batchSize int, _ actions.BatchObserver) (*actions.Outcome, error) {
	return b.client.CreateAction(ctx, details.Kind(), details, batchSize)
}

func (b *remoteBackend) PerformRaw(ctx context.Context, kind string, raw json.RawMessage) (*actions.Outcome, error) {
	return b.client.CreateAction(ctx, models.Kind(kind), raw, 0)
}

func (b *remoteBackend) GetAction(ctx context.Context, id string) (*models.Action, error) {
	return b.client.GetAction(ctx, id)
}

func (b *remoteBackend) ListActions(ctx context.Context, filter db.ActionFilter) ([]models.Action, error) {
	return b.client.ListActions(ctx, filter)
}

func (b *remoteBackend) CountAppearances(context.Context, string) (int, bool, error) {
	return 0, false, nil
}
