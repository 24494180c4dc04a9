package actions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type pair struct{ entity, resource string }

// fakeStore is an in-memory Store and AuditLog that records every call.
type fakeStore struct {
	mu    sync.Mutex
	calls []string
	clock time.Time

	entities    map[string]models.EntityIdentifier
	resources   map[string]*models.Resource
	appearances map[pair]*models.Appearance
	actions     map[string]*models.Action

	// canonical rewrites uuids in what mutations report back
	canonical map[string]string
	// slugAfterUpdate is the slug ChangeEntityType reports
	slugAfterUpdate map[string]string
	mergeCount      int
	bulkResult      *models.BulkResult
	lastLink        models.KeyphraseLink
	batches         []*models.BulkResult
	batchLimits     []int
	fail            map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		entities:        map[string]models.EntityIdentifier{},
		resources:       map[string]*models.Resource{},
		appearances:     map[pair]*models.Appearance{},
		actions:         map[string]*models.Action{},
		canonical:       map[string]string{},
		slugAfterUpdate: map[string]string{},
		fail:            map[string]error{},
	}
}

func (f *fakeStore) addEntity(uuid, slug, entityType string) {
	f.entities[uuid] = models.EntityIdentifier{UUID: uuid, Slug: slug, Name: slug, Type: entityType}
}

func (f *fakeStore) addResource(uuid string, title, caption map[string]string) {
	f.resources[uuid] = &models.Resource{Slug: uuid, Title: title, Caption: caption}
}

// call records name and returns its scripted failure. Caller holds mu.
func (f *fakeStore) call(name string) error {
	f.calls = append(f.calls, name)
	return f.fail[name]
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Millisecond)
	return f.clock
}

func (f *fakeStore) id(uuid string) string {
	if c, ok := f.canonical[uuid]; ok {
		return c
	}
	return uuid
}

func (f *fakeStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore) ResolveLinkIdentifiers(_ context.Context, entityUUID, resourceUUID string) (*models.EntityIdentifier, *models.ResourceIdentifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ResolveLinkIdentifiers"); err != nil {
		return nil, nil, err
	}
	var entity *models.EntityIdentifier
	if e, ok := f.entities[entityUUID]; ok {
		entity = &e
	}
	var resource *models.ResourceIdentifier
	if r, ok := f.resources[resourceUUID]; ok {
		resource = &models.ResourceIdentifier{UUID: resourceUUID, Slug: r.Slug, Name: r.DisplayName()}
	}
	return entity, resource, nil
}

func (f *fakeStore) ResolveEntityIdentifiers(_ context.Context, uuids ...string) (map[string]models.EntityIdentifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ResolveEntityIdentifiers"); err != nil {
		return nil, err
	}
	out := map[string]models.EntityIdentifier{}
	for _, id := range uuids {
		if e, ok := f.entities[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (f *fakeStore) GetResourceText(_ context.Context, resourceUUID string) (*models.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetResourceText"); err != nil {
		return nil, err
	}
	return f.resources[resourceUUID], nil
}

func (f *fakeStore) GetAppearance(_ context.Context, entityUUID, resourceUUID string) (*models.Appearance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetAppearance"); err != nil {
		return nil, err
	}
	a, ok := f.appearances[pair{entityUUID, resourceUUID}]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateAppearance(_ context.Context, entityUUID, resourceUUID string, languages []string, mentions models.Context) (*models.LinkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateAppearance"); err != nil {
		return nil, err
	}
	key := pair{entityUUID, resourceUUID}
	if _, ok := f.appearances[key]; ok {
		return nil, fmt.Errorf("%w: pair exists", db.ErrTransactionConflict)
	}
	id := fmt.Sprintf("a%d", len(f.appearances)+1)
	f.appearances[key] = &models.Appearance{
		ID:        surrealmodels.NewRecordID("appears_in", id),
		Entity:    surrealmodels.NewRecordID("entity", entityUUID),
		Resource:  surrealmodels.NewRecordID("resource", resourceUUID),
		Frequency: 1,
		Languages: languages,
		Context:   mentions,
	}
	return &models.LinkResult{EntityUUID: f.id(entityUUID), ResourceUUID: f.id(resourceUUID), AppearanceID: id}, nil
}

func (f *fakeStore) UpdateAppearance(_ context.Context, a *models.Appearance, expectedFrequency int) (*models.LinkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("UpdateAppearance"); err != nil {
		return nil, err
	}
	entityUUID := fmt.Sprint(a.Entity.ID)
	resourceUUID := fmt.Sprint(a.Resource.ID)
	key := pair{entityUUID, resourceUUID}
	current, ok := f.appearances[key]
	if !ok || current.Frequency != expectedFrequency {
		return nil, fmt.Errorf("%w: frequency changed", db.ErrTransactionConflict)
	}
	cp := *a
	f.appearances[key] = &cp
	return &models.LinkResult{EntityUUID: f.id(entityUUID), ResourceUUID: f.id(resourceUUID), AppearanceID: fmt.Sprint(a.ID.ID)}, nil
}

func (f *fakeStore) DeleteAppearance(_ context.Context, entityUUID, resourceUUID string) (*models.LinkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteAppearance"); err != nil {
		return nil, err
	}
	key := pair{entityUUID, resourceUUID}
	a, ok := f.appearances[key]
	if !ok {
		return nil, nil
	}
	delete(f.appearances, key)
	return &models.LinkResult{EntityUUID: f.id(entityUUID), ResourceUUID: f.id(resourceUUID), AppearanceID: fmt.Sprint(a.ID.ID)}, nil
}

func (f *fakeStore) ChangeEntityType(_ context.Context, entityUUID, newType string) (*models.EntityIdentifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ChangeEntityType"); err != nil {
		return nil, err
	}
	e, ok := f.entities[entityUUID]
	if !ok {
		return nil, nil
	}
	e.Type = newType
	if slug, ok := f.slugAfterUpdate[entityUUID]; ok {
		e.Slug = slug
	}
	f.entities[entityUUID] = e
	return &e, nil
}

func (f *fakeStore) MergeEntities(_ context.Context, originalUUIDs []string, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("MergeEntities"); err != nil {
		return 0, err
	}
	for _, id := range originalUUIDs {
		delete(f.entities, id)
	}
	return f.mergeCount, nil
}

func (f *fakeStore) LinkEntityByKeyphrase(_ context.Context, link models.KeyphraseLink) (*models.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("LinkEntityByKeyphrase"); err != nil {
		return nil, err
	}
	f.lastLink = link
	if f.bulkResult == nil {
		return &models.BulkResult{}, nil
	}
	return f.bulkResult, nil
}

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(db.Tx) error) error {
	f.mu.Lock()
	err := f.call("WithTransaction")
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(fakeTx{f})
}

type fakeTx struct{ f *fakeStore }

func (t fakeTx) UnlinkAppearanceBatch(_ context.Context, _ string, limit int) (*models.BulkResult, error) {
	f := t.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("UnlinkAppearanceBatch"); err != nil {
		return nil, err
	}
	f.batchLimits = append(f.batchLimits, limit)
	if len(f.batches) == 0 {
		return &models.BulkResult{}, nil
	}
	next := f.batches[0]
	f.batches = f.batches[1:]
	if next == nil {
		return nil, fmt.Errorf("connection reset")
	}
	return next, nil
}

func (f *fakeStore) RecordIntent(_ context.Context, a *models.Action) (*models.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RecordIntent"); err != nil {
		return nil, err
	}
	if existing, ok := f.actions[a.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	stored := *a
	stored.CreatedAt = f.tick()
	stored.Meta = maps.Clone(a.Meta)
	f.actions[a.ID] = &stored
	cp := stored
	return &cp, nil
}

func (f *fakeStore) RecordCompletion(_ context.Context, actionID string, meta map[string]any) (*models.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RecordCompletion"); err != nil {
		return nil, err
	}
	a, ok := f.actions[actionID]
	if !ok {
		return nil, fmt.Errorf("%w: action %s", db.ErrNotFound, actionID)
	}
	if a.PerformedAt == nil {
		at := f.tick()
		a.PerformedAt = &at
		if a.Meta == nil {
			a.Meta = map[string]any{}
		}
		maps.Copy(a.Meta, meta)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) action(id string) *models.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actions[id]
}

// mutationCalls are the store calls that change graph data.
var mutationCalls = map[string]bool{
	"CreateAppearance":      true,
	"UpdateAppearance":      true,
	"DeleteAppearance":      true,
	"ChangeEntityType":      true,
	"MergeEntities":         true,
	"LinkEntityByKeyphrase": true,
	"WithTransaction":       true,
	"UnlinkAppearanceBatch": true,
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []*Outcome
}

func (n *recordingNotifier) Notify(_ context.Context, o *Outcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.outcomes)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
