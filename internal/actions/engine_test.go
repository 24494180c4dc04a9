package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/metrics"
	"github.com/raphaelgruber/histograph-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type harness struct {
	engine   *Engine
	store    *fakeStore
	notifier *recordingNotifier
	metrics  *metrics.Collector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newFakeStore()
	notifier := &recordingNotifier{}
	mc := metrics.NewCollector()
	engine := NewEngine(Dependencies{
		Store:    store,
		Audit:    store,
		Notifier: notifier,
		Metrics:  mc,
		Logger:   quietLogger(),
	}, Config{Languages: []string{"en", "fr", "de"}, BatchSize: 2})

	n := 0
	engine.newID = func() string {
		n++
		return fmt.Sprintf("act-%d", n)
	}
	return &harness{engine: engine, store: store, notifier: notifier, metrics: mc}
}

func (h *harness) create(t *testing.T, kind string, details any, opts ...Option) (*Outcome, error) {
	t.Helper()
	raw, err := json.Marshal(details)
	require.NoError(t, err)
	return h.engine.CreateAction(context.Background(), kind, raw, "tester", opts...)
}

func (h *harness) seedAppearance(entityUUID, resourceUUID string, frequency int, c models.Context) {
	h.store.appearances[pair{entityUUID, resourceUUID}] = &models.Appearance{
		ID:        surrealmodels.NewRecordID("appears_in", "seed"),
		Entity:    surrealmodels.NewRecordID("entity", entityUUID),
		Resource:  surrealmodels.NewRecordID("resource", resourceUUID),
		Frequency: frequency,
		Languages: c.Languages(),
		Context:   c,
	}
}

func assertCompleted(t *testing.T, out *Outcome) {
	t.Helper()
	require.NotNil(t, out.Action)
	require.NotNil(t, out.Action.PerformedAt, "performed actions carry performedAt")
	assert.True(t, out.Action.PerformedAt.After(out.Action.CreatedAt))
}

// =============================================================================
// DISPATCH
// =============================================================================

func TestInvalidKindTouchesNothing(t *testing.T) {
	for _, kind := range []string{"", "frobnicate", "LINK-ENTITY", "link_entity"} {
		t.Run(kind, func(t *testing.T) {
			h := newHarness(t)
			out, err := h.create(t, kind, map[string]any{"entityUuid": "e1"})
			assert.Nil(t, out)
			assert.ErrorIs(t, err, ErrInvalidActionKind)
			assert.Empty(t, h.store.Calls())
			assert.Zero(t, h.notifier.count())
		})
	}
}

func TestValidationTouchesNothing(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.Kind
		details string
		field   string
	}{
		{"link without entity", models.KindLinkEntity, `{"resourceUuid":"r1"}`, "entityUuid"},
		{"link without resource", models.KindLinkEntity, `{"entityUuid":"e1"}`, "resourceUuid"},
		{"link unknown field", models.KindLinkEntity, `{"entityUuid":"e1","resourceUuid":"r1","extra":1}`, "details"},
		{"link bad location", models.KindLinkEntity, `{"entityUuid":"e1","resourceUuid":"r1","contextLocation":"body"}`, "contextLocation"},
		{"link reversed interval", models.KindLinkEntity, `{"entityUuid":"e1","resourceUuid":"r1","context":{"en":[[5,2]]}}`, "context.en[0]"},
		{"link negative interval", models.KindLinkEntity, `{"entityUuid":"e1","resourceUuid":"r1","context":{"en":[[-1,2]]}}`, "context.en[0]"},
		{"link short interval", models.KindLinkEntity, `{"entityUuid":"e1","resourceUuid":"r1","context":{"en":[[1]]}}`, "details"},
		{"link long interval", models.KindLinkEntity, `{"entityUuid":"e1","resourceUuid":"r1","context":{"en":[[1,2,3]]}}`, "details"},
		{"link fractional offset", models.KindLinkEntity, `{"entityUuid":"e1","resourceUuid":"r1","context":{"en":[[1.5,2]]}}`, "details"},
		{"link bad language", models.KindLinkEntity, `{"entityUuid":"e1","resourceUuid":"r1","context":{"english":[[1,2]]}}`, "context"},
		{"unlink empty", models.KindUnlinkEntity, `{}`, "entityUuid"},
		{"change type blank", models.KindChangeEntityType, `{"entityUuid":"e1","newType":"  "}`, "newType"},
		{"change type missing", models.KindChangeEntityType, `{"entityUuid":"e1"}`, "newType"},
		{"merge single", models.KindMergeEntities, `{"originalEntityUuidList":["e1"],"newEntityUuid":"e3"}`, "originalEntityUuidList"},
		{"merge duplicate", models.KindMergeEntities, `{"originalEntityUuidList":["e1","e1"],"newEntityUuid":"e3"}`, "originalEntityUuidList"},
		{"merge into original", models.KindMergeEntities, `{"originalEntityUuidList":["e1","e2"],"newEntityUuid":"e2"}`, "newEntityUuid"},
		{"merge empty id", models.KindMergeEntities, `{"originalEntityUuidList":["e1",""],"newEntityUuid":"e3"}`, "originalEntityUuidList[1]"},
		{"bulk unsupported language", models.KindLinkEntityBulk, `{"entityUuid":"e1","keyphrase":"x","languageCode":"it"}`, "languageCode"},
		{"bulk blank keyphrase", models.KindLinkEntityBulk, `{"entityUuid":"e1","keyphrase":"\"\"","languageCode":"fr"}`, "keyphrase"},
		{"bulk unlink missing", models.KindUnlinkEntityBulk, `{}`, "entityUuid"},
		{"not an object", models.KindUnlinkEntityBulk, `[1,2]`, "details"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			out, err := h.engine.CreateAction(context.Background(), string(tt.kind), json.RawMessage(tt.details), "tester")
			assert.Nil(t, out)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.kind, verr.Kind)
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
			assert.Empty(t, h.store.Calls(), "validation failures never reach the store")
		})
	}
}

func TestPerformedByRequired(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Perform(context.Background(), &models.UnlinkEntityBulkDetails{EntityUUID: "e1"}, " ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "performedBy", verr.Fields[0].Field)
	assert.Empty(t, h.store.Calls())
}

func TestPerformNilDetails(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Perform(context.Background(), nil, "tester")
	assert.ErrorIs(t, err, ErrInvalidActionKind)
}

// =============================================================================
// LINK / UNLINK
// =============================================================================

func TestLinkEntityCreatesAppearance(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	h.store.addResource("456", map[string]string{"en": "Title"}, nil)

	input := models.Context{"en": {{10, 20}, {2, 5}}}
	out, err := h.create(t, "link-entity", map[string]any{
		"entityUuid": "123", "resourceUuid": "456", "context": input,
	})
	require.NoError(t, err)
	assert.True(t, out.Performed)
	assert.Equal(t, []models.Result{{Message: "Entity (123) is linked to resource (456)", Success: true}}, out.Results)
	assertCompleted(t, out)

	a := h.store.appearances[pair{"123", "456"}]
	require.NotNil(t, a)
	assert.Equal(t, 1, a.Frequency)
	assert.Equal(t, []string{"en"}, a.Languages)
	assert.Equal(t, models.Context{"en": {{2, 5}, {10, 20}}}, a.Context)
	assert.Equal(t, input, out.Action.Meta["context"])

	assert.Equal(t, []string{
		"ResolveLinkIdentifiers", "RecordIntent", "GetAppearance", "CreateAppearance", "RecordCompletion",
	}, h.store.Calls())
}

func TestLinkEntityAdjustsOffsetsForLocation(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	h.store.addResource("456", map[string]string{"en": "A title of 13"}, map[string]string{"en": "a caption"})

	out, err := h.create(t, "link-entity", map[string]any{
		"entityUuid": "123", "resourceUuid": "456",
		"context":         models.Context{"en": {{2, 5}}},
		"contextLocation": "caption",
	})
	require.NoError(t, err)
	assert.True(t, out.Performed)

	want := models.Context{"en": {{17, 20}}}
	assert.Equal(t, want, h.store.appearances[pair{"123", "456"}].Context)
	assert.Equal(t, want, out.Action.Meta["context"])
	assert.Equal(t, []string{
		"ResolveLinkIdentifiers", "GetResourceText", "RecordIntent", "GetAppearance", "CreateAppearance", "RecordCompletion",
	}, h.store.Calls())
}

func TestLinkEntityMergesIntoExisting(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	h.store.addResource("456", nil, nil)
	h.seedAppearance("123", "456", 3, models.Context{"en": {{10, 20}}, "fr": {{4, 8}}})

	out, err := h.create(t, "link-entity", map[string]any{
		"entityUuid": "123", "resourceUuid": "456",
		"context": models.Context{"en": {{2, 5}}, "de": {{1, 1}}},
	})
	require.NoError(t, err)
	assert.True(t, out.Performed)

	a := h.store.appearances[pair{"123", "456"}]
	assert.Equal(t, 4, a.Frequency)
	assert.Equal(t, models.Context{
		"en": {{2, 5}, {10, 20}},
		"fr": {{4, 8}},
		"de": {{1, 1}},
	}, a.Context)
	assert.ElementsMatch(t, []string{"en", "fr", "de"}, a.Languages)
}

func TestLinkEntityTwiceKeepsContext(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	h.store.addResource("456", nil, nil)

	details := map[string]any{
		"entityUuid": "123", "resourceUuid": "456",
		"context": models.Context{"en": {{2, 5}, {10, 20}}},
	}
	_, err := h.create(t, "link-entity", details)
	require.NoError(t, err)
	once := h.store.appearances[pair{"123", "456"}].Context

	_, err = h.create(t, "link-entity", details)
	require.NoError(t, err)

	a := h.store.appearances[pair{"123", "456"}]
	assert.Equal(t, once, a.Context)
	assert.Equal(t, 2, a.Frequency)
}

func TestLinkEntityReportsStoreIdentifiers(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	h.store.addResource("456", nil, nil)
	h.store.canonical["123"] = "uid-123"
	h.store.canonical["456"] = "uid-456"

	out, err := h.create(t, "link-entity", map[string]any{"entityUuid": "123", "resourceUuid": "456"})
	require.NoError(t, err)
	assert.Equal(t, "Entity (uid-123) is linked to resource (uid-456)", out.Results[0].Message)
}

func TestLinkEntityLostRaceLeavesActionIncomplete(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	h.store.addResource("456", nil, nil)
	h.seedAppearance("123", "456", 1, models.Context{})
	h.store.fail["UpdateAppearance"] = fmt.Errorf("update appearance: %w", db.ErrTransactionConflict)

	out, err := h.create(t, "link-entity", map[string]any{"entityUuid": "123", "resourceUuid": "456"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, db.ErrTransactionConflict)

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StepMutate, serr.Step)
	assert.Equal(t, "act-1", serr.ActionID)

	stored := h.store.action("act-1")
	require.NotNil(t, stored)
	assert.Nil(t, stored.PerformedAt, "failed mutations leave the intent incomplete")
	assert.NotContains(t, h.store.Calls(), "RecordCompletion")
	assert.Zero(t, h.notifier.count())
}

func TestLinkEntityNotFound(t *testing.T) {
	h := newHarness(t)
	h.store.addResource("456", nil, nil)

	out, err := h.create(t, "link-entity", map[string]any{"entityUuid": "missing", "resourceUuid": "456"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "entity", nf.Table)

	require.NotNil(t, out)
	assert.False(t, out.Performed)
	assert.Nil(t, out.Action.PerformedAt)
	assert.Equal(t, []models.Result{{Message: "entity (missing) not found", Success: false}}, out.Results)
	assert.Equal(t, []string{"ResolveLinkIdentifiers", "RecordIntent"}, h.store.Calls())
	assert.Equal(t, 1, h.notifier.count())
}

func TestUnlinkEntity(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	h.store.addResource("456", nil, nil)
	h.seedAppearance("123", "456", 2, models.Context{"en": {{1, 2}}})

	out, err := h.create(t, "unlink-entity", map[string]any{"entityUuid": "123", "resourceUuid": "456"})
	require.NoError(t, err)
	assert.True(t, out.Performed)
	assert.Equal(t, []models.Result{{Message: "Entity (123) is unlinked from resource (456)", Success: true}}, out.Results)
	assertCompleted(t, out)
	assert.Empty(t, h.store.appearances)

	// Nothing left: still performed, but the single result is a failure
	out, err = h.create(t, "unlink-entity", map[string]any{"entityUuid": "123", "resourceUuid": "456"})
	require.NoError(t, err)
	assert.True(t, out.Performed)
	require.Len(t, out.Results, 1)
	assert.False(t, out.Results[0].Success)
	assert.Contains(t, out.Results[0].Message, "nothing to remove")
	assertCompleted(t, out)
}

// =============================================================================
// ENTITIES
// =============================================================================

func TestChangeEntityTypeUsesMutationSlug(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("e1", "e1", "location")
	h.store.slugAfterUpdate["e1"] = "e123"

	out, err := h.create(t, "change-entity-type", map[string]any{"entityUuid": "e1", "newType": "person"})
	require.NoError(t, err)
	assert.Equal(t, []models.Result{{
		Message: `Entity (e123) type has been changed from "location" to "person"`,
		Success: true,
	}}, out.Results)
	assertCompleted(t, out)
	assert.Equal(t, "location", out.Action.Meta["previousType"])
	assert.Equal(t, []string{"ResolveEntityIdentifiers", "RecordIntent", "ChangeEntityType", "RecordCompletion"}, h.store.Calls())
}

func TestChangeEntityTypeNotFound(t *testing.T) {
	h := newHarness(t)
	out, err := h.create(t, "change-entity-type", map[string]any{"entityUuid": "e1", "newType": "person"})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NotNil(t, out)
	assert.False(t, out.Performed)
	for _, c := range h.store.Calls() {
		assert.False(t, mutationCalls[c], "unexpected mutation %s", c)
	}
}

func TestMergeEntities(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("u1", "e1", "location")
	h.store.addEntity("u2", "e2", "location")
	h.store.addEntity("u3", "e3", "location")
	h.store.mergeCount = 5

	out, err := h.create(t, "merge-entities", map[string]any{
		"originalEntityUuidList": []string{"u1", "u2"},
		"newEntityUuid":          "u3",
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Result{{
		Message: `5 resources have been updated while changing slugs "e1, e2" and types "location, location" into entity e3 (location)`,
		Success: true,
	}}, out.Results)
	assertCompleted(t, out)
	assert.Equal(t, 5, out.Action.Meta["updatedResources"])
}

func TestMergeEntitiesReportsEveryMissingEntity(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("u1", "e1", "location")

	out, err := h.create(t, "merge-entities", map[string]any{
		"originalEntityUuidList": []string{"u1", "u2"},
		"newEntityUuid":          "u3",
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"u2", "u3"}, nf.UUIDs)
	assert.False(t, out.Performed)
	assert.NotContains(t, h.store.Calls(), "MergeEntities")
}

// =============================================================================
// BULK
// =============================================================================

func TestLinkEntityBulk(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("e1", "e1", "person")
	uid := "uide1"
	h.store.bulkResult = &models.BulkResult{EntityUUID: &uid, TotalResources: 5}

	out, err := h.create(t, "link-entity-bulk", map[string]any{
		"entityUuid": "e1", "keyphrase": "a test entity", "languageCode": "fr",
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Result{{Message: "Entity uide1 is linked to 5 resources", Success: true}}, out.Results)
	assertCompleted(t, out)

	assert.Equal(t, models.KeyphraseLink{
		EntityUUID:   "e1",
		EntitySlug:   "e1",
		LanguageCode: "fr",
		IndexName:    "text_fr",
		Query:        `"a test entity"`,
		Keyphrase:    "a test entity",
	}, h.store.lastLink)
}

func TestUnlinkEntityBulkDiscardsClosingBatch(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	uid := "123"
	h.store.batches = []*models.BulkResult{
		{EntityUUID: &uid, TotalResources: 5},
		{EntityUUID: nil, TotalResources: 1},
	}

	out, err := h.create(t, "unlink-entity-bulk", map[string]any{"entityUuid": "123"})
	require.NoError(t, err)
	assert.Equal(t, []models.Result{{Message: "Entity (123) is unlinked from 5 resources", Success: true}}, out.Results)
	assertCompleted(t, out)
}

func TestUnlinkEntityBulkSumsEveryBatch(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	uid := "123"
	h.store.batches = []*models.BulkResult{
		{EntityUUID: &uid, TotalResources: 2},
		{EntityUUID: &uid, TotalResources: 2},
		{EntityUUID: &uid, TotalResources: 1},
		{EntityUUID: nil, TotalResources: 0},
	}

	var progress []BatchProgress
	out, err := h.create(t, "unlink-entity-bulk", map[string]any{"entityUuid": "123"},
		WithBatchSize(2),
		WithBatchObserver(func(p BatchProgress) { progress = append(progress, p) }),
	)
	require.NoError(t, err)
	assert.Equal(t, "Entity (123) is unlinked from 5 resources", out.Results[0].Message)
	assert.Equal(t, []BatchProgress{
		{Batch: 1, Removed: 2, Total: 2},
		{Batch: 2, Removed: 2, Total: 4},
		{Batch: 3, Removed: 1, Total: 5},
	}, progress)
	assert.Equal(t, []int{2, 2, 2, 2}, h.store.batchLimits)
	assert.Equal(t, 3, out.Action.Meta["batches"])

	drain := h.metrics.Get(metrics.OpDBDrain)
	require.NotNil(t, drain)
	assert.Equal(t, int64(4), drain.Count)
}

func TestUnlinkEntityBulkNothingToDo(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")

	out, err := h.create(t, "unlink-entity-bulk", map[string]any{"entityUuid": "123"}, WithBatchSize(50))
	require.NoError(t, err)
	assert.True(t, out.Performed)
	assert.Equal(t, []models.Result{{Message: "Entity (123) is unlinked from 0 resources", Success: true}}, out.Results)
	assert.Equal(t, []int{50}, h.store.batchLimits)
}

func TestUnlinkEntityBulkBatchFailure(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("123", "e123", "person")
	uid := "123"
	h.store.batches = []*models.BulkResult{{EntityUUID: &uid, TotalResources: 2}, nil}

	out, err := h.create(t, "unlink-entity-bulk", map[string]any{"entityUuid": "123"})
	assert.Nil(t, out)
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Error(), "batch 2")
	assert.Nil(t, h.store.action(serr.ActionID).PerformedAt)
}

// =============================================================================
// AUDIT / STORE FAILURES
// =============================================================================

func TestIntentFailureSkipsMutation(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("e1", "e1", "location")
	h.store.fail["RecordIntent"] = errors.New("audit store down")

	_, err := h.create(t, "change-entity-type", map[string]any{"entityUuid": "e1", "newType": "person"})
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StepIntent, serr.Step)
	assert.NotContains(t, h.store.Calls(), "ChangeEntityType")
}

func TestResolveFailureRecordsNothing(t *testing.T) {
	h := newHarness(t)
	h.store.fail["ResolveEntityIdentifiers"] = errors.New("timeout")

	_, err := h.create(t, "unlink-entity-bulk", map[string]any{"entityUuid": "e1"})
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StepResolve, serr.Step)
	assert.Empty(t, serr.ActionID)
	assert.Equal(t, []string{"ResolveEntityIdentifiers"}, h.store.Calls())
}

func TestCompletionFailureLeavesActionIncomplete(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("e1", "e1", "location")
	h.store.fail["RecordCompletion"] = errors.New("audit store down")

	_, err := h.create(t, "change-entity-type", map[string]any{"entityUuid": "e1", "newType": "person"})
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StepCompletion, serr.Step)
	assert.Equal(t, "person", h.store.entities["e1"].Type, "the data write is committed independently")
	assert.Nil(t, h.store.action(serr.ActionID).PerformedAt)
}

func TestActionMetricsRecorded(t *testing.T) {
	h := newHarness(t)
	h.store.addEntity("e1", "e1", "location")

	_, err := h.create(t, "change-entity-type", map[string]any{"entityUuid": "e1", "newType": "person"})
	require.NoError(t, err)
	_, err = h.create(t, "change-entity-type", map[string]any{"entityUuid": "nope", "newType": "person"})
	require.Error(t, err)

	snap := h.metrics.Get(metrics.ActionOp("change-entity-type"))
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.Count)
	assert.Equal(t, int64(1), snap.Failures)
}

func TestConcurrentActionsOnDistinctPairs(t *testing.T) {
	h := newHarness(t)
	var idMu sync.Mutex
	n := 0
	h.engine.newID = func() string {
		idMu.Lock()
		defer idMu.Unlock()
		n++
		return fmt.Sprintf("act-%d", n)
	}
	for i := 0; i < 20; i++ {
		h.store.addEntity(fmt.Sprintf("e%d", i), fmt.Sprintf("e%d", i), "person")
		h.store.addResource(fmt.Sprintf("r%d", i), nil, nil)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, _ := json.Marshal(map[string]any{"entityUuid": fmt.Sprintf("e%d", i), "resourceUuid": fmt.Sprintf("r%d", i)})
			_, err := h.engine.CreateAction(context.Background(), "link-entity", raw, "tester")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, h.store.appearances, 20)
	assert.Equal(t, 20, h.notifier.count())
}
