package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procureops/sourcing-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testItem() model.Item {
	max := 500.0
	return model.Item{
		ID:          "item-001",
		Description: "NOTEBOOK DELL INSPIRON 15 3520 I5 8GB 256GB SSD",
		MaxPrice:    &max,
		Quantity:    2,
		Region:      "BR-SP",
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testItem())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "item-001", got.Item.ID)
	assert.Nil(t, got.Result)
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testItem())
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusSearching))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSearching, got.Status)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_SaveResult_Winner(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testItem())
	require.NoError(t, err)

	result := &model.PipelineResult{
		ItemID:      "item-001",
		WinnerIndex: 0,
		Candidates: []model.Candidate{
			{Title: "Notebook Dell Inspiron 15", Link: "https://market.example/1", Price: 450, TotalPrice: 465, RiskScore: 2},
		},
	}
	require.NoError(t, st.SaveResult(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 0, got.Result.WinnerIndex)
	require.Len(t, got.Result.Candidates, 1)
	assert.Equal(t, 465.0, got.Result.Candidates[0].TotalPrice)
}

func TestSQLite_SaveResult_NoOffer(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testItem())
	require.NoError(t, err)

	require.NoError(t, st.SaveResult(ctx, run.ID, &model.PipelineResult{ItemID: "item-001", WinnerIndex: -1}))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusNoOffer, got.Status)
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.CreateRun(ctx, testItem())
	require.NoError(t, err)
	other := testItem()
	other.ID = "item-002"
	_, err = st.CreateRun(ctx, other)
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, first.ID, model.RunStatusComplete))

	byStatus, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, first.ID, byStatus[0].ID)

	byItem, err := st.ListRuns(ctx, RunFilter{ItemID: "item-002"})
	require.NoError(t, err)
	require.Len(t, byItem, 1)
	assert.Equal(t, "item-002", byItem[0].Item.ID)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_Settings(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetSetting(ctx, "pipeline.confidence_threshold")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSettingNotFound))

	require.NoError(t, st.SetSetting(ctx, "pipeline.confidence_threshold", "6"))

	val, err := st.GetSetting(ctx, "pipeline.confidence_threshold")
	require.NoError(t, err)
	assert.Equal(t, "6", val)

	// Overwrite wins.
	require.NoError(t, st.SetSetting(ctx, "pipeline.confidence_threshold", "8"))
	val, err = st.GetSetting(ctx, "pipeline.confidence_threshold")
	require.NoError(t, err)
	assert.Equal(t, "8", val)

	require.NoError(t, st.SetSetting(ctx, "anthropic.model", "claude-sonnet"))
	settings, err := st.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "anthropic.model", settings[0].Key)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_SQLiteDefault(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "default.db")
	st, err := Open(context.Background(), "", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}
