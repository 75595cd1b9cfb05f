package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procureops/sourcing-cli/internal/config"
	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/prompt"
	"github.com/procureops/sourcing-cli/internal/store"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// unreachableBrowser fails page acquisition, which drives every job to
// the no-offer terminal state without any network traffic.
type unreachableBrowser struct{}

func (unreachableBrowser) AcquirePage(context.Context) (marketplace.Page, error) {
	return nil, eris.New("browser offline")
}

func newTestEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	prompts, err := prompt.Load("")
	require.NoError(t, err)

	return &pipelineEnv{
		Store:   st,
		Gen:     textgen.NewRouter(),
		Prompts: prompts,
		Browser: unreachableBrowser{},
		Ladder: textgen.Ladder{
			{Provider: "anthropic", Model: "claude-haiku-4-5-20251001"},
		},
		SonarCfg: textgen.GenConfig{Provider: "sonar", Model: "sonar"},
		Pipeline: config.PipelineConfig{
			MaxQueryLen:         60,
			AnomalyThreshold:    0.30,
			MaxDetailFetch:      10,
			ValidateBatchSize:   5,
			ConfidenceThreshold: 7,
			RejectionThreshold:  8,
			MaxWebRounds:        1,
			DefaultRegion:       "BR-SP",
		},
	}
}

func TestServe_Healthz(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestServe_PostJobs_Validation(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	body, _ := json.Marshal(map[string]string{"id": "item-001"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServe_GetRun_NotFound(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServe_PostJobs_RunsToTerminalState(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	body, _ := json.Marshal(map[string]any{
		"id":          "item-001",
		"description": "NOBREAK 1200VA BIVOLT",
		"max_price":   800.0,
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	runID := resp["run_id"]
	require.NotEmpty(t, runID)
	assert.Equal(t, string(model.RunStatusQueued), resp["status"])

	// The stub browser and empty router force the job through both
	// strategies to the no-offer terminal state.
	require.Eventually(t, func() bool {
		run, err := env.Store.GetRun(context.Background(), runID)
		if err != nil {
			return false
		}
		return run.Status == model.RunStatusNoOffer
	}, 5*time.Second, 20*time.Millisecond)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/"+runID, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	require.NotNil(t, run.Result)
	assert.Equal(t, -1, run.Result.WinnerIndex)
}

func TestServe_ListRuns_Empty(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Empty(t, runs)
}
