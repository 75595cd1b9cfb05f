// Package store provides persistence for sourcing runs and operator
// settings, backed by SQLite for local use or PostgreSQL for shared
// deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/procureops/sourcing-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	ItemID string          `json:"item_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Setting is a persisted operator override, keyed by name. Values are
// stored as strings and parsed by the consumer.
type Setting struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

// Store defines the persistence interface for the sourcing pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, item model.Item) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SaveResult(ctx context.Context, runID string, result *model.PipelineResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) ([]Setting, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrSettingNotFound is returned by GetSetting when no value has been
// stored under the requested key.
var ErrSettingNotFound = eris.New("setting not found")

// Open constructs a Store for the given driver. An empty driver
// defaults to SQLite.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "", "sqlite":
		dsn := databaseURL
		if dsn == "" {
			dsn = "sourcing.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// resultStatus maps a pipeline result to the terminal run status.
func resultStatus(result *model.PipelineResult) model.RunStatus {
	if result == nil || result.WinnerIndex < 0 {
		return model.RunStatusNoOffer
	}
	return model.RunStatusComplete
}
