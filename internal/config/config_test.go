package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Run outside any directory containing a config.yaml.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 60, cfg.Pipeline.MaxQueryLen)
	assert.Equal(t, 0.30, cfg.Pipeline.AnomalyThreshold)
	assert.Equal(t, 10, cfg.Pipeline.MaxDetailFetch)
	assert.Equal(t, 5, cfg.Pipeline.ValidateBatchSize)
	assert.Equal(t, 7, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, 8, cfg.Pipeline.RejectionThreshold)
	assert.Equal(t, 3, cfg.Pipeline.MaxWebRounds)
	assert.Equal(t, 800*time.Millisecond, cfg.Pacing.SearchDelay())
	assert.Equal(t, 1500*time.Millisecond, cfg.Pacing.DetailDelay())
	assert.Equal(t, "sonar-pro", cfg.Sonar.Model)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("SOURCING_PIPELINE_ANOMALY_THRESHOLD", "0.5")
	t.Setenv("SOURCING_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Pipeline.AnomalyThreshold)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
