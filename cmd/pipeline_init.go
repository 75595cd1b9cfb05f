package main

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/config"
	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/pipeline"
	"github.com/procureops/sourcing-cli/internal/prompt"
	"github.com/procureops/sourcing-cli/internal/store"
	"github.com/procureops/sourcing-cli/internal/textgen"
	"github.com/procureops/sourcing-cli/pkg/sonar"
)

// pipelineEnv holds the initialized store, clients, and shared pipeline
// inputs needed by the run/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Gen      textgen.Service
	Prompts  *prompt.Library
	Browser  marketplace.Browser
	Ladder   textgen.Ladder
	SonarCfg textgen.GenConfig
	Pipeline config.PipelineConfig
	Pacing   config.PacingConfig
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// coordinatorFor builds a Coordinator for a single run. The pipeline
// persists status transitions against the given run ID as it moves
// through the stages.
func (pe *pipelineEnv) coordinatorFor(runID string) *pipeline.Coordinator {
	statusFn := func(s model.RunStatus) {
		if err := pe.Store.UpdateRunStatus(context.Background(), runID, s); err != nil {
			zap.L().Warn("run status update failed",
				zap.String("run_id", runID),
				zap.String("status", string(s)),
				zap.Error(err),
			)
		}
	}

	p := pipeline.New(pe.Gen, pe.Prompts, pe.Browser, pe.Pipeline, pe.Pacing,
		pe.Ladder, pe.SonarCfg, pipeline.WithStatusFunc(statusFn))

	return pipeline.NewCoordinator(p.Run, p.RunWebSearch, pe.Pipeline.ConfidenceThreshold)
}

// initPipeline sets up the store, generation backends, and marketplace
// browser. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	prompts, err := prompt.Load(cfg.Prompts.Path)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load prompt library")
	}

	router := textgen.NewRouter()
	router.Register("anthropic", textgen.NewAnthropicProvider(cfg.Anthropic.Key))
	router.Register("sonar", textgen.NewSonarProvider(
		sonar.NewClient(cfg.Sonar.Key,
			sonar.WithBaseURL(cfg.Sonar.BaseURL),
			sonar.WithModel(cfg.Sonar.Model),
		),
		cfg.Sonar.Key,
	))

	browser := marketplace.NewBrowser(cfg.Scraper.Key,
		marketplace.WithBaseURL(cfg.Scraper.BaseURL),
		marketplace.WithRateLimit(cfg.Scraper.RequestsPerSecond),
	)

	ladder := textgen.Ladder{
		{Provider: "anthropic", Model: cfg.Anthropic.HaikuModel},
		{Provider: "anthropic", Model: cfg.Anthropic.SonnetModel},
		{Provider: "anthropic", Model: cfg.Anthropic.OpusModel},
	}
	sonarCfg := textgen.GenConfig{Provider: "sonar", Model: cfg.Sonar.Model}

	pipelineCfg := cfg.Pipeline
	settings, err := st.ListSettings(ctx)
	if err != nil {
		zap.L().Warn("settings load failed, using config defaults", zap.Error(err))
	} else {
		applySettings(&pipelineCfg, settings)
	}

	return &pipelineEnv{
		Store:    st,
		Gen:      router,
		Prompts:  prompts,
		Browser:  browser,
		Ladder:   ladder,
		SonarCfg: sonarCfg,
		Pipeline: pipelineCfg,
		Pacing:   cfg.Pacing,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

// applySettings overlays operator-stored settings onto the pipeline
// tunables. Unknown keys are ignored so other components can share the
// settings table; malformed values keep the config default.
func applySettings(pc *config.PipelineConfig, settings []store.Setting) {
	for _, s := range settings {
		var err error
		switch s.Key {
		case "pipeline.max_query_len":
			err = setInt(&pc.MaxQueryLen, s.Value)
		case "pipeline.anomaly_threshold":
			err = setFloat(&pc.AnomalyThreshold, s.Value)
		case "pipeline.max_detail_fetch":
			err = setInt(&pc.MaxDetailFetch, s.Value)
		case "pipeline.validate_batch_size":
			err = setInt(&pc.ValidateBatchSize, s.Value)
		case "pipeline.confidence_threshold":
			err = setInt(&pc.ConfidenceThreshold, s.Value)
		case "pipeline.rejection_threshold":
			err = setInt(&pc.RejectionThreshold, s.Value)
		case "pipeline.max_web_rounds":
			err = setInt(&pc.MaxWebRounds, s.Value)
		case "pipeline.default_region":
			pc.DefaultRegion = s.Value
		default:
			continue
		}
		if err != nil {
			zap.L().Warn("ignoring malformed setting",
				zap.String("key", s.Key),
				zap.String("value", s.Value),
				zap.Error(err),
			)
		}
	}
}

func setInt(dst *int, raw string) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func setFloat(dst *float64, raw string) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
