// Package pipeline implements the candidate acquisition-and-decision
// pipeline: query planning, search and deduplication, price-anomaly
// detection, detail enrichment, risk validation, ambiguity resolution,
// final selection and cross-strategy fallback.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/config"
	"github.com/procureops/sourcing-cli/internal/cost"
	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/pacing"
	"github.com/procureops/sourcing-cli/internal/prompt"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// Pipeline runs the structured marketplace acquisition for one item at
// a time. It is safe for concurrent use: per-run state lives on the
// stack, and the shared browser rate-limits itself.
type Pipeline struct {
	gen     textgen.Service
	prompts *prompt.Library
	browser marketplace.Browser
	cfg     config.PipelineConfig

	searchPacer pacing.Pacer
	detailPacer pacing.Pacer

	start    textgen.GenConfig
	ladder   textgen.Ladder
	sonarCfg textgen.GenConfig
	costs    *cost.Calculator

	// onStatus, when set, receives run status transitions for
	// persistence. Nil is fine.
	onStatus func(model.RunStatus)
}

// Options tunes optional pipeline behavior.
type Option func(*Pipeline)

// WithPacers overrides the inter-request pacing policies. Tests pass
// pacing.Nop().
func WithPacers(search, detail pacing.Pacer) Option {
	return func(p *Pipeline) {
		p.searchPacer = search
		p.detailPacer = detail
	}
}

// WithStatusFunc registers a callback for run status transitions.
func WithStatusFunc(fn func(model.RunStatus)) Option {
	return func(p *Pipeline) { p.onStatus = fn }
}

// New builds a Pipeline. The ladder's first rung is the starting
// generation config; sonarCfg names the search-capable backend used by
// the ambiguity resolver and the open-web fallback.
func New(gen textgen.Service, prompts *prompt.Library, browser marketplace.Browser,
	cfg config.PipelineConfig, pacingCfg config.PacingConfig,
	ladder textgen.Ladder, sonarCfg textgen.GenConfig, opts ...Option) *Pipeline {

	p := &Pipeline{
		gen:         gen,
		prompts:     prompts,
		browser:     browser,
		cfg:         cfg,
		searchPacer: pacing.NewFixed(pacingCfg.SearchDelay()),
		detailPacer: pacing.NewFixed(pacingCfg.DetailDelay()),
		ladder:      ladder,
		sonarCfg:    sonarCfg,
		costs:       cost.NewCalculator(cost.DefaultRates()),
	}
	if len(ladder) > 0 {
		p.start = ladder[0]
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) status(s model.RunStatus) {
	if p.onStatus != nil {
		p.onStatus(s)
	}
}

// runState is the mutable per-run generation state: the current ladder
// rung, the token tally and the estimated spend. One value per run,
// never shared.
type runState struct {
	gen         textgen.GenConfig
	usage       textgen.Usage
	scraperReqs int
	costUSD     float64
}

// generate issues one completion on the current rung. A quota error
// escalates the rung for subsequent calls; the failed call itself is
// never retried.
func (p *Pipeline) generate(ctx context.Context, st *runState, msgs []textgen.Message, maxTokens int) (string, error) {
	cfg := st.gen
	resp, err := p.gen.Generate(ctx, textgen.Request{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Messages:  msgs,
		MaxTokens: maxTokens,
	})
	if err != nil {
		if next, ok := p.ladder.Next(cfg, err); ok {
			zap.L().Warn("pipeline: escalating generation config",
				zap.String("from", cfg.Model),
				zap.String("to", next.Model),
				zap.Error(err),
			)
			st.gen = next
		}
		return "", err
	}
	st.record(p.costs, cfg, resp.Usage)
	return resp.Content, nil
}

// record adds one call's tokens and estimated cost to the run tally.
func (st *runState) record(costs *cost.Calculator, cfg textgen.GenConfig, u textgen.Usage) {
	st.usage.InputTokens += u.InputTokens
	st.usage.OutputTokens += u.OutputTokens
	if cfg.Provider == "sonar" {
		st.costUSD += costs.Sonar(u.InputTokens, u.OutputTokens)
		return
	}
	st.costUSD += costs.Anthropic(cfg.Model, u.InputTokens, u.OutputTokens)
}

// recordScrape adds one scraping service request to the run tally.
func (st *runState) recordScrape(costs *cost.Calculator) {
	st.scraperReqs++
	st.costUSD += costs.Scraper(1)
}

// Run executes the primary (structured marketplace) pipeline for one
// item. A portal block or page acquisition failure is returned as an
// error; everything else degrades to a lower-confidence result.
func (p *Pipeline) Run(ctx context.Context, item model.Item) (*model.PipelineResult, error) {
	log := zap.L().With(zap.String("item_id", item.ID))
	started := time.Now()

	page, err := p.browser.AcquirePage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: acquire page")
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Warn("pipeline: page close failed", zap.Error(cerr))
		}
	}()

	st := &runState{gen: p.start}
	region := item.Region
	if region == "" {
		region = p.cfg.DefaultRegion
	}

	p.status(model.RunStatusSearching)
	entity := p.resolveEntity(ctx, st, item)
	strategies := PlanStrategies(entity, item.Description, p.cfg.MaxQueryLen)

	candidates, err := p.collect(ctx, st, page, strategies)
	if err != nil {
		return nil, err
	}

	result := model.EmptyResult(item)
	result.Strategy = "marketplace"
	if len(candidates) == 0 {
		log.Info("pipeline: no candidates found", zap.Int("strategies", len(strategies)))
		return result, nil
	}

	FlagPriceAnomalies(candidates, p.cfg.AnomalyThreshold)

	p.status(model.RunStatusEnriching)
	p.enrich(ctx, st, page, candidates, region)

	p.status(model.RunStatusValidating)
	p.validate(ctx, st, item, candidates)
	p.resolve(ctx, st, item, candidates)

	p.status(model.RunStatusSelecting)
	result.Candidates = candidates
	result.WinnerIndex = p.selectWinner(ctx, st, item, candidates)

	log.Info("pipeline: run finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("winner_index", result.WinnerIndex),
		zap.Int("input_tokens", st.usage.InputTokens),
		zap.Int("output_tokens", st.usage.OutputTokens),
		zap.Int("scraper_requests", st.scraperReqs),
		zap.Float64("estimated_cost_usd", st.costUSD),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}
