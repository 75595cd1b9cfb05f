package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/model"
)

// collect executes every planned strategy against the scraper page and
// merges the results, deduplicating by link with first-seen-wins
// semantics. Zero-priced listings are discarded. A portal block aborts
// the whole search phase; any other per-query failure is logged and
// skipped.
func (p *Pipeline) collect(ctx context.Context, st *runState, page marketplace.Page, strategies []model.Strategy) ([]model.Candidate, error) {
	var candidates []model.Candidate
	seen := map[string]bool{}

	for _, strategy := range strategies {
		listings, err := p.search(ctx, st, page, strategy.Query)
		if err != nil {
			if eris.Is(err, marketplace.ErrPortalBlocked) {
				return nil, eris.Wrapf(err, "collect: query %q", strategy.Query)
			}
			zap.L().Warn("collect: search failed, skipping query",
				zap.String("query", strategy.Query),
				zap.Error(err),
			)
			continue
		}

		// One-shot anchor relaxation: an anchored query with zero hits
		// retries once on the commercial name alone.
		if len(listings) == 0 && strategy.Fallback != "" {
			zap.L().Info("collect: relaxing anchor",
				zap.String("query", strategy.Query),
				zap.String("fallback", strategy.Fallback),
			)
			listings, err = p.search(ctx, st, page, strategy.Fallback)
			if err != nil {
				if eris.Is(err, marketplace.ErrPortalBlocked) {
					return nil, eris.Wrapf(err, "collect: relaxed query %q", strategy.Fallback)
				}
				zap.L().Warn("collect: relaxed search failed",
					zap.String("fallback", strategy.Fallback),
					zap.Error(err),
				)
				continue
			}
		}

		added := 0
		for _, listing := range listings {
			if listing.Price <= 0 || listing.Link == "" || seen[listing.Link] {
				continue
			}
			seen[listing.Link] = true
			candidates = append(candidates, model.Candidate{
				Title:      listing.Title,
				Link:       listing.Link,
				Price:      listing.Price,
				TotalPrice: listing.Price,
				RiskScore:  model.RiskUnscored,
			})
			added++
		}
		zap.L().Info("collect: query done",
			zap.String("type", string(strategy.Type)),
			zap.String("query", strategy.Query),
			zap.Int("listings", len(listings)),
			zap.Int("added", added),
		)
	}

	return candidates, nil
}

func (p *Pipeline) search(ctx context.Context, st *runState, page marketplace.Page, query string) ([]marketplace.Listing, error) {
	if err := p.searchPacer.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "collect: pacing")
	}
	st.recordScrape(p.costs)
	return page.Search(ctx, query)
}
