package pipeline

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/model"
)

// enrich fetches shipping, attributes and description for the cheapest
// candidates, bounded to cfg.MaxDetailFetch, and builds every
// candidate's product fingerprint. A failed fetch degrades that single
// candidate to a title-only fingerprint with zero shipping; the batch
// always continues. Detail fetches are sequential and paced on purpose
// (see internal/pacing).
func (p *Pipeline) enrich(ctx context.Context, st *runState, page marketplace.Page, candidates []model.Candidate, region string) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Price < candidates[j].Price
	})

	bound := p.cfg.MaxDetailFetch
	if bound <= 0 || bound > len(candidates) {
		bound = len(candidates)
	}

	for i := range candidates {
		c := &candidates[i]
		if i >= bound {
			setFingerprint(c)
			continue
		}

		details, err := p.fetchDetails(ctx, st, page, c.Link, region)
		if err != nil {
			zap.L().Warn("enrich: detail fetch failed, degrading candidate",
				zap.String("link", c.Link),
				zap.Error(err),
			)
			c.SetShipping(0)
			setFingerprint(c)
			continue
		}

		c.Attributes = details.Attributes
		c.Description = details.Description
		c.Seller = details.Seller
		c.Condition = details.Condition
		c.Brand = details.Brand
		c.Model = details.Model
		c.GTIN = details.GTIN
		c.MPN = details.MPN
		c.SetShipping(details.ShippingCost)
		setFingerprint(c)
	}

	zap.L().Info("enrich: done",
		zap.Int("candidates", len(candidates)),
		zap.Int("enriched", bound),
	)
}

func (p *Pipeline) fetchDetails(ctx context.Context, st *runState, page marketplace.Page, link, region string) (*marketplace.Details, error) {
	if err := p.detailPacer.Wait(ctx); err != nil {
		return nil, err
	}
	st.recordScrape(p.costs)
	return page.FetchDetails(ctx, link, region)
}

// setFingerprint builds the raw and normalized product fingerprints
// from whatever title and description the candidate has.
func setFingerprint(c *model.Candidate) {
	parts := []string{c.Title}
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	c.Fingerprint = strings.Join(parts, "\n")
	c.FingerprintNorm = strings.ToLower(foldAccents(c.Fingerprint))
}
