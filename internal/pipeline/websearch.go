package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// webListing is one offer proposed by the open-web search backend.
type webListing struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Link  string  `json:"link"`
}

// RunWebSearch executes the secondary (open-web) pipeline: a bounded
// conversation with the search-capable backend. Each round's links are
// scraped and validated with the same fail-closed defaults as the
// primary pipeline; when every candidate of a round is rejected, the
// per-link rejection reasons are fed back and another round is
// requested, up to cfg.MaxWebRounds. Exhaustion yields an explicit
// empty-offer result, never an error.
func (p *Pipeline) RunWebSearch(ctx context.Context, item model.Item) (*model.PipelineResult, error) {
	log := zap.L().With(zap.String("item_id", item.ID))
	result := model.EmptyResult(item)
	result.Strategy = "websearch"

	system, err := p.prompts.Render("websearch_system", nil)
	if err != nil {
		log.Warn("websearch: template missing, no offer", zap.Error(err))
		return result, nil
	}
	user, err := p.prompts.Render("websearch_user", map[string]string{"specification": item.Description})
	if err != nil {
		log.Warn("websearch: template missing, no offer", zap.Error(err))
		return result, nil
	}

	// Detail fetches are best-effort here: the secondary often runs
	// because the scraper is blocked.
	var page marketplace.Page
	if pg, err := p.browser.AcquirePage(ctx); err != nil {
		log.Warn("websearch: no scraper page, skipping detail enrichment", zap.Error(err))
	} else {
		page = pg
		defer func() {
			if cerr := page.Close(); cerr != nil {
				log.Warn("websearch: page close failed", zap.Error(cerr))
			}
		}()
	}

	maxRounds := p.cfg.MaxWebRounds
	if maxRounds <= 0 {
		maxRounds = 3
	}
	rejectAt := p.cfg.RejectionThreshold
	if rejectAt <= 0 {
		rejectAt = 8
	}

	region := item.Region
	if region == "" {
		region = p.cfg.DefaultRegion
	}

	st := &runState{gen: p.start}
	conversation := []textgen.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	seen := map[string]bool{}

	for round := 1; round <= maxRounds; round++ {
		content, err := p.generateWith(ctx, st, p.sonarCfg, conversation, 1024)
		if err != nil {
			log.Warn("websearch: search call failed, no offer",
				zap.Int("round", round),
				zap.Error(err),
			)
			return result, nil
		}
		conversation = append(conversation, textgen.Message{Role: "assistant", Content: content})

		candidates := parseWebListings(content, seen)
		log.Info("websearch: round searched",
			zap.Int("round", round),
			zap.Int("candidates", len(candidates)),
		)
		if len(candidates) == 0 {
			conversation = append(conversation, textgen.Message{
				Role:    "user",
				Content: "None of those were usable direct product links. Find different offers: direct product pages with a visible price only.",
			})
			continue
		}

		p.enrichWeb(ctx, st, page, candidates, region)
		p.validate(ctx, st, item, candidates)

		var accepted []model.Candidate
		for _, c := range candidates {
			if c.RiskScore < rejectAt {
				accepted = append(accepted, c)
			}
		}
		if len(accepted) > 0 {
			result.Candidates = accepted
			result.WinnerIndex = p.selectWinner(ctx, st, item, accepted)
			log.Info("websearch: accepted candidates",
				zap.Int("round", round),
				zap.Int("accepted", len(accepted)),
				zap.Int("winner_index", result.WinnerIndex),
			)
			return result, nil
		}

		conversation = append(conversation, textgen.Message{
			Role:    "user",
			Content: rejectionFeedback(candidates),
		})
	}

	log.Info("websearch: round budget exhausted, no offer", zap.Int("rounds", maxRounds))
	return result, nil
}

// parseWebListings extracts this round's new, priced candidates from
// the backend's answer. Links already seen in earlier rounds are
// dropped so rejected offers are not re-validated.
func parseWebListings(content string, seen map[string]bool) []model.Candidate {
	var listings []webListing
	if err := json.Unmarshal([]byte(extractJSONArray(content)), &listings); err != nil {
		zap.L().Warn("websearch: unparsable listings", zap.Error(err))
		return nil
	}

	var candidates []model.Candidate
	for _, l := range listings {
		if l.Price <= 0 || l.Link == "" || seen[l.Link] {
			continue
		}
		seen[l.Link] = true
		candidates = append(candidates, model.Candidate{
			Title:      l.Title,
			Link:       l.Link,
			Price:      l.Price,
			TotalPrice: l.Price,
			RiskScore:  model.RiskUnscored,
		})
	}
	return candidates
}

// enrichWeb is the secondary's fail-soft enrichment: details when a
// page is available, title-only fingerprints otherwise.
func (p *Pipeline) enrichWeb(ctx context.Context, st *runState, page marketplace.Page, candidates []model.Candidate, region string) {
	for i := range candidates {
		c := &candidates[i]
		if page == nil {
			setFingerprint(c)
			continue
		}
		details, err := p.fetchDetails(ctx, st, page, c.Link, region)
		if err != nil {
			zap.L().Debug("websearch: detail fetch failed", zap.String("link", c.Link), zap.Error(err))
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
		c.SetShipping(details.ShippingCost)
		setFingerprint(c)
	}
}

// rejectionFeedback builds the next round's feedback message listing
// why each link was rejected.
func rejectionFeedback(rejected []model.Candidate) string {
	var b strings.Builder
	b.WriteString("All of those offers were rejected:\n")
	for _, c := range rejected {
		reason := c.Reasoning
		if reason == "" {
			reason = "does not match the required specification"
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Link, reason)
	}
	b.WriteString("Find different offers that avoid these problems. Direct product links only.")
	return b.String()
}
