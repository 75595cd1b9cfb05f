package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// verifiedMarker prefixes the reasoning of candidates whose ambiguous
// verdict was re-checked against live search.
const verifiedMarker = "[verified] "

// resolve re-verifies candidates stuck on the ambiguous-risk sentinel
// using the search-capable backend. A conclusive answer (risk_score
// present) updates the candidate and marks its reasoning as verified;
// any failure leaves the candidate untouched, so its ambiguity persists
// into selection.
func (p *Pipeline) resolve(ctx context.Context, st *runState, item model.Item, candidates []model.Candidate) {
	var ambiguous []*model.Candidate
	for i := range candidates {
		if candidates[i].RiskScore == model.RiskUnknown {
			ambiguous = append(ambiguous, &candidates[i])
		}
	}
	if len(ambiguous) == 0 {
		return
	}

	system, err := p.prompts.Render("resolve_system", nil)
	if err != nil {
		zap.L().Warn("resolve: template missing, candidates left ambiguous", zap.Error(err))
		return
	}

	resolved := 0
	for _, c := range ambiguous {
		if p.resolveOne(ctx, st, item, system, c) {
			resolved++
		}
	}
	zap.L().Info("resolve: done",
		zap.Int("ambiguous", len(ambiguous)),
		zap.Int("resolved", resolved),
	)
}

func (p *Pipeline) resolveOne(ctx context.Context, st *runState, item model.Item, system string, c *model.Candidate) bool {
	doubt := c.Reasoning
	if doubt == "" {
		doubt = "the validator could not determine compatibility"
	}
	user, err := p.prompts.Render("resolve_user", map[string]string{
		"specification": item.Description,
		"listing":       fmt.Sprintf("%s\n%s", c.Summary(), c.Link),
		"doubt":         doubt,
	})
	if err != nil {
		return false
	}

	content, err := p.generateWith(ctx, st, p.sonarCfg, []textgen.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, 512)
	if err != nil {
		zap.L().Warn("resolve: verification call failed",
			zap.String("link", c.Link),
			zap.Error(err),
		)
		return false
	}

	var verdict struct {
		Confirmed bool   `json:"confirmed"`
		RiskScore *int   `json:"risk_score"`
		Condition string `json:"condition"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &verdict); err != nil || verdict.RiskScore == nil {
		zap.L().Warn("resolve: inconclusive response, candidate unchanged",
			zap.String("link", c.Link),
		)
		return false
	}

	c.RiskScore = model.ClampRisk(*verdict.RiskScore)
	if verdict.Condition != "" && verdict.Condition != "unknown" {
		c.Condition = verdict.Condition
	}
	reasoning := verdict.Reasoning
	if reasoning == "" {
		reasoning = c.Reasoning
	}
	c.Reasoning = verifiedMarker + reasoning
	return true
}

// generateWith issues one completion on a fixed config, outside the
// escalation ladder, still counted in the run's token tally.
func (p *Pipeline) generateWith(ctx context.Context, st *runState, cfg textgen.GenConfig, msgs []textgen.Message, maxTokens int) (string, error) {
	resp, err := p.gen.Generate(ctx, textgen.Request{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Messages:  msgs,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	st.record(p.costs, cfg, resp.Usage)
	return resp.Content, nil
}
