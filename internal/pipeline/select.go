package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// selectWinner picks the best viable candidate and returns its index
// into the full candidate list, or -1 when nothing is viable. The AI
// pick is advisory: any failure to obtain a usable index falls back to
// the deterministic rule, so a non-empty viable set always yields a
// winner.
func (p *Pipeline) selectWinner(ctx context.Context, st *runState, item model.Item, candidates []model.Candidate) int {
	var viable []int
	for i := range candidates {
		if candidates[i].Viable() {
			viable = append(viable, i)
		}
	}
	if len(viable) == 0 {
		zap.L().Info("select: empty viable set")
		return -1
	}

	if pick, ok := p.aiPick(ctx, st, item, candidates, viable); ok {
		return pick
	}
	return fallbackPick(candidates, viable)
}

// selectionProjection is the per-candidate view sent to the selector.
type selectionProjection struct {
	Index      int     `json:"index"`
	Title      string  `json:"title"`
	TotalPrice float64 `json:"total_price"`
	Condition  string  `json:"condition,omitempty"`
	Status     string  `json:"status,omitempty"`
	RiskScore  int     `json:"risk_score"`
	Brand      string  `json:"brand,omitempty"`
	Model      string  `json:"model,omitempty"`
	Anomaly    string  `json:"price_anomaly,omitempty"`
}

func (p *Pipeline) aiPick(ctx context.Context, st *runState, item model.Item, candidates []model.Candidate, viable []int) (int, bool) {
	system, err := p.prompts.Render("select_system", nil)
	if err != nil {
		zap.L().Warn("select: template missing, deterministic fallback", zap.Error(err))
		return 0, false
	}

	projections := make([]selectionProjection, len(viable))
	for vi, full := range viable {
		c := candidates[full]
		projections[vi] = selectionProjection{
			Index:      vi,
			Title:      c.Title,
			TotalPrice: c.TotalPrice,
			Condition:  c.Condition,
			Status:     c.Status,
			RiskScore:  c.RiskScore,
			Brand:      c.Brand,
			Model:      c.Model,
			Anomaly:    c.PriceAnomalyReason,
		}
	}
	projected, err := json.Marshal(projections)
	if err != nil {
		return 0, false
	}

	budget := "no limit"
	if item.MaxPrice != nil {
		budget = fmt.Sprintf("%.2f", *item.MaxPrice)
	}
	user, err := p.prompts.Render("select_user", map[string]string{
		"budget":     budget,
		"quantity":   fmt.Sprintf("%d", item.Quantity),
		"candidates": string(projected),
	})
	if err != nil {
		return 0, false
	}

	content, err := p.generate(ctx, st, []textgen.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, 512)
	if err != nil {
		zap.L().Warn("select: generation failed, deterministic fallback", zap.Error(err))
		return 0, false
	}

	var result model.SelectionResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		zap.L().Warn("select: unparsable selection, deterministic fallback", zap.Error(err))
		return 0, false
	}
	if result.WinnerIndex < 0 || result.WinnerIndex >= len(viable) {
		zap.L().Warn("select: winner index out of range, deterministic fallback",
			zap.Int("winner_index", result.WinnerIndex),
			zap.Int("viable", len(viable)),
		)
		return 0, false
	}

	full := viable[result.WinnerIndex]
	zap.L().Info("select: ai pick",
		zap.String("title", candidates[full].Title),
		zap.String("reasoning", result.Reasoning),
	)
	return full, true
}

// fallbackPick is the deterministic rule: lowest risk first, total
// price as the tiebreak. The sort is stable so earlier discovery order
// breaks residual ties.
func fallbackPick(candidates []model.Candidate, viable []int) int {
	ordered := make([]int, len(viable))
	copy(ordered, viable)
	sort.SliceStable(ordered, func(a, b int) bool {
		ca, cb := candidates[ordered[a]], candidates[ordered[b]]
		if ca.RiskScore != cb.RiskScore {
			return ca.RiskScore < cb.RiskScore
		}
		return ca.TotalPrice < cb.TotalPrice
	})
	winner := ordered[0]
	zap.L().Info("select: deterministic pick",
		zap.String("title", candidates[winner].Title),
		zap.Int("risk_score", candidates[winner].RiskScore),
		zap.Float64("total_price", candidates[winner].TotalPrice),
	)
	return winner
}
