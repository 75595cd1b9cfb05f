package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// maxDescriptionChars clips candidate descriptions in the validation
// projection so batches stay within prompt budget.
const maxDescriptionChars = 500

// statusError marks candidates whose verdict is missing or whose batch
// failed; they are rejected, not skipped.
const statusError = "error"

// candidateProjection is the minimal per-candidate view sent to the
// validator. Index is batch-local.
type candidateProjection struct {
	Index        int               `json:"index"`
	Title        string            `json:"title"`
	Price        float64           `json:"total_price"`
	Condition    string            `json:"condition,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Description  string            `json:"description,omitempty"`
	PriceAnomaly string            `json:"price_anomaly,omitempty"`
}

// validate scores every candidate against the item specification in
// fixed-size batches. Each batch is one generation call; a provider
// error, missing template or unparsable response fails that whole batch
// closed to RiskReject rather than surfacing past this stage.
func (p *Pipeline) validate(ctx context.Context, st *runState, item model.Item, candidates []model.Candidate) {
	batchSize := p.cfg.ValidateBatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	system, err := p.prompts.Render("validate_system", nil)
	if err != nil {
		zap.L().Error("validate: template missing, rejecting all candidates", zap.Error(err))
		failBatch(candidates, "validation unavailable: template missing")
		return
	}

	for lo := 0; lo < len(candidates); lo += batchSize {
		hi := lo + batchSize
		if hi > len(candidates) {
			hi = len(candidates)
		}
		p.validateBatch(ctx, st, item, system, candidates[lo:hi])
	}
}

func (p *Pipeline) validateBatch(ctx context.Context, st *runState, item model.Item, system string, batch []model.Candidate) {
	projections := make([]candidateProjection, len(batch))
	for i, c := range batch {
		desc := c.Description
		if len(desc) > maxDescriptionChars {
			desc = desc[:maxDescriptionChars]
		}
		projections[i] = candidateProjection{
			Index:        i,
			Title:        c.Title,
			Price:        c.TotalPrice,
			Condition:    c.Condition,
			Attributes:   c.Attributes,
			Description:  desc,
			PriceAnomaly: c.PriceAnomalyReason,
		}
	}

	projected, err := json.Marshal(projections)
	if err != nil {
		failBatch(batch, "validation failed: projection")
		return
	}
	user, err := p.prompts.Render("validate_user", map[string]string{
		"specification": item.Description,
		"candidates":    string(projected),
	})
	if err != nil {
		zap.L().Error("validate: user template missing", zap.Error(err))
		failBatch(batch, "validation unavailable: template missing")
		return
	}

	content, err := p.generate(ctx, st, []textgen.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, 1024)
	if err != nil {
		zap.L().Warn("validate: generation failed, batch rejected", zap.Error(err))
		failBatch(batch, "validation failed: provider error")
		return
	}

	var verdicts []model.ValidationVerdict
	if err := json.Unmarshal([]byte(extractJSONArray(content)), &verdicts); err != nil {
		zap.L().Warn("validate: unparsable verdicts, batch rejected", zap.Error(err))
		failBatch(batch, "validation failed: malformed response")
		return
	}

	byIndex := make(map[int]model.ValidationVerdict, len(verdicts))
	for _, v := range verdicts {
		byIndex[v.Index] = v
	}

	for i := range batch {
		c := &batch[i]
		v, ok := byIndex[i]
		if !ok {
			c.RiskScore = model.RiskReject
			c.Status = statusError
			c.Reasoning = "no verdict returned for this candidate"
			continue
		}
		c.RiskScore = v.EffectiveRisk()
		c.Status = v.Status
		c.Reasoning = v.Reasoning
		c.MismatchFlags = v.MismatchFlags
	}

	zap.L().Info("validate: batch scored",
		zap.Int("batch_size", len(batch)),
		zap.Int("verdicts", len(verdicts)),
	)
}

// failBatch applies the fail-closed default to every candidate.
func failBatch(batch []model.Candidate, reason string) {
	for i := range batch {
		batch[i].RiskScore = model.RiskReject
		batch[i].Status = statusError
		batch[i].Reasoning = reason
	}
}
