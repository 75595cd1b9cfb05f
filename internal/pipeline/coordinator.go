package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/model"
)

// RunFunc executes one acquisition strategy for an item.
type RunFunc func(ctx context.Context, item model.Item) (*model.PipelineResult, error)

// Coordinator runs acquisition strategies in priority order: the
// structured marketplace pipeline first, the open-web pipeline when the
// primary fails, finds nothing, or its winner is not confident enough.
// Strategy failures are isolated; the caller always receives a result,
// with WinnerIndex -1 when every strategy is exhausted.
type Coordinator struct {
	primary    RunFunc
	secondary  RunFunc
	confidence int
}

// NewCoordinator wires the two strategies. confidence is the risk score
// at or above which a primary winner is not trusted.
func NewCoordinator(primary, secondary RunFunc, confidence int) *Coordinator {
	if confidence <= 0 {
		confidence = 7
	}
	return &Coordinator{primary: primary, secondary: secondary, confidence: confidence}
}

// Source produces the final offer decision for an item.
func (c *Coordinator) Source(ctx context.Context, item model.Item) *model.PipelineResult {
	log := zap.L().With(zap.String("item_id", item.ID))

	primary, err := c.primary(ctx, item)
	switch {
	case err != nil:
		log.Warn("coordinator: primary failed, escalating", zap.Error(err))
	case primary.Winner() == nil:
		log.Info("coordinator: primary found no winner, escalating")
	case primary.Winner().RiskScore >= c.confidence:
		log.Info("coordinator: primary winner below confidence, escalating",
			zap.Int("risk_score", primary.Winner().RiskScore),
			zap.Int("confidence", c.confidence),
		)
	default:
		return primary
	}

	secondary, err := c.secondary(ctx, item)
	if err != nil {
		log.Warn("coordinator: secondary failed, no offer", zap.Error(err))
		return model.EmptyResult(item)
	}
	if secondary.Winner() != nil {
		return secondary
	}

	log.Info("coordinator: all strategies exhausted, no offer")
	return model.EmptyResult(item)
}
