package pipeline

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/model"
)

// FlagPriceAnomalies marks candidates priced suspiciously far below the
// batch median. Applies only with three or more candidates. Flagged
// candidates stay in the set; the flag travels with them into
// validation, selection and the final result.
func FlagPriceAnomalies(candidates []model.Candidate, threshold float64) {
	if len(candidates) < 3 || threshold <= 0 {
		return
	}

	prices := make([]float64, len(candidates))
	for i, c := range candidates {
		prices[i] = c.Price
	}
	sort.Float64s(prices)
	median := prices[len(prices)/2]
	cutoff := median * threshold

	for i := range candidates {
		c := &candidates[i]
		if c.Price < cutoff {
			pct := c.Price / median * 100
			c.PriceAnomaly = true
			c.PriceAnomalyReason = fmt.Sprintf("price is %.0f%% of the batch median %.2f", pct, median)
			zap.L().Info("anomaly: flagged candidate",
				zap.String("link", c.Link),
				zap.Float64("price", c.Price),
				zap.Float64("median", median),
			)
		}
	}
}
