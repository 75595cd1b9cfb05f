package model

import "fmt"

// StrategyType tags how a search query was derived.
type StrategyType string

const (
	StrategyDetectedModel StrategyType = "detected-model"
	StrategyAnchored      StrategyType = "anchored"
	StrategyGeneric       StrategyType = "generic"
)

// Strategy is a single search attempt planned for an item. Fallback is
// the relaxed query to retry once when an anchored search returns
// nothing; it is empty for other strategy types.
type Strategy struct {
	Type     StrategyType `json:"type"`
	Query    string       `json:"query"`
	Anchor   string       `json:"anchor,omitempty"`
	Fallback string       `json:"fallback,omitempty"`
}

// Risk score bounds and sentinels. A candidate is viable when its risk
// is below RiskReject.
const (
	RiskBest     = 0
	RiskUnknown  = 5 // ambiguous verdict, re-checked by the resolver
	RiskReject   = 10
	RiskUnscored = -1 // validator has not run yet
)

// Candidate is a marketplace listing moving through the pipeline. It is
// mutated in place by the enrichment, validation and resolution stages;
// Link is unique within a run.
type Candidate struct {
	Title        string            `json:"title"`
	Link         string            `json:"link"`
	Price        float64           `json:"price"`
	ShippingCost float64           `json:"shipping_cost"`
	TotalPrice   float64           `json:"total_price"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Description  string            `json:"description,omitempty"`
	Seller       string            `json:"seller,omitempty"`
	Condition    string            `json:"condition,omitempty"`
	Brand        string            `json:"brand,omitempty"`
	Model        string            `json:"model,omitempty"`
	GTIN         string            `json:"gtin,omitempty"`
	MPN          string            `json:"mpn,omitempty"`

	// Fingerprint is title+description as scraped; FingerprintNorm is
	// the lower-cased, accent-folded form fed to the validator.
	Fingerprint     string `json:"fingerprint,omitempty"`
	FingerprintNorm string `json:"fingerprint_norm,omitempty"`

	PriceAnomaly       bool   `json:"price_anomaly"`
	PriceAnomalyReason string `json:"price_anomaly_reason,omitempty"`

	RiskScore     int      `json:"risk_score"`
	Status        string   `json:"status,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
	MismatchFlags []string `json:"mismatch_flags,omitempty"`
}

// SetShipping updates the shipping cost and recomputes the total price.
// All shipping mutations go through here so totalPrice == price +
// shippingCost holds at every stage.
func (c *Candidate) SetShipping(cost float64) {
	c.ShippingCost = cost
	c.TotalPrice = c.Price + cost
}

// Viable reports whether the candidate is eligible for final selection.
func (c *Candidate) Viable() bool {
	return c.RiskScore >= RiskBest && c.RiskScore < RiskReject
}

// ValidationVerdict is one entry of the validator's batch response.
// Index is batch-local. Exactly one of RiskScore or TechnicalScore is
// expected; both absent means the verdict carries no usable score.
type ValidationVerdict struct {
	Index          int      `json:"index"`
	RiskScore      *int     `json:"risk_score,omitempty"`
	TechnicalScore *int     `json:"technical_score,omitempty"`
	Status         string   `json:"status,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	MismatchFlags  []string `json:"mismatch_flags,omitempty"`
}

// EffectiveRisk maps the verdict onto the risk scale. A technical score
// (10 = best) is inverted; a risk score is used directly; a verdict
// without either fails closed to RiskReject. The result is always
// clamped to [0,10].
func (v ValidationVerdict) EffectiveRisk() int {
	switch {
	case v.TechnicalScore != nil:
		return ClampRisk(RiskReject - *v.TechnicalScore)
	case v.RiskScore != nil:
		return ClampRisk(*v.RiskScore)
	default:
		return RiskReject
	}
}

// ClampRisk bounds a score to the [0,10] risk scale.
func ClampRisk(score int) int {
	if score < RiskBest {
		return RiskBest
	}
	if score > RiskReject {
		return RiskReject
	}
	return score
}

// SelectionResult is the selector's pick. WinnerIndex is relative to
// the viable set handed to the selector, not to the full candidate list.
type SelectionResult struct {
	WinnerIndex int    `json:"winner_index"`
	Reasoning   string `json:"reasoning"`
}

// Summary renders a one-line description of the candidate for logs and
// selection prompts.
func (c *Candidate) Summary() string {
	return fmt.Sprintf("%s (total %.2f, condition %s, risk %d)", c.Title, c.TotalPrice, c.Condition, c.RiskScore)
}
