package model

import "time"

// RunStatus represents the current state of a sourcing run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusSearching  RunStatus = "searching"
	RunStatusEnriching  RunStatus = "enriching"
	RunStatusValidating RunStatus = "validating"
	RunStatusSelecting  RunStatus = "selecting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusNoOffer    RunStatus = "no_offer"
	RunStatusFailed     RunStatus = "failed"
)

// Item is a procurement item to source. It is immutable for the
// lifetime of a run.
type Item struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	Quantity    int      `json:"quantity"`
	Region      string   `json:"region"`
}

// ResolvedEntity holds catalog information resolved from an item
// description ahead of search planning. Any field may be empty; a nil
// entity forces the planner into generic mode.
type ResolvedEntity struct {
	ModelName      string `json:"model_name"`
	Generic        bool   `json:"generic"`
	CommercialName string `json:"commercial_name"`
	Anchor         string `json:"anchor"`
	ShortTerm      string `json:"short_term"`
}

// Run represents a single sourcing run for an item.
type Run struct {
	ID        string          `json:"id"`
	Item      Item            `json:"item"`
	Status    RunStatus       `json:"status"`
	Result    *PipelineResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PipelineResult is the outcome of a full acquisition run. WinnerIndex
// indexes into Candidates, or is -1 when no viable offer was found.
type PipelineResult struct {
	ItemID      string      `json:"item_id"`
	Description string      `json:"description"`
	TargetPrice *float64    `json:"target_price,omitempty"`
	Quantity    int         `json:"quantity"`
	Candidates  []Candidate `json:"candidates"`
	WinnerIndex int         `json:"winner_index"`
	Strategy    string      `json:"strategy,omitempty"`
}

// Winner returns the winning candidate, or nil when the run produced
// no offer.
func (r *PipelineResult) Winner() *Candidate {
	if r == nil || r.WinnerIndex < 0 || r.WinnerIndex >= len(r.Candidates) {
		return nil
	}
	return &r.Candidates[r.WinnerIndex]
}

// EmptyResult builds the explicit no-offer result for an item.
func EmptyResult(item Item) *PipelineResult {
	return &PipelineResult{
		ItemID:      item.ID,
		Description: item.Description,
		TargetPrice: item.MaxPrice,
		Quantity:    item.Quantity,
		WinnerIndex: -1,
	}
}
