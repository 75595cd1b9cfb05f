package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// sonarReq matches the open-web search calls (as opposed to the
// anthropic validation calls in the same run).
func sonarReq() interface{} {
	return mock.MatchedBy(func(req textgen.Request) bool {
		return req.Provider == "sonar"
	})
}

func noPageBrowser() *mockBrowser {
	browser := &mockBrowser{}
	browser.On("AcquirePage", mock.Anything).Return(nil, eris.New("blocked")).Once()
	return browser
}

func TestRunWebSearch_FirstRoundAccepted(t *testing.T) {
	gen := &mockGenService{}
	gen.On("Generate", mock.Anything, sonarReq()).
		Return(genText(`[{"title": "oferta boa", "price": 80, "link": "https://web/1"}]`), nil).Once()
	gen.On("Generate", mock.Anything, reqWithSystem(validatePrompt)).
		Return(genText(`[{"index": 0, "risk_score": 2, "status": "ok"}]`), nil).Once()
	gen.On("Generate", mock.Anything, reqWithSystem(selectPrompt)).
		Return(genText(`{"winner_index": 0}`), nil).Once()

	p := newTestPipeline(t, gen, noPageBrowser())
	result, err := p.RunWebSearch(context.Background(), model.Item{ID: "i", Description: "item X", Quantity: 1})

	require.NoError(t, err)
	require.Equal(t, 0, result.WinnerIndex)
	assert.Equal(t, "websearch", result.Strategy)
	assert.Equal(t, 80.0, result.Winner().TotalPrice)
	gen.AssertExpectations(t)
}

func TestRunWebSearch_RejectionFeedbackDrivesSecondRound(t *testing.T) {
	gen := &mockGenService{}
	// Round 1: one candidate, rejected at risk 9.
	gen.On("Generate", mock.Anything, sonarReq()).
		Return(genText(`[{"title": "errado", "price": 10, "link": "https://web/1"}]`), nil).Once()
	gen.On("Generate", mock.Anything, reqWithSystem(validatePrompt)).
		Return(genText(`[{"index": 0, "risk_score": 9, "reasoning": "wrong voltage"}]`), nil).Once()
	// Round 2: the conversation now carries the per-link rejection feedback.
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req textgen.Request) bool {
		if req.Provider != "sonar" {
			return false
		}
		last := req.Messages[len(req.Messages)-1]
		return last.Role == "user" &&
			strings.Contains(last.Content, "https://web/1") &&
			strings.Contains(last.Content, "wrong voltage")
	})).Return(genText(`[{"title": "certo", "price": 20, "link": "https://web/2"}]`), nil).Once()
	gen.On("Generate", mock.Anything, reqWithSystem(validatePrompt)).
		Return(genText(`[{"index": 0, "risk_score": 1, "status": "ok"}]`), nil).Once()
	gen.On("Generate", mock.Anything, reqWithSystem(selectPrompt)).
		Return(genText(`{"winner_index": 0}`), nil).Once()

	p := newTestPipeline(t, gen, noPageBrowser())
	result, err := p.RunWebSearch(context.Background(), model.Item{ID: "i", Description: "item X", Quantity: 1})

	require.NoError(t, err)
	require.NotNil(t, result.Winner())
	assert.Equal(t, "https://web/2", result.Winner().Link)
	gen.AssertExpectations(t)
}

func TestRunWebSearch_ExhaustsRoundBudget(t *testing.T) {
	gen := &mockGenService{}
	gen.On("Generate", mock.Anything, sonarReq()).
		Return(genText(`[]`), nil).Times(3)

	p := newTestPipeline(t, gen, noPageBrowser())
	result, err := p.RunWebSearch(context.Background(), model.Item{ID: "i", Description: "item X"})

	require.NoError(t, err)
	assert.Equal(t, -1, result.WinnerIndex)
	gen.AssertNumberOfCalls(t, "Generate", 3)
}

func TestRunWebSearch_ProviderErrorYieldsEmptyResult(t *testing.T) {
	gen := &mockGenService{}
	gen.On("Generate", mock.Anything, sonarReq()).
		Return(nil, eris.New("sonar down")).Once()

	p := newTestPipeline(t, gen, noPageBrowser())
	result, err := p.RunWebSearch(context.Background(), model.Item{ID: "i", Description: "item X"})

	require.NoError(t, err)
	assert.Equal(t, -1, result.WinnerIndex)
}

func TestRunWebSearch_EnrichesWhenPageAvailable(t *testing.T) {
	page := &mockPage{}
	page.On("FetchDetails", mock.Anything, "https://web/1", "BR-SP").
		Return(&marketplace.Details{ShippingCost: 12, Condition: "new"}, nil).Once()
	page.On("Close").Return(nil).Once()

	browser := &mockBrowser{}
	browser.On("AcquirePage", mock.Anything).Return(page, nil).Once()

	gen := &mockGenService{}
	gen.On("Generate", mock.Anything, sonarReq()).
		Return(genText(`[{"title": "oferta", "price": 50, "link": "https://web/1"}]`), nil).Once()
	gen.On("Generate", mock.Anything, reqWithSystem(validatePrompt)).
		Return(genText(`[{"index": 0, "risk_score": 0}]`), nil).Once()
	gen.On("Generate", mock.Anything, reqWithSystem(selectPrompt)).
		Return(genText(`{"winner_index": 0}`), nil).Once()

	p := newTestPipeline(t, gen, browser)
	result, err := p.RunWebSearch(context.Background(), model.Item{ID: "i", Description: "item X", Region: "BR-SP"})

	require.NoError(t, err)
	require.NotNil(t, result.Winner())
	assert.Equal(t, 62.0, result.Winner().TotalPrice)
	page.AssertExpectations(t)
}

func TestRunWebSearch_RejectedLinksNotRevalidated(t *testing.T) {
	gen := &mockGenService{}
	// Both rounds return the same link; round 2 has nothing new, so a
	// third round is requested.
	gen.On("Generate", mock.Anything, sonarReq()).
		Return(genText(`[{"title": "repetida", "price": 10, "link": "https://web/1"}]`), nil).Times(3)
	gen.On("Generate", mock.Anything, reqWithSystem(validatePrompt)).
		Return(genText(`[{"index": 0, "risk_score": 9}]`), nil).Once()

	p := newTestPipeline(t, gen, noPageBrowser())
	result, err := p.RunWebSearch(context.Background(), model.Item{ID: "i", Description: "item X"})

	require.NoError(t, err)
	assert.Equal(t, -1, result.WinnerIndex)
	gen.AssertExpectations(t)
}
