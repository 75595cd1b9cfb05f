package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/procureops/sourcing-cli/internal/config"
	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/pacing"
	"github.com/procureops/sourcing-cli/internal/prompt"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxQueryLen:         60,
		AnomalyThreshold:    0.30,
		MaxDetailFetch:      10,
		ValidateBatchSize:   5,
		ConfidenceThreshold: 7,
		RejectionThreshold:  8,
		MaxWebRounds:        3,
		DefaultRegion:       "BR-SP",
	}
}

func newTestPipeline(t *testing.T, gen textgen.Service, browser marketplace.Browser) *Pipeline {
	t.Helper()
	lib, err := prompt.Load("")
	require.NoError(t, err)

	ladder := textgen.Ladder{
		{Provider: "anthropic", Model: "haiku"},
		{Provider: "anthropic", Model: "sonnet"},
	}
	return New(gen, lib, browser, testPipelineConfig(), config.PacingConfig{},
		ladder, textgen.GenConfig{Provider: "sonar", Model: "sonar-pro"},
		WithPacers(pacing.Nop(), pacing.Nop()),
	)
}

// reqWithSystem matches generation requests by a distinctive substring
// of their system message, to tell the pipeline's prompts apart.
func reqWithSystem(substr string) interface{} {
	return mock.MatchedBy(func(req textgen.Request) bool {
		return len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, substr)
	})
}

func genText(content string) *textgen.Response {
	return &textgen.Response{Content: content, Usage: textgen.Usage{InputTokens: 10, OutputTokens: 5}}
}

const (
	identifyPrompt  = "procurement catalog assistant"
	validatePrompt  = "compatibility reviewer"
	resolvePrompt   = "verify ambiguous marketplace listings"
	selectPrompt    = "procurement buyer"
	websearchPrompt = "sourcing agent"
)
