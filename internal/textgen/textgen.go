// Package textgen routes prompt-in, text-out completion requests to
// named generation backends. Callers treat any error as total failure
// for that call and fall back to their stage default; no retries happen
// here.
package textgen

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/procureops/sourcing-cli/pkg/anthropic"
	"github.com/procureops/sourcing-cli/pkg/sonar"
)

// ErrProviderUnavailable marks a call that never reached the backend:
// unknown provider name or missing credential.
var ErrProviderUnavailable = errors.New("textgen: provider unavailable")

// Message is one entry of the ordered conversation. Role is "system",
// "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request is a single completion call. Provider and Model come from an
// immutable GenConfig; the zero MaxTokens gets a provider default.
type Request struct {
	Provider    string
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Usage reports token consumption for cost attribution.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the completion text, plus the separate reasoning channel
// when the backend emits one.
type Response struct {
	Content   string
	Reasoning string
	Usage     Usage
}

// Service generates a completion for a request.
type Service interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Provider is a single named backend behind the router.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Router dispatches requests to registered providers by name.
type Router struct {
	providers map[string]Provider
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{providers: make(map[string]Provider)}
}

// Register adds a named provider.
func (r *Router) Register(name string, p Provider) {
	r.providers[name] = p
}

// Generate dispatches to the provider named in the request.
func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	p, ok := r.providers[req.Provider]
	if !ok {
		return nil, eris.Wrapf(ErrProviderUnavailable, "textgen: unknown provider %q", req.Provider)
	}
	return p.Generate(ctx, req)
}

// IsQuotaErr reports whether an error looks like a quota or rate-limit
// rejection, the trigger for ladder escalation.
func IsQuotaErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"429", "quota", "rate limit", "rate_limit", "overloaded"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// splitSystem separates the leading system message from the rest of the
// conversation for backends with a dedicated system channel.
func splitSystem(msgs []Message) (string, []Message) {
	if len(msgs) > 0 && msgs[0].Role == "system" {
		return msgs[0].Content, msgs[1:]
	}
	return "", msgs
}

// anthropicProvider adapts pkg/anthropic to the Provider interface.
type anthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds the "anthropic" backend. An empty API key
// yields a provider that fails every call as unavailable.
func NewAnthropicProvider(apiKey string) Provider {
	if apiKey == "" {
		return unavailableProvider{name: "anthropic", reason: "missing api key"}
	}
	return &anthropicProvider{client: anthropic.NewClient(apiKey)}
}

func (p *anthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	system, rest := splitSystem(req.Messages)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	msgs := make([]anthropic.Message, len(rest))
	for i, m := range rest {
		msgs[i] = anthropic.Message{Role: m.Role, Content: m.Content}
	}

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    msgs,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	return &Response{
		Content: resp.Text,
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// sonarProvider adapts pkg/sonar to the Provider interface. It is the
// backend with live-search capability.
type sonarProvider struct {
	client sonar.Client
}

// NewSonarProvider builds the "sonar" backend.
func NewSonarProvider(client sonar.Client, apiKey string) Provider {
	if apiKey == "" {
		return unavailableProvider{name: "sonar", reason: "missing api key"}
	}
	return &sonarProvider{client: client}
}

func (p *sonarProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]sonar.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = sonar.Message{Role: m.Role, Content: m.Content}
	}

	var maxTokens *int
	if req.MaxTokens > 0 {
		maxTokens = &req.MaxTokens
	}

	resp, err := p.client.ChatCompletion(ctx, sonar.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("textgen: empty sonar response")
	}

	choice := resp.Choices[0]
	return &Response{
		Content:   choice.Message.Content,
		Reasoning: choice.Message.ReasoningContent,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// unavailableProvider fails every call; it stands in for backends whose
// credential is absent so misconfiguration degrades instead of crashing.
type unavailableProvider struct {
	name   string
	reason string
}

func (p unavailableProvider) Generate(context.Context, Request) (*Response, error) {
	return nil, eris.Wrapf(ErrProviderUnavailable, "textgen: %s: %s", p.name, p.reason)
}
