package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/procureops/sourcing-cli/internal/resilience"
)

const defaultBaseURL = "https://scraper.internal/v1"

// Option configures the HTTP browser.
type Option func(*httpBrowser)

// WithBaseURL overrides the scraping service base URL.
func WithBaseURL(u string) Option {
	return func(b *httpBrowser) { b.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *httpBrowser) { b.http = hc }
}

// WithRateLimit overrides the shared request rate (requests per second).
func WithRateLimit(rps float64) Option {
	return func(b *httpBrowser) { b.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRetryConfig overrides the transient-retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(b *httpBrowser) { b.retry = cfg }
}

// httpBrowser talks to a remote scraping service that drives one
// rate-limited browser instance. Every page shares the browser's
// limiter; sessions isolate cookies and navigation state per run.
type httpBrowser struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewBrowser creates a client for the scraping service.
func NewBrowser(apiKey string, opts ...Option) Browser {
	b := &httpBrowser{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *httpBrowser) AcquirePage(ctx context.Context) (Page, error) {
	body, err := b.do(ctx, http.MethodPost, "/sessions", nil)
	if err != nil {
		return nil, eris.Wrap(err, "marketplace: acquire page")
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "marketplace: parse session")
	}
	if resp.SessionID == "" {
		return nil, eris.New("marketplace: empty session id")
	}

	zap.L().Debug("marketplace: page acquired", zap.String("session", resp.SessionID))
	return &httpPage{browser: b, sessionID: resp.SessionID}, nil
}

// do performs one rate-limited request against the scraping service,
// retrying transient failures. A detected anti-bot block surfaces as
// ErrPortalBlocked, which is never retried.
func (b *httpBrowser) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return resilience.DoVal(ctx, b.retry, "scraper "+path, func(ctx context.Context) ([]byte, error) {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, eris.Wrap(err, "marketplace: marshal request")
			}
			reqBody = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reqBody)
		if err != nil {
			return nil, eris.Wrap(err, "marketplace: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+b.apiKey)

		resp, err := b.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "marketplace: send request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "marketplace: read response")
		}

		if blocked, kind := DetectBlock(resp.StatusCode, body); blocked {
			zap.L().Warn("marketplace: portal block detected",
				zap.String("path", path),
				zap.String("kind", string(kind)),
				zap.Int("status", resp.StatusCode),
			)
			return nil, eris.Wrapf(ErrPortalBlocked, "marketplace: %s block", kind)
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("marketplace: unexpected status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		return body, nil
	})
}

// httpPage is a session-scoped view of the scraping service.
type httpPage struct {
	browser   *httpBrowser
	sessionID string
}

func (p *httpPage) Search(ctx context.Context, query string) ([]Listing, error) {
	path := fmt.Sprintf("/sessions/%s/search?q=%s", p.sessionID, url.QueryEscape(query))
	body, err := p.browser.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []Listing `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "marketplace: parse search results")
	}
	return resp.Results, nil
}

func (p *httpPage) FetchDetails(ctx context.Context, link, region string) (*Details, error) {
	payload := map[string]string{"link": link, "region": region}
	body, err := p.browser.do(ctx, http.MethodPost, "/sessions/"+p.sessionID+"/details", payload)
	if err != nil {
		return nil, err
	}

	var details Details
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, eris.Wrap(err, "marketplace: parse details")
	}
	return &details, nil
}

func (p *httpPage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.browser.do(ctx, http.MethodDelete, "/sessions/"+p.sessionID, nil); err != nil {
		zap.L().Debug("marketplace: session release failed",
			zap.String("session", p.sessionID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
