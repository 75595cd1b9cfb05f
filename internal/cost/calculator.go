// Package cost estimates spend on the external generation backends for
// per-run attribution in logs.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Sonar     SonarRate            `yaml:"sonar" mapstructure:"sonar"`
	Scraper   ScraperRate          `yaml:"scraper" mapstructure:"scraper"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// SonarRate holds the search-capable backend's pricing: a flat fee per
// query on top of token pricing.
type SonarRate struct {
	Input    float64 `yaml:"input" mapstructure:"input"`
	Output   float64 `yaml:"output" mapstructure:"output"`
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// ScraperRate holds the scraping service pricing.
type ScraperRate struct {
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Anthropic computes the cost of one Anthropic call. Unknown models
// cost zero rather than guessing.
func (c *Calculator) Anthropic(model string, input, output int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Sonar computes the cost of one search-backend call.
func (c *Calculator) Sonar(input, output int) float64 {
	return c.rates.Sonar.PerQuery +
		(float64(input)/1e6)*c.rates.Sonar.Input +
		(float64(output)/1e6)*c.rates.Sonar.Output
}

// Scraper computes the cost of n scraping requests.
func (c *Calculator) Scraper(requests int) float64 {
	return float64(requests) * c.rates.Scraper.PerRequest
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		Sonar:   SonarRate{Input: 3.00, Output: 15.00, PerQuery: 0.005},
		Scraper: ScraperRate{PerRequest: 0.002},
	}
}
