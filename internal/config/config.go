package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Scraper   ScraperConfig   `yaml:"scraper" mapstructure:"scraper"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Sonar     SonarConfig     `yaml:"sonar" mapstructure:"sonar"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Pacing    PacingConfig    `yaml:"pacing" mapstructure:"pacing"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Prompts   PromptsConfig   `yaml:"prompts" mapstructure:"prompts"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ScraperConfig holds marketplace scraping service settings.
type ScraperConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// AnthropicConfig holds Anthropic API settings. The three models form
// the escalation ladder, cheapest first.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	OpusModel   string `yaml:"opus_model" mapstructure:"opus_model"`
}

// SonarConfig holds the search-capable generation backend settings.
type SonarConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PipelineConfig configures the acquisition pipeline tunables.
type PipelineConfig struct {
	MaxQueryLen         int     `yaml:"max_query_len" mapstructure:"max_query_len"`
	AnomalyThreshold    float64 `yaml:"anomaly_threshold" mapstructure:"anomaly_threshold"`
	MaxDetailFetch      int     `yaml:"max_detail_fetch" mapstructure:"max_detail_fetch"`
	ValidateBatchSize   int     `yaml:"validate_batch_size" mapstructure:"validate_batch_size"`
	ConfidenceThreshold int     `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	RejectionThreshold  int     `yaml:"rejection_threshold" mapstructure:"rejection_threshold"`
	MaxWebRounds        int     `yaml:"max_web_rounds" mapstructure:"max_web_rounds"`
	DefaultRegion       string  `yaml:"default_region" mapstructure:"default_region"`
}

// PacingConfig configures the deliberate delays between scraper calls.
type PacingConfig struct {
	SearchDelayMillis int `yaml:"search_delay_ms" mapstructure:"search_delay_ms"`
	DetailDelayMillis int `yaml:"detail_delay_ms" mapstructure:"detail_delay_ms"`
}

// SearchDelay returns the inter-search delay as a duration.
func (p PacingConfig) SearchDelay() time.Duration {
	return time.Duration(p.SearchDelayMillis) * time.Millisecond
}

// DetailDelay returns the inter-detail-fetch delay as a duration.
func (p PacingConfig) DetailDelay() time.Duration {
	return time.Duration(p.DetailDelayMillis) * time.Millisecond
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentItems int `yaml:"max_concurrent_items" mapstructure:"max_concurrent_items"`
}

// ServerConfig configures the job server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// PromptsConfig locates an optional prompt-template override file.
type PromptsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOURCING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sourcing.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_items", 4)
	v.SetDefault("scraper.base_url", "https://scraper.internal/v1")
	v.SetDefault("scraper.requests_per_second", 2.0)
	v.SetDefault("sonar.base_url", "https://api.perplexity.ai")
	v.SetDefault("sonar.model", "sonar-pro")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.opus_model", "claude-opus-4-6")
	v.SetDefault("pipeline.max_query_len", 60)
	v.SetDefault("pipeline.anomaly_threshold", 0.30)
	v.SetDefault("pipeline.max_detail_fetch", 10)
	v.SetDefault("pipeline.validate_batch_size", 5)
	v.SetDefault("pipeline.confidence_threshold", 7)
	v.SetDefault("pipeline.rejection_threshold", 8)
	v.SetDefault("pipeline.max_web_rounds", 3)
	v.SetDefault("pipeline.default_region", "BR-SP")
	v.SetDefault("pacing.search_delay_ms", 800)
	v.SetDefault("pacing.detail_delay_ms", 1500)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
