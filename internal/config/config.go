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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Capture    CaptureConfig    `yaml:"capture" mapstructure:"capture"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Qualify    QualifyConfig    `yaml:"qualify" mapstructure:"qualify"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CaptureConfig configures the browser capture loop.
type CaptureConfig struct {
	MaxAttempts     int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	SettleDelaySecs int    `yaml:"settle_delay_secs" mapstructure:"settle_delay_secs"`
	RetryDelaySecs  int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	LoadTimeoutSecs int    `yaml:"load_timeout_secs" mapstructure:"load_timeout_secs"`
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	ChromePath      string `yaml:"chrome_path" mapstructure:"chrome_path"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	CacheTTLHours   int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// SettleDelay returns the post-navigation settle delay as a duration.
func (c CaptureConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelaySecs) * time.Second
}

// RetryDelay returns the inter-attempt delay as a duration.
func (c CaptureConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySecs) * time.Second
}

// LoadTimeout returns the page load timeout as a duration.
func (c CaptureConfig) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutSecs) * time.Second
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// QualifyConfig configures lead scoring and outreach drafting.
type QualifyConfig struct {
	ScoreThreshold int    `yaml:"score_threshold" mapstructure:"score_threshold"`
	SenderName     string `yaml:"sender_name" mapstructure:"sender_name"`
	SenderCompany  string `yaml:"sender_company" mapstructure:"sender_company"`
	ProductPitch   string `yaml:"product_pitch" mapstructure:"product_pitch"`
}

// BatchConfig configures CSV batch processing.
type BatchConfig struct {
	MaxVisitors       int     `yaml:"max_visitors" mapstructure:"max_visitors"`
	RequestsPerMinute float64 `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
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
	v.SetEnvPrefix("LEADQUAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadqual.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("capture.max_attempts", 10)
	v.SetDefault("capture.settle_delay_secs", 2)
	v.SetDefault("capture.retry_delay_secs", 4)
	v.SetDefault("capture.load_timeout_secs", 30)
	v.SetDefault("capture.headless", true)
	v.SetDefault("capture.cache_ttl_hours", 168)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("qualify.score_threshold", 6)
	v.SetDefault("batch.max_visitors", 0)
	v.SetDefault("batch.requests_per_minute", 6.0)

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

// Validate checks that the configuration is usable for the given
// command mode: "scrape" needs only capture settings, "batch" needs
// the research and drafting credentials as well.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Capture.MaxAttempts < 1 {
		problems = append(problems, "capture.max_attempts must be >= 1")
	}
	if c.Capture.SettleDelaySecs < 0 || c.Capture.RetryDelaySecs < 0 {
		problems = append(problems, "capture delays must be >= 0")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "scrape", "export":
	case "batch":
		if c.Perplexity.Key == "" {
			problems = append(problems, "perplexity.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Qualify.ScoreThreshold < 0 || c.Qualify.ScoreThreshold > 10 {
			problems = append(problems, "qualify.score_threshold must be between 0 and 10")
		}
		if c.Batch.RequestsPerMinute <= 0 {
			problems = append(problems, "batch.requests_per_minute must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
