package model

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Config holds the complete application configuration.
// Field tags use yaml names; viper decodes into them with TagName "yaml".
type Config struct {
	LLM          LLMConfig          `yaml:"llm"`
	Vision       VisionConfig       `yaml:"vision"`
	Wikipedia    WikipediaConfig    `yaml:"wikipedia"`
	Retry        RetryConfig        `yaml:"retry"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache"`
	Limits       LimitsConfig       `yaml:"limits"`
	Server       ServerConfig       `yaml:"server"`
	HTTP         HTTPConfig         `yaml:"http"`
	Fetch        FetchConfig        `yaml:"fetch"`
	Highlight    HighlightConfig    `yaml:"highlight"`
	Output       OutputConfig       `yaml:"output"`
}

// LLMConfig configures the text model used for keywords, claims, typos and verification
type LLMConfig struct {
	Provider    string        `yaml:"provider" validate:"required,oneof=groq openai anthropic claude google gemini ollama"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxTokens   int           `yaml:"max_tokens" validate:"gte=0"`
	Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig stops calling a provider after repeated failures
type CircuitBreakerConfig struct {
	MaxFailures int           `yaml:"max_failures" validate:"gte=0"` // 0 disables the breaker
	Cooldown    time.Duration `yaml:"cooldown"`
}

// VisionConfig configures the image-description model.
// Empty Provider or APIKey fall back to the LLM section.
type VisionConfig struct {
	Provider  string `yaml:"provider" validate:"omitempty,oneof=groq openai anthropic claude google gemini ollama"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens" validate:"gte=0"`
}

// WikipediaConfig configures reference lookups
type WikipediaConfig struct {
	DefaultLanguage Language      `yaml:"default_language" validate:"required"`
	APIURL          string        `yaml:"api_url" validate:"required"` // "{lang}" is replaced with the language code
	UserAgent       string        `yaml:"user_agent" validate:"required"`
	ContentChars    int           `yaml:"content_chars" validate:"gt=0"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
}

// RetryConfig is the uniform policy applied to every external call
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `yaml:"base_delay" validate:"gte=0"`
	MaxDelay    time.Duration `yaml:"max_delay" validate:"gte=0"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	VerifyWorkers int `yaml:"verify_workers" validate:"gte=1"`
	BatchWorkers  int `yaml:"batch_workers" validate:"gte=1"`
}

// RateLimitingConfig paces outbound requests
type RateLimitingConfig struct {
	LLMRequestsPerSecond       float64 `yaml:"llm_requests_per_second" validate:"gte=0"` // 0 disables
	LLMBurst                   int     `yaml:"llm_burst" validate:"gte=0"`
	WikipediaRequestsPerSecond float64 `yaml:"wikipedia_requests_per_second" validate:"gt=0"`
	WikipediaBurst             int     `yaml:"wikipedia_burst" validate:"gte=1"`
}

// CacheConfig configures the reference page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
	RedisURL  string        `yaml:"redis_url"`
}

// LimitsConfig holds user-facing input limits
type LimitsConfig struct {
	MaxWords      int   `yaml:"max_words" validate:"gt=0"`
	MaxImageBytes int64 `yaml:"max_image_bytes" validate:"gt=0"`
}

// ServerConfig configures the web UI
type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// HTTPConfig holds outbound HTTP settings
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy"`
	NoProxy    string `yaml:"no_proxy"`
}

// FetchConfig controls downloading web articles to check
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxBytes      int64         `yaml:"max_bytes" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" validate:"required"`
	RespectRobots bool          `yaml:"respect_robots"`
}

// HighlightConfig tunes claim location in the source text
type HighlightConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" validate:"gte=0,lte=1"` // 0 disables fuzzy matching
}

// OutputConfig controls CLI rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose"`
	IncludeFooter bool `yaml:"include_footer"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "llama-3.3-70b-versatile",
			Timeout:     60 * time.Second,
			MaxTokens:   2048,
			Temperature: 0.2,
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Cooldown:    30 * time.Second,
			},
		},
		Vision: VisionConfig{
			Model:     "llama-3.2-11b-vision-preview",
			MaxTokens: 2000,
		},
		Wikipedia: WikipediaConfig{
			DefaultLanguage: DefaultLanguage,
			APIURL:          "https://{lang}.wikipedia.org/w/api.php",
			UserAgent:       "factcheck/0.1 (+https://github.com/ppiankov/factcheck)",
			ContentChars:    5000,
			Timeout:         15 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   4 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		Concurrency: ConcurrencyConfig{
			VerifyWorkers: 4,
			BatchWorkers:  runtime.NumCPU(),
		},
		RateLimiting: RateLimitingConfig{
			LLMRequestsPerSecond:       0,
			LLMBurst:                   1,
			WikipediaRequestsPerSecond: 5,
			WikipediaBurst:             5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   24 * time.Hour,
		},
		Limits: LimitsConfig{
			MaxWords:      40000,
			MaxImageBytes: 10 << 20,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  2 * time.Minute,
		},
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			MaxBytes:      2_000_000,
			UserAgent:     "factcheck/0.1 (+https://github.com/ppiankov/factcheck)",
			RespectRobots: true,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() []error {
	errs := make([]error, 0)

	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, errors.Errorf("config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, errors.Wrap(err, "config"))
		}
	}

	if _, err := ParseLanguage(string(c.Wikipedia.DefaultLanguage)); err != nil {
		errs = append(errs, errors.Wrap(err, "config: wikipedia.default_language"))
	}
	if !strings.Contains(c.Wikipedia.APIURL, "{lang}") {
		errs = append(errs, errors.Errorf("config: wikipedia.api_url must contain {lang}: %s", c.Wikipedia.APIURL))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.BaseDelay > c.Retry.MaxDelay {
		errs = append(errs, errors.Errorf("config: retry.base_delay (%s) exceeds retry.max_delay (%s)", c.Retry.BaseDelay, c.Retry.MaxDelay))
	}

	return errs
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/factcheck"
	}
	return ".factcheck-cache"
}
