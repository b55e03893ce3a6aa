package model

import "time"

// Config is the complete, immutable run configuration. It is resolved once by the
// CLI (defaults < config file < env < flags) and passed explicitly to every stage.
type Config struct {
	LLM          LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Embedding    EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	Retry        RetryConfig       `mapstructure:"retry" yaml:"retry"`
	RateLimiting RateLimitConfig   `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Concurrency  ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Cache        CacheConfig       `mapstructure:"cache" yaml:"cache"`
	VectorStore  VectorStoreConfig `mapstructure:"vector_store" yaml:"vector_store"`
	Enrichment   EnrichmentConfig  `mapstructure:"enrichment" yaml:"enrichment"`
	Generation   GenerationConfig  `mapstructure:"generation" yaml:"generation"`
	Fetch        FetchConfig       `mapstructure:"fetch" yaml:"fetch"`
	Output       OutputConfig      `mapstructure:"output" yaml:"output"`
	Prompts      PromptConfig      `mapstructure:"prompts" yaml:"prompts"`
}

// LLMConfig selects and tunes the text generation provider
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"` // openai, anthropic, ollama, gemini, vertex
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"-"` // Prefer env vars; never printed
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout     int     `mapstructure:"timeout" yaml:"timeout"` // seconds per request
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
	Project     string  `mapstructure:"project" yaml:"project,omitempty"`   // Vertex AI only
	Location    string  `mapstructure:"location" yaml:"location,omitempty"` // Vertex AI only
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"` // openai, ollama, gemini, vertex, hash
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"-"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Dimensions int    `mapstructure:"dimensions" yaml:"dimensions"` // 0 = provider default
	Timeout    int    `mapstructure:"timeout" yaml:"timeout"`
	Project    string `mapstructure:"project" yaml:"project,omitempty"`
	Location   string `mapstructure:"location" yaml:"location,omitempty"`
}

// RetryConfig is the bounded retry policy for transient model failures
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// RateLimitConfig limits model requests per provider
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
	// Providers overrides requests_per_second by provider name; 0 is unlimited
	Providers map[string]float64 `mapstructure:"providers" yaml:"providers"`
}

// ConcurrencyConfig bounds per-stage parallelism
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// CacheConfig controls the model response cache
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir       string        `mapstructure:"dir" yaml:"dir"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// VectorStoreConfig controls optional embedding persistence and retrieval
type VectorStoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	Metric  string `mapstructure:"metric" yaml:"metric"` // cosine, euclidean
	TopK    int    `mapstructure:"top_k" yaml:"top_k"`
}

// EnrichmentConfig controls regulation tagging and vocabulary normalization
type EnrichmentConfig struct {
	RegulationsFile  string              `mapstructure:"regulations_file" yaml:"regulations_file"` // empty = built-in catalog
	MatchMode        string              `mapstructure:"match_mode" yaml:"match_mode"`             // substring, word, stem
	ActorVocabulary  map[string][]string `mapstructure:"actor_vocabulary" yaml:"actor_vocabulary"`
	ActionVocabulary map[string][]string `mapstructure:"action_vocabulary" yaml:"action_vocabulary"`
}

// GenerationConfig controls test case generation
type GenerationConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"` // per requirement, including the first
}

// FetchConfig controls fetching documents from URLs
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	RespectRobots bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
	HTTPProxy     string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy    string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy       string        `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// OutputConfig controls reporting
type OutputConfig struct {
	Verbose       bool   `mapstructure:"verbose" yaml:"verbose"`
	FailOnPartial bool   `mapstructure:"fail_on_partial" yaml:"fail_on_partial"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"` // json, console
}

// PromptConfig overrides the built-in prompt templates (text/template syntax)
type PromptConfig struct {
	Structure  string `mapstructure:"structure" yaml:"structure,omitempty"`
	Categorize string `mapstructure:"categorize" yaml:"categorize,omitempty"`
	Generate   string `mapstructure:"generate" yaml:"generate,omitempty"`
	Validate   string `mapstructure:"validate" yaml:"validate,omitempty"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "", // Disabled by default
			Timeout:     60,
			MaxTokens:   2048,
			Temperature: 0,
			Location:    "us-central1",
		},
		Embedding: EmbeddingConfig{
			Provider: "hash",
			Timeout:  30,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
			Providers:         map[string]float64{"ollama": 0, "hash": 0},
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".reqtrace-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		VectorStore: VectorStoreConfig{
			Enabled: false,
			Path:    "reqtrace-vectors.db",
			Metric:  "cosine",
			TopK:    5,
		},
		Enrichment: EnrichmentConfig{
			MatchMode: "word",
			ActorVocabulary: map[string][]string{
				"user":          {"end user", "end-user", "users", "customer", "patient"},
				"administrator": {"admin", "admins", "system administrator", "sysadmin"},
				"system":        {"application", "software", "platform", "the system", "information system"},
				"auditor":       {"compliance officer", "auditors"},
			},
			ActionVocabulary: map[string][]string{
				"encrypt":      {"encrypts", "encrypted", "encryption"},
				"log":          {"logs", "logged", "record", "records", "audit"},
				"authenticate": {"authenticates", "verify identity", "sign in", "log in", "login"},
				"authorize":    {"authorizes", "permit", "grant access"},
				"retain":       {"retains", "store", "stores", "keep", "preserve"},
				"notify":       {"notifies", "alert", "inform"},
				"delete":       {"deletes", "erase", "purge", "remove"},
			},
		},
		Generation: GenerationConfig{
			MaxAttempts: 2,
		},
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "reqtrace/0.1 (+https://github.com/ppiankov/reqtrace)",
			MaxBodyBytes:  10_000_000,
			RespectRobots: true,
		},
		Output: OutputConfig{
			LogFormat: "console",
		},
	}
}
