package model

import "time"

// Config holds all runtime settings. It is populated by viper from flags,
// BSDETECTOR_* environment variables and the YAML config file.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	LLM    LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Agent  AgentConfig  `yaml:"agent" mapstructure:"agent"`
	Search SearchConfig `yaml:"search" mapstructure:"search"`
	Scrape ScrapeConfig `yaml:"scrape" mapstructure:"scrape"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Events EventsConfig `yaml:"events" mapstructure:"events"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the HTTP surface
type ServerConfig struct {
	Addr              string        `yaml:"addr" mapstructure:"addr"`
	RequestTimeout    time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`       // Overall cap per request
	EventPollInterval time.Duration `yaml:"event_poll_interval" mapstructure:"event_poll_interval"` // SSE tail poll
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`   // SSE keep-alive
}

// LLMConfig selects and configures the language model provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, openrouter, ollama, anthropic
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// AgentConfig bounds the investigation loop
type AgentConfig struct {
	MaxSteps     int    `yaml:"max_steps" mapstructure:"max_steps"`
	SystemPrompt string `yaml:"system_prompt,omitempty" mapstructure:"system_prompt"` // Empty uses the built-in prompt
}

// SearchConfig points at the web search backend
type SearchConfig struct {
	Provider     string          `yaml:"provider" mapstructure:"provider"`
	BaseURL      string          `yaml:"base_url" mapstructure:"base_url"`
	DefaultLimit int             `yaml:"default_limit" mapstructure:"default_limit"`
	Timeout      time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	Authority    AuthorityConfig `yaml:"authority" mapstructure:"authority"`
}

// AuthorityConfig ranks search result domains. Subdomains inherit the
// tier of their parent; DomainMap entries take precedence over both lists.
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// ScrapeConfig controls page fetching for the scrape tool
type ScrapeConfig struct {
	Timeout       time.Duration      `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string             `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBytes      int64              `yaml:"max_bytes" mapstructure:"max_bytes"`
	RespectRobots bool               `yaml:"respect_robots" mapstructure:"respect_robots"`
	DomainRate    float64            `yaml:"domain_rate" mapstructure:"domain_rate"` // requests per second per host
	DomainBurst   int                `yaml:"domain_burst" mapstructure:"domain_burst"`
	DomainRates   map[string]float64 `yaml:"domain_rates,omitempty" mapstructure:"domain_rates"` // per-host overrides of DomainRate
}

// StoreConfig selects the investigation store backend
type StoreConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	DSN        string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// CacheConfig controls the annotation read-through cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	DiskDir         string        `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"` // Empty disables the disk layer
}

// EventsConfig sizes the in-memory event bus
type EventsConfig struct {
	Capacity     int           `yaml:"capacity" mapstructure:"capacity"`
	SessionGrace time.Duration `yaml:"session_grace" mapstructure:"session_grace"`
}

// LogConfig controls zerolog output
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console or json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			RequestTimeout:    300 * time.Second,
			EventPollInterval: 300 * time.Millisecond,
			HeartbeatInterval: 15 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     120,
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		Agent: AgentConfig{
			MaxSteps: 10,
		},
		Search: SearchConfig{
			Provider:     "searxng",
			BaseURL:      "http://localhost:8888",
			DefaultLimit: 5,
			Timeout:      15 * time.Second,
			Authority: AuthorityConfig{
				PrimaryDomains: []string{
					"doi.org", "arxiv.org", "pubmed.ncbi.nlm.nih.gov", "sec.gov",
					"europa.eu", "who.int", "legislation.gov.uk", "patents.google.com",
				},
				SecondaryDomains: []string{
					"wikipedia.org", "reuters.com", "apnews.com", "bbc.co.uk",
					"nature.com", "ft.com", "bloomberg.com", "crunchbase.com",
				},
			},
		},
		Scrape: ScrapeConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "bsdetector/0.1 (+https://github.com/ppiankov/bsdetector)",
			MaxBytes:      5 << 20,
			RespectRobots: true,
			DomainRate:    1,
			DomainBurst:   2,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "bsdetector.db",
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Events: EventsConfig{
			Capacity:     500,
			SessionGrace: 60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
