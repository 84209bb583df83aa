package config

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"github.com/mikeboe/answer-agent/pkg/research/tools"
)

// Config is one immutable configuration snapshot. Queries read the snapshot
// they started with; a reload swaps in a whole new one between queries.
type Config struct {
	LLM      LLMConfig             `mapstructure:"llm"`
	Research ResearchConfig        `mapstructure:"research"`
	Tools    map[string]ToolConfig `mapstructure:"tools"`
}

// LLMConfig configures the generation backend.
type LLMConfig struct {
	Model          string        `mapstructure:"model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ResearchConfig bounds the iteration loop.
type ResearchConfig struct {
	MaxIterations      int           `mapstructure:"max_iterations"`
	IterationBudget    time.Duration `mapstructure:"iteration_budget"`
	MinAnswerLength    int           `mapstructure:"min_answer_length"`
	MaxEvidenceItems   int           `mapstructure:"max_evidence_items"`
	MaxEvidenceTextLen int           `mapstructure:"max_evidence_text_len"`
	FetchTopResults    int           `mapstructure:"fetch_top_results"`
	UseLLMEvaluator    bool          `mapstructure:"use_llm_evaluator"`
}

// ToolConfig configures one lookup tool.
type ToolConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxResults int           `mapstructure:"max_results"`
	MaxLength  int           `mapstructure:"max_length"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Tool returns the configuration for a known tool name, disabled zero value
// if the section is missing.
func (c *Config) Tool(name string) ToolConfig {
	return c.Tools[name]
}

var knownTools = map[string]bool{
	tools.NameWebSearch:    true,
	tools.NameFetchContent: true,
	tools.NameEncyclopedia: true,
}

// ConfigError reports an invalid configuration on load or reload. The prior
// snapshot stays active.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("invalid configuration: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads the configuration file (optional) plus environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Err: err}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine, env and defaults apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, &ConfigError{Err: err}
			}
		}
	}

	v.SetEnvPrefix("ANSWER_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to parse config: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_base_delay", time.Second)
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("research.max_iterations", 3)
	v.SetDefault("research.iteration_budget", 90*time.Second)
	v.SetDefault("research.min_answer_length", 80)
	v.SetDefault("research.max_evidence_items", 8)
	v.SetDefault("research.max_evidence_text_len", 2000)
	v.SetDefault("research.fetch_top_results", 2)
	v.SetDefault("research.use_llm_evaluator", true)

	v.SetDefault("tools.web_search.enabled", true)
	v.SetDefault("tools.web_search.max_results", 3)
	v.SetDefault("tools.web_search.timeout", 15*time.Second)
	v.SetDefault("tools.fetch_content.enabled", true)
	v.SetDefault("tools.fetch_content.max_length", 2000)
	v.SetDefault("tools.fetch_content.timeout", 15*time.Second)
	v.SetDefault("tools.encyclopedia.enabled", true)
	v.SetDefault("tools.encyclopedia.max_results", 2)
	v.SetDefault("tools.encyclopedia.timeout", 15*time.Second)
}

// Validate rejects unknown tool names and non-positive limits.
func (c *Config) Validate() error {
	if c.Research.MaxIterations <= 0 {
		return fmt.Errorf("research.max_iterations must be > 0")
	}
	if c.Research.MaxEvidenceItems <= 0 {
		return fmt.Errorf("research.max_evidence_items must be > 0")
	}
	if c.Research.MaxEvidenceTextLen <= 0 {
		return fmt.Errorf("research.max_evidence_text_len must be > 0")
	}
	if c.Research.MinAnswerLength <= 0 {
		return fmt.Errorf("research.min_answer_length must be > 0")
	}
	if c.LLM.MaxRetries <= 0 {
		return fmt.Errorf("llm.max_retries must be > 0")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0")
	}
	for name, tc := range c.Tools {
		if !knownTools[name] {
			return fmt.Errorf("unknown tool %q", name)
		}
		if name == tools.NameFetchContent {
			if tc.MaxLength <= 0 {
				return fmt.Errorf("tools.%s.max_length must be > 0", name)
			}
		} else if tc.MaxResults <= 0 {
			return fmt.Errorf("tools.%s.max_results must be > 0", name)
		}
		if tc.Timeout <= 0 {
			return fmt.Errorf("tools.%s.timeout must be > 0", name)
		}
	}
	return nil
}

// Store holds the active configuration snapshot. Reads are lock-free; reloads
// are serialized and atomic, so an in-flight query never observes a partial
// configuration.
type Store struct {
	mu   sync.Mutex
	path string
	cur  atomic.Pointer[Config]
}

func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.cur.Store(cfg)
	return s, nil
}

// Current returns the active snapshot. Callers keep using the returned
// pointer for the whole query, so a concurrent reload cannot affect them.
func (s *Store) Current() *Config {
	return s.cur.Load()
}

// Reload re-reads the configuration and swaps the snapshot. On failure the
// prior snapshot stays active and the error is returned.
func (s *Store) Reload() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.cur.Store(cfg)
	return cfg, nil
}
