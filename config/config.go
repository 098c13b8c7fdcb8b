package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration. It is read from YAML (.yaml,
// .yml) or JSON (.json) and completed with defaults.
type Config struct {
	LLM               *LLMConfig    `json:"llm,omitempty" yaml:"llm,omitempty"`
	ServerAddr        string        `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	DBPath            string        `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	LogLevel          string        `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	GenerationTimeout time.Duration `json:"generation_timeout,omitempty" yaml:"generation_timeout,omitempty"`
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderMock     = "mock"
)

// Load reads the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UnmarshalJSON reads generation_timeout as a duration string ("3m",
// "45s") the way the YAML form does. Plain numbers are taken as seconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		GenerationTimeout json.RawMessage `json:"generation_timeout,omitempty"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.GenerationTimeout) == 0 || string(aux.GenerationTimeout) == "null" {
		return nil
	}
	d, err := parseTimeout(aux.GenerationTimeout)
	if err != nil {
		return fmt.Errorf("generation_timeout: %w", err)
	}
	c.GenerationTimeout = d
	return nil
}

func parseTimeout(raw json.RawMessage) (time.Duration, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return time.ParseDuration(s)
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return 0, fmt.Errorf("want a duration string, got %s", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Default returns a configuration that runs entirely offline against the
// mock generator.
func Default() Config {
	cfg := Config{LLM: &LLMConfig{Provider: ProviderMock}}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	if c.LLM == nil {
		c.LLM = &LLMConfig{Provider: ProviderMock}
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "aether.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 3 * time.Minute
	}
}

// Validate checks provider specific requirements.
func (c Config) Validate() error {
	if c.LLM == nil || c.LLM.Provider == "" {
		return errors.New("llm config missing; please set llm.provider")
	}
	switch c.LLM.Provider {
	case ProviderMock:
	case ProviderOpenAI:
		if c.LLM.Model == "" {
			return errors.New("llm.model is required for provider openai")
		}
	case ProviderDeepSeek:
		// DeepSeek is reached through its OpenAI-compatible endpoint.
		if c.LLM.BaseURL == "" {
			return errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		if c.LLM.Model == "" {
			return errors.New("llm.model is required for provider deepseek")
		}
	default:
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return lvl, nil
}
