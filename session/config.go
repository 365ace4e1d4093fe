package session

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	defaultMinContextChunks   = 2
	defaultMinExchangeReserve = 500
	defaultTemperature        = 0.7
)

const defaultBasePrompt = "You are a helpful assistant. Answer using only the " +
	"provided source material. If the sources do not cover the question, say so."

// Config holds initialization parameters for a session controller.
type Config struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// TokenLimit is the model's combined input+output budget per
	// conversation. 0 means unbounded.
	TokenLimit int `json:"token_limit,omitempty"`
	// MinExchangeReserve is the minimum budget that must remain for another
	// full question+answer exchange.
	MinExchangeReserve int `json:"min_exchange_reserve,omitempty"`
	// HardTokenLimit makes an exhausted budget a synchronous failure before
	// dispatch instead of a logged warning.
	HardTokenLimit bool `json:"hard_token_limit,omitempty"`

	// MinContextChunks is the floor below which context reduction refuses
	// to shrink the chunk count.
	MinContextChunks int `json:"min_context_chunks,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	BasePrompt  string  `json:"base_prompt,omitempty"`

	// Observer names a registered diagnostics observer ("slog", "noop").
	Observer string `json:"observer,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinContextChunks:   defaultMinContextChunks,
		MinExchangeReserve: defaultMinExchangeReserve,
		Temperature:        defaultTemperature,
		BasePrompt:         defaultBasePrompt,
		Observer:           "slog",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.TokenLimit > 0 {
		c.TokenLimit = source.TokenLimit
	}
	if source.MinExchangeReserve > 0 {
		c.MinExchangeReserve = source.MinExchangeReserve
	}
	if source.HardTokenLimit {
		c.HardTokenLimit = true
	}
	if source.MinContextChunks > 0 {
		c.MinContextChunks = source.MinContextChunks
	}
	if source.Temperature > 0 {
		c.Temperature = source.Temperature
	}
	if source.BasePrompt != "" {
		c.BasePrompt = source.BasePrompt
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
