package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "llama3.2"

// Config holds the application configuration.
type Config struct {
	Provider string // "ollama", "openai", or "anthropic"
	Model    string
	Host     string // ollama server address
	BaseURL  string // openai/anthropic-compatible endpoint
	APIKey   string
}

// fileConfig maps to the JSON config file structure.
type fileConfig struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Host     string `json:"host,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// resolve returns the first non-empty value from the provided strings.
func resolve(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Load reads configuration by merging config file, environment variables,
// and defaults. Priority: config file > env var > default.
func Load() (*Config, error) {
	fc, err := readConfigFile()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Provider: resolve(fc.Provider, os.Getenv("MACHBOT_PROVIDER"), "ollama"),
		Model:    resolve(fc.Model, os.Getenv("MACHBOT_MODEL"), DefaultModel),
		Host:     resolve(fc.Host, os.Getenv("OLLAMA_HOST")),
	}

	switch cfg.Provider {
	case "ollama":
		// The native client resolves its own default address.
	case "openai":
		cfg.BaseURL = resolve(fc.BaseURL, os.Getenv("OPENAI_BASE_URL"), "http://localhost:11434/v1")
		// Local OpenAI-compatible servers accept any key.
		cfg.APIKey = resolve(fc.APIKey, os.Getenv("OPENAI_API_KEY"), "ollama")
	case "anthropic":
		cfg.BaseURL = resolve(fc.BaseURL, os.Getenv("ANTHROPIC_BASE_URL"))
		cfg.APIKey = resolve(fc.APIKey, os.Getenv("ANTHROPIC_API_KEY"), "local")
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider %q requires a base_url (set via config file or ANTHROPIC_BASE_URL)", cfg.Provider)
		}
	default:
		return nil, fmt.Errorf("unknown provider %q (want ollama, openai, or anthropic)", cfg.Provider)
	}

	return cfg, nil
}

// readConfigFile reads and parses the JSON config file.
// Returns a zero-value fileConfig if the file does not exist.
func readConfigFile() (fileConfig, error) {
	var fc fileConfig

	homeDir := os.Getenv("MACHBOT_HOME")
	if homeDir == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fc, fmt.Errorf("failed to determine home directory: %w", err)
		}
		homeDir = filepath.Join(h, ".machbot")
	}

	path := filepath.Join(homeDir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return fc, nil
}
