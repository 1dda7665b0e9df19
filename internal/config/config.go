// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// elevatorapp.
//
// Configuration file location (in order of precedence):
//   - environment overrides (ELEVATORAPP_*, API key variable)
//   - --config path, else ~/.elevatorapp/config.toml
//   - built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete elevatorapp configuration.
type Config struct {
	Storage  StorageConfig  `toml:"storage" json:"storage"`
	Producer ProducerConfig `toml:"producer" json:"producer"`
	Chat     ChatConfig     `toml:"chat" json:"chat"`
	Voice    VoiceConfig    `toml:"voice" json:"voice"`
	Log      LogConfig      `toml:"log" json:"log"`
}

// StorageConfig selects where the conversation snapshot lives.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend"`

	// Dir holds the snapshot file or database. Default: ~/.elevatorapp
	Dir string `toml:"dir" json:"dir"`

	// Key names the snapshot slot.
	Key string `toml:"key" json:"key"`
}

// ProducerConfig configures the answer-generation backend.
type ProducerConfig struct {
	Backend string `toml:"backend" json:"backend"` // "gemini" or "ollama"
	Stream  bool   `toml:"stream" json:"stream"`
	Model   string `toml:"model" json:"model"`

	// APIKey is normally left empty and read from APIKeyEnv.
	APIKey    string `toml:"api_key,omitempty" json:"api_key,omitempty"`
	APIKeyEnv string `toml:"api_key_env" json:"api_key_env"`
	BaseURL   string `toml:"base_url,omitempty" json:"base_url,omitempty"`

	GoogleSearch bool `toml:"google_search" json:"google_search"`

	// RateLimit is requests per second; 0 disables pacing.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	Burst     int     `toml:"burst" json:"burst"`

	OllamaURL   string `toml:"ollama_url" json:"ollama_url"`
	OllamaModel string `toml:"ollama_model" json:"ollama_model"`
}

// ChatConfig holds user-facing conversation settings.
type ChatConfig struct {
	DefaultTitle      string `toml:"default_title" json:"default_title"`
	ImportedPrefix    string `toml:"imported_prefix" json:"imported_prefix"`
	AttachmentsPrompt string `toml:"attachments_prompt" json:"attachments_prompt"` // %d is the file count
	ShareBaseURL      string `toml:"share_base_url" json:"share_base_url"`
}

// VoiceConfig configures dictation.
type VoiceConfig struct {
	Language string `toml:"language" json:"language"` // BCP 47 tag

	// Command is an external speech-to-text program printing one utterance
	// per line; interim results start with "~". Empty disables dictation.
	Command []string `toml:"command,omitempty" json:"command,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file,omitempty" json:"file,omitempty"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "file",
			Dir:     "~/.elevatorapp",
			Key:     "chatState",
		},
		Producer: ProducerConfig{
			Backend:      model.BackendGemini,
			Stream:       true,
			Model:        "gemini-2.5-flash",
			APIKeyEnv:    "API_KEY",
			GoogleSearch: true,
			RateLimit:    1,
			Burst:        1,
			OllamaURL:    "http://localhost:11434",
			OllamaModel:  "llama3.1",
		},
		Chat: ChatConfig{
			DefaultTitle:      "Нов чат",
			ImportedPrefix:    "Споделено: ",
			AttachmentsPrompt: "Анализирай прикачените %d файла.",
			ShareBaseURL:      "http://localhost:5173/",
		},
		Voice: VoiceConfig{
			Language: "bg-BG",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigDir returns the elevatorapp configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".elevatorapp"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir returns the storage directory with "~" expanded.
func (c *Config) DataDir() string {
	return util.ExpandHome(c.Storage.Dir)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the default config file if it exists, falling back to
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg and fills unset fields.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg, md)
	return nil
}

// fillDefaults fills in any missing values with defaults. Booleans are only
// defaulted when the key is absent from the file.
func fillDefaults(cfg *Config, md toml.MetaData) {
	d := Default()

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = d.Storage.Backend
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = d.Storage.Dir
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = d.Storage.Key
	}

	if cfg.Producer.Backend == "" {
		cfg.Producer.Backend = d.Producer.Backend
	}
	if !md.IsDefined("producer", "stream") {
		cfg.Producer.Stream = d.Producer.Stream
	}
	if !md.IsDefined("producer", "google_search") {
		cfg.Producer.GoogleSearch = d.Producer.GoogleSearch
	}
	if cfg.Producer.Model == "" {
		cfg.Producer.Model = d.Producer.Model
	}
	if cfg.Producer.APIKeyEnv == "" {
		cfg.Producer.APIKeyEnv = d.Producer.APIKeyEnv
	}
	if !md.IsDefined("producer", "rate_limit") {
		cfg.Producer.RateLimit = d.Producer.RateLimit
	}
	if cfg.Producer.Burst == 0 {
		cfg.Producer.Burst = d.Producer.Burst
	}
	if cfg.Producer.OllamaURL == "" {
		cfg.Producer.OllamaURL = d.Producer.OllamaURL
	}
	if cfg.Producer.OllamaModel == "" {
		cfg.Producer.OllamaModel = d.Producer.OllamaModel
	}

	if cfg.Chat.DefaultTitle == "" {
		cfg.Chat.DefaultTitle = d.Chat.DefaultTitle
	}
	if !md.IsDefined("chat", "imported_prefix") {
		cfg.Chat.ImportedPrefix = d.Chat.ImportedPrefix
	}
	if cfg.Chat.AttachmentsPrompt == "" {
		cfg.Chat.AttachmentsPrompt = d.Chat.AttachmentsPrompt
	}
	if cfg.Chat.ShareBaseURL == "" {
		cfg.Chat.ShareBaseURL = d.Chat.ShareBaseURL
	}

	if cfg.Voice.Language == "" {
		cfg.Voice.Language = d.Voice.Language
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
}

// SaveTOML writes the configuration to path with 0600 permissions.
// SECURITY: the file may hold an API key.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# elevatorapp configuration file\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv("ELEVATORAPP_DATA_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if backend := os.Getenv("ELEVATORAPP_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if backend := os.Getenv("ELEVATORAPP_BACKEND"); backend != "" {
		c.Producer.Backend = backend
	}
	if m := os.Getenv("ELEVATORAPP_MODEL"); m != "" {
		c.Producer.Model = m
	}
	if stream := os.Getenv("ELEVATORAPP_STREAM"); stream != "" {
		if v, err := strconv.ParseBool(stream); err == nil {
			c.Producer.Stream = v
		}
	}
	if level := os.Getenv("ELEVATORAPP_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if c.Producer.APIKeyEnv != "" {
		if key := os.Getenv(c.Producer.APIKeyEnv); key != "" {
			c.Producer.APIKey = key
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrMissingAPIKey is returned by RequireAPIKey.
var ErrMissingAPIKey = errors.New("API key is not set")

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch c.Storage.Backend {
	case "file", "sqlite", "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend),
		})
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		errs = append(errs, ValidationError{Field: "storage.key", Message: "must not be empty"})
	}

	switch c.Producer.Backend {
	case model.BackendGemini, model.BackendOllama:
	default:
		errs = append(errs, ValidationError{
			Field:   "producer.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: gemini, ollama", c.Producer.Backend),
		})
	}
	if c.Producer.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "producer.rate_limit", Message: "must not be negative"})
	}
	if c.Producer.Burst < 1 {
		errs = append(errs, ValidationError{Field: "producer.burst", Message: "must be at least 1"})
	}
	if c.Producer.Backend == model.BackendOllama {
		if u, err := url.Parse(c.Producer.OllamaURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "producer.ollama_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Producer.OllamaURL),
			})
		}
	}

	if strings.TrimSpace(c.Chat.DefaultTitle) == "" {
		errs = append(errs, ValidationError{Field: "chat.default_title", Message: "must not be empty"})
	}
	if !strings.Contains(c.Chat.AttachmentsPrompt, "%d") {
		errs = append(errs, ValidationError{Field: "chat.attachments_prompt", Message: "must contain %d"})
	}
	if u, err := url.Parse(c.Chat.ShareBaseURL); err != nil || u.Scheme == "" {
		errs = append(errs, ValidationError{
			Field:   "chat.share_base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.Chat.ShareBaseURL),
		})
	}

	if _, err := language.Parse(c.Voice.Language); err != nil {
		errs = append(errs, ValidationError{
			Field:   "voice.language",
			Message: fmt.Sprintf("invalid language tag '%s'", c.Voice.Language),
		})
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: text, json", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RequireAPIKey reports ErrMissingAPIKey when the Gemini backend is
// selected without a key.
func (c *Config) RequireAPIKey() error {
	if c.Producer.Backend == model.BackendGemini && c.Producer.APIKey == "" {
		return fmt.Errorf("%w: set %s", ErrMissingAPIKey, c.Producer.APIKeyEnv)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a copy of the configuration. All fields are values.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Voice.Command = append([]string(nil), c.Voice.Command...)
	return &clone
}

// String returns a JSON representation with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Producer.APIKey != "" {
		safe.Producer.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// AttachmentsText renders the user message of an attachments-only question.
func (c *Config) AttachmentsText(n int) string {
	return fmt.Sprintf(c.Chat.AttachmentsPrompt, n)
}
