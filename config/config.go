package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/logging"
)

// ErrCorrupt is returned alongside a usable default Config when the config
// file could not be decoded. The broken file has been moved to <path>.bak.
var ErrCorrupt = errors.New("corrupt config file")

// ErrInvalid is returned alongside the loaded Config when a value is out of
// range. The Config is usable for editing but not for starting a session.
var ErrInvalid = errors.New("invalid config")

// Config is the persisted user configuration. It implements core.Settings
// and core.ModelOverrider.
type Config struct {
	API             APIConfig   `toml:"api" json:"api"`
	Model           ModelConfig `toml:"model" json:"model"`
	DefaultProvider string      `toml:"default_provider" json:"default_provider"`
	Persona         string      `toml:"persona,omitempty" json:"persona,omitempty"`
	Log             LogConfig   `toml:"log" json:"log"`
	UI              UIConfig    `toml:"ui" json:"ui"`

	path string
	env  envOverrides
}

// envOverrides holds values taken from the environment. They take
// precedence over the file values but are never written back by Save.
type envOverrides struct {
	keys     map[core.ProviderID]string
	model    string
	provider string
	logLevel string
}

// APIConfig holds the vendor credentials.
type APIConfig struct {
	OpenAIKey    string `toml:"openai_api_key" json:"openai_api_key"`
	AnthropicKey string `toml:"anthropic_api_key" json:"anthropic_api_key"`
	GeminiKey    string `toml:"gemini_api_key" json:"gemini_api_key"`
}

// ModelConfig holds the generation parameters shared by all providers. Per
// maps a provider to its own model name, replacing Name for that provider.
type ModelConfig struct {
	Name        string            `toml:"name" json:"name"`
	Temperature float64           `toml:"temperature" json:"temperature"`
	MaxTokens   int               `toml:"max_tokens" json:"max_tokens"`
	Per         map[string]string `toml:"per_provider,omitempty" json:"per_provider,omitempty"`
}

// LogConfig controls the diagnostic log file.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file,omitempty" json:"file,omitempty"`
}

// UIConfig controls the terminal presentation.
type UIConfig struct {
	EchoDelayMS int    `toml:"echo_delay_ms" json:"echo_delay_ms"`
	NoColor     bool   `toml:"no_color" json:"no_color"`
	HistoryFile string `toml:"history_file,omitempty" json:"history_file,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:        "gpt-4",
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		DefaultProvider: string(core.ProviderOpenAI),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			EchoDelayMS: 5,
		},
	}
}

// Dir returns the jarvis configuration directory (~/.jarvis).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".jarvis"), nil
}

// DefaultPath returns the config file to use: config.toml, or the legacy
// config.json when only that one exists.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	tomlPath := filepath.Join(dir, "config.toml")
	jsonPath := filepath.Join(dir, "config.json")
	if _, err := os.Stat(tomlPath); err != nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

// Load reads the default config file. See LoadFromPath.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the config at path, falling back to defaults when the
// file does not exist. A file that cannot be decoded is renamed to
// <path>.bak and defaults are returned together with an error wrapping
// ErrCorrupt. Environment overrides are applied last. Out of range values
// yield the Config together with an error wrapping ErrInvalid.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	var loadErr error

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := decode(cfg, path, data); err != nil {
			loadErr = backup(path, err)
			cfg = Default()
			cfg.path = path
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Join(loadErr, fmt.Errorf("%w: %w", ErrInvalid, err))
	}

	return cfg, loadErr
}

func decode(cfg *Config, path string, data []byte) error {
	if isJSON(path) {
		return json.Unmarshal(data, cfg)
	}
	_, err := toml.Decode(string(data), cfg)
	return err
}

func backup(path string, cause error) error {
	bak := path + ".bak"
	if err := os.Rename(path, bak); err != nil {
		return fmt.Errorf("%w: %s: %w (backup failed: %w)", ErrCorrupt, path, cause, err)
	}
	return fmt.Errorf("%w: %s moved to %s: %w", ErrCorrupt, path, bak, cause)
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// ApplyEnvOverrides reads the environment overlay. The file values stay
// untouched; accessors such as Credential and Generation prefer the overlay.
//   - OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY (or GOOGLE_API_KEY)
//   - JARVIS_MODEL: overrides model.name
//   - JARVIS_PROVIDER: overrides default_provider
//   - JARVIS_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	env := envOverrides{keys: map[core.ProviderID]string{}}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		env.keys[core.ProviderOpenAI] = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		env.keys[core.ProviderClaude] = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		env.keys[core.ProviderGemini] = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		env.keys[core.ProviderGemini] = v
	}
	env.model = os.Getenv("JARVIS_MODEL")
	env.provider = os.Getenv("JARVIS_PROVIDER")
	env.logLevel = os.Getenv("JARVIS_LOG_LEVEL")
	c.env = env
}

// SetDefaults fills zero values a partial file may have left behind.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Model.Name == "" {
		c.Model.Name = d.Model.Name
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = d.Model.MaxTokens
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = d.DefaultProvider
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Path returns the file the config was loaded from and is saved to.
func (c *Config) Path() string { return c.path }

// SetPath changes the file Save writes to.
func (c *Config) SetPath(path string) { c.path = path }

// Credential implements core.Settings.
func (c *Config) Credential(id core.ProviderID) (string, bool) {
	if key := strings.TrimSpace(c.env.keys[id]); key != "" {
		return key, true
	}
	var key string
	switch id {
	case core.ProviderOpenAI:
		key = c.API.OpenAIKey
	case core.ProviderClaude:
		key = c.API.AnthropicKey
	case core.ProviderGemini:
		key = c.API.GeminiKey
	}
	return key, key != ""
}

// SetCredential stores the key for a provider.
func (c *Config) SetCredential(id core.ProviderID, key string) {
	key = strings.TrimSpace(key)
	switch id {
	case core.ProviderOpenAI:
		c.API.OpenAIKey = key
	case core.ProviderClaude:
		c.API.AnthropicKey = key
	case core.ProviderGemini:
		c.API.GeminiKey = key
	}
}

// Available implements core.Settings.
func (c *Config) Available() []core.ProviderID {
	var out []core.ProviderID
	for _, id := range core.Providers {
		if _, ok := c.Credential(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// Generation implements core.Settings.
func (c *Config) Generation() core.GenerationSettings {
	name := c.Model.Name
	if c.env.model != "" {
		name = c.env.model
	}
	return core.GenerationSettings{
		Model:       name,
		Temperature: c.Model.Temperature,
		MaxTokens:   c.Model.MaxTokens,
	}
}

// ModelFor implements core.ModelOverrider.
func (c *Config) ModelFor(id core.ProviderID) string {
	return c.Model.Per[string(id)]
}

// Provider returns the configured default provider. Invalid values yield "".
func (c *Config) Provider() core.ProviderID {
	_, v := c.providerSetting()
	id, err := core.ParseProviderID(v)
	if err != nil {
		return ""
	}
	return id
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() logging.LogLevel {
	_, v := c.logLevelSetting()
	l, err := logging.ParseLevel(v)
	if err != nil {
		return logging.LogLevelInfo
	}
	return l
}

// providerSetting returns the effective default provider and where it
// comes from.
func (c *Config) providerSetting() (field, value string) {
	if c.env.provider != "" {
		return "JARVIS_PROVIDER", c.env.provider
	}
	return "default_provider", c.DefaultProvider
}

func (c *Config) logLevelSetting() (field, value string) {
	if c.env.logLevel != "" {
		return "JARVIS_LOG_LEVEL", c.env.logLevel
	}
	return "log.level", c.Log.Level
}

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

// Validate checks value ranges and identifiers, including the environment
// overlay.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if field, v := c.providerSetting(); !validProvider(v) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid provider '%s', must be one of: openai, claude, gemini", v),
		})
	}

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "model.temperature",
			Message: fmt.Sprintf("%.2f out of range [0,2]", c.Model.Temperature),
		})
	}

	if c.Model.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "model.max_tokens",
			Message: fmt.Sprintf("must be positive, got %d", c.Model.MaxTokens),
		})
	}

	for k := range c.Model.Per {
		if id, err := core.ParseProviderID(k); err != nil || string(id) != k {
			errs = append(errs, ValidationError{
				Field:   "model.per_provider." + k,
				Message: "unknown provider",
			})
		}
	}

	if field, v := c.logLevelSetting(); v != "" {
		if _, err := logging.ParseLevel(v); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
		}
	}

	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be text or json", c.Log.Format),
		})
	}

	if c.UI.EchoDelayMS < 0 {
		errs = append(errs, ValidationError{Field: "ui.echo_delay_ms", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validProvider(s string) bool {
	_, err := core.ParseProviderID(s)
	return err == nil
}

// Save writes the file values atomically to Path with 0600 permissions,
// encoding JSON for .json paths and TOML otherwise. Environment overrides
// are not persisted.
func (c *Config) Save() error {
	if c.path == "" {
		path, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = path
	}

	var data []byte
	if isJSON(c.path) {
		b, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		data = b
	} else {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		data = []byte(sb.String())
	}

	return atomicWriteFile(c.path, data, 0600)
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync config: %w", err)
	}
	if err := f.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}

	success = true
	return nil
}
