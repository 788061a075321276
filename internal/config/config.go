// Package config handles configuration loading and management for apiflow.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for apiflow.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Specs     SpecsConfig     `mapstructure:"specs"`
	History   HistoryConfig   `mapstructure:"history"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// RetryConfig holds retry policies for decision and execution stages.
type RetryConfig struct {
	DecisionAttempts int           `mapstructure:"decision_attempts"`
	DecisionWait     time.Duration `mapstructure:"decision_wait"`
	ExecuteAttempts  int           `mapstructure:"execute_attempts"`
	ExecuteWait      time.Duration `mapstructure:"execute_wait"`
}

// ExecutionConfig holds API call execution settings.
type ExecutionConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SpecsConfig holds specification loading settings.
type SpecsConfig struct {
	// Source is the default spec directory used when --specs is not given.
	Source string `mapstructure:"source"`
	// PromptLimit caps the characters of spec YAML sent per resolution prompt.
	PromptLimit int `mapstructure:"prompt_limit"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// DBPath overrides the history database location when non-empty.
	DBPath string `mapstructure:"db_path"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.apiflow.yaml in current directory or parent)
// 3. User config (~/.config/apiflow/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_aws_bedrock", "APIFLOW_USE_BEDROCK")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("retry.decision_attempts", cfg.Retry.DecisionAttempts)
	v.Set("retry.decision_wait", cfg.Retry.DecisionWait.String())
	v.Set("retry.execute_attempts", cfg.Retry.ExecuteAttempts)
	v.Set("retry.execute_wait", cfg.Retry.ExecuteWait.String())
	v.Set("execution.timeout", cfg.Execution.Timeout.String())
	v.Set("specs.source", cfg.Specs.Source)
	v.Set("specs.prompt_limit", cfg.Specs.PromptLimit)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.db_path", cfg.History.DBPath)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.use_aws_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("retry.decision_attempts", 3)
	v.SetDefault("retry.decision_wait", "1s")
	v.SetDefault("retry.execute_attempts", 3)
	v.SetDefault("retry.execute_wait", "1s")

	v.SetDefault("execution.timeout", "30s")

	v.SetDefault("specs.source", "specs")
	v.SetDefault("specs.prompt_limit", 8000)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", "")

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for apiflow.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "apiflow")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "apiflow")
	}
	return filepath.Join(home, ".config", "apiflow")
}

// findProjectConfig searches for .apiflow.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".apiflow.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			MaxTokens: 4096,
		},
		Retry: RetryConfig{
			DecisionAttempts: 3,
			DecisionWait:     time.Second,
			ExecuteAttempts:  3,
			ExecuteWait:      time.Second,
		},
		Execution: ExecutionConfig{
			Timeout: 30 * time.Second,
		},
		Specs: SpecsConfig{
			Source:      "specs",
			PromptLimit: 8000,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
