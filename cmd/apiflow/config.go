package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ShayCichocki/apiflow/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify apiflow configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/apiflow/config.yaml
Project-specific overrides can be placed in .apiflow.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s (%s)\n", config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", orDefault(cfg.Anthropic.Model))
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", orDefault(cfg.Anthropic.AWSRegion))
	fmt.Printf("retry.decision_attempts: %d\n", cfg.Retry.DecisionAttempts)
	fmt.Printf("retry.decision_wait: %s\n", cfg.Retry.DecisionWait)
	fmt.Printf("retry.execute_attempts: %d\n", cfg.Retry.ExecuteAttempts)
	fmt.Printf("retry.execute_wait: %s\n", cfg.Retry.ExecuteWait)
	fmt.Printf("execution.timeout: %s\n", cfg.Execution.Timeout)
	fmt.Printf("specs.source: %s\n", cfg.Specs.Source)
	fmt.Printf("specs.prompt_limit: %d\n", cfg.Specs.PromptLimit)
	fmt.Printf("history.enabled: %t\n", cfg.History.Enabled)
	fmt.Printf("history.db_path: %s\n", orDefault(cfg.History.DBPath))
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.Itoa(cfg.Anthropic.MaxTokens), nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "retry.decision_attempts":
		return strconv.Itoa(cfg.Retry.DecisionAttempts), nil
	case "retry.decision_wait":
		return cfg.Retry.DecisionWait.String(), nil
	case "retry.execute_attempts":
		return strconv.Itoa(cfg.Retry.ExecuteAttempts), nil
	case "retry.execute_wait":
		return cfg.Retry.ExecuteWait.String(), nil
	case "execution.timeout":
		return cfg.Execution.Timeout.String(), nil
	case "specs.source":
		return cfg.Specs.Source, nil
	case "specs.prompt_limit":
		return strconv.Itoa(cfg.Specs.PromptLimit), nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "history.db_path":
		return cfg.History.DBPath, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_aws_bedrock: %w", err)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "retry.decision_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for decision_attempts: %w", err)
		}
		cfg.Retry.DecisionAttempts = n
	case "retry.decision_wait":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for decision_wait: %w", err)
		}
		cfg.Retry.DecisionWait = d
	case "retry.execute_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for execute_attempts: %w", err)
		}
		cfg.Retry.ExecuteAttempts = n
	case "retry.execute_wait":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for execute_wait: %w", err)
		}
		cfg.Retry.ExecuteWait = d
	case "execution.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for execution.timeout: %w", err)
		}
		cfg.Execution.Timeout = d
	case "specs.source":
		cfg.Specs.Source = value
	case "specs.prompt_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for prompt_limit: %w", err)
		}
		cfg.Specs.PromptLimit = n
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for history.enabled: %w", err)
		}
		cfg.History.Enabled = b
	case "history.db_path":
		cfg.History.DBPath = value
	case "tui.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for refresh_rate: %w", err)
		}
		cfg.TUI.RefreshRate = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
