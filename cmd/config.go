package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gigaproxy/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Inspect the GigaChat proxy configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long:  `Display the effective configuration after applying file and environment overrides.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Effective Configuration:")
	fmt.Printf("  %-16s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-16s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-16s: %s\n", "Master Token", maskString(cfg.MasterCredential))
	fmt.Printf("  %-16s: %s\n", "Base URL", cfg.BaseURL)
	fmt.Printf("  %-16s: %s\n", "OAuth URL", cfg.OAuthURL)
	fmt.Printf("  %-16s: %s\n", "Scope", cfg.Scope)

	if cfg.CABundle != "" {
		fmt.Printf("  %-16s: %s\n", "CA Bundle", cfg.CABundle)
	}

	if cfg.Insecure {
		color.Yellow("  %-16s: true", "Insecure TLS")
	}

	fmt.Printf("  %-16s: %v\n", "Allowed Origins", cfg.AllowedOrigins)
	fmt.Printf("  %-16s: %d per %s\n", "Rate Limit", cfg.RateLimit, cfg.RateWindow)
	fmt.Printf("  %-16s: %v\n", "Force SSL", cfg.ForceSSL)
	fmt.Printf("  %-16s: %s\n", "Stall Timeout", cfg.StallTimeout)
	fmt.Printf("  %-16s: %s / %s\n", "Logging", cfg.LogLevel, cfg.LogFormat)

	fmt.Println("\nAPI Keys:")

	if cfg.UsingDevKey {
		color.Yellow("  - %s (development fallback, set API_KEYS)", config.DevAPIKey)
	} else {
		for _, key := range cfg.APIKeys {
			fmt.Printf("  - %s\n", maskString(key))
		}
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := cfgMgr.Load()
	if err != nil {
		color.Red("Configuration validation failed:")
		fmt.Printf("  - %v\n", err)
		return fmt.Errorf("configuration validation failed")
	}

	var problems []string

	if cfg.Port <= 0 || cfg.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d is out of range", cfg.Port))
	}

	if cfg.UsingDevKey {
		problems = append(problems, "no API keys configured, the development fallback key is active")
	}

	if cfg.Insecure {
		problems = append(problems, "TLS verification for the vendor API is disabled")
	}

	if len(problems) > 0 {
		color.Yellow("Configuration loaded with warnings:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return nil
	}

	color.Green("Configuration is valid!")
	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
