package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/bsdetector/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bsdetector configuration",
	Long: `Manage bsdetector configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (BSDETECTOR_*, OPENAI_API_KEY, SEARXNG_URL, DATABASE_URL, ...)
3. Config file (~/.bsdetector/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		return writeConfig(cmd.OutOrStdout(), redact(*cfg))
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.bsdetector/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".bsdetector", "config.yaml")
		if err := initConfigFile(configPath); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the effective configuration:\n")
		fmt.Printf("  bsdetector config show\n")
		return nil
	},
}

// initConfigFile writes the default configuration to path, refusing to
// overwrite an existing file.
func initConfigFile(path string) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'bsdetector config show' to view it, or delete it first to recreate", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	header := `# bsdetector configuration
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (BSDETECTOR_*, e.g. BSDETECTOR_LLM_MODEL)
#   3. This config file
#   4. Built-in defaults
#
# API keys are best kept in the environment or a .env file:
#   OPENAI_API_KEY, OPENROUTER_API_KEY, ANTHROPIC_API_KEY
# SEARXNG_URL and DATABASE_URL override search.base_url and store.dsn.

`
	if _, err := io.WriteString(f, header); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return writeConfig(f, model.DefaultConfig())
}

func writeConfig(w io.Writer, cfg model.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return enc.Close()
}

// redact masks secrets before display
func redact(cfg model.Config) model.Config {
	if cfg.LLM.APIKey != "" {
		cfg.LLM.APIKey = "********"
	}
	if cfg.Store.DSN != "" {
		cfg.Store.DSN = "********"
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
