package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/observability"
)

// Version is overridden at build time via -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bsdetector",
	Short: "bsdetector - investigate the claims a web page makes",
	Long: `bsdetector reads a page, lets a tool-using model research its claims
with web search and scraping, and produces a structured report plus inline
annotations marking false, suspicious, verified and fluff statements.

Reports and annotations are stored per URL so repeat lookups are served
without running the investigation again.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bsdetector %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.bsdetector/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("llm-provider", "", "LLM provider (openai, openrouter, anthropic, ollama)")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model name")
	rootCmd.PersistentFlags().String("store", "", "investigation store (memory, sqlite, postgres)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and ENV variables
func initConfig() {
	// A missing .env is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".bsdetector"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := configure(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering config defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configure registers defaults and environment lookups on v
func configure(v *viper.Viper) error {
	if err := registerDefaults(v, model.DefaultConfig()); err != nil {
		return err
	}

	// BSDETECTOR_LLM_MODEL overrides llm.model and so on
	v.SetEnvPrefix("BSDETECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Optional keys have no default to resolve against
	for _, key := range []string{"llm.api_key", "llm.base_url", "llm.http_proxy", "llm.https_proxy", "llm.no_proxy", "agent.system_prompt", "cache.disk_dir"} {
		_ = v.BindEnv(key)
	}

	// Conventional variable names used by the hosted services
	_ = v.BindEnv("search.base_url", "BSDETECTOR_SEARCH_BASE_URL", "SEARXNG_URL")
	_ = v.BindEnv("store.dsn", "BSDETECTOR_STORE_DSN", "DATABASE_URL")

	return nil
}

// registerDefaults walks cfg as YAML and registers every leaf as a viper
// default, so AutomaticEnv can resolve keys that no file sets.
func registerDefaults(v *viper.Viper, cfg model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for key, val := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaults(v, full, sub)
			continue
		}
		v.SetDefault(full, val)
	}
}

// loadConfig resolves the effective configuration from all sources
func loadConfig() (*model.Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = apiKeyFromEnv(cfg.LLM.Provider)
	}
	// A database URL with the default driver selects Postgres
	if cfg.Store.DSN != "" && cfg.Store.Driver == model.DefaultConfig().Store.Driver {
		cfg.Store.Driver = "postgres"
	}
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}

	return &cfg, nil
}

// apiKeyFromEnv returns the conventional API key variable for provider
func apiKeyFromEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

func newLogger(cfg *model.Config) *zerolog.Logger {
	logger := observability.NewLogger(cfg.Log.Format, cfg.Log.Level)
	return &logger
}
