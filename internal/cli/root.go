package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/reclaim-app/reclaim/internal/app"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
)

// Version is set at build time via -ldflags
var Version = "0.3.0"

var (
	cfgFile string
	verbose bool
	timeout time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Reclaim - campus lost-and-found matching and claim fraud scoring",
	Long: `Reclaim pairs lost-item reports with found-item reports and scores
ownership claims for fraud risk.

It suggests matches and flags suspicious claims; an administrator makes
the final call whenever a decision is not clear-cut.`,
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
		fmt.Printf("reclaim v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.reclaim/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall command timeout")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file and RECLAIM_* environment variables
func initConfig() {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.reclaim")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// RECLAIM_STORE_DSN overrides store.dsn, and so on
	viper.SetEnvPrefix("RECLAIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}
	for _, key := range []string{
		"store.dsn", "events.url",
		"inference.text_embedding.api_key", "inference.text_embedding.base_url",
		"inference.http_proxy", "inference.https_proxy",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so env overrides apply on Unmarshal
func registerDefaults(cfg model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults("", tree)
	return nil
}

func setDefaults(prefix string, node map[string]any) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			setDefaults(key, child)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig merges defaults, the config file and the environment
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	te := &cfg.Inference.TextEmbedding
	if strings.EqualFold(te.Provider, "openai") && te.APIKey == "" {
		te.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, cfg.Validate()
}

// withApp builds the application, runs fn under the command timeout and tears everything down
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
	}()
	return fn(ctx, a)
}

func newLogger(cfg model.Config) (*logging.Logger, error) {
	log, err := logging.New(cfg.Log.Mode, verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
