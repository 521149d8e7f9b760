package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqasim81/store-bootstrap/internal/config"
)

const version = "0.1.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// rootCmd is the base command for the bootstrap CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "bootstrap",
	Version: version,
	Short:   "Bring a relational store to a verified ready state",
	Long: `bootstrap takes a persistent store in any state — empty, partially
migrated, or fully initialized — and drives it to a verified ready
state: schema, migrations, baseline seed data, and a final health
validation. Safe to run repeatedly and from several processes at once.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		setupLogging(cmd)

		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.PersistentFlags().String("config", "bootstrap.yml", "path to configuration file")
	rootCmd.PersistentFlags().String("database-url", "", "store connection string (postgres:// or sqlite://)")
	rootCmd.PersistentFlags().String("migrations-dir", "", "path to migration files")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging installs the process-wide slog handler. Pipeline progress
// goes to stderr so command output on stdout stays parseable.
func setupLogging(cmd *cobra.Command) {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	config.MergeEnv(cfg)
	mergeFlags(cmd, cfg)

	AppConfig = cfg

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("database-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("database-url")
	}

	if cmd.Flags().Changed("migrations-dir") {
		cfg.MigrationsDir, _ = cmd.Flags().GetString("migrations-dir")
	}
}
