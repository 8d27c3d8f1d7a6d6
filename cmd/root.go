package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxintake/internal/config"
	"github.com/teemow/inboxintake/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg and logger are set by the root command before any subcommand runs.
	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command for the inboxintake application
var rootCmd = &cobra.Command{
	Use:   "inboxintake",
	Short: "Classifies documents and imports Gmail attachments",
	Long: `inboxintake summarizes and routes business documents. It classifies
uploaded images and PDFs with Gemini and imports Gmail attachments into
object storage together with their classification.

It can run as:
  - An HTTP API server (serve)
  - One-shot CLI commands (classify, import)`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxintake version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file. Can also use CONFIG_PATH env var.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error. Can also use LOG_LEVEL env var.")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json. Can also use LOG_FORMAT env var.")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig loads the configuration and installs the default logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}

	l, err := logging.NewLogger(cmd.ErrOrStderr(), c.Logging.Level, c.Logging.Format)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	slog.SetDefault(l)

	cfg, logger = c, l
	return nil
}
