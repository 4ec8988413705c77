package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/picklr-io/ocrstack/internal/config"
	"github.com/picklr-io/ocrstack/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config

	dotenvPath string
	logLevel   string
	logFormat  string
	region     string
	profile    string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "ocrstack",
	Short: "Deploy and run an OCR extraction service",
	Long: `ocrstack provisions the AWS topology behind an OCR extraction API and runs
the extraction service itself.

  • provision  converge bucket, role, function, API routes, stage and permission
  • serve      run the extraction HTTP API locally
  • extract    run OCR on a single image from the command line
  • smoke      send a test request to a deployed endpoint`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dotenvPath, "dotenv", ".env", "Environment file loaded before reading configuration")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "Log format (console, json)")
	pf.StringVar(&region, "region", "", "AWS region")
	pf.StringVar(&profile, "profile", "", "AWS shared config profile")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(smokeCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	if region != "" {
		c.Region = region
	}
	if profile != "" {
		c.Profile = profile
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if logFormat != "" {
		c.LogFormat = logFormat
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		noColor = true
	}

	logging.Init(c.LogLevel, c.LogFormat)
	cfg = c
	return nil
}
