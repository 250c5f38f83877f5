package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/logging"
)

var (
	captureDir string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "sketch-match",
	Short: "Match forensic sketches against a gallery of reference photos",
	Long: `Sketch Match uploads a sketch to a face recognition backend and reports the
best-matching reference photos with similarity and confidence scores.

Two backends are available: "direct" stores the sketch in S3 and searches an
Amazon Rekognition collection, "proxy" posts it to a local sketch API
(see "sketch-match serve"). Use "sketch-match index" to register the gallery
photos in the collection first.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save API responses for testing")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the YAML file named by --config or CONFIG_FILE when present, otherwise
// the environment. backend, when non-empty, overrides the configured backend before
// the result is validated.
func loadConfig(backend string) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	var cfg *config.Config
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Load()
	}

	if backend != "" {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration and builds the command logger.
func setup(backend string) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(backend)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
