package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"opsauth/internal/config"
	"opsauth/internal/infrastructure/session"
)

//	@title			opsauth API
//	@version		1.0
//	@description	Identity verification and session lifecycle for the operations dashboard
//	@BasePath		/

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "opsauth",
		Short:         "Identity verification and session service for the operations dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (environment variables take precedence)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		setupLogging(cfg)
		return cfg, nil
	}

	rootCmd.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		checkEmailCmd(load),
		claimsCmd(load),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// configLoader loads and validates the configuration of a command
type configLoader func() (*config.Config, error)

// setupLogging configures the global zerolog logger
func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	format := cfg.Log.Format
	if format == "" {
		format = "console"
		if session.IsProduction(cfg.Environment) {
			format = "json"
		}
	}
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
