package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cvperfect-sessions/internal/config"
	"github.com/jonathan/cvperfect-sessions/internal/server"
)

var (
	servePort       int
	serveConfigPath string
	serveSessionDir string
	serveVerbose    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for saving, fetching, and recovering CV sessions.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to JSON config file")
	serveCmd.Flags().StringVar(&serveSessionDir, "session-dir", "", "Directory for the file store (used when no database is configured)")
	serveCmd.Flags().BoolVar(&serveVerbose, "verbose", false, "Log request completion timings")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:            cfg.Port,
		DatabaseURL:     cfg.DatabaseURL,
		SessionDir:      cfg.SessionDir,
		SessionTTL:      cfg.SessionTTL(),
		StoreTimeout:    cfg.StoreTimeout(),
		CleanupMaxAge:   cfg.CleanupMaxAge(),
		CleanupInterval: cfg.CleanupInterval(),
		Verbose:         cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// loadServeConfig merges, in order of precedence: CLI flags, the JSON config
// file, environment variables.
func loadServeConfig() (*config.Config, error) {
	cfg := &config.Config{
		Port:       servePort,
		SessionDir: serveSessionDir,
		Verbose:    serveVerbose,
	}

	if serveConfigPath != "" {
		fileCfg, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return nil, err
		}
		merged := cfg.MergeWithDefaults(*fileCfg)
		// Bools are never merged, so the file setting is applied here.
		merged.Verbose = serveVerbose || fileCfg.Verbose
		cfg = &merged
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
