package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"inventory-export/internal/config"
	"inventory-export/internal/scraper"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// exitCode is set by the root command from the run's outcome.
var exitCode int

type options struct {
	configFile string
	flags      *config.Flags
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "inventory-export",
		Short: "Exports the product inventory table of a web application to JSON.",
		Long: `inventory-export logs into the application (or reuses a saved session),
opens the product table and writes every product to a JSON file. Re-runs
merge with the existing file and never duplicate a sku.

Credentials come from SCRAPER_EMAIL and SCRAPER_PASSWORD, a .env file or
the config file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configFile, cmd.Flags().Changed("config"), opts.flags)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			_, statErr := os.Stat(cfg.SessionFile)
			if err := cfg.Validate(statErr == nil); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			start := time.Now()
			report := scraper.Run(cmd.Context(), cfg)
			logReport(report, time.Since(start))
			exitCode = report.Status.ExitCode()
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.configFile, "config", "scraper.json5", "json5 config file; <name>.local.json5 is merged over it")
	opts.flags = config.RegisterFlags(cmd.Flags(), config.Default())
	return cmd, opts
}

// loadConfig layers defaults, the config file, the environment and flags,
// in increasing priority.
func loadConfig(path string, required bool, flags *config.Flags) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := config.Default()

	f, err := config.ReadFile(path)
	switch {
	case err == nil:
		if err := config.ApplyFile(cfg, f); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	flags.Apply(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func logReport(r scraper.Report, elapsed time.Duration) {
	attrs := []any{
		"status", r.Status.String(),
		"total", r.Total,
		"added", r.Stats.Added,
		"skipped", r.Stats.Skipped,
		"pages", r.Stats.Pages,
		"converged", r.Stats.Converged,
		"seconds", elapsed.Seconds(),
	}
	switch r.Status {
	case scraper.Completed:
		slog.Info("scrape finished", attrs...)
	case scraper.Partial:
		slog.Warn("scrape stopped early, partial results saved", append(attrs, "err", r.Err)...)
	default:
		slog.Error("scrape failed", append(attrs, "err", r.Err)...)
	}
}
