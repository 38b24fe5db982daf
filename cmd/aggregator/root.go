package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/RG7on/data-aggregator/pkg/config"
	"github.com/RG7on/data-aggregator/pkg/store"
)

var (
	cfgDir   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "aggregator",
	Short: "KPI data aggregator",
	Long: `aggregator scrapes KPI metrics from configured sources, stores them
in a local SQLite database with full deduplication, and exports a CSV
snapshot for dashboard tools to consume.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgDir, "config", "c", ".",
		"directory holding settings.yaml and credentials.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadConfig reads the settings file, creating defaults on first run.
func loadConfig() (config.Config, error) {
	return config.Load(cfgDir)
}

// newLogger builds the process logger. Output goes to stderr and, when a
// log directory is available, to a daily log file as well.
func newLogger(cfg config.Config) *slog.Logger {
	level := cfg.Global.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if logDir, err := cfg.ResolveLogDir(); err == nil {
		name := fmt.Sprintf("aggregator-%s.log", time.Now().Format("2006-01-02"))
		if f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	return slog.New(tint.NewHandler(out, &tint.Options{
		Level:      lvl,
		TimeFormat: time.DateTime,
	}))
}

// openStore opens the database inside the configured output directory.
func openStore(cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	outputDir, err := cfg.ResolveOutputDir()
	if err != nil {
		return nil, err
	}
	return store.Open(store.Config{
		Path:   filepath.Join(outputDir, store.DBFilename),
		Logger: logger,
	})
}
