package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jgoulah/energydash/internal/config"
	"github.com/jgoulah/energydash/internal/database"
	"github.com/jgoulah/energydash/internal/dataset"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string

	cfg *config.Config
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "energydash",
	Short: "Serve an interactive household energy dashboard",
	Long: `EnergyDash serves a live dashboard over daily energy consumption and
appliance power tables: a simulated running total with its cost, the daily
consumption line, its 7-day rolling average and an appliance breakdown.

With no subcommand it serves the dashboard on :8050.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./energy.db)")
	addServeFlags(rootCmd)
}

// setup loads the config and configures the logger before any command runs
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return configureLogger(log, cfg.GetLogLevel(), cfg.Log.Format)
}

func configureLogger(l *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q (available: text, json)", format)
	}
	return nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "energy.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// loadDataset reads the two tables from the configured source
func loadDataset(source string) (*dataset.Dataset, error) {
	switch source {
	case "csv":
		return dataset.Load(cfg.GetEnergyFile(), cfg.GetApplianceFile())
	case "sqlite":
		db, err := openDB()
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		energy, err := db.ListEnergy()
		if err != nil {
			return nil, fmt.Errorf("listing energy records: %w", err)
		}
		appliances, err := db.ListAppliances()
		if err != nil {
			return nil, fmt.Errorf("listing appliance records: %w", err)
		}
		if len(energy) == 0 {
			return nil, fmt.Errorf("database %s has no energy records, run 'energydash import' first", getDBPath())
		}
		return dataset.New(energy, appliances), nil
	default:
		return nil, fmt.Errorf("unknown data source: %s (available: csv, sqlite)", source)
	}
}
