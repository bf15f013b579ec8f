package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pokewatch/pokewatch/internal/config"
	"github.com/pokewatch/pokewatch/internal/store"
	"github.com/pokewatch/pokewatch/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "pokewatch",
	Short: "Deduplicating store and reports for pokemon map sightings",
	Long: `Pokewatch persists pokemon sightings, long spawns and fort states
from a raw map-scan event feed, deduplicating high-frequency duplicate
events in memory before they reach the database, and answers reporting
queries (rankings, punch cards, per-hour histograms) over the stored data.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.SetVersion(Version)
		telemetry.Init()
		// Track command usage (skip root command itself)
		if cmd.Name() != "pokewatch" {
			telemetry.TrackCommand(cmd.Name())
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Close()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sightingsCmd)
	rootCmd.AddCommand(fortsCmd)
	rootCmd.AddCommand(punchcardCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(rankingCmd)
	rootCmd.AddCommand(missingCmd)
	rootCmd.AddCommand(stage2Cmd)
	rootCmd.AddCommand(hoursCmd)
	rootCmd.AddCommand(coordsCmd)
}

func getDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting home directory: %v\n", err)
		os.Exit(1)
	}
	return home + "/.pokewatch"
}

// openStore loads the configuration and opens the configured backend.
func openStore() (*store.SQL, *config.Config, error) {
	dataDir := getDataDir()
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, nil, err
	}

	since, err := cfg.SinceUnix()
	if err != nil {
		return nil, nil, err
	}
	opts := store.Options{SpawnIDInt: cfg.SpawnIDInt, ReportSince: since}

	var s *store.SQL
	if cfg.DBDSN == "" {
		s, err = store.NewSQLiteStore(dataDir, opts)
	} else {
		s, err = store.Open(cfg.DBDriver, cfg.DBDSN, opts)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, cfg, nil
}
