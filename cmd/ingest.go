package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pokewatch/pokewatch/internal/ingest"
	"github.com/pokewatch/pokewatch/internal/telemetry"
)

var ingestSweepInterval time.Duration

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest newline-delimited JSON events from stdin",
	Long: `Reads one JSON event per line from stdin and records it. Each event
carries a "type" field: "pokemon" for sightings, "longspawn" for exact
remaining-duration refinements, "fort" for fort state observations.
Duplicate events are filtered by the in-memory caches before they reach
the database; cache eviction runs on a timer for the life of the command.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().DurationVar(&ingestSweepInterval, "sweep", time.Minute, "Cache eviction sweep interval")
}

func runIngest(cmd *cobra.Command, args []string) error {
	s, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	anomalies, err := os.OpenFile(cfg.AnomalyLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open anomaly log: %w", err)
	}
	defer func() { _ = anomalies.Close() }()

	runID := uuid.New().String()[:8]
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("run", runID)

	rec := ingest.New(s, anomalies, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Eviction sweep goroutine
	go func() {
		ticker := time.NewTicker(ingestSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sightings, longspawns := rec.EvictExpired(time.Now())
				if sightings+longspawns > 0 {
					logger.Info("cache sweep",
						"sightings_evicted", sightings,
						"longspawns_evicted", longspawns)
				}
			}
		}
	}()

	logger.Info("ingesting events from stdin", "dialect", s.DialectName())

	loop := ingest.NewLoop(rec, os.Stdin, logger)
	sum, err := loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		telemetry.TrackError("ingest")
		return err
	}

	telemetry.TrackIngest(sum.Total(), sum.Malformed)

	fmt.Printf("Ingested %d event(s): %d sightings, %d longspawns, %d forts\n",
		sum.Total(), sum.Sightings, sum.LongSpawns, sum.Forts)
	if sum.Malformed > 0 {
		fmt.Printf("Skipped %d malformed event(s)\n", sum.Malformed)
	}
	return nil
}
