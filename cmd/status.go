package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session stats for the stored sightings",
	Long:  `Show the stored sightings window: first and last expiration, total count, and the per-hour rate.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	stats, err := s.SessionStats()
	if err != nil {
		return fmt.Errorf("failed to get session stats: %w", err)
	}

	fmt.Println("Pokewatch Status")
	fmt.Println("================")
	fmt.Printf("Data directory: %s\n", getDataDir())
	if cfg.ReportSince != "" {
		fmt.Printf("Reporting since: %s\n", cfg.ReportSince)
	}
	fmt.Println()

	if stats.Count == 0 {
		fmt.Println("No sightings stored.")
		return nil
	}

	fmt.Printf("First expiration: %s\n", stats.Start.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last expiration:  %s\n", stats.End.Format("2006-01-02 15:04:05"))
	fmt.Printf("Sightings: %d\n", stats.Count)
	fmt.Printf("Window: %d hour(s)\n", stats.LengthHours)
	fmt.Printf("Rate: %.1f/hour\n", stats.PerHour)

	return nil
}
