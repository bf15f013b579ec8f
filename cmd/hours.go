package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var hoursCmd = &cobra.Command{
	Use:   "hours <pokemon-id>",
	Short: "Show per-hour-of-day sighting counts for one pokemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runHours,
}

func runHours(cmd *cobra.Command, args []string) error {
	pokemonID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid pokemon id %q", args[0])
	}

	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	hours, err := s.SpawnsPerHour(pokemonID)
	if err != nil {
		return fmt.Errorf("failed to get per-hour counts: %w", err)
	}

	total, err := s.TotalSpawnsCount(pokemonID)
	if err != nil {
		return fmt.Errorf("failed to count sightings: %w", err)
	}

	if total == 0 {
		fmt.Printf("No sightings stored for pokemon %d.\n", pokemonID)
		return nil
	}

	fmt.Printf("pokemon %d: %d sighting(s)\n\n", pokemonID, total)
	for _, hc := range hours {
		fmt.Printf("%02d:00 - %02d:00  %d\n", hc.Hour, hc.Hour+1, hc.Count)
	}
	return nil
}
