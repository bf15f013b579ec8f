package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	topCount int
	topAsc   bool
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the most (or least) sighted pokemon",
	RunE:  runTop,
}

func init() {
	topCmd.Flags().IntVarP(&topCount, "count", "n", 30, "Number of pokemon to show")
	topCmd.Flags().BoolVar(&topAsc, "asc", false, "Sort ascending (rarest first)")
}

func runTop(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	counts, err := s.TopPokemon(topCount, !topAsc)
	if err != nil {
		return fmt.Errorf("failed to rank pokemon: %w", err)
	}

	if len(counts) == 0 {
		fmt.Println("No sightings stored.")
		return nil
	}

	for i, pc := range counts {
		fmt.Printf("%3d. pokemon %3d: %d sighting(s)\n", i+1, pc.PokemonID, pc.Count)
	}
	return nil
}
