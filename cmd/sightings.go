package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pokewatch/pokewatch/internal/store"
)

var sightingsPokemon []int

var sightingsCmd = &cobra.Command{
	Use:   "sightings",
	Short: "List current (unexpired) sightings",
	Long: `List sightings whose expiration is still in the future. With
--pokemon, list every stored sighting for the given kind ids instead.`,
	RunE: runSightings,
}

func init() {
	sightingsCmd.Flags().IntSliceVarP(&sightingsPokemon, "pokemon", "p", nil, "Show all sightings for these pokemon ids")
}

func runSightings(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var sightings []store.Sighting
	if len(sightingsPokemon) > 0 {
		sightings, err = s.SightingsForPokemon(sightingsPokemon)
	} else {
		sightings, err = s.CurrentSightings(time.Now().Unix())
	}
	if err != nil {
		return fmt.Errorf("failed to list sightings: %w", err)
	}

	if len(sightings) == 0 {
		fmt.Println("No sightings found.")
		return nil
	}

	fmt.Printf("Found %d sighting(s):\n\n", len(sightings))
	for _, sg := range sightings {
		fmt.Printf("#%d pokemon %d at spawn %s\n", sg.ID, sg.PokemonID, sg.SpawnID)
		fmt.Printf("  Expires: %s\n", time.Unix(sg.ExpireTimestamp, 0).Format("2006-01-02 15:04:05"))
		fmt.Printf("  Location: %.6f, %.6f\n\n", sg.Lat, sg.Lon)
	}
	return nil
}
