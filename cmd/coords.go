package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var coordsPokemon int

var coordsCmd = &cobra.Command{
	Use:   "coords",
	Short: "Dump raw sighting coordinates for mapping",
	Long:  `Prints one "lat,lon" pair per line for external plotting tools.`,
	RunE:  runCoords,
}

func init() {
	coordsCmd.Flags().IntVarP(&coordsPokemon, "pokemon", "p", 0, "Only coordinates for this pokemon id")
}

func runCoords(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	points, err := s.SpawnCoords(coordsPokemon)
	if err != nil {
		return fmt.Errorf("failed to get coordinates: %w", err)
	}

	for _, p := range points {
		fmt.Printf("%.6f,%.6f\n", p.Lat, p.Lon)
	}
	return nil
}
