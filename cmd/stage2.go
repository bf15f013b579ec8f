package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stage2Cmd = &cobra.Command{
	Use:   "stage2",
	Short: "Show observation counts for the configured stage-2 pokemon",
	Long:  `Counts sightings of the stage-2 evolution ids listed in config.toml, omitting kinds never observed.`,
	RunE:  runStage2,
}

func runStage2(cmd *cobra.Command, args []string) error {
	s, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if len(cfg.Stage2) == 0 {
		fmt.Println("No stage-2 pokemon configured (set stage2 in config.toml).")
		return nil
	}

	counts, err := s.Stage2Pokemon(cfg.Stage2)
	if err != nil {
		return fmt.Errorf("failed to count stage-2 pokemon: %w", err)
	}

	if len(counts) == 0 {
		fmt.Println("No stage-2 sightings stored.")
		return nil
	}

	for _, pc := range counts {
		fmt.Printf("pokemon %3d: %d sighting(s)\n", pc.PokemonID, pc.Count)
	}
	return nil
}
