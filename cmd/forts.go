package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var teamNames = map[int]string{
	0: "none",
	1: "mystic",
	2: "valor",
	3: "instinct",
}

var fortsCmd = &cobra.Command{
	Use:   "forts",
	Short: "Show the latest observed state of every fort",
	RunE:  runForts,
}

func runForts(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	states, err := s.LatestFortStates()
	if err != nil {
		return fmt.Errorf("failed to list forts: %w", err)
	}

	if len(states) == 0 {
		fmt.Println("No forts observed yet.")
		return nil
	}

	fmt.Printf("Found %d fort(s):\n\n", len(states))
	for _, st := range states {
		team := teamNames[st.Team]
		if team == "" {
			team = fmt.Sprintf("team %d", st.Team)
		}
		fmt.Printf("fort #%d (%s)\n", st.FortID, team)
		fmt.Printf("  Prestige: %d, guard pokemon: %d\n", st.Prestige, st.GuardPokemonID)
		fmt.Printf("  Seen: %s\n", time.Unix(st.LastModified, 0).Format("2006-01-02 15:04:05"))
		fmt.Printf("  Location: %.6f, %.6f\n\n", st.Lat, st.Lon)
	}
	return nil
}
