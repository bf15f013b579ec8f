package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var missingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List pokemon kinds with no observations at all",
	RunE:  runMissing,
}

func runMissing(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	missing, err := s.MissingPokemon()
	if err != nil {
		return fmt.Errorf("failed to list missing pokemon: %w", err)
	}

	if len(missing) == 0 {
		fmt.Println("Every pokemon kind has been observed.")
		return nil
	}

	fmt.Printf("%d kind(s) never observed:\n", len(missing))
	for _, id := range missing {
		fmt.Printf("  pokemon %d\n", id)
	}
	return nil
}
