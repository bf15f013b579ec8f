package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rankingDesc bool

var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Rank all 151 pokemon kinds by observation count",
	Long: `Ranks every known pokemon kind. Kinds never observed come first in
increasing id order, then observed kinds in count order.`,
	RunE: runRanking,
}

func init() {
	rankingCmd.Flags().BoolVar(&rankingDesc, "desc", false, "Order observed kinds by descending count")
}

func runRanking(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ranking, err := s.PokemonRanking(rankingDesc)
	if err != nil {
		return fmt.Errorf("failed to rank pokemon: %w", err)
	}

	for i, id := range ranking {
		fmt.Printf("%3d. pokemon %d\n", i+1, id)
	}
	return nil
}
