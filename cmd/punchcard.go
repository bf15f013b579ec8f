package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var punchcardCmd = &cobra.Command{
	Use:   "punchcard",
	Short: "Show sighting counts per 5-minute bucket",
	Long: `Prints a fixed-width histogram of sightings per 300-second bucket,
starting at the first populated bucket. Gaps are zero, never missing.`,
	RunE: runPunchcard,
}

func runPunchcard(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	buckets, err := s.PunchCard()
	if err != nil {
		return fmt.Errorf("failed to build punch card: %w", err)
	}

	if len(buckets) == 0 {
		fmt.Println("No sightings stored.")
		return nil
	}

	var peak int64
	for _, count := range buckets {
		if count > peak {
			peak = count
		}
	}

	for i, count := range buckets {
		bar := ""
		if peak > 0 {
			bar = strings.Repeat("#", int(count*40/peak))
		}
		fmt.Printf("%4d %6d %s\n", i, count, bar)
	}
	return nil
}
