package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pokewatch/pokewatch/internal/config"
)

var setupForce bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a default configuration file",
	Long: `Writes a default config.toml to the data directory (~/.pokewatch).

Edit it to point at a different database, store spawn ids as integers,
list stage-2 pokemon ids of interest, or floor reports at a start date.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupForce, "force", "f", false, "Overwrite an existing config file")
}

func runSetup(cmd *cobra.Command, args []string) error {
	dataDir := getDataDir()
	path := config.Path(dataDir)

	if _, err := os.Stat(path); err == nil && !setupForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default(dataDir)
	if err := cfg.Save(dataDir); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
