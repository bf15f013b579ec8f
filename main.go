package main

import (
	"os"

	"github.com/pokewatch/pokewatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
