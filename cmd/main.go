package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cpath string

func main() {
	root := &cobra.Command{
		Use:   "reljin",
		Short: "Relation query engine for MongoDB",
	}
	root.PersistentFlags().StringVar(&cpath, "config", "config.yml", "path to the config file")

	root.AddCommand(validateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
