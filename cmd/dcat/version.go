package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/types"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dcat version %s (schema %s)\n", Version, types.SchemaVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
