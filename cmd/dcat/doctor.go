package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/deps"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the tracker for dangling edges and cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		problems := 0

		dangling := store.FindDanglingDependencies()
		for _, dep := range dangling {
			problems++
			warnf("dangling dependency %s -> %s (%s)", dep.IssueID, dep.DependsOnID, dep.Type)
		}

		cycles := deps.DetectCycles(store)
		for _, cycle := range cycles {
			problems++
			warnf("dependency cycle: %s -> %s", strings.Join(cycle, " -> "), cycle[0])
		}

		if problems == 0 {
			fmt.Println("No problems found.")
			return nil
		}
		return fmt.Errorf("%d problem(s) found", problems)
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the log to its minimal current-state form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Compact(); err != nil {
			return err
		}
		fmt.Println("Compacted.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(compactCmd)
}
