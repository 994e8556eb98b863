package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/deps"
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List issues ready to work on (no live blockers)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		ready, err := deps.ReadyWork(store)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(ready)
		}
		if len(ready) == 0 {
			fmt.Println("Nothing is ready to work on.")
			return nil
		}
		for _, issue := range ready {
			printIssueLine(issue)
		}
		return nil
	},
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List issues held back by live blockers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		blocked, err := deps.BlockedIssues(store)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(blocked)
		}
		if len(blocked) == 0 {
			fmt.Println("Nothing is blocked.")
			return nil
		}
		for _, b := range blocked {
			printIssueLine(b.Issue)
			fmt.Printf("    blocked by %s\n", strings.Join(b.Blockers, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(blockedCmd)
}
