package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show the event history, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		issueID := ""
		if len(args) == 1 {
			issueID, err = store.ResolveID(args[0])
			if err != nil {
				return err
			}
		}
		limit, _ := cmd.Flags().GetInt("limit")

		events, err := store.Events().Read(issueID, limit)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%s  %s %s",
				dimColor.Sprint(ev.Timestamp),
				idColor.Sprint(ev.IssueID),
				ev.EventType)
			if ev.By != "" {
				fmt.Printf(" by %s", ev.By)
			}
			fmt.Println()
			for field, change := range ev.Changes {
				fmt.Printf("    %s: %v -> %v\n", field, change.Old, change.New)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of events to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}
