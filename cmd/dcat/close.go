package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:   "close <id>...",
	Short: "Close one or more issues",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		actor := getActor(cfg)

		for _, id := range args {
			issue, err := store.Close(id, reason, actor)
			if err != nil {
				return err
			}
			fmt.Printf("Closed %s: %s\n", idColor.Sprint(issue.FullID()), issue.Title)
		}
		return nil
	},
}

var reopenCmd = &cobra.Command{
	Use:   "reopen <id>",
	Short: "Reopen a closed issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		issue, err := store.Reopen(args[0], getActor(cfg))
		if err != nil {
			return err
		}
		fmt.Printf("Reopened %s: %s\n", idColor.Sprint(issue.FullID()), issue.Title)
		return nil
	},
}

func init() {
	closeCmd.Flags().StringP("reason", "r", "", "Close reason")
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(reopenCmd)
}
