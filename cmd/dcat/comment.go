package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment <id> <text>",
	Short: "Add a comment to an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		comment, err := store.AddComment(args[0], getActor(cfg), args[1])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(comment)
		}
		fmt.Printf("Commented on %s\n", idColor.Sprint(comment.IssueID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commentCmd)
}
