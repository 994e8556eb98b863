package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		filters := make(map[string]interface{})
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			filters["status"] = v
		}
		if cmd.Flags().Changed("priority") {
			v, _ := cmd.Flags().GetInt("priority")
			filters["priority"] = v
		}
		if v, _ := cmd.Flags().GetString("type"); v != "" {
			filters["type"] = v
		}
		if v, _ := cmd.Flags().GetStringArray("label"); len(v) > 0 {
			filters["label"] = v
		}
		if v, _ := cmd.Flags().GetString("owner"); v != "" {
			filters["owner"] = v
		}

		issues := store.List(filters)
		all, _ := cmd.Flags().GetBool("all")
		if !all {
			if _, filtered := filters["status"]; !filtered {
				kept := issues[:0]
				for _, issue := range issues {
					if !issue.IsClosed() && !issue.IsTombstone() {
						kept = append(kept, issue)
					}
				}
				issues = kept
			}
		}

		if flagJSON {
			return printJSON(issues)
		}
		if len(issues) == 0 {
			fmt.Println("No issues found.")
			return nil
		}
		for _, issue := range issues {
			printIssueLine(issue)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	listCmd.Flags().IntP("priority", "p", types.DefaultPriority, "Filter by priority")
	listCmd.Flags().StringP("type", "t", "", "Filter by issue type")
	listCmd.Flags().StringArray("label", nil, "Filter by label (repeatable, any match)")
	listCmd.Flags().String("owner", "", "Filter by owner")
	listCmd.Flags().BoolP("all", "a", false, "Include closed and tombstoned issues")
	rootCmd.AddCommand(listCmd)
}
