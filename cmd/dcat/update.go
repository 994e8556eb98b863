package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields on an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}

		updates := make(map[string]interface{})
		for _, name := range []string{
			"title", "description", "status", "type", "owner", "parent",
			"external-ref", "design", "plan", "acceptance", "notes",
			"duplicate-of",
		} {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetString(name)
				updates[flagToField(name)] = v
			}
		}
		if cmd.Flags().Changed("priority") {
			v, _ := cmd.Flags().GetInt("priority")
			updates["priority"] = v
		}
		if cmd.Flags().Changed("label") {
			v, _ := cmd.Flags().GetStringArray("label")
			updates["labels"] = v
		}
		if len(updates) == 0 {
			return fmt.Errorf("no fields to update; see 'dcat update --help'")
		}

		issue, err := store.Update(args[0], updates, getActor(cfg))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(issue)
		}
		fmt.Printf("Updated %s\n", idColor.Sprint(issue.FullID()))
		return nil
	},
}

// flagToField maps kebab-case flag names onto record field names.
func flagToField(flag string) string {
	switch flag {
	case "type":
		return "issue_type"
	case "external-ref":
		return "external_ref"
	case "duplicate-of":
		return "duplicate_of"
	}
	return flag
}

func init() {
	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().StringP("status", "s", "", "New status")
	updateCmd.Flags().IntP("priority", "p", 0, "New priority 0-4")
	updateCmd.Flags().StringP("type", "t", "", "New issue type")
	updateCmd.Flags().String("owner", "", "New owner")
	updateCmd.Flags().String("parent", "", "New parent issue id")
	updateCmd.Flags().StringArray("label", nil, "Replace labels (repeatable)")
	updateCmd.Flags().String("external-ref", "", "New external reference")
	updateCmd.Flags().String("design", "", "Design section text")
	updateCmd.Flags().String("plan", "", "Plan section text")
	updateCmd.Flags().String("acceptance", "", "Acceptance criteria text")
	updateCmd.Flags().String("notes", "", "Notes section text")
	updateCmd.Flags().String("duplicate-of", "", "Mark as duplicate of another issue")
	rootCmd.AddCommand(updateCmd)
}
