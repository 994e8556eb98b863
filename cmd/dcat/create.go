package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/configfile"
	"github.com/dogcat-dev/dogcat/internal/storage"
	"github.com/dogcat-dev/dogcat/internal/types"
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}

		priority, _ := cmd.Flags().GetInt("priority")
		if !cmd.Flags().Changed("priority") && cfg.DefaultPriority != nil {
			priority = *cfg.DefaultPriority
		}
		issueType, _ := cmd.Flags().GetString("type")
		description, _ := cmd.Flags().GetString("description")
		owner, _ := cmd.Flags().GetString("owner")
		parent, _ := cmd.Flags().GetString("parent")
		labels, _ := cmd.Flags().GetStringArray("label")
		externalRef, _ := cmd.Flags().GetString("external-ref")

		issue := &types.Issue{
			Namespace:   newIssueNamespace(store, cfg),
			Title:       args[0],
			Description: description,
			Priority:    priority,
			IssueType:   types.IssueType(issueType),
			Owner:       owner,
			Parent:      parent,
			Labels:      labels,
			ExternalRef: externalRef,
		}
		if err := store.Create(issue, getActor(cfg)); err != nil {
			return err
		}

		if flagJSON {
			return printJSON(issue)
		}
		fmt.Printf("Created %s: %s\n", idColor.Sprint(issue.FullID()), issue.Title)
		return nil
	},
}

// newIssueNamespace resolves the namespace for a new issue from config,
// existing data, and the repo directory, in that order.
func newIssueNamespace(store *storage.Store, cfg *configfile.Config) string {
	var namespaces []string
	for _, issue := range store.List(nil) {
		namespaces = append(namespaces, issue.Namespace)
	}
	return configfile.Namespace(cfg, namespaces, store.Dir())
}

func init() {
	createCmd.Flags().StringP("description", "d", "", "Issue description")
	createCmd.Flags().IntP("priority", "p", types.DefaultPriority, "Priority 0-4 (0 = most urgent)")
	createCmd.Flags().StringP("type", "t", string(types.TypeTask), "Issue type (task, bug, feature, ...)")
	createCmd.Flags().String("owner", "", "Issue owner")
	createCmd.Flags().String("parent", "", "Parent issue id (organizational)")
	createCmd.Flags().StringArray("label", nil, "Label (repeatable)")
	createCmd.Flags().String("external-ref", "", "External reference (e.g. gh-123)")
	rootCmd.AddCommand(createCmd)
}
