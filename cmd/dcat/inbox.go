package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/configfile"
	"github.com/dogcat-dev/dogcat/internal/inbox"
	"github.com/dogcat-dev/dogcat/internal/types"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Capture and triage lightweight proposals",
}

func openInbox() (*inbox.Store, *configfile.Config, error) {
	dir, err := trackerDir()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := configfile.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	store, err := inbox.New(dir, &inbox.Options{Namespace: cfg.IssuePrefix})
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

var inboxAddCmd = &cobra.Command{
	Use:     "add <title>",
	Aliases: []string{"propose"},
	Short:   "Capture a proposal",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openInbox()
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		proposal, err := store.Create(args[0], description, getActor(cfg), cfg.IssuePrefix)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(proposal)
		}
		fmt.Printf("Captured %s: %s\n", idColor.Sprint(proposal.FullID()), proposal.Title)
		return nil
	},
}

var inboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open proposals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openInbox()
		if err != nil {
			return err
		}
		status := types.ProposalOpen
		if all, _ := cmd.Flags().GetBool("all"); all {
			status = ""
		}
		proposals := store.List(status)
		if flagJSON {
			return printJSON(proposals)
		}
		if len(proposals) == 0 {
			fmt.Println("Inbox is empty.")
			return nil
		}
		for _, p := range proposals {
			fmt.Printf("%s  [%s] %s\n",
				idColor.Sprintf("%-14s", p.FullID()), p.Status, p.Title)
		}
		return nil
	},
}

var inboxPromoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Turn a proposal into a real issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proposals, _, err := openInbox()
		if err != nil {
			return err
		}
		proposal, err := proposals.Get(args[0])
		if err != nil {
			return err
		}

		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		actor := getActor(cfg)
		priority, _ := cmd.Flags().GetInt("priority")
		issue := &types.Issue{
			Namespace:   newIssueNamespace(store, cfg),
			Title:       proposal.Title,
			Description: proposal.Description,
			Priority:    priority,
		}
		if err := store.Create(issue, actor); err != nil {
			return err
		}
		if _, err := proposals.Close(proposal.FullID(), "promoted", issue.FullID(), actor); err != nil {
			return err
		}

		fmt.Printf("Promoted %s to %s\n",
			idColor.Sprint(proposal.FullID()), idColor.Sprint(issue.FullID()))
		return nil
	},
}

var inboxRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Close a proposal without creating an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openInbox()
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			reason = "rejected"
		}
		proposal, err := store.Close(args[0], reason, "", getActor(cfg))
		if err != nil {
			return err
		}
		fmt.Printf("Rejected %s\n", idColor.Sprint(proposal.FullID()))
		return nil
	},
}

var inboxDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Soft-delete a proposal",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openInbox()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0], getActor(cfg)); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var inboxPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Permanently remove tombstoned proposals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openInbox()
		if err != nil {
			return err
		}
		n, err := store.Prune()
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d proposal(s)\n", n)
		return nil
	},
}

func init() {
	inboxAddCmd.Flags().StringP("description", "d", "", "Proposal description")
	inboxPromoteCmd.Flags().IntP("priority", "p", types.DefaultPriority, "Priority for the created issue")
	inboxRejectCmd.Flags().StringP("reason", "r", "", "Rejection reason")
	inboxCmd.AddCommand(inboxAddCmd, inboxListCmd, inboxPromoteCmd, inboxRejectCmd, inboxDeleteCmd, inboxPruneCmd)
	rootCmd.AddCommand(inboxCmd)
}
