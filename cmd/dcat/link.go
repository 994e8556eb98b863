package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/types"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage non-blocking links between issues",
}

var linkAddCmd = &cobra.Command{
	Use:   "add <from-id> <to-id>",
	Short: "Link two issues",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		linkType, _ := cmd.Flags().GetString("type")
		link, err := store.AddLink(args[0], args[1], linkType, getActor(cfg))
		if err != nil {
			return err
		}
		fmt.Printf("Linked %s -> %s (%s)\n",
			idColor.Sprint(link.FromID), idColor.Sprint(link.ToID), link.LinkType)
		return nil
	},
}

var linkRemoveCmd = &cobra.Command{
	Use:     "remove <from-id> <to-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a link",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		linkType, _ := cmd.Flags().GetString("type")
		if err := store.RemoveLink(args[0], args[1], linkType); err != nil {
			return err
		}
		fmt.Printf("Removed link %s -> %s\n", args[0], args[1])
		return nil
	},
}

var linkListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "List an issue's links in both directions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		issue, err := store.Get(args[0])
		if err != nil {
			return err
		}
		out, _ := store.GetLinks(issue.FullID())
		in, _ := store.GetIncomingLinks(issue.FullID())
		if flagJSON {
			return printJSON(map[string]interface{}{
				"outgoing": out,
				"incoming": in,
			})
		}
		if len(out) == 0 && len(in) == 0 {
			fmt.Printf("%s has no links\n", issue.FullID())
			return nil
		}
		for _, link := range out {
			fmt.Printf("%s -> %s (%s)\n", link.FromID, link.ToID, link.LinkType)
		}
		for _, link := range in {
			fmt.Printf("%s <- %s (%s)\n", link.ToID, link.FromID, link.LinkType)
		}
		return nil
	},
}

func init() {
	linkAddCmd.Flags().StringP("type", "t", types.DefaultLinkType, "Link type")
	linkRemoveCmd.Flags().StringP("type", "t", types.DefaultLinkType, "Link type")
	linkCmd.AddCommand(linkAddCmd, linkRemoveCmd, linkListCmd)
	rootCmd.AddCommand(linkCmd)
}
