package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an issue in full",
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
		if flagJSON {
			return printJSON(issue)
		}
		printIssueDetail(issue)

		deps, _ := store.GetDependencies(issue.FullID())
		if len(deps) > 0 {
			fmt.Printf("\n%s\n", titleColor.Sprint("Depends on:"))
			for _, dep := range deps {
				fmt.Printf("  %s (%s)\n", dep.DependsOnID, dep.Type)
			}
		}
		dependents, _ := store.GetDependents(issue.FullID())
		if len(dependents) > 0 {
			fmt.Printf("\n%s\n", titleColor.Sprint("Depended on by:"))
			for _, dep := range dependents {
				fmt.Printf("  %s (%s)\n", dep.IssueID, dep.Type)
			}
		}
		links, _ := store.GetLinks(issue.FullID())
		incoming, _ := store.GetIncomingLinks(issue.FullID())
		if len(links)+len(incoming) > 0 {
			fmt.Printf("\n%s\n", titleColor.Sprint("Links:"))
			for _, link := range links {
				fmt.Printf("  -> %s (%s)\n", link.ToID, link.LinkType)
			}
			for _, link := range incoming {
				fmt.Printf("  <- %s (%s)\n", link.FromID, link.LinkType)
			}
		}
		children, _ := store.GetChildren(issue.FullID())
		if len(children) > 0 {
			fmt.Printf("\n%s\n", titleColor.Sprint("Children:"))
			for _, child := range children {
				fmt.Printf("  %s\n", child)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
