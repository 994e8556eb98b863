package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename-namespace <old> <new>",
	Short: "Rename a whole namespace",
	Long: `Rename every issue in a namespace, rewriting dependency and link
endpoints, parent pointers, and historical events in one pass. Other
checkouts pick up the rename on their next merge.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		n, err := store.RenameNamespace(args[0], args[1], getActor(cfg))
		if err != nil {
			return err
		}
		fmt.Printf("Renamed %d issue(s) from %s- to %s-\n", n, args[0], args[1])
		if cfg.IssuePrefix == args[0] {
			warnf("config.toml issue_prefix is still %q; update it to %q", args[0], args[1])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
}
