package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Soft-delete an issue (tombstone)",
	Long: `Soft-delete an issue. The record becomes a tombstone so the deletion
propagates through git merges; dependencies and links touching it are
removed. Use 'dcat prune' to drop old tombstones permanently.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		if err := store.Delete(args[0], reason, getActor(cfg)); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Permanently remove old tombstones and their events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		cutoff := time.Time{}
		if days > 0 {
			cutoff = time.Now().UTC().AddDate(0, 0, -days)
		}
		n, err := store.PruneTombstones(cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d tombstoned issue(s)\n", n)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringP("reason", "r", "", "Delete reason")
	pruneCmd.Flags().Int("days", 0, "Only prune tombstones older than this many days (0 = all)")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(pruneCmd)
}
