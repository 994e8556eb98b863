package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/deps"
	"github.com/dogcat-dev/dogcat/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the tracker and reprint ready work on changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		printReady := func() {
			if err := store.Reload(); err != nil {
				warnf("reload failed: %v", err)
				return
			}
			ready, err := deps.ReadyWork(store)
			if err != nil {
				warnf("computing ready work: %v", err)
				return
			}
			fmt.Printf("\n--- %d issue(s) ready ---\n", len(ready))
			for _, issue := range ready {
				printIssueLine(issue)
			}
		}
		printReady()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := watch.New(store.Dir(), printReady)
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
