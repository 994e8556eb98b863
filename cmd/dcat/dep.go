package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/deps"
	"github.com/dogcat-dev/dogcat/internal/types"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependencies between issues",
}

var depAddCmd = &cobra.Command{
	Use:   "add <id> <depends-on-id>",
	Short: "Record that one issue depends on another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		depType, _ := cmd.Flags().GetString("type")
		dep, err := store.AddDependency(args[0], args[1], types.DependencyType(depType), getActor(cfg))
		if err != nil {
			return err
		}
		fmt.Printf("%s now depends on %s (%s)\n",
			idColor.Sprint(dep.IssueID), idColor.Sprint(dep.DependsOnID), dep.Type)
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:     "remove <id> <depends-on-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a dependency",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		depType, _ := cmd.Flags().GetString("type")
		if err := store.RemoveDependency(args[0], args[1], types.DependencyType(depType)); err != nil {
			return err
		}
		fmt.Printf("Removed dependency %s -> %s\n", args[0], args[1])
		return nil
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "List an issue's dependencies and dependents",
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
		out, _ := store.GetDependencies(issue.FullID())
		in, _ := store.GetDependents(issue.FullID())
		if flagJSON {
			return printJSON(map[string]interface{}{
				"depends_on":  out,
				"depended_by": in,
			})
		}
		if len(out) == 0 && len(in) == 0 {
			fmt.Printf("%s has no dependencies\n", issue.FullID())
			return nil
		}
		for _, dep := range out {
			fmt.Printf("%s -> %s (%s)\n", dep.IssueID, dep.DependsOnID, dep.Type)
		}
		for _, dep := range in {
			fmt.Printf("%s <- %s (%s)\n", dep.DependsOnID, dep.IssueID, dep.Type)
		}
		return nil
	},
}

var depChainCmd = &cobra.Command{
	Use:   "chain <id>",
	Short: "Show the transitive dependency chain of an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		chain, err := deps.DependencyChain(store, args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(chain)
		}
		if len(chain) == 0 {
			fmt.Println("No transitive dependencies.")
			return nil
		}
		for _, id := range chain {
			fmt.Println(id)
		}
		return nil
	},
}

var depCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Detect dependency cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		cycles := deps.DetectCycles(store)
		if flagJSON {
			return printJSON(cycles)
		}
		if len(cycles) == 0 {
			fmt.Println("No cycles detected.")
			return nil
		}
		for _, cycle := range cycles {
			fmt.Printf("%s -> %s\n", strings.Join(cycle, " -> "), cycle[0])
		}
		return fmt.Errorf("%d dependency cycle(s) detected", len(cycles))
	},
}

func init() {
	depAddCmd.Flags().StringP("type", "t", string(types.DepBlocks), "Dependency type (blocks, parent-child, related)")
	depRemoveCmd.Flags().StringP("type", "t", string(types.DepBlocks), "Dependency type")
	depCmd.AddCommand(depAddCmd, depRemoveCmd, depListCmd, depChainCmd, depCyclesCmd)
	rootCmd.AddCommand(depCmd)
}
