package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/merge"
)

var mergeDriverCmd = &cobra.Command{
	Use:    "merge-driver <ancestor> <ours> <theirs>",
	Short:  "Git merge driver for dcat JSONL files",
	Hidden: true,
	Long: `Three-way merge of dcat JSONL files, invoked by git with %O %A %B.
The result is written over the 'ours' file. Run 'dcat merge-driver install'
once per clone to register the driver.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return merge.Files(args[0], args[1], args[2], args[1])
	},
}

var mergeDriverInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the merge driver with git",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := exec.Command("git", "config", "merge.dcat.name", "dcat JSONL merge driver").Run(); err != nil {
			return fmt.Errorf("configuring git: %w", err)
		}
		if err := exec.Command("git", "config", "merge.dcat.driver", "dcat merge-driver %O %A %B").Run(); err != nil {
			return fmt.Errorf("configuring git: %w", err)
		}

		out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
		if err != nil {
			return fmt.Errorf("not inside a git repository: %w", err)
		}
		root := strings.TrimSpace(string(out))

		attrPath := filepath.Join(root, ".gitattributes")
		const attrLine = ".dogcats/*.jsonl merge=dcat"
		existing, err := os.ReadFile(attrPath)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if !strings.Contains(string(existing), attrLine) {
			f, err := os.OpenFile(attrPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer f.Close()
			if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
				fmt.Fprintln(f)
			}
			fmt.Fprintln(f, attrLine)
		}

		fmt.Println("Merge driver installed. JSONL files under .dogcats/ now merge semantically.")
		return nil
	},
}

func init() {
	mergeDriverCmd.AddCommand(mergeDriverInstallCmd)
	rootCmd.AddCommand(mergeDriverCmd)
}
