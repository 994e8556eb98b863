package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/configfile"
	"github.com/dogcat-dev/dogcat/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .dogcats tracker directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir := filepath.Join(cwd, configfile.DirName)
		if _, err := os.Stat(dir); err == nil {
			return fmt.Errorf("%s already exists", dir)
		}

		if _, err := storage.New(dir, &storage.Options{CreateDir: true}); err != nil {
			return err
		}

		prefix, _ := cmd.Flags().GetString("prefix")
		if prefix != "" {
			sanitized := configfile.SanitizeNamespace(prefix)
			if sanitized != prefix {
				return fmt.Errorf("invalid prefix %q: use lowercase letters and digits, starting with a letter", prefix)
			}
			if err := configfile.Save(dir, &configfile.Config{IssuePrefix: prefix}); err != nil {
				return err
			}
		}

		fmt.Printf("Initialized empty dcat tracker in %s\n", dir)
		if prefix != "" {
			fmt.Printf("Issue prefix: %s\n", prefix)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().String("prefix", "", "Namespace prefix for new issues (e.g. myproj)")
	rootCmd.AddCommand(initCmd)
}
