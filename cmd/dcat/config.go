package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dogcat-dev/dogcat/internal/configfile"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change tracker settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := trackerDir()
		if err != nil {
			return err
		}
		cfg, err := configfile.Load(dir)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			if flagJSON {
				return printJSON(cfg)
			}
			fmt.Printf("issue_prefix = %s\n", cfg.IssuePrefix)
			fmt.Printf("actor = %s\n", cfg.Actor)
			if cfg.DefaultPriority != nil {
				fmt.Printf("default_priority = %d\n", *cfg.DefaultPriority)
			}
			return nil
		}
		switch args[0] {
		case "issue_prefix":
			fmt.Println(cfg.IssuePrefix)
		case "actor":
			fmt.Println(cfg.Actor)
		case "default_priority":
			if cfg.DefaultPriority != nil {
				fmt.Println(*cfg.DefaultPriority)
			}
		default:
			return fmt.Errorf("unknown config key %q", args[0])
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := trackerDir()
		if err != nil {
			return err
		}
		cfg, err := configfile.Load(dir)
		if err != nil {
			return err
		}
		key, value := args[0], args[1]
		switch key {
		case "issue_prefix":
			if configfile.SanitizeNamespace(value) != value {
				return fmt.Errorf("invalid issue_prefix %q: use lowercase letters and digits, starting with a letter", value)
			}
			cfg.IssuePrefix = value
		case "actor":
			cfg.Actor = value
		case "default_priority":
			p, err := strconv.Atoi(value)
			if err != nil || p < 0 || p > 4 {
				return fmt.Errorf("default_priority must be 0-4, got %q", value)
			}
			cfg.DefaultPriority = &p
		default:
			return fmt.Errorf("unknown config key %q", key)
		}
		if err := configfile.Save(dir, cfg); err != nil {
			return err
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
