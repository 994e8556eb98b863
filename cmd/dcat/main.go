// Command dcat is a git-friendly issue tracker. Issues live in an
// append-only JSONL file under .dogcats/, merge cleanly across branches
// through a custom merge driver, and carry first-class dependencies.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dogcat-dev/dogcat/internal/configfile"
	"github.com/dogcat-dev/dogcat/internal/debug"
	"github.com/dogcat-dev/dogcat/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	flagDir     string
	flagActor   string
	flagJSON    bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dcat",
	Short: "dcat - git-friendly issue tracker",
	Long: `Issues stored as JSONL next to your code, merged like code.
A lightweight tracker with first-class dependencies and an append-only store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			debug.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Tracker directory (default: auto-discover .dogcats)")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "", "Actor name for the audit trail (default: $DCAT_ACTOR, git user.name, $USER)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose/debug output")

	viper.SetEnvPrefix("DCAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

// trackerDir resolves the .dogcats directory: --dir flag, DCAT_DIR env,
// then upward discovery from the working directory.
func trackerDir() (string, error) {
	if dir := viper.GetString("dir"); dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return configfile.FindDir(cwd)
}

// openStore discovers the tracker directory, loads its config, and
// replays the log.
func openStore() (*storage.Store, *configfile.Config, error) {
	dir, err := trackerDir()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := configfile.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.New(dir, &storage.Options{Namespace: cfg.IssuePrefix})
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// getActor resolves attribution for mutations.
// Priority: --actor flag / DCAT_ACTOR, config actor, git user.name,
// $USER, "unknown".
func getActor(cfg *configfile.Config) string {
	if a := viper.GetString("actor"); a != "" {
		return a
	}
	if cfg != nil && cfg.Actor != "" {
		return cfg.Actor
	}
	if out, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		if user := strings.TrimSpace(string(out)); user != "" {
			return user
		}
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
