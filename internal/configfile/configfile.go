// Package configfile locates the .dogcats directory and loads the
// optional config.toml inside it.
//
// Discovery walks up from the working directory. A .dogcatrc file (one
// line: a path) redirects to a .dogcats directory elsewhere, which lets
// worktrees and nested checkouts share one tracker.
package configfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dogcat-dev/dogcat/internal/types"
)

// DirName is the tracker directory name searched for during discovery.
const DirName = ".dogcats"

// RCName is the redirect file name: its first line points at a .dogcats
// directory, absolute or relative to the file's location.
const RCName = ".dogcatrc"

// ConfigName is the optional TOML config inside the .dogcats directory.
const ConfigName = "config.toml"

// Config is the contents of config.toml. All fields are optional.
type Config struct {
	// IssuePrefix pins the namespace for new issues (e.g. "dcat").
	IssuePrefix string `toml:"issue_prefix"`
	// Actor is the default attribution for mutations when no --by flag
	// or DCAT_ACTOR is given.
	Actor string `toml:"actor"`
	// DefaultPriority overrides the priority assigned when none is given.
	DefaultPriority *int `toml:"default_priority"`
}

// FindDir walks up from start looking for a .dogcats directory or a
// .dogcatrc redirect. Returns the resolved .dogcats path.
func FindDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		rc := filepath.Join(dir, RCName)
		if data, err := os.ReadFile(rc); err == nil {
			target := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
			if target == "" {
				return "", fmt.Errorf("%s is empty", rc)
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(dir, target)
			}
			if info, err := os.Stat(target); err != nil || !info.IsDir() {
				return "", fmt.Errorf("%s points at %q, which is not a directory", rc, target)
			}
			return target, nil
		}

		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory found from %s upward; run 'dcat init' first", DirName, start)
		}
		dir = parent
	}
}

// Load reads config.toml from the .dogcats directory. A missing file
// yields an empty config, not an error.
func Load(dogcatsDir string) (*Config, error) {
	var cfg Config
	path := filepath.Join(dogcatsDir, ConfigName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes config.toml into the .dogcats directory.
func Save(dogcatsDir string, cfg *Config) error {
	path := filepath.Join(dogcatsDir, ConfigName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

// Namespace picks the namespace for new issues. Precedence: the
// configured issue_prefix, then the most common namespace among existing
// issues, then the repo directory name, then the built-in default.
func Namespace(cfg *Config, existingNamespaces []string, dogcatsDir string) string {
	if cfg != nil && cfg.IssuePrefix != "" {
		return cfg.IssuePrefix
	}

	if len(existingNamespaces) > 0 {
		counts := make(map[string]int)
		for _, ns := range existingNamespaces {
			counts[ns]++
		}
		best := ""
		for ns, n := range counts {
			if n > counts[best] || (n == counts[best] && (best == "" || ns < best)) {
				best = ns
			}
		}
		if best != "" {
			return best
		}
	}

	if ns := SanitizeNamespace(filepath.Base(filepath.Dir(dogcatsDir))); ns != "" {
		return ns
	}
	return types.DefaultNamespace
}

// SanitizeNamespace reduces a free-form name to a legal namespace:
// lowercase alphanumerics starting with a letter. Returns "" when
// nothing usable remains.
func SanitizeNamespace(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
