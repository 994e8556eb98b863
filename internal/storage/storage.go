// Package storage implements the JSONL record store: the sole mutator of
// issue, dependency, and link state.
//
// The log file is the source of truth. Opening a store replays the whole
// log into an in-memory index; mutations append new lines under an
// advisory file lock and periodically compact the file back to its
// minimal current-state form (events excepted, they are carried through
// compaction verbatim).
package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dogcat-dev/dogcat/internal/debug"
	"github.com/dogcat-dev/dogcat/internal/eventlog"
	"github.com/dogcat-dev/dogcat/internal/idgen"
	"github.com/dogcat-dev/dogcat/internal/types"
)

// Compaction thresholds: compact when appended lines exceed this fraction
// of the last compacted base, once the base is large enough to make a
// rewrite worthwhile.
const (
	compactionRatio   = 0.5
	compactionMinBase = 20
)

// IssuesFilename is the primary log file name inside the .dogcats dir.
const IssuesFilename = "issues.jsonl"

// LockFilename is the shared advisory lock file name.
const LockFilename = ".issues.lock"

// Options configures opening a Store.
type Options struct {
	// CreateDir creates the .dogcats directory if missing (used by init).
	CreateDir bool
	// Namespace is the active namespace for generated ids. Empty uses the
	// default.
	Namespace string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store owns the in-memory index of issues, dependencies, and links,
// rebuilt by replaying the log on open. It is not safe for concurrent
// use within a process; cross-process safety comes from the file lock.
type Store struct {
	dir      string
	path     string
	lockPath string

	issues           map[string]*types.Issue      // by full id
	deps             map[string]*types.Dependency // by identity triple
	links            map[string]*types.Link       // by identity triple
	depsByIssue      map[string][]*types.Dependency
	depsByDependsOn  map[string][]*types.Dependency
	linksByFrom      map[string][]*types.Link
	linksByTo        map[string][]*types.Link
	childrenByParent map[string][]string

	baseLines       int
	appendedLines   int
	needsCompaction bool // set when a corrupt last line was skipped

	gen    *idgen.Generator
	events *eventlog.Log
	now    func() time.Time
}

// New opens the store over dir (the .dogcats directory), replaying the
// log if it exists.
func New(dir string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.CreateDir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	} else if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("directory %q does not exist; run 'dcat init' first", dir)
	}

	s := &Store{
		dir:      dir,
		path:     filepath.Join(dir, IssuesFilename),
		lockPath: filepath.Join(dir, LockFilename),
		events:   eventlog.New(dir),
		now:      opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	s.gen = idgen.New(s.usedIDs(), opts.Namespace)
	return s, nil
}

// Dir returns the .dogcats directory the store operates on.
func (s *Store) Dir() string { return s.dir }

// Path returns the primary log file path.
func (s *Store) Path() string { return s.path }

// Events returns the audit event log sharing this store's file and lock.
func (s *Store) Events() *eventlog.Log { return s.events }

// usedIDs collects every identifier the generator must avoid.
func (s *Store) usedIDs() map[string]bool {
	used := make(map[string]bool, len(s.issues))
	for fid, issue := range s.issues {
		used[fid] = true
		for _, c := range issue.Comments {
			used[c.ID] = true
		}
	}
	return used
}

// load replays the append-only log into memory. Later issue records
// override earlier ones (last-write-wins by full id); dependency and
// link records carry an optional "op" field replayed as add/remove.
//
// A malformed last line is tolerated (logged and skipped) because it is
// the most common artifact of a crash or full disk during an append.
// Any other malformed line is an error.
func (s *Store) load() error {
	s.issues = make(map[string]*types.Issue)
	s.deps = make(map[string]*types.Dependency)
	s.links = make(map[string]*types.Link)

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.baseLines = 0
		s.appendedLines = 0
		s.rebuildIndexes()
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading storage file: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading storage file: %w", err)
	}

	lineCount := 0
	for idx, line := range lines {
		lineCount++
		if err := s.replayLine(line); err != nil {
			if idx == len(lines)-1 {
				debug.Warnf("skipping malformed last line in %s: %v", s.path, err)
				s.needsCompaction = true
				lineCount--
				continue
			}
			return fmt.Errorf("invalid JSONL record at line %d: %w", idx+1, err)
		}
	}

	s.baseLines = lineCount
	s.appendedLines = 0
	s.rebuildIndexes()
	return nil
}

// replayLine applies a single record to the in-memory maps.
func (s *Store) replayLine(line []byte) error {
	kind, err := types.ClassifyRecord(line)
	if err != nil {
		return err
	}
	switch kind {
	case types.KindEvent, types.KindProposal:
		return nil
	case types.KindDependency:
		rec, err := decodeDepRecord(line)
		if err != nil {
			return err
		}
		key := rec.Dependency.Key()
		if rec.Op == opRemove {
			delete(s.deps, key)
		} else {
			dep := rec.Dependency
			s.deps[key] = &dep
		}
		return nil
	case types.KindLink:
		rec, err := decodeLinkRecord(line)
		if err != nil {
			return err
		}
		key := rec.Link.Key()
		if rec.Op == opRemove {
			delete(s.links, key)
		} else {
			link := rec.Link
			s.links[key] = &link
		}
		return nil
	default:
		issue, err := types.DecodeIssue(line)
		if err != nil {
			return err
		}
		s.issues[issue.FullID()] = issue
		return nil
	}
}

// rebuildIndexes recomputes the derived lookup maps from the source maps.
func (s *Store) rebuildIndexes() {
	s.depsByIssue = make(map[string][]*types.Dependency)
	s.depsByDependsOn = make(map[string][]*types.Dependency)
	for _, key := range sortedKeys(s.deps) {
		dep := s.deps[key]
		s.depsByIssue[dep.IssueID] = append(s.depsByIssue[dep.IssueID], dep)
		s.depsByDependsOn[dep.DependsOnID] = append(s.depsByDependsOn[dep.DependsOnID], dep)
	}

	s.linksByFrom = make(map[string][]*types.Link)
	s.linksByTo = make(map[string][]*types.Link)
	for _, key := range sortedKeys(s.links) {
		link := s.links[key]
		s.linksByFrom[link.FromID] = append(s.linksByFrom[link.FromID], link)
		s.linksByTo[link.ToID] = append(s.linksByTo[link.ToID], link)
	}

	s.childrenByParent = make(map[string][]string)
	for _, fid := range s.sortedIssueIDs() {
		issue := s.issues[fid]
		if issue.Parent != "" {
			s.childrenByParent[issue.Parent] = append(s.childrenByParent[issue.Parent], fid)
		}
	}
}

func (s *Store) sortedIssueIDs() []string {
	ids := make([]string, 0, len(s.issues))
	for fid := range s.issues {
		ids = append(ids, fid)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolveID resolves a full id or an unambiguous suffix of the short id.
//
// Supported forms: "dc-3hup" (exact), "3hup" (hash part), "hup" (suffix,
// if unique). Returns NotFoundError or AmbiguousIDError.
func (s *Store) ResolveID(partial string) (string, error) {
	if _, ok := s.issues[partial]; ok {
		return partial, nil
	}

	var matches []string
	for fid := range s.issues {
		hash := fid
		if i := strings.Index(fid, "-"); i >= 0 {
			hash = fid[i+1:]
		}
		if strings.HasSuffix(fid, partial) || hash == partial {
			matches = append(matches, fid)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", &types.NotFoundError{ID: partial}
	default:
		sort.Strings(matches)
		return "", &types.AmbiguousIDError{ID: partial, Matches: matches}
	}
}

// Get returns an issue by full id or unambiguous partial id.
func (s *Store) Get(id string) (*types.Issue, error) {
	resolved, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	return s.issues[resolved], nil
}

// List returns all issues, optionally filtered. Recognized filter keys:
// status, priority, type, label (string or []string), owner.
func (s *Store) List(filters map[string]interface{}) []*types.Issue {
	issues := make([]*types.Issue, 0, len(s.issues))
	for _, fid := range s.sortedIssueIDs() {
		issues = append(issues, s.issues[fid])
	}
	if len(filters) == 0 {
		return issues
	}

	if v, ok := filters["status"]; ok {
		want := types.Status(fmt.Sprint(v))
		issues = filterIssues(issues, func(i *types.Issue) bool { return i.Status == want })
	}
	if v, ok := filters["priority"]; ok {
		if want, ok := toInt(v); ok {
			issues = filterIssues(issues, func(i *types.Issue) bool { return i.Priority == want })
		}
	}
	if v, ok := filters["type"]; ok {
		want := types.IssueType(fmt.Sprint(v))
		issues = filterIssues(issues, func(i *types.Issue) bool { return i.IssueType == want })
	}
	if v, ok := filters["label"]; ok {
		switch label := v.(type) {
		case []string:
			want := make(map[string]bool, len(label))
			for _, l := range label {
				want[l] = true
			}
			issues = filterIssues(issues, func(i *types.Issue) bool {
				for _, l := range i.Labels {
					if want[l] {
						return true
					}
				}
				return false
			})
		default:
			want := fmt.Sprint(v)
			issues = filterIssues(issues, func(i *types.Issue) bool {
				for _, l := range i.Labels {
					if l == want {
						return true
					}
				}
				return false
			})
		}
	}
	if v, ok := filters["owner"]; ok {
		want := fmt.Sprint(v)
		issues = filterIssues(issues, func(i *types.Issue) bool { return i.Owner == want })
	}
	return issues
}

func filterIssues(issues []*types.Issue, keep func(*types.Issue) bool) []*types.Issue {
	out := issues[:0]
	for _, i := range issues {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// IssueIDs returns the set of all indexed full ids.
func (s *Store) IssueIDs() map[string]bool {
	ids := make(map[string]bool, len(s.issues))
	for fid := range s.issues {
		ids[fid] = true
	}
	return ids
}

// AllDependencies returns every dependency record, ordered by identity key.
func (s *Store) AllDependencies() []*types.Dependency {
	out := make([]*types.Dependency, 0, len(s.deps))
	for _, key := range sortedKeys(s.deps) {
		out = append(out, s.deps[key])
	}
	return out
}

// AllLinks returns every link record, ordered by identity key.
func (s *Store) AllLinks() []*types.Link {
	out := make([]*types.Link, 0, len(s.links))
	for _, key := range sortedKeys(s.links) {
		out = append(out, s.links[key])
	}
	return out
}

// FindDanglingDependencies returns dependencies referencing issues that
// are not in the index. Used by the doctor command.
func (s *Store) FindDanglingDependencies() []*types.Dependency {
	var out []*types.Dependency
	for _, dep := range s.AllDependencies() {
		if _, ok := s.issues[dep.IssueID]; !ok {
			out = append(out, dep)
			continue
		}
		if _, ok := s.issues[dep.DependsOnID]; !ok {
			out = append(out, dep)
		}
	}
	return out
}

// Reload re-reads the JSONL file and replaces the in-memory state.
func (s *Store) Reload() error {
	if err := s.load(); err != nil {
		return err
	}
	s.gen = idgen.New(s.usedIDs(), "")
	return nil
}
