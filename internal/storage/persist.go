package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dogcat-dev/dogcat/internal/debug"
	"github.com/dogcat-dev/dogcat/internal/eventlog"
	"github.com/dogcat-dev/dogcat/internal/lockfile"
	"github.com/dogcat-dev/dogcat/internal/types"
)

// appendLines writes records to the end of the log under the exclusive
// lock, guarding against a missing trailing newline left by an
// interrupted writer. Callers run maybeCompact once their in-memory
// indexes reflect the append; compacting here would reload the appended
// record from disk and the caller's index insert would then double it.
func (s *Store) appendLines(lines ...[]byte) error {
	if len(lines) == 0 {
		return nil
	}

	lock, err := lockfile.Acquire(s.lockPath)
	if err != nil {
		return err
	}

	err = func() error {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return fmt.Errorf("opening storage file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat storage file: %w", err)
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seeking storage file: %w", err)
		}
		if info.Size() > 0 {
			last := make([]byte, 1)
			if _, err := f.ReadAt(last, info.Size()-1); err != nil {
				return fmt.Errorf("reading storage file tail: %w", err)
			}
			if last[0] != '\n' {
				if _, err := f.Write([]byte{'\n'}); err != nil {
					return fmt.Errorf("repairing storage file tail: %w", err)
				}
			}
		}

		var buf strings.Builder
		for _, line := range lines {
			buf.Write(line)
			buf.WriteByte('\n')
		}
		if _, err := f.WriteString(buf.String()); err != nil {
			return fmt.Errorf("appending to storage file: %w", err)
		}
		return f.Sync()
	}()
	lock.Release()
	if err != nil {
		return err
	}

	s.appendedLines += len(lines)
	return nil
}

// maybeCompact rewrites the log when enough appended lines have piled up
// on top of the compacted base, or when load skipped a corrupt tail.
// Compaction is skipped off the default git branch so a feature branch
// never rewrites history the default branch has not seen.
func (s *Store) maybeCompact() {
	if !s.needsCompaction {
		if s.baseLines < compactionMinBase {
			return
		}
		if float64(s.appendedLines) <= compactionRatio*float64(s.baseLines) {
			return
		}
	}
	if !s.onDefaultBranch() {
		debug.Logf("skipping compaction: not on default branch")
		return
	}
	if err := s.Compact(); err != nil {
		debug.Warnf("compaction failed: %v", err)
	}
}

// Compact reloads the log and rewrites it to current state: one record
// per live issue, dependency, and link, with event lines carried through
// verbatim. The rewrite goes through a temp file and an atomic rename
// under the exclusive lock.
func (s *Store) Compact() error {
	return s.save(saveOpts{reload: true})
}

// saveOpts tunes a full rewrite of the log.
type saveOpts struct {
	reload           bool              // re-read the file first so concurrent appends are not lost
	dropEventIDs     map[string]bool   // discard events for these issue ids
	renameEventIDs   map[string]string // rewrite event issue ids
	dropOrphanEvents bool              // discard events whose issue is no longer indexed
}

// save rewrites the whole log from memory.
func (s *Store) save(o saveOpts) error {
	lock, err := lockfile.Acquire(s.lockPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	if o.reload {
		if err := s.load(); err != nil {
			return err
		}
	}

	events, err := s.readEventLines(o)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".issues-*.jsonl.tmp")
	if err != nil {
		return fmt.Errorf("creating temp storage file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written := 0
	w := bufio.NewWriter(tmp)
	writeLine := func(line []byte) error {
		if _, err := w.Write(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		written++
		return nil
	}

	writeAll := func() error {
		for _, fid := range s.sortedIssueIDs() {
			line, err := encodeIssue(s.issues[fid])
			if err != nil {
				return err
			}
			if err := writeLine(line); err != nil {
				return err
			}
		}
		for _, key := range sortedKeys(s.deps) {
			line, err := encodeDep(s.deps[key], "")
			if err != nil {
				return err
			}
			if err := writeLine(line); err != nil {
				return err
			}
		}
		for _, key := range sortedKeys(s.links) {
			line, err := encodeLink(s.links[key], "")
			if err != nil {
				return err
			}
			if err := writeLine(line); err != nil {
				return err
			}
		}
		for _, line := range events {
			if err := writeLine(line); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return tmp.Sync()
	}

	if err := writeAll(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing compacted storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp storage file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing storage file: %w", err)
	}

	s.baseLines = written
	s.appendedLines = 0
	s.needsCompaction = false
	return nil
}

// readEventLines collects raw event lines from the current file, applying
// the optional drop and rename sets. Events for dropped issues and events
// that fail to parse during a rewrite are discarded.
func (s *Store) readEventLines(o saveOpts) ([][]byte, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading storage file: %w", err)
	}
	defer f.Close()

	var out [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		kind, err := types.ClassifyRecord([]byte(line))
		if err != nil || kind != types.KindEvent {
			continue
		}
		if len(o.dropEventIDs) == 0 && len(o.renameEventIDs) == 0 && !o.dropOrphanEvents {
			out = append(out, []byte(line))
			continue
		}

		var ev eventlog.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			debug.Warnf("dropping unparseable event line: %v", err)
			continue
		}
		if o.dropEventIDs[ev.IssueID] {
			continue
		}
		if o.dropOrphanEvents {
			if _, ok := s.issues[ev.IssueID]; !ok {
				continue
			}
		}
		if newID, ok := o.renameEventIDs[ev.IssueID]; ok {
			ev.IssueID = newID
			renamed, err := json.Marshal(&ev)
			if err != nil {
				return nil, fmt.Errorf("rewriting event: %w", err)
			}
			out = append(out, renamed)
			continue
		}
		out = append(out, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading storage file: %w", err)
	}
	return out, nil
}

// onDefaultBranch reports whether the repo containing the store is on
// main or master. Outside a git repo (or if git is unavailable) it
// returns true, since branch divergence is not a concern there.
func (s *Store) onDefaultBranch() bool {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = filepath.Dir(s.dir)
	out, err := cmd.Output()
	if err != nil {
		return true
	}
	branch := strings.TrimSpace(string(out))
	return branch == "main" || branch == "master"
}

// emitEvent appends an audit record for a mutation. Event failures are
// logged, never surfaced: the mutation itself has already been persisted.
func (s *Store) emitEvent(eventType string, issue *types.Issue, changes map[string]eventlog.Change, by string) {
	ev := &eventlog.Event{
		EventType: eventType,
		IssueID:   issue.FullID(),
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		By:        by,
		Title:     issue.Title,
		Changes:   changes,
	}
	if err := s.events.Append(ev); err != nil {
		debug.Warnf("recording %s event for %s: %v", eventType, issue.FullID(), err)
	}
}
