// Package eventlog records the field-level change history of issues.
//
// Events live in the same JSONL file as the records they describe and
// are append-only: nothing mutates or deletes an event except the
// store's tombstone pruning. Reads return newest-first, a deliberate UX
// contract for history output; chronological order is only used
// internally by merge and compaction.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dogcat-dev/dogcat/internal/lockfile"
	"github.com/dogcat-dev/dogcat/internal/types"
)

// Event types emitted by the record store.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventClosed   = "closed"
	EventReopened = "reopened"
	EventDeleted  = "deleted"
)

// Change holds a single field transition.
type Change struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// Event is an immutable audit record for one mutation of one issue.
type Event struct {
	RecordType string            `json:"record_type"`
	Version    string            `json:"dcat_version,omitempty"`
	EventType  string            `json:"event_type"`
	IssueID    string            `json:"issue_id"` // full id, e.g. "dc-4kzj"
	Timestamp  string            `json:"timestamp"` // ISO-8601; compared lexicographically
	By         string            `json:"by,omitempty"`
	Title      string            `json:"title,omitempty"`
	Changes    map[string]Change `json:"changes,omitempty"`
}

// Log is an append-only event writer/reader over a JSONL file, guarded
// by the same lock file as the record store.
type Log struct {
	path     string
	lockPath string
}

// New returns the event log over the primary issues file in dir.
func New(dir string) *Log {
	return &Log{
		path:     filepath.Join(dir, "issues.jsonl"),
		lockPath: filepath.Join(dir, ".issues.lock"),
	}
}

// NewInbox returns the event log over the inbox proposal file in dir.
func NewInbox(dir string) *Log {
	return &Log{
		path:     filepath.Join(dir, "inbox.jsonl"),
		lockPath: filepath.Join(dir, ".issues.lock"),
	}
}

// Append writes one event line under the exclusive lock, flushing before
// release.
func (l *Log) Append(ev *Event) error {
	ev.RecordType = string(types.KindEvent)
	if ev.Version == "" {
		ev.Version = types.SchemaVersion
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	lock, err := lockfile.Acquire(l.lockPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return f.Sync()
}

// Read loads the whole file, keeps event records (optionally filtered to
// one issue id), and returns them newest-first. limit <= 0 means no limit.
func (l *Log) Read(issueID string, limit int) ([]*Event, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	var events []*Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		kind, err := types.ClassifyRecord(line)
		if err != nil || kind != types.KindEvent {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if issueID != "" && ev.IssueID != issueID {
			continue
		}
		events = append(events, &ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}

	// Newest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
