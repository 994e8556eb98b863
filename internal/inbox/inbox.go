// Package inbox stores lightweight proposals: candidate issues captured
// quickly and triaged later. Proposals live in their own JSONL file next
// to the primary log, share its lock and schema conventions, and are
// promoted into real issues by the CLI.
package inbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dogcat-dev/dogcat/internal/debug"
	"github.com/dogcat-dev/dogcat/internal/eventlog"
	"github.com/dogcat-dev/dogcat/internal/idgen"
	"github.com/dogcat-dev/dogcat/internal/lockfile"
	"github.com/dogcat-dev/dogcat/internal/types"
)

// Filename is the proposal log file name inside the .dogcats dir.
const Filename = "inbox.jsonl"

// Store holds the replayed proposal state. Like the issue store, the
// JSONL file is the source of truth and later records win.
type Store struct {
	dir      string
	path     string
	lockPath string

	proposals map[string]*types.Proposal // by full id

	gen    *idgen.Generator
	events *eventlog.Log
	now    func() time.Time
}

// Options configures opening an inbox store.
type Options struct {
	Namespace string
	Now       func() time.Time
}

// New opens the inbox over dir (the .dogcats directory).
func New(dir string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	s := &Store{
		dir:      dir,
		path:     filepath.Join(dir, Filename),
		lockPath: filepath.Join(dir, ".issues.lock"),
		events:   eventlog.NewInbox(dir),
		now:      opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(s.proposals))
	for fid := range s.proposals {
		used[fid] = true
	}
	s.gen = idgen.New(used, opts.Namespace)
	return s, nil
}

// Events returns the audit event log sharing the inbox file.
func (s *Store) Events() *eventlog.Log { return s.events }

func (s *Store) load() error {
	s.proposals = make(map[string]*types.Proposal)

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading inbox file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		kind, err := types.ClassifyRecord([]byte(line))
		if err != nil {
			debug.Warnf("%s:%d: skipping unreadable line: %v", s.path, lineNo, err)
			continue
		}
		if kind == types.KindEvent {
			continue
		}
		proposal, err := types.DecodeProposal([]byte(line))
		if err != nil {
			debug.Warnf("%s:%d: skipping malformed proposal: %v", s.path, lineNo, err)
			continue
		}
		s.proposals[proposal.FullID()] = proposal
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading inbox file: %w", err)
	}
	return nil
}

func (s *Store) append(proposal *types.Proposal) error {
	line, err := encodeProposal(proposal)
	if err != nil {
		return err
	}

	lock, err := lockfile.Acquire(s.lockPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening inbox file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to inbox file: %w", err)
	}
	return f.Sync()
}

// Create records a new proposal, generating its id from the title and
// creation time like issue ids.
func (s *Store) Create(title, description, proposedBy, namespace string) (*types.Proposal, error) {
	if title == "" {
		return nil, &types.ValidationError{Field: "title", Reason: "title must be a non-empty string"}
	}
	now := s.now().UTC()
	if namespace == "" {
		namespace = types.DefaultNamespace
	}
	proposal := &types.Proposal{
		Namespace:   namespace,
		Title:       title,
		Description: description,
		ProposedBy:  proposedBy,
		Status:      types.ProposalOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	proposal.ID = s.gen.IssueID(title, now, namespace)

	if err := s.append(proposal); err != nil {
		return nil, err
	}
	s.proposals[proposal.FullID()] = proposal
	s.emitEvent(eventlog.EventCreated, proposal, proposedBy)
	return proposal, nil
}

// Resolve resolves a full proposal id or an unambiguous suffix.
func (s *Store) Resolve(partial string) (string, error) {
	if _, ok := s.proposals[partial]; ok {
		return partial, nil
	}
	var matches []string
	for fid := range s.proposals {
		if strings.HasSuffix(fid, partial) {
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

// Get returns a proposal by full or partial id.
func (s *Store) Get(id string) (*types.Proposal, error) {
	fid, err := s.Resolve(id)
	if err != nil {
		return nil, err
	}
	return s.proposals[fid], nil
}

// List returns proposals, newest first. An empty status returns all
// non-tombstoned proposals.
func (s *Store) List(status types.ProposalStatus) []*types.Proposal {
	var out []*types.Proposal
	for _, p := range s.proposals {
		if status == "" {
			if p.IsTombstone() {
				continue
			}
		} else if p.Status != status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].FullID() < out[j].FullID()
	})
	return out
}

// Close resolves a proposal. resolvedIssue links to the issue created
// from it, if promotion rather than rejection closed it.
func (s *Store) Close(id, reason, resolvedIssue, by string) (*types.Proposal, error) {
	fid, err := s.Resolve(id)
	if err != nil {
		return nil, err
	}
	proposal := s.proposals[fid]
	if proposal.Status == types.ProposalClosed {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("proposal %s is already closed", fid)}
	}
	if proposal.IsTombstone() {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("proposal %s is deleted", fid)}
	}

	now := s.now().UTC()
	updated := *proposal
	updated.Status = types.ProposalClosed
	updated.CloseReason = reason
	updated.ResolvedIssue = resolvedIssue
	updated.ClosedAt = &now
	updated.ClosedBy = by
	updated.UpdatedAt = now

	if err := s.append(&updated); err != nil {
		return nil, err
	}
	s.proposals[fid] = &updated
	s.emitEvent(eventlog.EventClosed, &updated, by)
	return &updated, nil
}

// Delete tombstones a proposal.
func (s *Store) Delete(id, by string) error {
	fid, err := s.Resolve(id)
	if err != nil {
		return err
	}
	proposal := s.proposals[fid]
	if proposal.IsTombstone() {
		return &types.ConflictError{Reason: fmt.Sprintf("proposal %s is already deleted", fid)}
	}

	now := s.now().UTC()
	updated := *proposal
	updated.Status = types.ProposalTombstone
	updated.DeletedAt = &now
	updated.DeletedBy = by
	updated.UpdatedAt = now

	if err := s.append(&updated); err != nil {
		return err
	}
	s.proposals[fid] = &updated
	s.emitEvent(eventlog.EventDeleted, &updated, by)
	return nil
}

// Prune rewrites the inbox without tombstoned proposals or their events.
// Returns the number of proposals removed.
func (s *Store) Prune() (int, error) {
	pruned := make(map[string]bool)
	for fid, p := range s.proposals {
		if p.IsTombstone() {
			pruned[fid] = true
		}
	}
	if len(pruned) == 0 {
		return 0, nil
	}
	for fid := range pruned {
		delete(s.proposals, fid)
	}
	if err := s.rewrite(pruned); err != nil {
		return 0, err
	}
	return len(pruned), nil
}

// rewrite replaces the inbox file with current state plus surviving
// event lines, via temp file and rename under the lock.
func (s *Store) rewrite(dropEventIDs map[string]bool) error {
	lock, err := lockfile.Acquire(s.lockPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	events, err := s.readEventLines(dropEventIDs)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".inbox-*.jsonl.tmp")
	if err != nil {
		return fmt.Errorf("creating temp inbox file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	fids := make([]string, 0, len(s.proposals))
	for fid := range s.proposals {
		fids = append(fids, fid)
	}
	sort.Strings(fids)
	for _, fid := range fids {
		line, err := encodeProposal(s.proposals[fid])
		if err != nil {
			tmp.Close()
			return err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	for _, line := range events {
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing inbox file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing inbox file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp inbox file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing inbox file: %w", err)
	}
	return nil
}

func (s *Store) readEventLines(dropIDs map[string]bool) ([][]byte, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading inbox file: %w", err)
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
		if len(dropIDs) > 0 {
			var probe struct {
				IssueID string `json:"issue_id"`
			}
			if err := json.Unmarshal([]byte(line), &probe); err != nil || dropIDs[probe.IssueID] {
				continue
			}
		}
		out = append(out, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading inbox file: %w", err)
	}
	return out, nil
}

func (s *Store) emitEvent(eventType string, proposal *types.Proposal, by string) {
	ev := &eventlog.Event{
		EventType: eventType,
		IssueID:   proposal.FullID(),
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		By:        by,
		Title:     proposal.Title,
	}
	if err := s.events.Append(ev); err != nil {
		debug.Warnf("recording %s event for %s: %v", eventType, proposal.FullID(), err)
	}
}

type proposalRecord struct {
	RecordType string `json:"record_type"`
	Version    string `json:"dcat_version"`
	*types.Proposal
}

func encodeProposal(p *types.Proposal) ([]byte, error) {
	rec := proposalRecord{
		RecordType: string(types.KindProposal),
		Version:    types.SchemaVersion,
		Proposal:   p,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling proposal %s: %w", p.FullID(), err)
	}
	return data, nil
}
