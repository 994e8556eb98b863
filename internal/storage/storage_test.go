package storage

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dogcat-dev/dogcat/internal/eventlog"
	"github.com/dogcat-dev/dogcat/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".dogcats")
	s, err := New(dir, &Options{CreateDir: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func mustCreate(t *testing.T, s *Store, title string) *types.Issue {
	t.Helper()
	issue := &types.Issue{Title: title}
	if err := s.Create(issue, "tester"); err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return issue
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	return n
}

func TestCreateAndGet(t *testing.T) {
	s := testStore(t)
	issue := mustCreate(t, s, "first issue")

	if issue.ID == "" {
		t.Fatal("Create did not assign an id")
	}
	if issue.Namespace != types.DefaultNamespace {
		t.Errorf("namespace = %q", issue.Namespace)
	}
	if issue.Status != types.StatusOpen {
		t.Errorf("status = %q", issue.Status)
	}

	got, err := s.Get(issue.FullID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "first issue" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestCreateValidates(t *testing.T) {
	s := testStore(t)
	err := s.Create(&types.Issue{Title: ""}, "tester")
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("empty title: got %v, want validation error", err)
	}
	err = s.Create(&types.Issue{Title: "x", Priority: 9}, "tester")
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("bad priority: got %v, want validation error", err)
	}
}

func TestResolveID(t *testing.T) {
	s := testStore(t)
	issue := mustCreate(t, s, "resolvable")

	full := issue.FullID()
	for _, probe := range []string{full, issue.ID, issue.ID[1:]} {
		got, err := s.ResolveID(probe)
		if err != nil {
			t.Fatalf("ResolveID(%q): %v", probe, err)
		}
		if got != full {
			t.Errorf("ResolveID(%q) = %q, want %q", probe, got, full)
		}
	}

	_, err := s.ResolveID("zzzz9999")
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("missing id: got %v, want not-found", err)
	}
}

func TestResolveIDAmbiguous(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, "alpha")
	// Create a second issue whose id shares a suffix rarely; instead probe
	// with the empty-ish common suffix by matching both hash parts.
	b := mustCreate(t, s, "beta")

	common := ""
	for i := 1; i <= len(a.ID) && i <= len(b.ID); i++ {
		if a.ID[len(a.ID)-i:] == b.ID[len(b.ID)-i:] {
			common = a.ID[len(a.ID)-i:]
		} else {
			break
		}
	}
	if common == "" {
		t.Skip("generated ids share no common suffix")
	}
	_, err := s.ResolveID(common)
	if !errors.Is(err, types.ErrAmbiguous) {
		t.Errorf("got %v, want ambiguous error", err)
	}
}

func TestUpdateTracksChanges(t *testing.T) {
	s := testStore(t)
	issue := mustCreate(t, s, "original")

	updated, err := s.Update(issue.FullID(), map[string]interface{}{
		"title":    "renamed",
		"priority": 1,
		"bogus":    "ignored",
	}, "editor")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "renamed" || updated.Priority != 1 {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.UpdatedBy != "editor" {
		t.Errorf("updated_by = %q", updated.UpdatedBy)
	}

	events, err := s.Events().Read(issue.FullID(), 0)
	if err != nil {
		t.Fatalf("Read events: %v", err)
	}
	var sawUpdate bool
	for _, ev := range events {
		if ev.EventType == "updated" {
			sawUpdate = true
			if _, ok := ev.Changes["title"]; !ok {
				t.Error("update event missing title change")
			}
			if _, ok := ev.Changes["bogus"]; ok {
				t.Error("update event contains untracked field")
			}
		}
	}
	if !sawUpdate {
		t.Error("no updated event recorded")
	}
}

func TestUpdateRejectsBadEnum(t *testing.T) {
	s := testStore(t)
	issue := mustCreate(t, s, "enum")
	_, err := s.Update(issue.FullID(), map[string]interface{}{"status": "nope"}, "x")
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestCloseAndReopen(t *testing.T) {
	s := testStore(t)
	issue := mustCreate(t, s, "closable")

	closed, err := s.Close(issue.FullID(), "done", "closer")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed.IsClosed() || closed.CloseReason != "done" || closed.ClosedAt == nil {
		t.Errorf("close bookkeeping wrong: %+v", closed)
	}

	if _, err := s.Close(issue.FullID(), "", "closer"); !errors.Is(err, types.ErrConflict) {
		t.Errorf("double close: got %v, want conflict", err)
	}

	reopened, err := s.Reopen(issue.FullID(), "reopener")
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if reopened.Status != types.StatusOpen || reopened.ClosedAt != nil || reopened.CloseReason != "" {
		t.Errorf("reopen did not clear close bookkeeping: %+v", reopened)
	}

	if _, err := s.Reopen(issue.FullID(), "x"); !errors.Is(err, types.ErrConflict) {
		t.Errorf("reopening open issue: got %v, want conflict", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, "kept")
	b := mustCreate(t, s, "doomed")

	if _, err := s.AddDependency(a.FullID(), b.FullID(), types.DepBlocks, "x"); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if _, err := s.AddLink(b.FullID(), a.FullID(), "", "x"); err != nil {
		t.Fatalf("AddLink: %v", err)
	}

	if err := s.Delete(b.FullID(), "obsolete", "deleter"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err := s.Get(b.FullID())
	if err != nil {
		t.Fatalf("tombstone should remain resolvable: %v", err)
	}
	if !got.IsTombstone() || got.OriginalType != types.TypeTask || got.DeleteReason != "obsolete" {
		t.Errorf("tombstone fields wrong: %+v", got)
	}

	if deps := s.AllDependencies(); len(deps) != 0 {
		t.Errorf("dependencies not cascaded: %v", deps)
	}
	if links := s.AllLinks(); len(links) != 0 {
		t.Errorf("links not cascaded: %v", links)
	}

	// The cascade survives a replay.
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if deps := s.AllDependencies(); len(deps) != 0 {
		t.Errorf("dependency removal records not replayed: %v", deps)
	}
}

func TestAddDependencyRefusesCycles(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, "a")
	b := mustCreate(t, s, "b")
	c := mustCreate(t, s, "c")

	if _, err := s.AddDependency(a.FullID(), b.FullID(), types.DepBlocks, "x"); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if _, err := s.AddDependency(b.FullID(), c.FullID(), types.DepBlocks, "x"); err != nil {
		t.Fatalf("b->c: %v", err)
	}

	_, err := s.AddDependency(c.FullID(), a.FullID(), types.DepBlocks, "x")
	if !errors.Is(err, types.ErrConflict) {
		t.Errorf("cycle edge: got %v, want conflict", err)
	}
	_, err = s.AddDependency(a.FullID(), a.FullID(), types.DepBlocks, "x")
	if !errors.Is(err, types.ErrConflict) {
		t.Errorf("self edge: got %v, want conflict", err)
	}
}

func TestAddDependencyIdempotent(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, "a")
	b := mustCreate(t, s, "b")

	if _, err := s.AddDependency(a.FullID(), b.FullID(), types.DepBlocks, "x"); err != nil {
		t.Fatal(err)
	}
	before := countLines(t, s.Path())
	if _, err := s.AddDependency(a.FullID(), b.FullID(), types.DepBlocks, "x"); err != nil {
		t.Fatal(err)
	}
	if after := countLines(t, s.Path()); after != before {
		t.Errorf("re-adding an edge appended %d line(s)", after-before)
	}
	if len(s.AllDependencies()) != 1 {
		t.Errorf("dependency count = %d", len(s.AllDependencies()))
	}
}

func TestRemoveDependencyReplays(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, "a")
	b := mustCreate(t, s, "b")

	if _, err := s.AddDependency(a.FullID(), b.FullID(), types.DepBlocks, "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveDependency(a.FullID(), b.FullID(), types.DepBlocks); err != nil {
		t.Fatalf("RemoveDependency: %v", err)
	}
	if err := s.RemoveDependency(a.FullID(), b.FullID(), types.DepBlocks); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("removing absent edge: got %v, want not-found", err)
	}

	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	if len(s.AllDependencies()) != 0 {
		t.Error("removal record not honored on replay")
	}
}

func TestCompactionRewritesToCurrentState(t *testing.T) {
	s := testStore(t)

	// Build a base above the minimum, then churn one issue enough to
	// cross the ratio threshold.
	var last *types.Issue
	for i := 0; i < compactionMinBase; i++ {
		last = mustCreate(t, s, "issue "+strings.Repeat("x", i+1))
	}
	if err := s.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	base := s.baseLines

	for i := 0; i < base; i++ {
		if _, err := s.Update(last.FullID(), map[string]interface{}{"notes": strings.Repeat("n", i+1)}, "x"); err != nil {
			t.Fatal(err)
		}
	}

	// Every append also grows the event tail, so the exact post-compaction
	// counters depend on when the threshold fired; it is enough that a
	// rewrite happened at all.
	if s.appendedLines >= base {
		t.Errorf("appendedLines = %d after %d updates, compaction never fired", s.appendedLines, base)
	}

	// State preserved across the rewrite.
	got, err := s.Get(last.FullID())
	if err != nil {
		t.Fatal(err)
	}
	if got.Notes != strings.Repeat("n", base) {
		t.Errorf("latest update lost by compaction")
	}

	// Appends may have accumulated since the last automatic rewrite, so
	// compact once more before checking that compaction is idempotent.
	if err := s.Compact(); err != nil {
		t.Fatal(err)
	}
	before := countLines(t, s.Path())
	if err := s.Compact(); err != nil {
		t.Fatal(err)
	}
	if after := countLines(t, s.Path()); after != before {
		t.Errorf("recompaction changed line count %d -> %d", before, after)
	}
}

func TestLoadToleratesTruncatedLastLine(t *testing.T) {
	s := testStore(t)
	issue := mustCreate(t, s, "survivor")

	f, err := os.OpenFile(s.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"id":"trunc`); err != nil {
		t.Fatal(err)
	}
	f.Close()

	reopened, err := New(s.Dir(), nil)
	if err != nil {
		t.Fatalf("New over truncated file: %v", err)
	}
	if _, err := reopened.Get(issue.FullID()); err != nil {
		t.Errorf("intact records lost: %v", err)
	}
	if !reopened.needsCompaction {
		t.Error("truncated tail did not flag compaction")
	}
}

func TestLoadRejectsMidFileCorruption(t *testing.T) {
	s := testStore(t)
	mustCreate(t, s, "one")

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	corrupted := "garbage line\n" + string(data)
	if err := os.WriteFile(s.Path(), []byte(corrupted), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(s.Dir(), nil); err == nil {
		t.Error("expected error for mid-file corruption")
	}
}

func TestAddComment(t *testing.T) {
	s := testStore(t)
	issue := mustCreate(t, s, "commented")

	c, err := s.AddComment(issue.FullID(), "alice", "looks good")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if c.ID == "" || c.IssueID != issue.FullID() {
		t.Errorf("comment fields wrong: %+v", c)
	}

	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(issue.FullID())
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Comments) != 1 || got.Comments[0].Text != "looks good" {
		t.Errorf("comment not persisted: %+v", got.Comments)
	}
}

func TestRenameNamespace(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, "a")
	b := mustCreate(t, s, "b")
	if _, err := s.AddDependency(a.FullID(), b.FullID(), types.DepBlocks, "x"); err != nil {
		t.Fatal(err)
	}

	n, err := s.RenameNamespace("dc", "proj", "renamer")
	if err != nil {
		t.Fatalf("RenameNamespace: %v", err)
	}
	if n != 2 {
		t.Errorf("renamed %d issues, want 2", n)
	}

	if _, err := s.Get("proj-" + a.ID); err != nil {
		t.Errorf("renamed issue not found: %v", err)
	}
	deps := s.AllDependencies()
	if len(deps) != 1 || !strings.HasPrefix(deps[0].IssueID, "proj-") || !strings.HasPrefix(deps[0].DependsOnID, "proj-") {
		t.Errorf("dependency endpoints not rewritten: %+v", deps)
	}

	events, err := s.Events().Read("proj-"+a.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 {
		t.Error("historical events not rewritten to the new namespace")
	}

	if _, err := s.RenameNamespace("dc", "other", "x"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("renaming empty namespace: got %v, want not-found", err)
	}
}

func TestPruneTombstones(t *testing.T) {
	s := testStore(t)
	keep := mustCreate(t, s, "keep")
	doomed := mustCreate(t, s, "doomed")

	if err := s.Delete(doomed.FullID(), "", "x"); err != nil {
		t.Fatal(err)
	}

	n, err := s.PruneTombstones(time.Time{})
	if err != nil {
		t.Fatalf("PruneTombstones: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}

	if _, err := s.Get(doomed.FullID()); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("pruned issue still resolvable: %v", err)
	}
	if _, err := s.Get(keep.FullID()); err != nil {
		t.Errorf("surviving issue lost: %v", err)
	}

	events, err := s.Events().Read(doomed.FullID(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("pruned issue still has %d event(s)", len(events))
	}
}

func TestListFilters(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, "bug one")
	mustCreate(t, s, "task one")

	if _, err := s.Update(a.FullID(), map[string]interface{}{
		"issue_type": "bug",
		"labels":     []string{"urgent"},
		"owner":      "alice",
	}, "x"); err != nil {
		t.Fatal(err)
	}

	if got := s.List(map[string]interface{}{"type": "bug"}); len(got) != 1 {
		t.Errorf("type filter: got %d issues", len(got))
	}
	if got := s.List(map[string]interface{}{"label": "urgent"}); len(got) != 1 {
		t.Errorf("label filter: got %d issues", len(got))
	}
	if got := s.List(map[string]interface{}{"owner": "nobody"}); len(got) != 0 {
		t.Errorf("owner filter: got %d issues", len(got))
	}
	if got := s.List(nil); len(got) != 2 {
		t.Errorf("unfiltered: got %d issues", len(got))
	}
}

func TestIssueLifecycle(t *testing.T) {
	s := testStore(t)

	bug := mustCreate(t, s, "Fix login bug")
	infra := mustCreate(t, s, "Provision auth service")

	if _, err := s.AddDependency(bug.FullID(), infra.FullID(), types.DepBlocks, "alice"); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if _, err := s.Update(bug.FullID(), map[string]interface{}{
		"status": "in_progress",
		"owner":  "alice",
	}, "alice"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := s.Close(infra.FullID(), "deployed", "bob"); err != nil {
		t.Fatalf("Close blocker: %v", err)
	}
	closed, err := s.Close(bug.FullID(), "fixed in release 1.2", "alice")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.CloseReason != "fixed in release 1.2" {
		t.Errorf("close_reason = %q", closed.CloseReason)
	}
	if closed.ClosedAt == nil || closed.ClosedBy != "alice" {
		t.Errorf("closed_at/closed_by not set: %+v", closed)
	}

	// Survives a reload from disk.
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	got, err := s.Get(bug.FullID())
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Status != types.StatusClosed || got.CloseReason != "fixed in release 1.2" {
		t.Errorf("after reload: status=%q reason=%q", got.Status, got.CloseReason)
	}
}

// crossCompactionThreshold churns an issue until exactly one more append
// will trip the automatic rewrite.
func crossCompactionThreshold(t *testing.T, s *Store, churn *types.Issue) {
	t.Helper()
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	need := int(compactionRatio*float64(s.baseLines)) + 1
	for i := 0; i < need-1; i++ {
		if _, err := s.Update(churn.FullID(), map[string]interface{}{"notes": strings.Repeat("n", i+1)}, "x"); err != nil {
			t.Fatal(err)
		}
	}
	if s.appendedLines != need-1 {
		t.Fatalf("appendedLines = %d, want %d (compaction fired early)", s.appendedLines, need-1)
	}
}

func TestCompactionDoesNotDuplicateChildren(t *testing.T) {
	s := testStore(t)
	parent := mustCreate(t, s, "parent")
	for i := 0; i < compactionMinBase; i++ {
		mustCreate(t, s, "filler "+strings.Repeat("f", i+1))
	}
	crossCompactionThreshold(t, s, parent)

	child := &types.Issue{Title: "child", Parent: parent.FullID()}
	if err := s.Create(child, "tester"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.appendedLines != 0 {
		t.Fatalf("appendedLines = %d, compaction did not fire on the crossing append", s.appendedLines)
	}

	children, err := s.GetChildren(parent.FullID())
	if err != nil {
		t.Fatal(err)
	}
	seen := 0
	for _, id := range children {
		if id == child.FullID() {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("child %s listed %d times in GetChildren", child.FullID(), seen)
	}
}

func TestCompactionDoesNotDuplicateEdges(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, "left")
	b := mustCreate(t, s, "right")
	for i := 0; i < compactionMinBase; i++ {
		mustCreate(t, s, "filler "+strings.Repeat("f", i+1))
	}
	crossCompactionThreshold(t, s, a)

	if _, err := s.AddDependency(a.FullID(), b.FullID(), types.DepBlocks, "tester"); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if s.appendedLines != 0 {
		t.Fatalf("appendedLines = %d, compaction did not fire on the crossing append", s.appendedLines)
	}

	out, err := s.GetDependencies(a.FullID())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Errorf("GetDependencies returned %d edges for one AddDependency", len(out))
	}
	in, err := s.GetDependents(b.FullID())
	if err != nil {
		t.Fatal(err)
	}
	if len(in) != 1 {
		t.Errorf("GetDependents returned %d edges for one AddDependency", len(in))
	}
}

func TestCreateEventSnapshotsFields(t *testing.T) {
	s := testStore(t)
	issue := &types.Issue{
		Title:    "snapshot",
		Priority: 1,
		Labels:   []string{"urgent"},
		Owner:    "alice",
	}
	if err := s.Create(issue, "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	events, err := s.Events().Read(issue.FullID(), 0)
	if err != nil {
		t.Fatalf("Read events: %v", err)
	}
	var created *eventlog.Event
	for _, ev := range events {
		if ev.EventType == "created" {
			created = ev
		}
	}
	if created == nil {
		t.Fatal("no created event recorded")
	}
	if got := created.Changes["title"].New; got != "snapshot" {
		t.Errorf("title change = %v", got)
	}
	if _, ok := created.Changes["status"]; !ok {
		t.Error("created event missing status")
	}
	if _, ok := created.Changes["priority"]; !ok {
		t.Error("created event missing priority")
	}
	if got := created.Changes["owner"].New; got != "alice" {
		t.Errorf("owner change = %v", got)
	}
	// Fields the issue started without stay out of the snapshot.
	if _, ok := created.Changes["description"]; ok {
		t.Error("created event records empty description")
	}
	if _, ok := created.Changes["notes"]; ok {
		t.Error("created event records empty notes")
	}
}

func TestRenameNamespaceRoundTrip(t *testing.T) {
	s := testStore(t)
	parent := mustCreate(t, s, "parent issue")
	child := &types.Issue{Title: "child issue", Parent: parent.FullID()}
	if err := s.Create(child, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddDependency(child.FullID(), parent.FullID(), types.DepBlocks, "tester"); err != nil {
		t.Fatal(err)
	}
	parentID, childID := parent.FullID(), child.FullID()

	there, err := s.RenameNamespace(types.DefaultNamespace, "proj", "tester")
	if err != nil {
		t.Fatalf("rename to proj: %v", err)
	}
	back, err := s.RenameNamespace("proj", types.DefaultNamespace, "tester")
	if err != nil {
		t.Fatalf("rename back: %v", err)
	}
	if there != back {
		t.Errorf("renamed %d issues out, %d back", there, back)
	}

	got, err := s.Get(childID)
	if err != nil {
		t.Fatalf("Get after round trip: %v", err)
	}
	if got.Parent != parentID {
		t.Errorf("parent = %q, want %q", got.Parent, parentID)
	}
	deps, err := s.GetDependencies(childID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || deps[0].DependsOnID != parentID {
		t.Errorf("dependency endpoints not restored: %+v", deps)
	}

	// Disk agrees with memory.
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(childID); err != nil {
		t.Errorf("Get after reload: %v", err)
	}
}

func TestSecondCloseWins(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".dogcats")
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s, err := New(dir, &Options{CreateDir: true, Now: func() time.Time { return current }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	issue := mustCreate(t, s, "flaky fix")

	if _, err := s.Close(issue.FullID(), "first attempt", "alice"); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if _, err := s.Reopen(issue.FullID(), "bob"); err != nil {
		t.Fatalf("Reopen: %v", err)
	}

	current = current.Add(time.Hour)
	closed, err := s.Close(issue.FullID(), "second attempt", "carol")
	if err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if closed.ClosedBy != "carol" {
		t.Errorf("closed_by = %q, want carol", closed.ClosedBy)
	}
	if closed.CloseReason != "second attempt" {
		t.Errorf("close_reason = %q", closed.CloseReason)
	}
	if closed.ClosedAt == nil || !closed.ClosedAt.Equal(current) {
		t.Errorf("closed_at = %v, want %v", closed.ClosedAt, current)
	}
}
