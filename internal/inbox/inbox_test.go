package inbox

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dogcat-dev/dogcat/internal/types"
)

func testInbox(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestCreateAndList(t *testing.T) {
	s := testInbox(t)
	p, err := s.Create("try the new linter", "might catch the nil derefs", "alice", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" || p.Status != types.ProposalOpen {
		t.Errorf("proposal fields wrong: %+v", p)
	}

	open := s.List(types.ProposalOpen)
	if len(open) != 1 || open[0].Title != "try the new linter" {
		t.Errorf("List = %+v", open)
	}

	if _, err := s.Create("", "", "alice", ""); !errors.Is(err, types.ErrValidation) {
		t.Errorf("empty title: got %v, want validation error", err)
	}
}

func TestCloseWithResolvedIssue(t *testing.T) {
	s := testInbox(t)
	p, err := s.Create("promote me", "", "alice", "")
	if err != nil {
		t.Fatal(err)
	}

	closed, err := s.Close(p.FullID(), "promoted", "dc-4kzj", "bob")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != types.ProposalClosed || closed.ResolvedIssue != "dc-4kzj" {
		t.Errorf("close fields wrong: %+v", closed)
	}

	if _, err := s.Close(p.FullID(), "", "", "bob"); !errors.Is(err, types.ErrConflict) {
		t.Errorf("double close: got %v, want conflict", err)
	}
}

func TestDeleteAndPrune(t *testing.T) {
	s := testInbox(t)
	keep, err := s.Create("keep", "", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	doomed, err := s.Create("doomed", "", "alice", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(doomed.FullID(), "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Tombstones drop out of the default listing but stay resolvable.
	if got := s.List(""); len(got) != 1 {
		t.Errorf("default list = %d proposals, want 1", len(got))
	}
	if _, err := s.Get(doomed.FullID()); err != nil {
		t.Errorf("tombstone unresolvable: %v", err)
	}

	n, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if _, err := s.Get(doomed.FullID()); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("pruned proposal still present: %v", err)
	}

	// Replay from disk agrees.
	reloaded, err := New(filepath.Dir(s.path), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reloaded.Get(keep.FullID()); err != nil {
		t.Errorf("surviving proposal lost after rewrite: %v", err)
	}
}

func TestLoadLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.Create("evolving", "", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Close(p.FullID(), "rejected", "", "bob"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.Get(p.FullID())
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.ProposalClosed {
		t.Errorf("replay kept stale status %q", got.Status)
	}
}
