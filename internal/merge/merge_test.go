package merge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFile writes JSONL lines for one side of a merge.
func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mergeThree(t *testing.T, ancestor, ours, theirs []string) []string {
	t.Helper()
	dir := t.TempDir()
	ancestorPath := writeFile(t, dir, "ancestor.jsonl", ancestor...)
	oursPath := writeFile(t, dir, "ours.jsonl", ours...)
	theirsPath := writeFile(t, dir, "theirs.jsonl", theirs...)

	if err := Files(ancestorPath, oursPath, theirsPath, oursPath); err != nil {
		t.Fatalf("Files: %v", err)
	}
	data, err := os.ReadFile(oursPath)
	if err != nil {
		t.Fatal(err)
	}
	out := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(out) == 1 && out[0] == "" {
		return nil
	}
	return out
}

func issueLine(id, title, updatedAt string) string {
	return `{"record_type":"issue","namespace":"dc","id":"` + id + `","title":"` + title + `","updated_at":"` + updatedAt + `"}`
}

func depLine(from, to string) string {
	return `{"record_type":"dependency","issue_id":"` + from + `","depends_on_id":"` + to + `","type":"blocks"}`
}

func depRemoveLine(from, to string) string {
	return `{"record_type":"dependency","op":"remove","issue_id":"` + from + `","depends_on_id":"` + to + `","type":"blocks"}`
}

func eventLine(issueID, ts, eventType, by string) string {
	return `{"record_type":"event","event_type":"` + eventType + `","issue_id":"` + issueID + `","timestamp":"` + ts + `","by":"` + by + `"}`
}

func TestMergeDisjointIssues(t *testing.T) {
	base := issueLine("base", "shared", "2024-01-01T00:00:00Z")
	oursOnly := issueLine("aaaa", "ours", "2024-01-02T00:00:00Z")
	theirsOnly := issueLine("bbbb", "theirs", "2024-01-03T00:00:00Z")

	out := mergeThree(t,
		[]string{base},
		[]string{base, oursOnly},
		[]string{base, theirsOnly},
	)
	if len(out) != 3 {
		t.Fatalf("output has %d lines, want 3: %v", len(out), out)
	}
	joined := strings.Join(out, "\n")
	for _, want := range []string{`"id":"base"`, `"id":"aaaa"`, `"id":"bbbb"`} {
		if !strings.Contains(joined, want) {
			t.Errorf("output missing %s", want)
		}
	}
}

func TestMergeSameIssueLastWriteWins(t *testing.T) {
	base := issueLine("aaaa", "original", "2024-01-01T00:00:00Z")
	ours := issueLine("aaaa", "ours-edit", "2024-01-02T00:00:00Z")
	theirs := issueLine("aaaa", "theirs-edit", "2024-01-03T00:00:00Z")

	out := mergeThree(t, []string{base}, []string{ours}, []string{theirs})
	if len(out) != 1 {
		t.Fatalf("output = %v", out)
	}
	if !strings.Contains(out[0], "theirs-edit") {
		t.Errorf("fresher edit lost: %s", out[0])
	}
}

func TestMergeSameTimestampTheirsWins(t *testing.T) {
	ts := "2024-01-02T00:00:00Z"
	ours := issueLine("aaaa", "ours-edit", ts)
	theirs := issueLine("aaaa", "theirs-edit", ts)

	out := mergeThree(t, nil, []string{ours}, []string{theirs})
	if len(out) != 1 || !strings.Contains(out[0], "theirs-edit") {
		t.Errorf("tie did not go to theirs: %v", out)
	}
}

func TestMergeDependencyDeletionWins(t *testing.T) {
	dep := depLine("dc-a", "dc-b")

	// Theirs removed the edge; ours still carries it.
	out := mergeThree(t,
		[]string{dep},
		[]string{dep},
		nil,
	)
	if len(out) != 0 {
		t.Errorf("deleted edge resurrected: %v", out)
	}
}

func TestMergeDependencyAddedOneSide(t *testing.T) {
	dep := depLine("dc-a", "dc-b")
	out := mergeThree(t, nil, []string{dep}, nil)
	if len(out) != 1 || !strings.Contains(out[0], `"depends_on_id":"dc-b"`) {
		t.Errorf("new edge lost: %v", out)
	}
}

func TestMergeDependencyOpReplay(t *testing.T) {
	add := depLine("dc-a", "dc-b")
	remove := depRemoveLine("dc-a", "dc-b")

	// Ours added then removed the edge: its effective set is empty, so
	// the merged output carries nothing.
	out := mergeThree(t, nil, []string{add, remove}, nil)
	if len(out) != 0 {
		t.Errorf("replayed-away edge survived: %v", out)
	}
}

func TestMergeEventsDedupAndSort(t *testing.T) {
	shared := eventLine("dc-a", "2024-01-01T10:00:00Z", "created", "alice")
	oursEv := eventLine("dc-a", "2024-01-02T10:00:00Z", "updated", "alice")
	theirsEv := eventLine("dc-a", "2024-01-01T12:00:00Z", "updated", "bob")

	out := mergeThree(t,
		[]string{shared},
		[]string{shared, oursEv},
		[]string{shared, theirsEv},
	)
	if len(out) != 3 {
		t.Fatalf("events not deduped: %v", out)
	}
	// Chronological order.
	if !strings.Contains(out[0], "created") || !strings.Contains(out[1], `"by":"bob"`) || !strings.Contains(out[2], `"by":"alice"`) {
		t.Errorf("events out of order: %v", out)
	}
}

func TestMergeSkipsMalformedAndMarkers(t *testing.T) {
	good := issueLine("aaaa", "good", "2024-01-01T00:00:00Z")
	out := mergeThree(t,
		nil,
		[]string{"<<<<<<< HEAD", good, "=======", "{not json", ">>>>>>> branch"},
		nil,
	)
	if len(out) != 1 || !strings.Contains(out[0], `"id":"aaaa"`) {
		t.Errorf("good record lost among junk: %v", out)
	}
}

func TestMergeMissingAncestor(t *testing.T) {
	dir := t.TempDir()
	ours := writeFile(t, dir, "ours.jsonl", issueLine("aaaa", "a", "2024-01-01T00:00:00Z"))
	theirs := writeFile(t, dir, "theirs.jsonl", issueLine("bbbb", "b", "2024-01-01T00:00:00Z"))

	if err := Files(filepath.Join(dir, "missing.jsonl"), ours, theirs, ours); err != nil {
		t.Fatalf("Files with missing ancestor: %v", err)
	}
	data, _ := os.ReadFile(ours)
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("output lines = %d, want 2", n)
	}
}

func TestMergeOutputDeterministic(t *testing.T) {
	lines := []string{
		issueLine("bbbb", "b", "2024-01-01T00:00:00Z"),
		issueLine("aaaa", "a", "2024-01-01T00:00:00Z"),
		depLine("dc-bbbb", "dc-aaaa"),
	}
	first := mergeThree(t, nil, lines, nil)
	second := mergeThree(t, nil, nil, lines)
	if strings.Join(first, "\n") != strings.Join(second, "\n") {
		t.Errorf("merge output not deterministic:\n%v\n%v", first, second)
	}
	// Issues sorted before edges, ids ascending.
	if !strings.Contains(first[0], `"id":"aaaa"`) || !strings.Contains(first[1], `"id":"bbbb"`) {
		t.Errorf("issues not sorted: %v", first)
	}
}
