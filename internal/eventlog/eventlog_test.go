package eventlog

import (
	"testing"
)

func TestAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	log := New(dir)

	events := []*Event{
		{EventType: EventCreated, IssueID: "dc-aaaa", Timestamp: "2024-01-01T10:00:00Z", By: "alice", Title: "first"},
		{EventType: EventUpdated, IssueID: "dc-aaaa", Timestamp: "2024-01-02T10:00:00Z", By: "bob",
			Changes: map[string]Change{"title": {Old: "first", New: "renamed"}}},
		{EventType: EventCreated, IssueID: "dc-bbbb", Timestamp: "2024-01-03T10:00:00Z", By: "alice", Title: "other"},
	}
	for _, ev := range events {
		if err := log.Append(ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := log.Read("", 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("read %d events, want 3", len(all))
	}
	// Newest first.
	if all[0].IssueID != "dc-bbbb" || all[2].EventType != EventCreated {
		t.Errorf("order wrong: %+v", all)
	}

	filtered, err := log.Read("dc-aaaa", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered read = %d events, want 2", len(filtered))
	}
	if filtered[0].Changes["title"].New != "renamed" {
		t.Errorf("changes lost: %+v", filtered[0].Changes)
	}

	limited, err := log.Read("", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].IssueID != "dc-bbbb" {
		t.Errorf("limit wrong: %+v", limited)
	}
}

func TestReadMissingFile(t *testing.T) {
	log := New(t.TempDir())
	events, err := log.Read("", 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if events != nil {
		t.Errorf("expected no events, got %v", events)
	}
}

func TestAppendSetsRecordType(t *testing.T) {
	log := New(t.TempDir())
	if err := log.Append(&Event{EventType: EventClosed, IssueID: "dc-x", Timestamp: "2024-01-01T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	events, err := log.Read("dc-x", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].RecordType != "event" {
		t.Errorf("record_type not stamped: %+v", events)
	}
}
