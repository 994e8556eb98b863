package storage

import (
	"encoding/json"
	"fmt"

	"github.com/dogcat-dev/dogcat/internal/types"
)

// Dependency and link records carry an op field: absent/"add" asserts the
// edge, "remove" retracts it. Issue records have no op; the latest record
// for a full id simply wins.
const (
	opAdd    = "add"
	opRemove = "remove"
)

// issueRecord is the wire form of an issue line.
type issueRecord struct {
	RecordType string `json:"record_type"`
	Version    string `json:"dcat_version"`
	*types.Issue
}

// depRecord is the wire form of a dependency line.
type depRecord struct {
	RecordType string `json:"record_type"`
	Version    string `json:"dcat_version,omitempty"`
	Op         string `json:"op,omitempty"`
	types.Dependency
}

// linkRecord is the wire form of a link line.
type linkRecord struct {
	RecordType string `json:"record_type"`
	Version    string `json:"dcat_version,omitempty"`
	Op         string `json:"op,omitempty"`
	types.Link
}

func encodeIssue(issue *types.Issue) ([]byte, error) {
	rec := issueRecord{
		RecordType: string(types.KindIssue),
		Version:    types.SchemaVersion,
		Issue:      issue,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling issue %s: %w", issue.FullID(), err)
	}
	return data, nil
}

func encodeDep(dep *types.Dependency, op string) ([]byte, error) {
	if op == opAdd {
		op = "" // add is the implied default, keep lines minimal
	}
	rec := depRecord{
		RecordType: string(types.KindDependency),
		Version:    types.SchemaVersion,
		Op:         op,
		Dependency: *dep,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling dependency %s: %w", dep.Key(), err)
	}
	return data, nil
}

func encodeLink(link *types.Link, op string) ([]byte, error) {
	if op == opAdd {
		op = ""
	}
	rec := linkRecord{
		RecordType: string(types.KindLink),
		Version:    types.SchemaVersion,
		Op:         op,
		Link:       *link,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling link %s: %w", link.Key(), err)
	}
	return data, nil
}

func decodeDepRecord(line []byte) (*depRecord, error) {
	var rec depRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("parsing dependency record: %w", err)
	}
	if rec.IssueID == "" || rec.DependsOnID == "" {
		return nil, fmt.Errorf("dependency record missing issue_id or depends_on_id")
	}
	if rec.Type == "" {
		rec.Type = types.DepBlocks
	}
	if !rec.Type.IsValid() {
		return nil, fmt.Errorf("unknown dependency type: %s", rec.Type)
	}
	return &rec, nil
}

func decodeLinkRecord(line []byte) (*linkRecord, error) {
	var rec linkRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("parsing link record: %w", err)
	}
	if rec.FromID == "" || rec.ToID == "" {
		return nil, fmt.Errorf("link record missing from_id or to_id")
	}
	if rec.LinkType == "" {
		rec.LinkType = types.DefaultLinkType
	}
	return &rec, nil
}
