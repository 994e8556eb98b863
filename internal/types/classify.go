package types

import "encoding/json"

// RecordKind identifies what a JSONL line holds.
type RecordKind string

// Record kinds, matching the record_type tag on disk.
const (
	KindIssue      RecordKind = "issue"
	KindDependency RecordKind = "dependency"
	KindLink       RecordKind = "link"
	KindEvent      RecordKind = "event"
	KindProposal   RecordKind = "proposal"
)

// recordHeader is the minimal probe used to classify a raw line.
type recordHeader struct {
	RecordType  string          `json:"record_type"`
	FromID      json.RawMessage `json:"from_id"`
	ToID        json.RawMessage `json:"to_id"`
	IssueID     json.RawMessage `json:"issue_id"`
	DependsOnID json.RawMessage `json:"depends_on_id"`
}

// ClassifyRecord determines the kind of a decoded JSONL record.
//
// An explicit record_type tag wins. Legacy records lacking the tag are
// classified by structural sniffing, evaluated in priority order:
// from_id+to_id means link, issue_id+depends_on_id means dependency,
// anything else is an issue.
func ClassifyRecord(line []byte) (RecordKind, error) {
	var hdr recordHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return "", err
	}
	switch RecordKind(hdr.RecordType) {
	case KindIssue, KindDependency, KindLink, KindEvent, KindProposal:
		return RecordKind(hdr.RecordType), nil
	}
	if hdr.FromID != nil && hdr.ToID != nil {
		return KindLink, nil
	}
	if hdr.IssueID != nil && hdr.DependsOnID != nil {
		return KindDependency, nil
	}
	return KindIssue, nil
}

// SplitLegacyID splits a combined id like "dc-4kzj" into namespace and
// hash parts on the last hyphen. Used only for backward-compatible load
// of records written before the namespace field existed. An id with no
// hyphen has no namespace part.
func SplitLegacyID(full string) (namespace, id string) {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '-' && i > 0 {
			return full[:i], full[i+1:]
		}
	}
	return "", full
}
