package types

import (
	"encoding/json"
	"strings"
)

// DecodeIssue parses an issue record, applying backward-compatible
// migrations: legacy combined ids are split into (namespace, id), and a
// close reason stashed in the notes field by old releases is promoted to
// close_reason.
func DecodeIssue(line []byte) (*Issue, error) {
	var issue Issue
	if err := json.Unmarshal(line, &issue); err != nil {
		return nil, err
	}
	if issue.Namespace == "" && strings.Contains(issue.ID, "-") {
		issue.Namespace, issue.ID = SplitLegacyID(issue.ID)
	}
	issue.SetDefaults()
	migrateCloseReason(&issue)
	return &issue, nil
}

// legacyCloseMarker is the separator old releases used to embed the close
// reason inside notes.
const legacyCloseMarker = "\n\nClosed: "

func migrateCloseReason(issue *Issue) {
	if issue.CloseReason != "" || !strings.Contains(issue.Notes, legacyCloseMarker) {
		return
	}
	idx := strings.LastIndex(issue.Notes, legacyCloseMarker)
	reason := strings.TrimSpace(issue.Notes[idx+len(legacyCloseMarker):])
	issue.CloseReason = reason
	issue.Notes = strings.TrimSpace(issue.Notes[:idx])
}

// DecodeProposal parses a proposal record, splitting legacy combined ids.
func DecodeProposal(line []byte) (*Proposal, error) {
	var p Proposal
	if err := json.Unmarshal(line, &p); err != nil {
		return nil, err
	}
	if p.Namespace == "" && strings.Contains(p.ID, "-") {
		p.Namespace, p.ID = SplitLegacyID(p.ID)
	}
	if p.Status == "" {
		p.Status = ProposalOpen
	}
	return &p, nil
}
