// Package types defines the record shapes shared by the dcat storage
// engine: issues, dependencies, links, comments, and proposals.
package types

import (
	"fmt"
	"time"
)

// SchemaVersion is the schema marker written into every JSONL record.
const SchemaVersion = "1.2.0"

// DefaultNamespace is used when no namespace is configured or detectable.
const DefaultNamespace = "dc"

// DefaultPriority is assigned to issues created without an explicit priority.
const DefaultPriority = 2

// Status represents the current state of an issue.
type Status string

// Issue status constants.
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusBlocked    Status = "blocked"
	StatusDeferred   Status = "deferred"
	StatusClosed     Status = "closed"
	StatusTombstone  Status = "tombstone"
)

// IsValid checks if the status value is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusInReview, StatusBlocked,
		StatusDeferred, StatusClosed, StatusTombstone:
		return true
	}
	return false
}

// IssueType represents the kind of work an issue tracks.
type IssueType string

// Issue type constants.
const (
	TypeTask     IssueType = "task"
	TypeBug      IssueType = "bug"
	TypeFeature  IssueType = "feature"
	TypeStory    IssueType = "story"
	TypeChore    IssueType = "chore"
	TypeEpic     IssueType = "epic"
	TypeSubtask  IssueType = "subtask"
	TypeQuestion IssueType = "question"
	TypeDraft    IssueType = "draft"
)

// IsValid checks if the issue type is one of the known kinds.
func (t IssueType) IsValid() bool {
	switch t {
	case TypeTask, TypeBug, TypeFeature, TypeStory, TypeChore, TypeEpic,
		TypeSubtask, TypeQuestion, TypeDraft:
		return true
	}
	return false
}

// DependencyType classifies a dependency edge.
type DependencyType string

// Dependency type constants.
const (
	DepBlocks      DependencyType = "blocks"
	DepParentChild DependencyType = "parent-child"
	DepRelated     DependencyType = "related"
)

// IsValid checks if the dependency type is one of the known kinds.
func (t DependencyType) IsValid() bool {
	switch t {
	case DepBlocks, DepParentChild, DepRelated:
		return true
	}
	return false
}

// DefaultLinkType is used when a link is created without an explicit type.
const DefaultLinkType = "relates_to"

// Comment is a note attached to exactly one issue. Comments are immutable
// once written; they can only be removed along with their issue.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Dependency is a directed edge: IssueID depends on DependsOnID.
// Identity is the (IssueID, DependsOnID, Type) triple; the generated
// display id is cosmetic and never used for matching.
type Dependency struct {
	IssueID     string         `json:"issue_id"`
	DependsOnID string         `json:"depends_on_id"`
	Type        DependencyType `json:"type"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   string         `json:"created_by,omitempty"`
}

// Key returns the semantic identity triple as a single string.
func (d *Dependency) Key() string {
	return fmt.Sprintf("%s:%s:%s", d.IssueID, d.DependsOnID, d.Type)
}

// Link is a weaker, non-blocking relation between two issues. Links never
// participate in readiness or blocking computation.
type Link struct {
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	LinkType  string    `json:"link_type"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// Key returns the semantic identity triple as a single string.
func (l *Link) Key() string {
	return fmt.Sprintf("%s:%s:%s", l.FromID, l.ToID, l.LinkType)
}

// Issue represents a trackable work item.
//
// Identity is the (Namespace, ID) pair; ID holds only the hash part
// (e.g. "4kzj") and FullID joins the two for display and indexing.
type Issue struct {
	Namespace    string            `json:"namespace"`
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Status       Status            `json:"status,omitempty"`
	Priority     int               `json:"priority"` // no omitempty: 0 is valid (most urgent)
	IssueType    IssueType         `json:"issue_type,omitempty"`
	Owner        string            `json:"owner,omitempty"`
	Parent       string            `json:"parent,omitempty"` // organizational only, never a dependency
	Labels       []string          `json:"labels,omitempty"`
	ExternalRef  string            `json:"external_ref,omitempty"`
	Design       string            `json:"design,omitempty"`
	Plan         string            `json:"plan,omitempty"`
	Acceptance   string            `json:"acceptance,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	CloseReason  string            `json:"close_reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CreatedBy    string            `json:"created_by,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
	UpdatedBy    string            `json:"updated_by,omitempty"`
	ClosedAt     *time.Time        `json:"closed_at,omitempty"`
	ClosedBy     string            `json:"closed_by,omitempty"`
	DeletedAt    *time.Time        `json:"deleted_at,omitempty"`
	DeletedBy    string            `json:"deleted_by,omitempty"`
	DeleteReason string            `json:"delete_reason,omitempty"`
	OriginalType IssueType         `json:"original_type,omitempty"` // type before deletion, for tombstones
	Comments     []*Comment        `json:"comments,omitempty"`
	DuplicateOf  string            `json:"duplicate_of,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// FullID returns the display identifier, e.g. "dc-4kzj".
func (i *Issue) FullID() string {
	return i.Namespace + "-" + i.ID
}

// IsClosed returns true if the issue is closed.
func (i *Issue) IsClosed() bool {
	return i.Status == StatusClosed
}

// IsTombstone returns true if the issue has been soft-deleted.
func (i *Issue) IsTombstone() bool {
	return i.Status == StatusTombstone
}

// SetDefaults applies default values for fields omitted during load.
// Priority zero is a valid value (P0) and is never rewritten.
func (i *Issue) SetDefaults() {
	if i.Namespace == "" {
		i.Namespace = DefaultNamespace
	}
	if i.Status == "" {
		i.Status = StatusOpen
	}
	if i.IssueType == "" {
		i.IssueType = TypeTask
	}
}

// Validate checks that the issue has a title and legal field values.
func (i *Issue) Validate() error {
	if i.Title == "" {
		return &ValidationError{Field: "title", Reason: "title must be a non-empty string"}
	}
	if i.Priority < 0 || i.Priority > 4 {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("priority must be between 0 and 4 (got %d)", i.Priority)}
	}
	if !i.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", i.Status)}
	}
	if !i.IssueType.IsValid() {
		return &ValidationError{Field: "issue_type", Reason: fmt.Sprintf("invalid issue type: %s", i.IssueType)}
	}
	return nil
}

// TrackedFields are the content fields that produce event change entries.
// Administrative bookkeeping (close_reason, closed_by, ...) is excluded
// by policy.
var TrackedFields = map[string]bool{
	"title":        true,
	"description":  true,
	"labels":       true,
	"external_ref": true,
	"issue_type":   true,
	"priority":     true,
	"parent":       true,
	"acceptance":   true,
	"notes":        true,
	"design":       true,
	"plan":         true,
	"status":       true,
	"owner":        true,
}

// ProposalStatus represents the lifecycle of an inbox proposal.
type ProposalStatus string

// Proposal status constants.
const (
	ProposalOpen      ProposalStatus = "open"
	ProposalClosed    ProposalStatus = "closed"
	ProposalTombstone ProposalStatus = "tombstone"
)

// Proposal is a lightweight pre-issue record living in the inbox log.
// Proposals share the issue lifecycle shape but are not part of the
// dependency graph.
type Proposal struct {
	Namespace     string         `json:"namespace"`
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	ProposedBy    string         `json:"proposed_by,omitempty"`
	Status        ProposalStatus `json:"status,omitempty"`
	CloseReason   string         `json:"close_reason,omitempty"`
	ResolvedIssue string         `json:"resolved_issue,omitempty"` // issue created from this proposal
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty"`
	ClosedBy      string         `json:"closed_by,omitempty"`
	DeletedAt     *time.Time     `json:"deleted_at,omitempty"`
	DeletedBy     string         `json:"deleted_by,omitempty"`
}

// FullID returns the display identifier, e.g. "dc-inbox-4kzj".
func (p *Proposal) FullID() string {
	return p.Namespace + "-" + p.ID
}

// IsTombstone returns true if the proposal has been soft-deleted.
func (p *Proposal) IsTombstone() bool {
	return p.Status == ProposalTombstone
}
