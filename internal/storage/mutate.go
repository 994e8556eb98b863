package storage

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/dogcat-dev/dogcat/internal/debug"
	"github.com/dogcat-dev/dogcat/internal/eventlog"
	"github.com/dogcat-dev/dogcat/internal/idgen"
	"github.com/dogcat-dev/dogcat/internal/types"
)

// updatableFields is the whitelist of fields Update will touch. Keys
// outside it are ignored so stale callers never corrupt bookkeeping
// fields like created_at.
var updatableFields = map[string]bool{
	"title":        true,
	"description":  true,
	"status":       true,
	"priority":     true,
	"issue_type":   true,
	"owner":        true,
	"parent":       true,
	"labels":       true,
	"external_ref": true,
	"design":       true,
	"plan":         true,
	"acceptance":   true,
	"notes":        true,
	"close_reason": true,
	"comments":     true,
	"metadata":     true,
	"duplicate_of": true,
}

var namespaceRe = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// Create persists a new issue. An empty ID is assigned from the hash
// generator using the issue's title and creation timestamp.
func (s *Store) Create(issue *types.Issue, by string) error {
	now := s.now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}
	if issue.CreatedBy == "" {
		issue.CreatedBy = by
	}
	issue.SetDefaults()
	if issue.ID == "" {
		issue.ID = s.gen.IssueID(issue.Title, issue.CreatedAt, issue.Namespace)
	} else {
		s.gen.AddExisting(issue.FullID())
	}
	if err := issue.Validate(); err != nil {
		return err
	}

	fid := issue.FullID()
	if _, exists := s.issues[fid]; exists {
		return &types.ConflictError{Reason: fmt.Sprintf("issue %s already exists", fid)}
	}
	if issue.Parent != "" {
		if _, err := s.ResolveID(issue.Parent); err != nil {
			return fmt.Errorf("parent %s: %w", issue.Parent, err)
		}
	}

	line, err := encodeIssue(issue)
	if err != nil {
		return err
	}
	if err := s.appendLines(line); err != nil {
		return err
	}

	s.issues[fid] = issue
	if issue.Parent != "" {
		s.childrenByParent[issue.Parent] = append(s.childrenByParent[issue.Parent], fid)
	}

	// The creation event snapshots every populated tracked field so
	// history shows what the issue started as.
	changes := make(map[string]eventlog.Change)
	for field := range types.TrackedFields {
		value := trackedValue(issue, field)
		if emptyTrackedValue(value) {
			continue
		}
		changes[field] = eventlog.Change{New: value}
	}
	s.emitEvent(eventlog.EventCreated, issue, changes, by)
	s.maybeCompact()
	return nil
}

// Update applies a partial update. Unknown keys are ignored; tracked
// fields that actually change produce event change entries. Returns the
// updated issue.
func (s *Store) Update(id string, updates map[string]interface{}, by string) (*types.Issue, error) {
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	issue := s.issues[fid]
	if issue.IsTombstone() {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("issue %s is deleted", fid)}
	}

	updated := cloneIssue(issue)
	oldValues := make(map[string]interface{})
	for key := range updates {
		if types.TrackedFields[key] {
			oldValues[key] = trackedValue(issue, key)
		}
	}

	touched := false
	for key, value := range updates {
		if !updatableFields[key] {
			continue
		}
		if err := applyField(updated, key, value); err != nil {
			return nil, err
		}
		touched = true
	}
	if !touched {
		return issue, nil
	}

	now := s.now().UTC()
	updated.UpdatedAt = now
	updated.UpdatedBy = by

	eventType := eventlog.EventUpdated
	if updated.Status != issue.Status {
		switch {
		case updated.Status == types.StatusClosed:
			eventType = eventlog.EventClosed
			updated.ClosedAt = &now
			updated.ClosedBy = by
		case issue.Status == types.StatusClosed:
			eventType = eventlog.EventReopened
			updated.ClosedAt = nil
			updated.ClosedBy = ""
			updated.CloseReason = ""
		}
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	line, err := encodeIssue(updated)
	if err != nil {
		return nil, err
	}
	if err := s.appendLines(line); err != nil {
		return nil, err
	}

	s.issues[fid] = updated
	if updated.Parent != issue.Parent {
		s.rebuildIndexes()
	}

	changes := make(map[string]eventlog.Change)
	for key, old := range oldValues {
		current := trackedValue(updated, key)
		if !reflect.DeepEqual(old, current) {
			changes[key] = eventlog.Change{Old: old, New: current}
		}
	}
	if len(changes) > 0 {
		s.emitEvent(eventType, updated, changes, by)
	}
	s.maybeCompact()
	return updated, nil
}

// Close marks an issue closed with an optional reason.
func (s *Store) Close(id, reason, by string) (*types.Issue, error) {
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	if s.issues[fid].IsClosed() {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("issue %s is already closed", fid)}
	}
	updates := map[string]interface{}{"status": string(types.StatusClosed)}
	if reason != "" {
		updates["close_reason"] = reason
	}
	return s.Update(fid, updates, by)
}

// Reopen returns a closed issue to open, clearing the close bookkeeping.
// Only closed issues can be reopened.
func (s *Store) Reopen(id, by string) (*types.Issue, error) {
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	if !s.issues[fid].IsClosed() {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("issue %s is not closed", fid)}
	}
	return s.Update(fid, map[string]interface{}{"status": string(types.StatusOpen)}, by)
}

// Delete soft-deletes an issue: the record becomes a tombstone retaining
// its original type, and every dependency or link touching it gets a
// removal record in the same append batch.
func (s *Store) Delete(id, reason, by string) error {
	fid, err := s.ResolveID(id)
	if err != nil {
		return err
	}
	issue := s.issues[fid]
	if issue.IsTombstone() {
		return &types.ConflictError{Reason: fmt.Sprintf("issue %s is already deleted", fid)}
	}

	now := s.now().UTC()
	updated := cloneIssue(issue)
	updated.OriginalType = updated.IssueType
	updated.Status = types.StatusTombstone
	updated.DeletedAt = &now
	updated.DeletedBy = by
	updated.DeleteReason = reason
	updated.UpdatedAt = now
	updated.UpdatedBy = by

	lines := make([][]byte, 0, 1)
	line, err := encodeIssue(updated)
	if err != nil {
		return err
	}
	lines = append(lines, line)

	var droppedDeps, droppedLinks []string
	for _, key := range sortedKeys(s.deps) {
		dep := s.deps[key]
		if dep.IssueID != fid && dep.DependsOnID != fid {
			continue
		}
		rm, err := encodeDep(dep, opRemove)
		if err != nil {
			return err
		}
		lines = append(lines, rm)
		droppedDeps = append(droppedDeps, key)
	}
	for _, key := range sortedKeys(s.links) {
		link := s.links[key]
		if link.FromID != fid && link.ToID != fid {
			continue
		}
		rm, err := encodeLink(link, opRemove)
		if err != nil {
			return err
		}
		lines = append(lines, rm)
		droppedLinks = append(droppedLinks, key)
	}

	if err := s.appendLines(lines...); err != nil {
		return err
	}

	s.issues[fid] = updated
	for _, key := range droppedDeps {
		delete(s.deps, key)
	}
	for _, key := range droppedLinks {
		delete(s.links, key)
	}
	s.rebuildIndexes()
	s.emitEvent(eventlog.EventDeleted, updated, nil, by)
	s.maybeCompact()
	return nil
}

// AddComment appends an immutable comment to an issue. Comments are not
// tracked fields, so no event is emitted.
func (s *Store) AddComment(id, author, text string) (*types.Comment, error) {
	if text == "" {
		return nil, &types.ValidationError{Field: "text", Reason: "comment text must be non-empty"}
	}
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	issue := s.issues[fid]
	if issue.IsTombstone() {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("issue %s is deleted", fid)}
	}

	comment := &types.Comment{
		ID:        s.gen.CommentID(),
		IssueID:   fid,
		Author:    author,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	updated := cloneIssue(issue)
	updated.Comments = append(updated.Comments, comment)
	updated.UpdatedAt = comment.CreatedAt
	updated.UpdatedBy = author

	line, err := encodeIssue(updated)
	if err != nil {
		return nil, err
	}
	if err := s.appendLines(line); err != nil {
		return nil, err
	}
	s.issues[fid] = updated
	s.maybeCompact()
	return comment, nil
}

// RenameNamespace moves every issue from oldNS to newNS, rewriting issue
// records, dependency and link endpoints, parent and duplicate pointers,
// and historical event ids in a single full rewrite. Fails if no issue
// carries oldNS or a rename would collide with an existing id.
func (s *Store) RenameNamespace(oldNS, newNS, by string) (int, error) {
	if !namespaceRe.MatchString(newNS) {
		return 0, &types.ValidationError{Field: "namespace", Reason: fmt.Sprintf("invalid namespace %q: must be lowercase alphanumeric starting with a letter", newNS)}
	}
	if oldNS == newNS {
		return 0, nil
	}

	renamed := make(map[string]string)
	for fid, issue := range s.issues {
		if issue.Namespace == oldNS {
			renamed[fid] = newNS + "-" + issue.ID
		}
	}
	if len(renamed) == 0 {
		return 0, fmt.Errorf("no issues in namespace %q: %w", oldNS, types.ErrNotFound)
	}
	for oldFid, newFid := range renamed {
		if _, exists := s.issues[newFid]; exists {
			if _, alsoRenamed := renamed[newFid]; !alsoRenamed {
				return 0, &types.ConflictError{Reason: fmt.Sprintf("renaming %s to %s collides with an existing issue", oldFid, newFid)}
			}
		}
	}

	remap := func(id string) string {
		if newID, ok := renamed[id]; ok {
			return newID
		}
		return id
	}

	issues := make(map[string]*types.Issue, len(s.issues))
	for fid, issue := range s.issues {
		if issue.Namespace == oldNS {
			issue.Namespace = newNS
		}
		issue.Parent = remap(issue.Parent)
		issue.DuplicateOf = remap(issue.DuplicateOf)
		for _, c := range issue.Comments {
			c.IssueID = remap(c.IssueID)
		}
		issues[remap(fid)] = issue
	}
	s.issues = issues

	deps := make(map[string]*types.Dependency, len(s.deps))
	for _, dep := range s.deps {
		dep.IssueID = remap(dep.IssueID)
		dep.DependsOnID = remap(dep.DependsOnID)
		deps[dep.Key()] = dep
	}
	s.deps = deps

	links := make(map[string]*types.Link, len(s.links))
	for _, link := range s.links {
		link.FromID = remap(link.FromID)
		link.ToID = remap(link.ToID)
		links[link.Key()] = link
	}
	s.links = links

	s.rebuildIndexes()
	if err := s.save(saveOpts{renameEventIDs: renamed}); err != nil {
		// Memory was remapped before the rewrite; fall back to disk so
		// reads do not serve ids the file never got.
		if lerr := s.load(); lerr != nil {
			debug.Warnf("reloading after failed rename: %v", lerr)
		}
		return 0, err
	}
	s.gen = idgen.New(s.usedIDs(), newNS)
	return len(renamed), nil
}

// PruneTombstones permanently removes tombstoned issues deleted before
// the cutoff (zero time prunes all tombstones), along with their events
// and any events for issues that no longer exist. Returns the number of
// issues removed.
func (s *Store) PruneTombstones(before time.Time) (int, error) {
	pruned := make(map[string]bool)
	for fid, issue := range s.issues {
		if !issue.IsTombstone() {
			continue
		}
		if before.IsZero() || issue.DeletedAt == nil || issue.DeletedAt.Before(before) {
			pruned[fid] = true
		}
	}
	if len(pruned) == 0 {
		return 0, nil
	}

	for fid := range pruned {
		delete(s.issues, fid)
	}
	for key, dep := range s.deps {
		if pruned[dep.IssueID] || pruned[dep.DependsOnID] {
			delete(s.deps, key)
		}
	}
	for key, link := range s.links {
		if pruned[link.FromID] || pruned[link.ToID] {
			delete(s.links, key)
		}
	}

	s.rebuildIndexes()
	if err := s.save(saveOpts{dropEventIDs: pruned, dropOrphanEvents: true}); err != nil {
		if lerr := s.load(); lerr != nil {
			debug.Warnf("reloading after failed prune: %v", lerr)
		}
		return 0, err
	}
	return len(pruned), nil
}

// cloneIssue deep-copies the mutable parts of an issue so an update can
// be prepared and persisted before the index swap.
func cloneIssue(issue *types.Issue) *types.Issue {
	out := *issue
	if issue.Labels != nil {
		out.Labels = append([]string(nil), issue.Labels...)
	}
	if issue.Comments != nil {
		out.Comments = make([]*types.Comment, len(issue.Comments))
		for i, c := range issue.Comments {
			cc := *c
			out.Comments[i] = &cc
		}
	}
	if issue.Metadata != nil {
		out.Metadata = make(map[string]string, len(issue.Metadata))
		for k, v := range issue.Metadata {
			out.Metadata[k] = v
		}
	}
	if issue.ClosedAt != nil {
		t := *issue.ClosedAt
		out.ClosedAt = &t
	}
	if issue.DeletedAt != nil {
		t := *issue.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

// trackedValue extracts the current value of a tracked field for event
// change entries.
func trackedValue(issue *types.Issue, field string) interface{} {
	switch field {
	case "title":
		return issue.Title
	case "description":
		return issue.Description
	case "labels":
		return append([]string(nil), issue.Labels...)
	case "external_ref":
		return issue.ExternalRef
	case "issue_type":
		return string(issue.IssueType)
	case "priority":
		return issue.Priority
	case "parent":
		return issue.Parent
	case "acceptance":
		return issue.Acceptance
	case "notes":
		return issue.Notes
	case "design":
		return issue.Design
	case "plan":
		return issue.Plan
	case "status":
		return string(issue.Status)
	case "owner":
		return issue.Owner
	}
	return nil
}

// emptyTrackedValue reports whether a tracked field is unset, so the
// creation event only records fields the issue actually started with.
// Ints (priority) always count as set.
func emptyTrackedValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	}
	return false
}

// applyField sets one whitelisted field, coercing the loosely typed
// update value and validating enums.
func applyField(issue *types.Issue, field string, value interface{}) error {
	switch field {
	case "title":
		issue.Title = fmt.Sprint(value)
	case "description":
		issue.Description = fmt.Sprint(value)
	case "status":
		status := types.Status(fmt.Sprint(value))
		if !status.IsValid() {
			return &types.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", status)}
		}
		issue.Status = status
	case "priority":
		p, ok := toInt(value)
		if !ok {
			return &types.ValidationError{Field: "priority", Reason: fmt.Sprintf("priority must be an integer (got %v)", value)}
		}
		issue.Priority = p
	case "issue_type":
		t := types.IssueType(fmt.Sprint(value))
		if !t.IsValid() {
			return &types.ValidationError{Field: "issue_type", Reason: fmt.Sprintf("invalid issue type: %s", t)}
		}
		issue.IssueType = t
	case "owner":
		issue.Owner = fmt.Sprint(value)
	case "parent":
		issue.Parent = fmt.Sprint(value)
	case "labels":
		labels, err := toStringSlice(value)
		if err != nil {
			return &types.ValidationError{Field: "labels", Reason: err.Error()}
		}
		issue.Labels = labels
	case "external_ref":
		issue.ExternalRef = fmt.Sprint(value)
	case "design":
		issue.Design = fmt.Sprint(value)
	case "plan":
		issue.Plan = fmt.Sprint(value)
	case "acceptance":
		issue.Acceptance = fmt.Sprint(value)
	case "notes":
		issue.Notes = fmt.Sprint(value)
	case "close_reason":
		issue.CloseReason = fmt.Sprint(value)
	case "duplicate_of":
		issue.DuplicateOf = fmt.Sprint(value)
	case "comments":
		comments, ok := value.([]*types.Comment)
		if !ok {
			return &types.ValidationError{Field: "comments", Reason: "comments must be a comment list"}
		}
		issue.Comments = comments
	case "metadata":
		meta, err := toStringMap(value)
		if err != nil {
			return &types.ValidationError{Field: "metadata", Reason: err.Error()}
		}
		issue.Metadata = meta
	}
	return nil
}

func toStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprint(item)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a string list (got %T)", value)
}

func toStringMap(value interface{}) (map[string]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, item := range v {
			out[k] = fmt.Sprint(item)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a string map (got %T)", value)
}
