package storage

import (
	"fmt"

	"github.com/dogcat-dev/dogcat/internal/types"
)

// AddDependency records that issueID depends on dependsOnID. The edge is
// idempotent on its (from, to, type) triple; re-adding an existing edge
// is a no-op. Self-edges and edges that would close a cycle are refused.
func (s *Store) AddDependency(issueID, dependsOnID string, depType types.DependencyType, by string) (*types.Dependency, error) {
	if depType == "" {
		depType = types.DepBlocks
	}
	if !depType.IsValid() {
		return nil, &types.ValidationError{Field: "type", Reason: fmt.Sprintf("invalid dependency type: %s", depType)}
	}

	from, err := s.ResolveID(issueID)
	if err != nil {
		return nil, err
	}
	to, err := s.ResolveID(dependsOnID)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("issue %s cannot depend on itself", from)}
	}

	dep := &types.Dependency{
		IssueID:     from,
		DependsOnID: to,
		Type:        depType,
		CreatedAt:   s.now().UTC(),
		CreatedBy:   by,
	}
	if existing, ok := s.deps[dep.Key()]; ok {
		return existing, nil
	}
	if s.dependsTransitively(to, from) {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("dependency %s -> %s would create a cycle", from, to)}
	}

	line, err := encodeDep(dep, opAdd)
	if err != nil {
		return nil, err
	}
	if err := s.appendLines(line); err != nil {
		return nil, err
	}

	s.deps[dep.Key()] = dep
	s.depsByIssue[from] = append(s.depsByIssue[from], dep)
	s.depsByDependsOn[to] = append(s.depsByDependsOn[to], dep)
	s.maybeCompact()
	return dep, nil
}

// RemoveDependency retracts a dependency edge by appending a removal
// record. Removing an absent edge is NotFoundError.
func (s *Store) RemoveDependency(issueID, dependsOnID string, depType types.DependencyType) error {
	if depType == "" {
		depType = types.DepBlocks
	}
	from, err := s.ResolveID(issueID)
	if err != nil {
		return err
	}
	to, err := s.ResolveID(dependsOnID)
	if err != nil {
		return err
	}

	key := (&types.Dependency{IssueID: from, DependsOnID: to, Type: depType}).Key()
	dep, ok := s.deps[key]
	if !ok {
		return fmt.Errorf("dependency %s -> %s (%s): %w", from, to, depType, types.ErrNotFound)
	}

	line, err := encodeDep(dep, opRemove)
	if err != nil {
		return err
	}
	if err := s.appendLines(line); err != nil {
		return err
	}

	delete(s.deps, key)
	s.rebuildIndexes()
	s.maybeCompact()
	return nil
}

// GetDependencies returns the outgoing edges of an issue (what it
// depends on).
func (s *Store) GetDependencies(id string) ([]*types.Dependency, error) {
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	return s.depsByIssue[fid], nil
}

// GetDependents returns the incoming edges of an issue (what depends
// on it).
func (s *Store) GetDependents(id string) ([]*types.Dependency, error) {
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	return s.depsByDependsOn[fid], nil
}

// dependsTransitively reports whether target is reachable from start by
// following dependency edges. Iterative, so pathological graphs never
// blow the stack.
func (s *Store) dependsTransitively(start, target string) bool {
	if start == target {
		return true
	}
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range s.depsByIssue[current] {
			next := dep.DependsOnID
			if next == target {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// AddLink records a non-blocking relation between two issues. Like
// dependencies, links are idempotent on their identity triple, but they
// are never cycle-checked: links carry no ordering semantics.
func (s *Store) AddLink(fromID, toID, linkType, by string) (*types.Link, error) {
	if linkType == "" {
		linkType = types.DefaultLinkType
	}
	from, err := s.ResolveID(fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.ResolveID(toID)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("issue %s cannot link to itself", from)}
	}

	link := &types.Link{
		FromID:    from,
		ToID:      to,
		LinkType:  linkType,
		CreatedAt: s.now().UTC(),
		CreatedBy: by,
	}
	if existing, ok := s.links[link.Key()]; ok {
		return existing, nil
	}

	line, err := encodeLink(link, opAdd)
	if err != nil {
		return nil, err
	}
	if err := s.appendLines(line); err != nil {
		return nil, err
	}

	s.links[link.Key()] = link
	s.linksByFrom[from] = append(s.linksByFrom[from], link)
	s.linksByTo[to] = append(s.linksByTo[to], link)
	s.maybeCompact()
	return link, nil
}

// RemoveLink retracts a link edge by appending a removal record.
func (s *Store) RemoveLink(fromID, toID, linkType string) error {
	if linkType == "" {
		linkType = types.DefaultLinkType
	}
	from, err := s.ResolveID(fromID)
	if err != nil {
		return err
	}
	to, err := s.ResolveID(toID)
	if err != nil {
		return err
	}

	key := (&types.Link{FromID: from, ToID: to, LinkType: linkType}).Key()
	link, ok := s.links[key]
	if !ok {
		return fmt.Errorf("link %s -> %s (%s): %w", from, to, linkType, types.ErrNotFound)
	}

	line, err := encodeLink(link, opRemove)
	if err != nil {
		return err
	}
	if err := s.appendLines(line); err != nil {
		return err
	}

	delete(s.links, key)
	s.rebuildIndexes()
	s.maybeCompact()
	return nil
}

// GetLinks returns the outgoing links of an issue.
func (s *Store) GetLinks(id string) ([]*types.Link, error) {
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	return s.linksByFrom[fid], nil
}

// GetIncomingLinks returns the links pointing at an issue.
func (s *Store) GetIncomingLinks(id string) ([]*types.Link, error) {
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	return s.linksByTo[fid], nil
}

// GetChildren returns the full ids of issues whose parent field points at
// the given issue. Parent/child is organizational; it never blocks.
func (s *Store) GetChildren(id string) ([]string, error) {
	fid, err := s.ResolveID(id)
	if err != nil {
		return nil, err
	}
	return s.childrenByParent[fid], nil
}
