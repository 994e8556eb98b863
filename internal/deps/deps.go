// Package deps answers graph questions over the record store: what is
// ready to work on, what is blocked, and whether the dependency graph
// contains cycles.
//
// Only "blocks" dependencies affect readiness. Parent/child and related
// edges, and all links, are organizational and never block. Cycle
// detection, by contrast, covers every dependency type: a cycle of any
// kind indicates a modeling error worth surfacing.
package deps

import (
	"sort"

	"github.com/dogcat-dev/dogcat/internal/types"
)

// Store is the slice of the record store the graph queries need.
type Store interface {
	List(filters map[string]interface{}) []*types.Issue
	Get(id string) (*types.Issue, error)
	AllDependencies() []*types.Dependency
	GetDependencies(id string) ([]*types.Dependency, error)
}

// blockingStatuses are the states in which a depended-on issue holds its
// dependents back. Closed, deferred, and tombstoned issues do not block.
var blockingStatuses = map[types.Status]bool{
	types.StatusOpen:       true,
	types.StatusInProgress: true,
	types.StatusBlocked:    true,
}

// workableStatuses are the states eligible to appear in ready/blocked
// listings.
var workableStatuses = map[types.Status]bool{
	types.StatusOpen:       true,
	types.StatusInProgress: true,
}

// BlockedIssue pairs a blocked issue with the live blockers holding
// it back.
type BlockedIssue struct {
	Issue    *types.Issue
	Blockers []string
}

// ReadyWork returns issues that can be started now: open or in-progress,
// not drafts, with no live blocker. Sorted by priority (0 first), then
// full id for a stable order.
func ReadyWork(s Store) ([]*types.Issue, error) {
	var ready []*types.Issue
	for _, issue := range s.List(nil) {
		if !workableStatuses[issue.Status] || issue.IssueType == types.TypeDraft {
			continue
		}
		blockers, err := liveBlockers(s, issue.FullID())
		if err != nil {
			return nil, err
		}
		if len(blockers) == 0 {
			ready = append(ready, issue)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		return ready[i].FullID() < ready[j].FullID()
	})
	return ready, nil
}

// BlockedIssues returns open or in-progress issues that have at least one
// live blocker, each with its blocker list. Sorted like ReadyWork.
func BlockedIssues(s Store) ([]*BlockedIssue, error) {
	var blocked []*BlockedIssue
	for _, issue := range s.List(nil) {
		if !workableStatuses[issue.Status] {
			continue
		}
		blockers, err := liveBlockers(s, issue.FullID())
		if err != nil {
			return nil, err
		}
		if len(blockers) > 0 {
			sort.Strings(blockers)
			blocked = append(blocked, &BlockedIssue{Issue: issue, Blockers: blockers})
		}
	}
	sort.Slice(blocked, func(i, j int) bool {
		a, b := blocked[i].Issue, blocked[j].Issue
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.FullID() < b.FullID()
	})
	return blocked, nil
}

// HasBlockers reports whether an issue currently has a live blocker.
func HasBlockers(s Store, id string) (bool, error) {
	issue, err := s.Get(id)
	if err != nil {
		return false, err
	}
	blockers, err := liveBlockers(s, issue.FullID())
	if err != nil {
		return false, err
	}
	return len(blockers) > 0, nil
}

// liveBlockers returns the full ids of blocking dependencies that are
// still in a blocking state. Dangling edges (pointing at missing issues)
// are skipped rather than treated as blockers.
func liveBlockers(s Store, fullID string) ([]string, error) {
	depsOut, err := s.GetDependencies(fullID)
	if err != nil {
		return nil, err
	}
	var blockers []string
	for _, dep := range depsOut {
		if dep.Type != types.DepBlocks {
			continue
		}
		target, err := s.Get(dep.DependsOnID)
		if err != nil {
			continue
		}
		if blockingStatuses[target.Status] {
			blockers = append(blockers, target.FullID())
		}
	}
	return blockers, nil
}

// DependencyChain returns the transitive closure of an issue's
// dependencies in breadth-first order, nearest first, without the issue
// itself.
func DependencyChain(s Store, id string) ([]string, error) {
	issue, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	start := issue.FullID()

	adj := adjacency(s)
	seen := map[string]bool{start: true}
	var chain []string
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adj[current] {
			if !seen[next] {
				seen[next] = true
				chain = append(chain, next)
				queue = append(queue, next)
			}
		}
	}
	return chain, nil
}

// WouldCreateCycle reports whether adding a dependency from issueID to
// dependsOnID would close a cycle, i.e. whether issueID is already
// reachable from dependsOnID.
func WouldCreateCycle(s Store, issueID, dependsOnID string) (bool, error) {
	from, err := s.Get(issueID)
	if err != nil {
		return false, err
	}
	to, err := s.Get(dependsOnID)
	if err != nil {
		return false, err
	}
	if from.FullID() == to.FullID() {
		return true, nil
	}

	adj := adjacency(s)
	target := from.FullID()
	seen := map[string]bool{to.FullID(): true}
	stack := []string{to.FullID()}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[current] {
			if next == target {
				return true, nil
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false, nil
}

// DetectCycles finds every distinct dependency cycle, each reported as
// the list of full ids along the cycle, rotated so the smallest id comes
// first. The walk is iterative so deep graphs cannot overflow the stack.
func DetectCycles(s Store) [][]string {
	adj := adjacency(s)

	nodes := make([]string, 0, len(adj))
	nodeSet := make(map[string]bool)
	for node, targets := range adj {
		if !nodeSet[node] {
			nodeSet[node] = true
			nodes = append(nodes, node)
		}
		for _, t := range targets {
			if !nodeSet[t] {
				nodeSet[t] = true
				nodes = append(nodes, t)
			}
		}
	}
	sort.Strings(nodes)

	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(nodes))
	var cycles [][]string
	seenCycles := make(map[string]bool)

	type frame struct {
		node string
		next int
	}

	for _, root := range nodes {
		if color[root] != white {
			continue
		}
		var path []string
		onPath := make(map[string]int)
		stack := []frame{{node: root}}
		color[root] = gray
		onPath[root] = 0
		path = append(path, root)

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			targets := adj[f.node]
			if f.next < len(targets) {
				next := targets[f.next]
				f.next++
				switch color[next] {
				case white:
					color[next] = gray
					onPath[next] = len(path)
					path = append(path, next)
					stack = append(stack, frame{node: next})
				case gray:
					cycle := canonicalCycle(append([]string(nil), path[onPath[next]:]...))
					key := cycleKey(cycle)
					if !seenCycles[key] {
						seenCycles[key] = true
						cycles = append(cycles, cycle)
					}
				}
				continue
			}
			color[f.node] = black
			delete(onPath, f.node)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return cycles
}

// adjacency builds the full dependency adjacency map, every edge type
// included, with deterministically ordered target lists.
func adjacency(s Store) map[string][]string {
	adj := make(map[string][]string)
	for _, dep := range s.AllDependencies() {
		adj[dep.IssueID] = append(adj[dep.IssueID], dep.DependsOnID)
	}
	for node := range adj {
		sort.Strings(adj[node])
	}
	return adj
}

// canonicalCycle rotates a cycle so its smallest id leads, making equal
// cycles found from different entry points compare equal.
func canonicalCycle(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[min:]...)
	out = append(out, cycle[:min]...)
	return out
}

func cycleKey(cycle []string) string {
	key := ""
	for _, id := range cycle {
		key += id + "\x00"
	}
	return key
}
