// Package dag implements the pure dependency-graph queries of spec §4.2
// (C3): ready, blocked, unblocks, critical_path, and would_cycle. Every
// function here operates on a caller-supplied Snapshot and touches no
// storage or network — callers (C2/C8) take one snapshot per transaction
// and may reuse it across several queries without it going stale.
package dag

import (
	"sort"

	"github.com/steveyegge/coordinator/internal/model"
)

// Snapshot is the minimal view of the store a DAG query needs: every
// non-tainted issue plus every "blocks" edge among them. Building one is
// O(V+E); every query below is also O(V+E) against it.
type Snapshot struct {
	issues map[string]*model.Issue
	// blockedBy[to] = set of "from" ids where blocks(from, to)
	blockedBy map[string]map[string]bool
	// blocksOf[from] = set of "to" ids where blocks(from, to)
	blocksOf map[string]map[string]bool
}

// NewSnapshot builds a Snapshot from the full issue set and the "blocks"
// subset of dependency edges. Edges referencing an unknown or tainted
// issue are ignored — the store is responsible for referential integrity
// (I1, add_edge's Missing error) before an edge ever reaches here.
func NewSnapshot(issues []*model.Issue, edges []model.DependencyEdge) *Snapshot {
	s := &Snapshot{
		issues:    make(map[string]*model.Issue, len(issues)),
		blockedBy: make(map[string]map[string]bool),
		blocksOf:  make(map[string]map[string]bool),
	}
	for _, iss := range issues {
		if iss.Tainted {
			continue
		}
		s.issues[iss.ID] = iss
	}
	for _, e := range edges {
		if e.Kind != model.KindBlocks {
			continue
		}
		if _, ok := s.issues[e.From]; !ok {
			continue
		}
		if _, ok := s.issues[e.To]; !ok {
			continue
		}
		if s.blockedBy[e.To] == nil {
			s.blockedBy[e.To] = make(map[string]bool)
		}
		s.blockedBy[e.To][e.From] = true
		if s.blocksOf[e.From] == nil {
			s.blocksOf[e.From] = make(map[string]bool)
		}
		s.blocksOf[e.From][e.To] = true
	}
	return s
}

func (s *Snapshot) isOpen(id string) bool {
	iss, ok := s.issues[id]
	if !ok {
		return false
	}
	return iss.Status == model.StatusOpen || iss.Status == model.StatusInProgress
}

// openBlockers returns the ids of issue id's blockers that are still open.
func (s *Snapshot) openBlockers(id string) []string {
	var open []string
	for from := range s.blockedBy[id] {
		if s.isOpen(from) {
			open = append(open, from)
		}
	}
	sort.Strings(open)
	return open
}

// IsReady reports whether id is open and has no open blocker (I4).
func (s *Snapshot) IsReady(id string) bool {
	if !s.isOpen(id) {
		return false
	}
	return len(s.openBlockers(id)) == 0
}

func (s *Snapshot) sortedOpenIssues() []*model.Issue {
	var open []*model.Issue
	for _, iss := range s.issues {
		if s.isOpen(iss.ID) {
			open = append(open, iss)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open
}

// Ready returns every open issue with no open blocker.
func (s *Snapshot) Ready() []*model.Issue {
	var out []*model.Issue
	for _, iss := range s.sortedOpenIssues() {
		if s.IsReady(iss.ID) {
			out = append(out, iss)
		}
	}
	return out
}

// Blocked returns every open issue with at least one open blocker.
// Ready() and Blocked() partition the open set (P2).
func (s *Snapshot) Blocked() []*model.Issue {
	var out []*model.Issue
	for _, iss := range s.sortedOpenIssues() {
		if !s.IsReady(iss.ID) {
			out = append(out, iss)
		}
	}
	return out
}

// Unblocks returns the issues that would newly become ready if id
// transitioned to closed right now — i.e. id is currently their last open
// blocker. Used after a close to find newly-actionable work (spec P7).
func (s *Snapshot) Unblocks(id string) []*model.Issue {
	var out []*model.Issue
	for to := range s.blocksOf[id] {
		if !s.isOpen(to) {
			continue
		}
		blockers := s.openBlockers(to)
		if len(blockers) == 1 && blockers[0] == id {
			out = append(out, s.issues[to])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WouldCycle reports whether adding blocks(from, to) would create a cycle,
// i.e. whether "from" is already reachable from "to" via existing "blocks"
// edges (a DFS from "to" searching for "from" — spec §4.2, P6).
func (s *Snapshot) WouldCycle(from, to string) bool {
	if from == to {
		return true // I2: self-loops are degenerate cycles
	}
	visited := make(map[string]bool)
	var dfs func(node string) bool
	dfs = func(node string) bool {
		if node == from {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for next := range s.blocksOf[node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}

// topoOrder returns the open-issue ids in topological order over "blocks"
// edges via Kahn's algorithm, along with ok=false if a cycle is present
// among them (which should never happen given I3, but critical_path
// degrades gracefully rather than looping forever).
func (s *Snapshot) topoOrder() (order []string, ok bool) {
	open := s.sortedOpenIssues()
	indegree := make(map[string]int, len(open))
	ids := make([]string, 0, len(open))
	for _, iss := range open {
		ids = append(ids, iss.ID)
		indegree[iss.ID] = len(s.openBlockers(iss.ID))
	}

	var queue []string
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		var newlyZero []string
		for to := range s.blocksOf[n] {
			if !s.isOpen(to) {
				continue
			}
			indegree[to]--
			if indegree[to] == 0 {
				newlyZero = append(newlyZero, to)
			}
		}
		sort.Strings(newlyZero)
		queue = append(queue, newlyZero...)
		sort.Strings(queue)
	}

	return order, len(order) == len(ids)
}

// descendantCount returns the number of distinct open issues reachable from
// id by following "blocks" edges forward (id's transitive "unblocks" set).
func (s *Snapshot) descendantCount(id string) int {
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for to := range s.blocksOf[n] {
			if visited[to] {
				continue
			}
			visited[to] = true
			walk(to)
		}
	}
	walk(id)
	return len(visited)
}

// CriticalPath returns the longest chain of open issues connected by
// "blocks", computed via longest-path DP over the topological order. Ties
// are broken by (1) total descendants, (2) higher priority (lower number),
// (3) earlier CreatedAt (spec §4.2).
func (s *Snapshot) CriticalPath() []*model.Issue {
	order, ok := s.topoOrder()
	if !ok || len(order) == 0 {
		return nil
	}

	longest := make(map[string]int, len(order))   // length of longest chain ending at id
	predecessor := make(map[string]string, len(order))
	for _, id := range order {
		longest[id] = 1
	}

	for _, id := range order {
		for from := range s.blockedBy[id] {
			if !s.isOpen(from) {
				continue
			}
			candidate := longest[from] + 1
			switch {
			case candidate > longest[id]:
				longest[id] = candidate
				predecessor[id] = from
			case candidate == longest[id]:
				// Two distinct predecessors reach id via equally long
				// chains (a diamond in the blocks graph); map iteration
				// order over s.blockedBy[id] is randomized, so without a
				// tie-break the reported chain would vary run to run.
				if cur, ok := predecessor[id]; !ok || tieBreak(s, from, cur) {
					predecessor[id] = from
				}
			}
		}
	}

	best := order[0]
	for _, id := range order[1:] {
		if better(s, id, best, longest) {
			best = id
		}
	}

	var chain []*model.Issue
	for cur := best; cur != ""; {
		chain = append([]*model.Issue{s.issues[cur]}, chain...)
		cur = predecessor[cur]
	}
	return chain
}

func better(s *Snapshot, candidate, current string, longest map[string]int) bool {
	if longest[candidate] != longest[current] {
		return longest[candidate] > longest[current]
	}
	return tieBreak(s, candidate, current)
}

// tieBreak reports whether a should be preferred over b once their chain
// lengths are equal: more descendants, then higher priority (lower
// number), then earlier CreatedAt (spec §4.2).
func tieBreak(s *Snapshot, a, b string) bool {
	if d1, d2 := s.descendantCount(a), s.descendantCount(b); d1 != d2 {
		return d1 > d2
	}
	ia, ib := s.issues[a], s.issues[b]
	if ia.Priority != ib.Priority {
		return ia.Priority < ib.Priority
	}
	return ia.CreatedAt.Before(ib.CreatedAt)
}
