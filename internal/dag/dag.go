// Package dag models the pipeline's stage dependency graph: which stage
// consumes which stage's artifacts, in what order stages run, and which
// downstream stages are skipped when one fails.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed acyclic graph over stage names. An edge A -> B means
// B consumes artifacts produced by A.
type Graph struct {
	nodes    map[string]bool
	children map[string][]string
	parents  map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]bool),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// Add registers a stage. Adding an existing stage is a no-op.
func (g *Graph) Add(stage string) {
	if !g.nodes[stage] {
		g.nodes[stage] = true
		g.children[stage] = nil
		g.parents[stage] = nil
	}
}

// Depend declares that stage consumes artifacts of upstream.
func (g *Graph) Depend(stage, upstream string) error {
	if !g.nodes[upstream] {
		return fmt.Errorf("unknown stage %q", upstream)
	}
	if !g.nodes[stage] {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if stage == upstream {
		return fmt.Errorf("stage %q cannot depend on itself", stage)
	}
	if !contains(g.children[upstream], stage) {
		g.children[upstream] = append(g.children[upstream], stage)
	}
	if !contains(g.parents[stage], upstream) {
		g.parents[stage] = append(g.parents[stage], upstream)
	}
	return nil
}

// Has reports whether a stage is registered.
func (g *Graph) Has(stage string) bool { return g.nodes[stage] }

// Parents returns the direct dependencies of a stage.
func (g *Graph) Parents(stage string) []string {
	out := append([]string(nil), g.parents[stage]...)
	sort.Strings(out)
	return out
}

// Stages returns all registered stages, sorted.
func (g *Graph) Stages() []string {
	out := make([]string, 0, len(g.nodes))
	for s := range g.nodes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Cycle returns a cycle path if the graph contains one.
func (g *Graph) Cycle() (bool, []string) {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cycle []string
	var dfs func(s string) bool
	dfs = func(s string) bool {
		visited[s] = true
		inStack[s] = true
		for _, child := range g.children[s] {
			if !visited[child] {
				cameFrom[child] = s
				if dfs(child) {
					return true
				}
			} else if inStack[child] {
				cycle = []string{child}
				for cur := s; cur != child; cur = cameFrom[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				cycle = append([]string{child}, cycle...)
				return true
			}
		}
		inStack[s] = false
		return false
	}

	for _, s := range g.Stages() {
		if !visited[s] && dfs(s) {
			return true, cycle
		}
	}
	return false, nil
}

// Sort returns the stages in execution order: every stage after all the
// stages it consumes from. Order is deterministic.
func (g *Graph) Sort() ([]string, error) {
	if has, path := g.Cycle(); has {
		return nil, fmt.Errorf("stage graph has a cycle: %v", path)
	}

	visited := make(map[string]bool)
	var order []string
	var visit func(s string)
	visit = func(s string) {
		if visited[s] {
			return
		}
		visited[s] = true
		parents := append([]string(nil), g.parents[s]...)
		sort.Strings(parents)
		for _, p := range parents {
			visit(p)
		}
		order = append(order, s)
	}
	for _, s := range g.Stages() {
		visit(s)
	}
	return order, nil
}

// Downstream returns the given stages plus every stage that transitively
// consumes from them. This is the skip set when a stage fails.
func (g *Graph) Downstream(stages ...string) []string {
	marked := make(map[string]bool)
	var mark func(s string)
	mark = func(s string) {
		if marked[s] {
			return
		}
		marked[s] = true
		for _, child := range g.children[s] {
			mark(child)
		}
	}
	for _, s := range stages {
		if g.nodes[s] {
			mark(s)
		}
	}
	return sortedKeys(marked)
}

// Upstream returns every stage the given stage transitively consumes from.
func (g *Graph) Upstream(stage string) []string {
	marked := make(map[string]bool)
	var mark func(s string)
	mark = func(s string) {
		for _, p := range g.parents[s] {
			if !marked[p] {
				marked[p] = true
				mark(p)
			}
		}
	}
	mark(stage)
	return sortedKeys(marked)
}

// Subgraph returns a new graph restricted to the given stages, keeping the
// edges between them.
func (g *Graph) Subgraph(stages []string) *Graph {
	sub := New()
	keep := make(map[string]bool, len(stages))
	for _, s := range stages {
		if g.nodes[s] {
			keep[s] = true
			sub.Add(s)
		}
	}
	for s := range keep {
		for _, child := range g.children[s] {
			if keep[child] {
				_ = sub.Depend(child, s)
			}
		}
	}
	return sub
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
