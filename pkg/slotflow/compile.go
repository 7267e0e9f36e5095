package slotflow

import (
	"errors"
	"fmt"
	"log/slog"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined.
//
// Validation checks (in order):
//  1. Entry point must be set
//  2. Entry point must reference an existing node
//  3. All edge sources must reference existing nodes
//  4. All edge targets must reference existing nodes, a terminal, or Await
//  5. Some node must be able to reach a terminal state
//
// Unreachable nodes (not reachable from entry) are logged as warnings
// but do not cause compilation to fail: conversation graphs routinely
// carry correction branches only reachable through conditional edges.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for from, targets := range g.edges {
		if !g.validSource(from) {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range targets {
			if !g.validTarget(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for from := range g.conditionalEdges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
	}

	if g.entryPoint != "" {
		if _, exists := g.nodes[g.entryPoint]; exists {
			if !g.hasPathToTerminal() {
				errs = append(errs, ErrNoPathToTerminal)
			}
		}
	}

	g.warnUnreachableNodes()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

func (g *Graph[S]) validSource(from string) bool {
	if _, exists := g.nodes[from]; exists {
		return true
	}
	_, hasConditional := g.conditionalEdges[from]
	return hasConditional
}

func (g *Graph[S]) validTarget(to string) bool {
	if to == Await || Terminal(to) {
		return true
	}
	_, exists := g.nodes[to]
	return exists
}

// hasPathToTerminal checks whether the entry can eventually reach
// Completed or Cancelled. Nodes with conditional edges are assumed to
// potentially reach any target, including a terminal, since routers
// decide at runtime.
func (g *Graph[S]) hasPathToTerminal() bool {
	canFinish := map[string]bool{Completed: true, Cancelled: true}

	changed := true
	for changed {
		changed = false

		for from, targets := range g.edges {
			if canFinish[from] {
				continue
			}
			for _, to := range targets {
				if canFinish[to] {
					canFinish[from] = true
					changed = true
					break
				}
			}
		}

		for from := range g.conditionalEdges {
			if !canFinish[from] {
				canFinish[from] = true
				changed = true
			}
		}
	}

	return canFinish[g.entryPoint]
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph[S]) warnUnreachableNodes() {
	if g.entryPoint == "" {
		return
	}

	reachable := g.findReachableNodes()

	for nodeID := range g.nodes {
		if !reachable[nodeID] {
			slog.Warn("node is unreachable from entry", "node_id", nodeID)
		}
	}
}

// findReachableNodes returns the set of nodes reachable from the entry.
func (g *Graph[S]) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)

	if g.entryPoint == "" {
		return reachable
	}

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.edges[current] {
			if target != Await && !Terminal(target) && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}

		// Conditional targets are unknown at compile time; the router
		// could return any node ID, so assume all of them.
		if _, hasConditional := g.conditionalEdges[current]; hasConditional {
			for nodeID := range g.nodes {
				if !reachable[nodeID] {
					reachable[nodeID] = true
					queue = append(queue, nodeID)
				}
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph.
func (g *Graph[S]) buildCompiledGraph() *CompiledGraph[S] {
	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string][]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = make([]string, len(targets))
		copy(edges[from], targets)
	}

	conditionalEdges := make(map[string]RouterFunc[S], len(g.conditionalEdges))
	for from, router := range g.conditionalEdges {
		conditionalEdges[from] = router
	}

	return &CompiledGraph[S]{
		nodes:            nodes,
		edges:            edges,
		conditionalEdges: conditionalEdges,
		entryPoint:       g.entryPoint,
	}
}
