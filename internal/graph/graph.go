// Package graph provides a dependency graph for plan scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quillworks/quill/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the plan.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a task depends on an ID that is not part
// of the plan.
var ErrUnknownDependency = errors.New("unknown dependency")

// DependencyGraph is a directed graph of task dependencies. Tasks are
// nodes, and edges point at the tasks they are blocked by.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to the IDs of tasks it depends on.
	edges map[string][]string
	// order preserves creation order for eligibility scans.
	order []string
	// completed tracks tasks marked complete during a run.
	completed map[string]bool
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.Task),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
	}
}

// Build constructs the graph from tasks in creation order. It returns an
// error when a task depends on an ID outside the plan or when the
// dependency relation contains a cycle.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// First pass: register every task as a node.
	for _, task := range tasks {
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
		g.order = append(g.order, task.ID)
	}

	// Second pass: add edges from DependsOn fields.
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, ok := g.nodes[depID]; !ok {
				return fmt.Errorf("task %s depends on unknown task %s: %w", task.ID, depID, ErrUnknownDependency)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if found, edge := g.hasCycleLocked(); found {
		return fmt.Errorf("%w: %s", ErrCycleDetected, edge)
	}
	return nil
}

// HasCycle reports whether the graph contains a circular dependency.
// When it does, the returned string names one edge on the cycle as
// "a -> b".
func (g *DependencyGraph) HasCycle() (bool, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked assumes the lock is held. Depth-first search with
// white/grey/black coloring: an edge into a grey node is a back edge.
func (g *DependencyGraph) hasCycleLocked() (bool, string) {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current search path
		black = 2 // fully explored
	)
	colors := make(map[string]int, len(g.nodes))

	var edge string
	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = grey
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case grey:
				edge = id + " -> " + depID
				return true
			case white:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for _, id := range g.order {
		if colors[id] == white && visit(id) {
			return true, edge
		}
	}
	return false, ""
}

// NextEligible returns the first task in creation order whose status is
// pending and whose dependencies have all completed, or nil when no task
// is eligible.
func (g *DependencyGraph) NextEligible() *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.order {
		task := g.nodes[id]
		if g.completed[id] || task.Status != models.TaskStatusPending {
			continue
		}
		eligible := true
		for _, depID := range g.edges[id] {
			if !g.depSatisfiedLocked(depID) {
				eligible = false
				break
			}
		}
		if eligible {
			return task
		}
	}
	return nil
}

// depSatisfiedLocked reports whether a dependency is satisfied, either by
// MarkCompleted during this run or by the task's persisted status.
func (g *DependencyGraph) depSatisfiedLocked(id string) bool {
	if g.completed[id] {
		return true
	}
	if task, ok := g.nodes[id]; ok {
		return task.Status == models.TaskStatusCompleted
	}
	return false
}

// MarkCompleted records that a task finished, unblocking its dependents.
func (g *DependencyGraph) MarkCompleted(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[id] = true
}

// Get returns the task for an ID, or nil when the graph does not contain it.
func (g *DependencyGraph) Get(id string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Len returns the number of tasks in the graph.
func (g *DependencyGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
