package graph

import (
	"container/list"
	"fmt"
	"strings"
)

// processingQueue wraps a list-based FIFO queue for Kahn's algorithm.
// It holds jobs that are ready to run (in-degree of 0).
type processingQueue struct {
	queue *list.List
}

func newProcessingQueue() *processingQueue {
	return &processingQueue{queue: list.New()}
}

func (pq *processingQueue) enqueue(node string) {
	pq.queue.PushBack(node)
}

func (pq *processingQueue) dequeue() (string, bool) {
	if pq.queue.Len() == 0 {
		return "", false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(string), true
}

func (pq *processingQueue) isEmpty() bool {
	return pq.queue.Len() == 0
}

// calculateInDegrees computes the number of dependencies each job has.
// This is the first step of Kahn's algorithm.
func (g *Graph) calculateInDegrees() map[string]int {
	inDegree := make(map[string]int)
	for name := range g.Nodes {
		inDegree[name] = 0
	}
	for _, children := range g.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}
	return inDegree
}

// CycleError is returned when the job-dependency graph contains a cycle,
// making a run order impossible to compute.
type CycleError struct {
	UnprocessedJobs []string // jobs that could not be ordered (in or blocked by a cycle)
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in diff plan dependencies: %d job(s) could not be ordered: %s",
		len(e.UnprocessedJobs), strings.Join(e.UnprocessedJobs, ", "))
}

// RunOrder returns diff jobs in the order they must run so that every job
// runs after the jobs it depends on (DependsOn). Uses Kahn's algorithm.
// Returns a *CycleError if the dependency graph contains a cycle.
func (g *Graph) RunOrder() ([]string, error) {
	inDegree := g.calculateInDegrees()

	queue := newProcessingQueue()
	for name, degree := range inDegree {
		if degree == 0 {
			queue.enqueue(name)
		}
	}

	var result []string
	processed := make(map[string]bool)

	for !queue.isEmpty() {
		node, _ := queue.dequeue()
		result = append(result, node)
		processed[node] = true

		for _, child := range g.GetChildren(node) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.enqueue(child)
			}
		}
	}

	if len(result) != len(g.Nodes) {
		var unprocessed []string
		for name := range g.Nodes {
			if !processed[name] {
				unprocessed = append(unprocessed, name)
			}
		}
		return nil, &CycleError{UnprocessedJobs: unprocessed}
	}

	return result, nil
}

// Validate checks the graph for structural issues (currently: cycles).
// Called right after building the graph so plan errors surface at load time
// rather than mid-run.
func (g *Graph) Validate() error {
	_, err := g.RunOrder()
	return err
}
