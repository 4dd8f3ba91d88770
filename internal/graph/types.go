// Package graph provides the dependency graph used to order a multi-job diff
// plan: when a configuration file names several table-pair diff jobs, a job
// that depends on another job (via DependsOn) must run after it.
package graph

// Node represents one diff job in the dependency graph.
type Node struct {
	Name string // job name
}

// Graph represents the dependency structure for a set of diff jobs.
type Graph struct {
	Nodes    map[string]*Node    // job name -> node
	Children map[string][]string // job name -> jobs that depend on it (outgoing edges)
	Parents  map[string][]string // job name -> jobs it depends on (incoming edges)
}

// NewGraph creates a new empty job-dependency graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:    make(map[string]*Node),
		Children: make(map[string][]string),
		Parents:  make(map[string][]string),
	}
}

// AddNode adds a job node to the graph. A no-op if the node already exists.
func (g *Graph) AddNode(name string) {
	if _, exists := g.Nodes[name]; exists {
		return
	}
	g.Nodes[name] = &Node{Name: name}
}

// AddEdge records that child depends on parent: parent must run first.
func (g *Graph) AddEdge(parent, child string) {
	g.Children[parent] = append(g.Children[parent], child)
	g.Parents[child] = append(g.Parents[child], parent)
}

// GetChildren returns the jobs that depend on parent.
func (g *Graph) GetChildren(parent string) []string {
	return g.Children[parent]
}

// GetParents returns the jobs that parent depends on.
func (g *Graph) GetParents(child string) []string {
	return g.Parents[child]
}

// HasNode returns true if the graph contains a node with the given name.
func (g *Graph) HasNode(name string) bool {
	_, exists := g.Nodes[name]
	return exists
}

// NodeCount returns the number of job nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// AllNodes returns the names of all jobs in the graph.
func (g *Graph) AllNodes() []string {
	nodes := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		nodes = append(nodes, name)
	}
	return nodes
}

// InDegree returns the number of dependencies a job has.
func (g *Graph) InDegree(name string) int {
	return len(g.Parents[name])
}

// OutDegree returns the number of jobs that depend on a job.
func (g *Graph) OutDegree(name string) int {
	return len(g.Children[name])
}

// BuildFromDependencies constructs a job-dependency graph from a map of job
// name to the names of jobs it depends on (DiffJob.DependsOn).
func BuildFromDependencies(dependsOn map[string][]string) (*Graph, error) {
	g := NewGraph()

	for name := range dependsOn {
		g.AddNode(name)
	}

	for name, deps := range dependsOn {
		for _, dep := range deps {
			if !g.HasNode(dep) {
				return nil, &UnknownDependencyError{Job: name, Dependency: dep}
			}
			g.AddEdge(dep, name)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// UnknownDependencyError is returned when a job depends on a job name that
// is not defined anywhere in the plan.
type UnknownDependencyError struct {
	Job        string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return "job " + e.Job + " depends on undefined job " + e.Dependency
}
