package pipeline

import "fmt"

// IsDAG reports whether the graph formed by nodes and edges has no directed
// cycle. Edges whose source is not among nodes are ignored, and targets that
// are not among nodes are treated as leaves.
func IsDAG(nodes []Node, edges []Edge) bool {
	return FindCycle(nodes, edges) == nil
}

// FindCycle returns the node ids along one directed cycle, starting at the
// node the cycle re-enters, or nil when the graph is acyclic. Which cycle is
// returned depends on node and edge order.
func FindCycle(nodes []Node, edges []Edge) []string {
	adj := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		adj[n.ID] = nil
	}
	for _, e := range edges {
		if targets, ok := adj[e.Source]; ok {
			adj[e.Source] = append(targets, e.Target)
		}
	}

	visited := make(map[string]bool, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	var stack []dfsFrame

	for _, root := range nodes {
		if visited[root.ID] {
			continue
		}
		visited[root.ID] = true
		onStack[root.ID] = true
		stack = append(stack[:0], dfsFrame{id: root.ID})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			targets := adj[top.id]
			if top.next == len(targets) {
				onStack[top.id] = false
				stack = stack[:len(stack)-1]
				continue
			}
			next := targets[top.next]
			top.next++

			if onStack[next] {
				return cyclePath(stack, next)
			}
			if !visited[next] {
				visited[next] = true
				onStack[next] = true
				stack = append(stack, dfsFrame{id: next})
			}
		}
	}
	return nil
}

type dfsFrame struct {
	id   string
	next int
}

// cyclePath walks the stack down to entry and returns the ids in path order.
func cyclePath(stack []dfsFrame, entry string) []string {
	i := len(stack) - 1
	for i > 0 && stack[i].id != entry {
		i--
	}
	path := make([]string, 0, len(stack)-i)
	for _, f := range stack[i:] {
		path = append(path, f.id)
	}
	return path
}

// Report summarizes a pipeline submission.
type Report struct {
	NumNodes int      `json:"num_nodes"`
	NumEdges int      `json:"num_edges"`
	IsDAG    bool     `json:"is_dag"`
	Cycle    []string `json:"cycle,omitempty"`
}

// Validate checks a snapshot before submission. An empty graph yields
// ErrNoNodes and the cycle check is skipped. A cyclic graph is not an error:
// the report marks it invalid and the graph itself is left alone.
func Validate(s Snapshot) (Report, error) {
	if len(s.Nodes) == 0 {
		return Report{NumEdges: len(s.Edges)}, ErrNoNodes
	}
	cycle := FindCycle(s.Nodes, s.Edges)
	return Report{
		NumNodes: len(s.Nodes),
		NumEdges: len(s.Edges),
		IsDAG:    cycle == nil,
		Cycle:    cycle,
	}, nil
}

// Title is the headline shown for the report.
func (r Report) Title() string {
	if r.IsDAG {
		return "Valid Pipeline"
	}
	return "Invalid Pipeline"
}

// Summary is a short human readable description of the report.
func (r Report) Summary() string {
	verdict := "yes"
	if !r.IsDAG {
		verdict = "no (contains cycle)"
	}
	return fmt.Sprintf("nodes: %d, edges: %d, is DAG: %s", r.NumNodes, r.NumEdges, verdict)
}
