package pipeline

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
)

var typeShapes = map[NodeType]string{
	TypeInput:  "invhouse",
	TypeOutput: "house",
	TypeLLM:    "box",
	TypeText:   "note",
}

// ToDOT renders the snapshot as a Graphviz digraph. Edges pointing at
// unknown nodes are skipped. Ids and labels are escaped by gographviz.
func ToDOT(s Snapshot) (string, error) {
	g := gographviz.NewEscape()
	if err := g.SetName("pipeline"); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	known := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		label := n.ID
		if n.Data != nil {
			label = n.Data.DisplayLabel()
		}
		attrs := map[string]string{
			"label": label,
			"shape": typeShapes[n.Type],
		}
		if err := g.AddNode("pipeline", n.ID, attrs); err != nil {
			return "", fmt.Errorf("pipeline: dot node %s: %w", n.ID, err)
		}
		known[n.ID] = true
	}
	for _, e := range s.Edges {
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		if err := g.AddEdge(e.Source, e.Target, true, nil); err != nil {
			return "", fmt.Errorf("pipeline: dot edge %s: %w", e.ID, err)
		}
	}
	return g.String(), nil
}
