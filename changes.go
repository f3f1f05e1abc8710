package pipeline

import "fmt"

// ChangeType names an incremental change produced by the editor canvas.
type ChangeType string

const (
	ChangeAdd        ChangeType = "add"
	ChangeRemove     ChangeType = "remove"
	ChangeReplace    ChangeType = "replace"
	ChangePosition   ChangeType = "position"
	ChangeSelect     ChangeType = "select"
	ChangeDimensions ChangeType = "dimensions"
)

// NodeChange is a delta against the node collection.
// Item is used by add and replace; Index optionally places an added item.
type NodeChange struct {
	Type       ChangeType  `json:"type"`
	ID         string      `json:"id,omitempty"`
	Item       *Node       `json:"item,omitempty"`
	Index      *int        `json:"index,omitempty"`
	Position   *Position   `json:"position,omitempty"`
	Dragging   *bool       `json:"dragging,omitempty"`
	Selected   *bool       `json:"selected,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// EdgeChange is a delta against the edge collection.
type EdgeChange struct {
	Type     ChangeType `json:"type"`
	ID       string     `json:"id,omitempty"`
	Item     *Edge      `json:"item,omitempty"`
	Index    *int       `json:"index,omitempty"`
	Selected *bool      `json:"selected,omitempty"`
}

// ApplyNodeChanges returns a new node slice with changes applied in order.
// Untouched nodes keep their relative order, added nodes are appended (or
// inserted at Index) and when several changes target one id the later ones
// win. The input slice is not modified. Removing a node does not touch any
// edge. Items are not validated; see CheckNodeChanges.
func ApplyNodeChanges(changes []NodeChange, nodes []Node) []Node {
	byID := make(map[string][]NodeChange)
	var adds []NodeChange
	for _, c := range changes {
		if c.Type == ChangeAdd {
			if c.Item != nil {
				adds = append(adds, c)
			}
			continue
		}
		byID[c.ID] = append(byID[c.ID], c)
	}

	out := make([]Node, 0, len(nodes)+len(adds))
	for _, n := range nodes {
		pending, ok := byID[n.ID]
		if !ok {
			out = append(out, n)
			continue
		}
		if next, keep := foldNodeChanges(n, pending); keep {
			out = append(out, next)
		}
	}
	for _, c := range adds {
		out = insertAt(out, *c.Item, c.Index)
	}
	return out
}

func foldNodeChanges(n Node, changes []NodeChange) (Node, bool) {
	present := true
	for _, c := range changes {
		switch c.Type {
		case ChangeRemove:
			present = false
		case ChangeReplace:
			if c.Item == nil {
				continue
			}
			id := n.ID
			n = *c.Item
			n.ID = id
			present = true
		case ChangePosition:
			if c.Position != nil {
				n.Position = *c.Position
			}
			if c.Dragging != nil {
				n.Dragging = *c.Dragging
			}
		case ChangeSelect:
			if c.Selected != nil {
				n.Selected = *c.Selected
			}
		case ChangeDimensions:
			if c.Dimensions != nil {
				d := *c.Dimensions
				n.Measured = &d
			}
		}
	}
	return n, present
}

// ApplyEdgeChanges is the edge counterpart of ApplyNodeChanges.
func ApplyEdgeChanges(changes []EdgeChange, edges []Edge) []Edge {
	byID := make(map[string][]EdgeChange)
	var adds []EdgeChange
	for _, c := range changes {
		if c.Type == ChangeAdd {
			if c.Item != nil {
				adds = append(adds, c)
			}
			continue
		}
		byID[c.ID] = append(byID[c.ID], c)
	}

	out := make([]Edge, 0, len(edges)+len(adds))
	for _, e := range edges {
		pending, ok := byID[e.ID]
		if !ok {
			out = append(out, e)
			continue
		}
		present := true
		for _, c := range pending {
			switch c.Type {
			case ChangeRemove:
				present = false
			case ChangeReplace:
				if c.Item != nil {
					id := e.ID
					e = *c.Item
					e.ID = id
					present = true
				}
			case ChangeSelect:
				if c.Selected != nil {
					e.Selected = *c.Selected
				}
			}
		}
		if present {
			out = append(out, e)
		}
	}
	for _, c := range adds {
		out = insertAt(out, *c.Item, c.Index)
	}
	return out
}

// insertAt places v at *index, clamped to the slice, or appends it.
func insertAt[T any](s []T, v T, index *int) []T {
	if index == nil || *index >= len(s) {
		return append(s, v)
	}
	i := max(*index, 0)
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// CheckNodeChanges rejects batches whose add or replace items would break
// the node invariants: every item must validate and added ids must not
// collide with existing nodes or with each other.
func CheckNodeChanges(changes []NodeChange, nodes []Node) error {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	for _, c := range changes {
		switch c.Type {
		case ChangeAdd:
			if c.Item == nil {
				return fmt.Errorf("%w: add without item", ErrInvalidNode)
			}
			if err := c.Item.Validate(); err != nil {
				return err
			}
			if ids[c.Item.ID] {
				return fmt.Errorf("%w: %s", ErrDuplicateNode, c.Item.ID)
			}
			ids[c.Item.ID] = true
		case ChangeReplace:
			if c.Item == nil {
				return fmt.Errorf("%w: replace of %s without item", ErrInvalidNode, c.ID)
			}
			item := *c.Item
			item.ID = c.ID
			if err := item.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckEdgeChanges rejects add or replace items whose endpoints are not
// among nodes, and added edges whose id is empty or already taken.
func CheckEdgeChanges(changes []EdgeChange, nodes []Node, edges []Edge) error {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}
	ids := make(map[string]bool, len(edges))
	for _, e := range edges {
		ids[e.ID] = true
	}
	for _, c := range changes {
		if c.Type != ChangeAdd && c.Type != ChangeReplace {
			continue
		}
		if c.Item == nil {
			return fmt.Errorf("%w: %s without item", ErrInvalidEdge, c.Type)
		}
		for _, end := range []string{c.Item.Source, c.Item.Target} {
			if !known[end] {
				return fmt.Errorf("%w: endpoint %q is not a node", ErrInvalidEdge, end)
			}
		}
		if c.Type == ChangeAdd {
			if c.Item.ID == "" {
				return fmt.Errorf("%w: missing id", ErrInvalidEdge)
			}
			if ids[c.Item.ID] {
				return fmt.Errorf("%w: %s", ErrDuplicateEdge, c.Item.ID)
			}
			ids[c.Item.ID] = true
		}
	}
	return nil
}
