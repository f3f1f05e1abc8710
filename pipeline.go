package pipeline

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies the kind of a pipeline node and the shape of its data.
type NodeType string

const (
	TypeInput  NodeType = "input"
	TypeOutput NodeType = "output"
	TypeLLM    NodeType = "llm"
	TypeText   NodeType = "text"
)

// NodeTypes lists every node type in palette order.
var NodeTypes = []NodeType{TypeInput, TypeLLM, TypeOutput, TypeText}

// ParseNodeType converts a raw string into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	switch t := NodeType(s); t {
	case TypeInput, TypeOutput, TypeLLM, TypeText:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
}

// Position is a point on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dimensions is the measured size of a rendered node.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Snapshot is an immutable view of a pipeline graph.
// The slices must not be modified by readers. Version counts the mutations
// that produced it.
type Snapshot struct {
	Version uint64 `json:"version"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Node is a typed unit of pipeline work.
// ID is assigned once by the ID generator and never changes afterwards.
type Node struct {
	ID       string
	Type     NodeType
	Position Position
	Data     NodeData
	Selected bool
	Dragging bool
	Measured *Dimensions
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
	Selected bool            `json:"selected,omitempty"`
	Dragging bool            `json:"dragging,omitempty"`
	Measured *Dimensions     `json:"measured,omitempty"`
}

// MarshalJSON encodes the node in the shape the editor canvas consumes.
func (n Node) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nodeJSON{
		ID:       n.ID,
		Type:     n.Type,
		Position: n.Position,
		Data:     data,
		Selected: n.Selected,
		Dragging: n.Dragging,
		Measured: n.Measured,
	})
}

// UnmarshalJSON decodes a node, choosing the data variant from the type field.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t, err := ParseNodeType(string(raw.Type))
	if err != nil {
		return err
	}
	data, err := decodeNodeData(t, raw.Data)
	if err != nil {
		return fmt.Errorf("pipeline: node %s: %w", raw.ID, err)
	}
	*n = Node{
		ID:       raw.ID,
		Type:     t,
		Position: raw.Position,
		Data:     data,
		Selected: raw.Selected,
		Dragging: raw.Dragging,
		Measured: raw.Measured,
	}
	return nil
}

// Validate checks the node invariants: a non-empty id, a known type,
// data matching that type and a non-empty label.
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidNode)
	}
	if _, err := ParseNodeType(string(n.Type)); err != nil {
		return err
	}
	if n.Data == nil {
		return fmt.Errorf("%w: node %s has no data", ErrInvalidNode, n.ID)
	}
	if n.Data.Type() != n.Type {
		return fmt.Errorf("%w: node %s is %s but carries %s data", ErrInvalidNode, n.ID, n.Type, n.Data.Type())
	}
	return validateData(n.Data)
}

// ArrowSpec describes the marker drawn at the end of an edge.
type ArrowSpec struct {
	Type   string  `json:"type"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Edge is a directed connection from one node's output to another's input.
type Edge struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	Target       string     `json:"target"`
	SourceHandle string     `json:"sourceHandle,omitempty"`
	TargetHandle string     `json:"targetHandle,omitempty"`
	Type         string     `json:"type,omitempty"`
	Animated     bool       `json:"animated,omitempty"`
	Selected     bool       `json:"selected,omitempty"`
	MarkerEnd    *ArrowSpec `json:"markerEnd,omitempty"`
}

// Connection is the result of a connect gesture between two handles.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}
