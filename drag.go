package pipeline

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
)

// DragMIME is the data-transfer type the palette attaches its payload to.
const DragMIME = "application/reactflow"

// DragPayload is the object serialized by the palette on drag start.
type DragPayload struct {
	NodeType string `json:"nodeType"`
}

// ParseDragPayload decodes a dropped payload into the node type to create.
func ParseDragPayload(b []byte) (NodeType, error) {
	var p DragPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.NodeType == "" {
		return "", fmt.Errorf("%w: missing nodeType", ErrInvalidPayload)
	}
	return ParseNodeType(p.NodeType)
}

var typeTitles = map[NodeType]string{
	TypeInput:  "Input",
	TypeOutput: "Output",
	TypeLLM:    "LLM",
	TypeText:   "Text",
}

// DefaultData returns the initial configuration of a freshly created node.
// The label is the type title followed by the numeric suffix of id.
func DefaultData(id string, t NodeType) NodeData {
	label := id
	if _, suffix, ok := strings.Cut(id, "-"); ok {
		label = typeTitles[t] + " " + suffix
	}
	switch t {
	case TypeInput:
		return InputData{Label: label}
	case TypeOutput:
		return OutputData{Label: label, Format: FormatText}
	case TypeLLM:
		return LLMData{Label: label, Model: "gpt-4", Temperature: 0.7}
	case TypeText:
		return TextData{Label: label}
	}
	return nil
}

// ScatterPosition picks a spot near the middle of the canvas for nodes
// created without an explicit position.
func ScatterPosition() Position {
	return Position{X: 300 + rand.Float64()*100, Y: 200 + rand.Float64()*100}
}
