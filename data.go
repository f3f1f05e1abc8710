package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// NodeData is the configuration carried by a node. The concrete type is one
// of InputData, OutputData, LLMData or TextData and always agrees with the
// node's Type.
type NodeData interface {
	Type() NodeType
	DisplayLabel() string
	nodeData()
}

// OutputFormat is the rendering format of an output node.
type OutputFormat string

const (
	FormatText     OutputFormat = "text"
	FormatJSON     OutputFormat = "json"
	FormatMarkdown OutputFormat = "markdown"
)

// InputData configures an input node.
type InputData struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// OutputData configures an output node.
type OutputData struct {
	Label  string       `json:"label"`
	Format OutputFormat `json:"format"`
}

// LLMData configures a model call. Temperature is within [0,1].
type LLMData struct {
	Label        string  `json:"label"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"systemPrompt"`
}

// TextData holds a static text block.
type TextData struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

func (InputData) Type() NodeType  { return TypeInput }
func (OutputData) Type() NodeType { return TypeOutput }
func (LLMData) Type() NodeType    { return TypeLLM }
func (TextData) Type() NodeType   { return TypeText }

func (d InputData) DisplayLabel() string  { return d.Label }
func (d OutputData) DisplayLabel() string { return d.Label }
func (d LLMData) DisplayLabel() string    { return d.Label }
func (d TextData) DisplayLabel() string   { return d.Label }

func (InputData) nodeData()  {}
func (OutputData) nodeData() {}
func (LLMData) nodeData()    {}
func (TextData) nodeData()   {}

func decodeNodeData(t NodeType, raw json.RawMessage) (NodeData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidNode)
	}
	switch t {
	case TypeInput:
		var d InputData
		err := json.Unmarshal(raw, &d)
		return d, err
	case TypeOutput:
		var d OutputData
		err := json.Unmarshal(raw, &d)
		return d, err
	case TypeLLM:
		var d LLMData
		err := json.Unmarshal(raw, &d)
		return d, err
	case TypeText:
		var d TextData
		err := json.Unmarshal(raw, &d)
		return d, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
}

func validateData(data NodeData) error {
	if strings.TrimSpace(data.DisplayLabel()) == "" {
		return fmt.Errorf("%w: label must not be empty", ErrInvalidNode)
	}
	switch d := data.(type) {
	case InputData, TextData:
		return nil
	case OutputData:
		switch d.Format {
		case FormatText, FormatJSON, FormatMarkdown:
			return nil
		}
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidValue, d.Format)
	case LLMData:
		if math.IsNaN(d.Temperature) || d.Temperature < 0 || d.Temperature > 1 {
			return fmt.Errorf("%w: temperature %v outside [0,1]", ErrInvalidValue, d.Temperature)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported data %T", ErrInvalidNode, data)
	}
}

// withField returns a copy of data with one field replaced. The field name
// is the JSON key of the field.
func withField(data NodeData, field string, value any) (NodeData, error) {
	var next NodeData
	switch d := data.(type) {
	case InputData:
		switch field {
		case "label":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Label = s
		case "value":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Value = s
		default:
			return nil, unknownField(data, field)
		}
		next = d
	case OutputData:
		switch field {
		case "label":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Label = s
		case "format":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Format = OutputFormat(s)
		default:
			return nil, unknownField(data, field)
		}
		next = d
	case LLMData:
		switch field {
		case "label":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Label = s
		case "model":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Model = s
		case "systemPrompt":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.SystemPrompt = s
		case "temperature":
			f, err := floatValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Temperature = f
		default:
			return nil, unknownField(data, field)
		}
		next = d
	case TextData:
		switch field {
		case "label":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Label = s
		case "content":
			s, err := stringValue(field, value)
			if err != nil {
				return nil, err
			}
			d.Content = s
		default:
			return nil, unknownField(data, field)
		}
		next = d
	default:
		return nil, fmt.Errorf("%w: unsupported data %T", ErrInvalidNode, data)
	}
	if err := validateData(next); err != nil {
		return nil, err
	}
	return next, nil
}

func unknownField(data NodeData, field string) error {
	return fmt.Errorf("%w: %s nodes have no field %q", ErrUnknownField, data.Type(), field)
}

func stringValue(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidValue, field, v)
	}
	return s, nil
}

func floatValue(field string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidValue, field, v)
}
