// Package tools is the operation registry of taigent.
//
// Every tracker operation the model may call is a Tool registered under a
// unique name with a parameter schema. Dispatch validates and normalizes the
// model's arguments against that schema, runs the handler under a deadline
// and always returns a Result envelope, never an error.
//
// Architecture:
//
//	ToolCall → ParseArguments → Registry.Dispatch → ToolSchema.Normalize → Tool.Execute → Result
package tools

import (
	"context"
	"fmt"
	"time"
)

// ToolCategory groups operations for listing and filtering.
type ToolCategory string

const (
	// CategoryProjects covers project CRUD.
	CategoryProjects ToolCategory = "/projects"

	// CategoryEpics covers epic CRUD.
	CategoryEpics ToolCategory = "/epics"

	// CategoryStories covers user story CRUD and epic links.
	CategoryStories ToolCategory = "/stories"

	// CategoryPlanning covers AI-assisted planning such as epic breakdown.
	CategoryPlanning ToolCategory = "/planning"

	// CategoryGeneral is for everything else.
	CategoryGeneral ToolCategory = "/general"
)

// Parameter types understood by ToolSchema.Normalize.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
	// Properties documents the known keys of an object parameter. Keys not
	// listed are passed through unchecked.
	Properties map[string]Property `json:"properties,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution. args has already been
// normalized against the tool's schema. The returned map becomes the
// payload of a success envelope; an error becomes an error envelope.
type ExecuteFunc func(ctx context.Context, args Args) (map[string]any, error)

// Tool defines one operation the model can invoke.
type Tool struct {
	// Name is the unique identifier the model calls the tool by.
	Name string

	// Description explains what the tool does.
	// Used for LLM tool calling and documentation.
	Description string

	// Category groups the tool for listing.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority orders tools within a category (default 50).
	Priority int

	// Timeout overrides the registry's default dispatch deadline.
	Timeout time.Duration
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	for name, prop := range t.Schema.Properties {
		switch prop.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject:
		case TypeArray:
			if prop.Items == nil {
				return fmt.Errorf("%w: array parameter %q has no items", ErrInvalidSchema, name)
			}
		default:
			return fmt.Errorf("%w: parameter %q has unknown type %q", ErrInvalidSchema, name, prop.Type)
		}
	}
	for _, req := range t.Schema.Required {
		if _, ok := t.Schema.Properties[req]; !ok {
			return fmt.Errorf("%w: required parameter %q is not declared", ErrInvalidSchema, req)
		}
	}
	return nil
}

// WithPriority returns a copy of the tool with the given priority.
func (t *Tool) WithPriority(priority int) *Tool {
	copy := *t
	copy.Priority = priority
	return &copy
}

// JSONSchema renders the schema as a JSON Schema object, the shape model
// providers expect for tool parameters.
func (s ToolSchema) JSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Properties))
	for name, prop := range s.Properties {
		properties[name] = prop.jsonSchema()
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func (p Property) jsonSchema() map[string]interface{} {
	out := map[string]interface{}{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = map[string]interface{}{"type": p.Items.Type}
	}
	if len(p.Properties) > 0 {
		props := make(map[string]interface{}, len(p.Properties))
		for name, sub := range p.Properties {
			props[name] = sub.jsonSchema()
		}
		out["properties"] = props
	}
	return out
}
