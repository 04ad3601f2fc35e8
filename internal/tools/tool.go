// ABOUTME: Tool contract shared by the catalog, the MCP dispatcher, and the builtins
// ABOUTME: Descriptors carry a JSON Schema for arguments and tags for capability filtering

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Tag marks a capability a tool depends on.
type Tag string

// TagFileSystem marks tools that read or modify project files directly.
// They are hidden unless the client asks for file-system tools.
const TagFileSystem Tag = "file_system_tool"

// Descriptor is the advertised definition of a tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Tags        []Tag           `json:"-"`
}

// HasTag reports whether the descriptor carries tag.
func (d Descriptor) HasTag(tag Tag) bool {
	return slices.Contains(d.Tags, tag)
}

// Result is the output of a successful invocation.
type Result struct {
	Text string
	// Meta is returned to the client as _meta alongside the content.
	Meta map[string]any
}

// Text wraps s as a Result with no metadata.
func Text(s string) *Result {
	return &Result{Text: s}
}

// Tool is something the agent can call.
type Tool interface {
	Descriptor() Descriptor
	// Invoke runs the tool. args have already been validated against the
	// descriptor's schema and are never empty.
	Invoke(ctx context.Context, args json.RawMessage) (*Result, error)
}

// HandlerFunc executes an in-process tool.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (*Result, error)

// Func is a Tool built from a descriptor and a handler.
type Func struct {
	Def     Descriptor
	Handler HandlerFunc
}

// Descriptor implements Tool.
func (f *Func) Descriptor() Descriptor { return f.Def }

// Invoke implements Tool.
func (f *Func) Invoke(ctx context.Context, args json.RawMessage) (*Result, error) {
	return f.Handler(ctx, args)
}

// Decode unmarshals args into T, reporting failures as ErrInvalidArguments.
func Decode[T any](args json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(args)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(args, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return v, nil
}
