// ABOUTME: Append-only tool catalog with capability-scoped views
// ABOUTME: Resolve picks one of two immutable tool sets built at construction

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v6"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrToolCollision indicates two tools were registered under one name.
var ErrToolCollision = errors.New("tool name collision")

// ErrToolNotFound indicates the tool is unknown or hidden in the resolved set.
var ErrToolNotFound = errors.New("tool not found")

// ErrInvalidArguments indicates the call arguments do not match the tool's schema.
var ErrInvalidArguments = errors.New("invalid arguments")

const schemaBaseURL = "https://tidewave.local/tools/"

type entry struct {
	tool   Tool
	desc   Descriptor
	schema *jsonschema.Schema
}

// Catalog holds every registered tool in registration order.
type Catalog struct {
	full      *ToolSet
	withoutFS *ToolSet
}

// NewCatalog builds a catalog from tools, compiling each input schema once.
// Returns ErrToolCollision if two tools share a name.
func NewCatalog(logger *slog.Logger, tools ...Tool) (*Catalog, error) {
	compiler := jsonschema.NewCompiler()
	full := orderedmap.New[string, *entry]()
	withoutFS := orderedmap.New[string, *entry]()

	for _, tool := range tools {
		desc := tool.Descriptor()
		if _, exists := full.Get(desc.Name); exists {
			return nil, fmt.Errorf("%w: %s", ErrToolCollision, desc.Name)
		}

		schema, err := compileSchema(compiler, desc)
		if err != nil {
			return nil, err
		}

		e := &entry{tool: tool, desc: desc, schema: schema}
		full.Set(desc.Name, e)
		if !desc.HasTag(TagFileSystem) {
			withoutFS.Set(desc.Name, e)
		}
	}

	logger.Info("=== TOOL CATALOG BUILT ===",
		"total_tools", full.Len(),
		"file_system_tools", full.Len()-withoutFS.Len(),
	)

	return &Catalog{
		full:      &ToolSet{tools: full},
		withoutFS: &ToolSet{tools: withoutFS},
	}, nil
}

func compileSchema(compiler *jsonschema.Compiler, desc Descriptor) (*jsonschema.Schema, error) {
	raw := desc.InputSchema
	if len(raw) == 0 {
		raw = EmptySchema
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing schema of %s: %w", desc.Name, err)
	}

	url := schemaBaseURL + desc.Name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("adding schema of %s: %w", desc.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema of %s: %w", desc.Name, err)
	}
	return schema, nil
}

// Resolve returns the tools visible to a request. File-system tools are
// included only when includeFS is set. The returned set must not be modified.
func (c *Catalog) Resolve(includeFS bool) *ToolSet {
	if includeFS {
		return c.full
	}
	return c.withoutFS
}

// ToolSet is an immutable, ordered view of the catalog.
type ToolSet struct {
	tools *orderedmap.OrderedMap[string, *entry]
}

// Len returns the number of tools in the set.
func (s *ToolSet) Len() int {
	return s.tools.Len()
}

// List returns the descriptors in registration order.
func (s *ToolSet) List() []Descriptor {
	out := make([]Descriptor, 0, s.tools.Len())
	for pair := s.tools.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.desc)
	}
	return out
}

// Lookup returns the descriptor of a tool in the set.
func (s *ToolSet) Lookup(name string) (Descriptor, bool) {
	e, ok := s.tools.Get(name)
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Call validates args and invokes the named tool. Missing or null args are
// treated as an empty object.
func (s *ToolSet) Call(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	e, ok := s.tools.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		args = json.RawMessage("{}")
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := e.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	return e.tool.Invoke(ctx, args)
}
