// ABOUTME: Reflects argument structs into JSON Schema documents for tool descriptors
// ABOUTME: Uses invopop/jsonschema with inline definitions and no $schema/$id noise

package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	Anonymous:                 true,
	AllowAdditionalProperties: true,
}

// SchemaFor returns the input schema for an argument struct. Fields without
// omitempty are required; descriptions come from jsonschema_description tags.
func SchemaFor(v any) json.RawMessage {
	schema := reflector.Reflect(v)
	schema.Version = ""

	data, err := json.Marshal(schema)
	if err != nil {
		panic("tools: reflecting schema: " + err.Error())
	}
	return data
}

// EmptySchema is the input schema of a tool that takes no arguments.
var EmptySchema = json.RawMessage(`{"type":"object","properties":{}}`)
