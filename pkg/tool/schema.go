package tool

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

// schemaReflector is shared across calls; invopop/jsonschema recommends
// reuse so struct reflection results can be cached internally.
var schemaReflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: false,
}

// SchemaFor derives a JSON Schema string for an argument struct, used to
// populate Definition.ParametersSchema. Pass a pointer to a zero value of
// the argument struct, e.g. SchemaFor(&searchArgs{}).
func SchemaFor(argStruct any) (string, error) {
	schema := schemaReflector.ReflectFromType(reflect.TypeOf(argStruct))
	schema.Version = "" // omit $schema; most LLM tool-call contracts don't expect it
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
