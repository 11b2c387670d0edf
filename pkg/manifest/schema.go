package manifest

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/manifest_schema.json
var manifestSchemaJSON []byte

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(manifestSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded manifest schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("manifest_schema.json", doc); err != nil {
		panic(fmt.Sprintf("failed to add manifest schema resource: %v", err))
	}
	schema, err := compiler.Compile("manifest_schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile manifest schema: %v", err))
	}
	return schema
}

// validateSchema checks raw manifest YAML against the embedded JSON schema
// before decoding, so structural mistakes surface as schema paths instead
// of zero-valued structs.
func validateSchema(content []byte) error {
	jsonBytes, err := yaml.YAMLToJSON(content)
	if err != nil {
		return fmt.Errorf("manifest is not valid YAML: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonBytes))
	if err != nil {
		return fmt.Errorf("manifest is not valid YAML: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("manifest schema validation failed: %w", err)
	}
	return nil
}
