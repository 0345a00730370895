package completion

import (
	_ "embed"
	"fmt"
)

//go:embed default_schema.yaml
var defaultSchemaYAML []byte

// DefaultSchema returns the appraisal wizard schema shipped with the module.
func DefaultSchema() Schema {
	schema, err := ParseSchema(defaultSchemaYAML)
	if err != nil {
		panic(fmt.Sprintf("completion: embedded schema is invalid: %v", err))
	}
	return schema
}

// DefaultSchemaYAML returns the raw embedded schema, e.g. as a starting point
// for a custom schema file.
func DefaultSchemaYAML() []byte {
	return append([]byte(nil), defaultSchemaYAML...)
}
