package npi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/qri-io/jsonschema"
)

// documentSchema constrains the registry response before field mapping.
// The registry is an external party; a payload that does not even carry an
// npi string is treated as a malformed document, not mapped into a blank
// provider.
const documentSchema = `{
	"type": "object",
	"required": ["npi"],
	"properties": {
		"npi": {"type": "string", "minLength": 1},
		"first_name": {"type": "string"},
		"last_name": {"type": "string"},
		"organization_name": {"type": "string"},
		"taxonomy_desc": {"type": "string"}
	}
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(documentSchema), rs); err != nil {
			schemaErr = fmt.Errorf("compile document schema: %w", err)
			return
		}
		schema = rs
	})
	return schema, schemaErr
}

func validateDocument(ctx context.Context, body []byte) error {
	rs, err := compiledSchema()
	if err != nil {
		return err
	}
	keyErrs, err := rs.ValidateBytes(ctx, body)
	if err != nil {
		return fmt.Errorf("validate registry document: %w", err)
	}
	if len(keyErrs) > 0 {
		return fmt.Errorf("registry document failed validation: %s", keyErrs[0].Error())
	}
	return nil
}
