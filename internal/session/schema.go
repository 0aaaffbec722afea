package session

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/analyzer_result.json
var resultSchemaJSON []byte

const resultSchemaURL = "https://gaps-closure.github.io/vscle/analyzer-result.schema.json"

var (
	resultSchemaOnce sync.Once
	resultSchema     *jsonschema.Schema
	resultSchemaErr  error
)

func compiledResultSchema() (*jsonschema.Schema, error) {
	resultSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(resultSchemaJSON))
		if err != nil {
			resultSchemaErr = fmt.Errorf("invalid embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(resultSchemaURL, doc); err != nil {
			resultSchemaErr = err
			return
		}
		resultSchema, resultSchemaErr = c.Compile(resultSchemaURL)
	})
	return resultSchema, resultSchemaErr
}

// ValidatePayload checks an analyzer payload against the result schema.
func ValidatePayload(payload []byte) error {
	sch, err := compiledResultSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(bytes.TrimSpace(payload)))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
