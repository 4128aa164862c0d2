package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// candidateObjectSchema only pins the structure; field values, confidence_score included, are coerced leniently afterwards.
var candidateObjectSchema = map[string]any{
	"type": "object",
}

var candidateListSchema = map[string]any{
	"type":  "array",
	"items": candidateObjectSchema,
}

var (
	compileOnce   sync.Once
	objectSchema  *jsonschema.Schema
	listSchema    *jsonschema.Schema
	compileSchErr error
)

func compiledSchemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	compileOnce.Do(func() {
		objectSchema, compileSchErr = compileSchema("candidate.json", candidateObjectSchema)
		if compileSchErr != nil {
			return
		}
		listSchema, compileSchErr = compileSchema("candidates.json", candidateListSchema)
	})
	return objectSchema, listSchema, compileSchErr
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateCandidateObject checks that a decoded JSON value has the shape of one candidate.
func ValidateCandidateObject(v any) error {
	obj, _, err := compiledSchemas()
	if err != nil {
		return err
	}
	if err := obj.Validate(v); err != nil {
		return fmt.Errorf("json does not match candidate schema: %w", err)
	}
	return nil
}

// ValidateCandidateList checks that a decoded JSON value is an array of candidate objects.
func ValidateCandidateList(v any) error {
	_, list, err := compiledSchemas()
	if err != nil {
		return err
	}
	if err := list.Validate(v); err != nil {
		return fmt.Errorf("json does not match candidate list schema: %w", err)
	}
	return nil
}
