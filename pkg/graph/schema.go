package graph

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

// validatorCache compiles each distinct schema text exactly once, keyed
// by its content hash, mirroring the original's DefaultHasher-keyed
// validator cache so repeated InputNode/OutputNode evaluations against
// the same schema don't recompile it every call.
type validatorCache struct {
	mu    sync.Mutex
	byKey map[string]*jsonschema.Schema
}

func newValidatorCache() *validatorCache {
	return &validatorCache{byKey: make(map[string]*jsonschema.Schema)}
}

func schemaCacheKey(schemaText string) string {
	sum := sha256.Sum256([]byte(schemaText))
	return hex.EncodeToString(sum[:])
}

func (c *validatorCache) getOrCompile(schemaText string) (*jsonschema.Schema, error) {
	key := schemaCacheKey(schemaText)

	c.mu.Lock()
	if s, ok := c.byKey[key]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	compiler := jsonschema.NewCompiler()
	const resourceName = "schema.json"
	if err := compiler.AddResource(resourceName, strings.NewReader(schemaText)); err != nil {
		return nil, fmt.Errorf("graph: invalid schema: %w", err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("graph: compile schema: %w", err)
	}

	c.mu.Lock()
	c.byKey[key] = schema
	c.mu.Unlock()
	return schema, nil
}

// validate checks value (as its plain-Go JSON representation) against
// schemaText, compiling and caching the schema on first use.
func (c *validatorCache) validate(schemaText string, value vm.Variable) error {
	schema, err := c.getOrCompile(schemaText)
	if err != nil {
		return err
	}
	// jsonschema validates decoded JSON values (map[string]interface{},
	// []interface{}, json.Number, ...); round-trip through encoding/json
	// so numbers arrive as json.Number rather than Variable's own shapes.
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("graph: encode value for validation: %w", err)
	}
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("graph: decode value for validation: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return &EvaluationError{Kind: ErrSchemaValidation, Message: err.Error()}
	}
	return nil
}
