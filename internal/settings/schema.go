package settings

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed linkedin.schema.json
var linkedInSchemaJSON []byte

var (
	linkedInSchema     *jsonschema.Schema
	linkedInSchemaErr  error
	linkedInSchemaOnce sync.Once
)

// validateLinkedIn checks a settings document against the embedded schema.
func validateLinkedIn(doc map[string]interface{}) error {
	linkedInSchemaOnce.Do(func() {
		linkedInSchema, linkedInSchemaErr = jsonschema.NewCompiler().Compile(linkedInSchemaJSON)
	})
	if linkedInSchemaErr != nil {
		return fmt.Errorf("failed to compile schema: %w", linkedInSchemaErr)
	}

	result := linkedInSchema.Validate(doc)
	if result.IsValid() {
		return nil
	}
	var msgs []string
	for field, evalErr := range result.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	sort.Strings(msgs)
	return fmt.Errorf("settings validation failed: %s", strings.Join(msgs, "; "))
}
