package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// FindActivity looks up an activity by its task type.
func (r *ActivityRegistry) FindActivity(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// ValidateInput checks a job payload against the activity's input schema.
// An empty schema accepts everything.
func (a *Activity) ValidateInput(payload map[string]interface{}) error {
	if len(a.InputSchema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(a.InputSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error for %s: %w", a.ID, err)
	}

	if !result.Valid() {
		return fmt.Errorf("input for %s does not match schema: %v", a.ID, result.Errors())
	}
	return nil
}

// ValidateSchemas compiles every declared schema so malformed registry
// entries surface at startup instead of on the first job.
func (r *ActivityRegistry) ValidateSchemas() error {
	for _, activity := range r.Activities {
		for name, schema := range map[string]map[string]interface{}{
			"inputSchema":  activity.InputSchema,
			"outputSchema": activity.OutputSchema,
		} {
			if len(schema) == 0 {
				continue
			}
			loader := gojsonschema.NewGoLoader(schema)
			if _, err := gojsonschema.NewSchema(loader); err != nil {
				return fmt.Errorf("activity %s has invalid %s: %w", activity.ID, name, err)
			}
		}
	}
	return nil
}
