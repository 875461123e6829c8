package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed activities.json
var defaultRegistry []byte

// Default returns the built-in registry of notification activities.
func Default() (*ActivityRegistry, error) {
	return parse(defaultRegistry)
}

// LoadRegistry reads a registry file, typically an operator override of
// the built-in one.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// Load returns the registry at path, or the built-in one when path is empty.
func Load(path string) (*ActivityRegistry, error) {
	if path == "" {
		return Default()
	}
	return LoadRegistry(path)
}

func parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	return &reg, nil
}

// Find returns the activity for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// InputSchema returns the input schema for taskType, or nil when the
// activity is unknown.
func (r *ActivityRegistry) InputSchema(taskType string) map[string]interface{} {
	if a, ok := r.Find(taskType); ok {
		return a.InputSchema
	}
	return nil
}

// Validate checks that every activity is identified, unique, has a parsable
// timeout and an input schema that compiles.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	taskTypes := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity missing required field: id")
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: taskType", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("duplicate task type: %s", a.TaskType)
		}
		taskTypes[a.TaskType] = true

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %s has invalid timeout %q: %w", a.ID, a.Timeout, err)
			}
		}
		if len(a.InputSchema) > 0 {
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema)); err != nil {
				return fmt.Errorf("activity %s has invalid input schema: %w", a.ID, err)
			}
		}
	}
	return nil
}
