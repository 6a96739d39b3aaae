// pkg/registry/registry.go

// Package registry describes the catalog of matching activities this service
// exposes to workflow designers: one entry per Camunda task type with its
// input/output schemas and error codes.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version"`
	TaskType     string                 `json:"taskType"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Retries      int                    `json:"retries"`
	Workflows    []string               `json:"workflows"`
	Tags         []string               `json:"tags"`
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// FindByTaskType returns the activity registered for a Camunda task type.
func (r *ActivityRegistry) FindByTaskType(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of the catalog: no duplicate
// task types and no entry missing its identity fields.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]string, len(r.Activities))
	for _, act := range r.Activities {
		if act.ID == "" || act.TaskType == "" || act.DisplayName == "" {
			return fmt.Errorf("activity %q missing id, taskType or displayName", act.ID)
		}
		if prev, dup := seen[act.TaskType]; dup {
			return fmt.Errorf("task type %q registered by both %q and %q", act.TaskType, prev, act.ID)
		}
		seen[act.TaskType] = act.ID
	}
	return nil
}
