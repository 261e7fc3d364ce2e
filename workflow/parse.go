package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// ParseFile loads a workflow definition from a file. The extension selects
// the format (JSON or YAML).
func ParseFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yml", ".yaml":
		return ParseYAML(data)
	}
	return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
}

// ParseJSON decodes and validates a workflow definition from JSON. This is
// the format the persistence layer stores workflows in.
func ParseJSON(data []byte) (*Workflow, error) {
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid workflow JSON: %w", err)
	}
	return New(&w)
}

// ParseYAML decodes and validates a workflow definition from YAML.
func ParseYAML(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.UnmarshalWithOptions(data, &w, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("invalid workflow YAML: %w", err)
	}
	return New(&w)
}

// MarshalJSON encodes a workflow definition for storage.
func MarshalJSON(w *Workflow) ([]byte, error) {
	return json.Marshal(w)
}
