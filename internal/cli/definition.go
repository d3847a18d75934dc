package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/taskq/internal/task"
)

// readDefinition loads a definition from path, or from stdin when path is
// "-". Files ending in .yaml or .yml are read as YAML, anything else as JSON.
func readDefinition(path string, stdin io.Reader) (task.Definition, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return task.Definition{}, fmt.Errorf("read definition: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return task.Definition{}, fmt.Errorf("parse definition %s: %w", path, err)
		}
	}

	var def task.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return task.Definition{}, fmt.Errorf("parse definition %s: %w", path, err)
	}
	return def, nil
}

// yamlToJSON re-encodes a YAML document as JSON so definitions go through a
// single decoder.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("definition must be a mapping, got %T", doc)
	}
	return json.Marshal(doc)
}
