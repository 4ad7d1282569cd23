// Package devicemap loads the static table that maps logical sensor names
// (T1..T4) to physical 1-Wire sensor identifiers.
package devicemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigNotFound is returned when the mapping file does not exist
	ErrConfigNotFound = errors.New("device mapping not found")
	// ErrConfigMalformed is returned when the mapping cannot be parsed into
	// name to identifier pairs
	ErrConfigMalformed = errors.New("device mapping malformed")
)

// Mapping maps a logical sensor name to a physical sensor identifier
type Mapping map[string]string

// Names returns the logical names in sorted order
func (m Mapping) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads a mapping from a JSON or YAML file, chosen by extension.
// Files without a known extension are parsed as JSON.
func Load(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read device mapping %s: %w", path, err)
	}

	mapping, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mapping, nil
}

// Parse decodes mapping content. ext selects the format (".yaml", ".yml"
// or anything else for JSON).
func Parse(data []byte, ext string) (Mapping, error) {
	var raw map[string]any

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
		}
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no sensors defined", ErrConfigMalformed)
	}

	mapping := make(Mapping, len(raw))
	for name, value := range raw {
		id, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: sensor %q: identifier must be a string, got %T", ErrConfigMalformed, name, value)
		}
		name = strings.TrimSpace(name)
		id = strings.TrimSpace(id)
		if name == "" {
			return nil, fmt.Errorf("%w: empty sensor name", ErrConfigMalformed)
		}
		if id == "" {
			return nil, fmt.Errorf("%w: sensor %q: empty identifier", ErrConfigMalformed, name)
		}
		if _, dup := mapping[name]; dup {
			return nil, fmt.Errorf("%w: duplicate sensor name %q", ErrConfigMalformed, name)
		}
		mapping[name] = id
	}

	return mapping, nil
}
