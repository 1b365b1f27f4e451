// Package texture maps surface names to texture paths.
//
// Lookups are explicit: callers build a Table and pass it where it is
// needed. Nothing in this package holds process-wide state.
package texture

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resolver maps a surface name to a texture path.
type Resolver interface {
	Lookup(surface string) (string, bool)
}

// Table is a Resolver backed by a fixed map. Surface names match
// case-insensitively.
type Table struct {
	entries map[string]string
}

// tableFile is the on-disk YAML layout:
//
//	surfaces:
//	  body: textures/allied/body.tga
//	  helmet: textures/allied/helmet.tga
type tableFile struct {
	Surfaces map[string]string `yaml:"surfaces"`
}

// NewTable creates a table from surface name to texture path entries.
func NewTable(entries map[string]string) *Table {
	t := &Table{entries: make(map[string]string, len(entries))}
	for surface, path := range entries {
		t.entries[strings.ToLower(surface)] = path
	}
	return t
}

// ParseTable decodes a YAML texture table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing texture table: %w", err)
	}
	return NewTable(f.Surfaces), nil
}

// LoadTable reads a YAML texture table from disk.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading texture table: %w", err)
	}
	return ParseTable(data)
}

// Lookup returns the texture path for surface. Safe on a nil Table.
func (t *Table) Lookup(surface string) (string, bool) {
	if t == nil {
		return "", false
	}
	path, ok := t.entries[strings.ToLower(surface)]
	return path, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Surfaces returns the known surface names, sorted.
func (t *Table) Surfaces() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the table as YAML.
func (t *Table) Save(path string) error {
	data, err := yaml.Marshal(tableFile{Surfaces: t.entries})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
