// Package gen scaffolds model source files from a declarative YAML config.
//
// It is deliberately smaller than a full schema compiler: each configured
// model becomes one struct file wired into the convention engine, plus a
// per-model package of column constants and typed predicate fields. Anything
// beyond scaffolding (relations beyond belongs-to, custom column types)
// belongs in the generated file, which is yours to edit after the first run.
package gen

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/arkframe/record/naming"
)

// DefaultConfigFile is the config filename looked up when none is given.
const DefaultConfigFile = ".recordgen.yml"

// Config is the root of the generator configuration.
type Config struct {
	// Package is the Go package name of the generated model files.
	Package string `yaml:"package"`
	// Out is the output directory. Defaults to the package name.
	Out string `yaml:"out"`
	// Models are the model definitions to scaffold.
	Models []ModelSpec `yaml:"models"`
}

// ModelSpec describes one generated model.
type ModelSpec struct {
	// Name is the model name in snake_case or CamelCase.
	Name string `yaml:"name"`
	// Table overrides the conventional table name.
	Table string `yaml:"table"`
	// Fields are the model's own columns.
	Fields []FieldSpec `yaml:"fields"`
	// BelongsTo lists parent models; each produces a foreign-key field.
	BelongsTo []string `yaml:"belongs_to"`
}

// FieldSpec describes one generated struct field.
type FieldSpec struct {
	Name string `yaml:"name"`
	// Type is one of: string, int, int64, float, float64, bool, time, bytes.
	Type string `yaml:"type"`
	// Nullable fields are generated as pointers.
	Nullable bool `yaml:"nullable"`
}

// fieldTypes maps config type names to Go type expressions.
var fieldTypes = map[string]struct{ pkg, name string }{
	"string":  {"", "string"},
	"int":     {"", "int64"},
	"int64":   {"", "int64"},
	"float":   {"", "float64"},
	"float64": {"", "float64"},
	"bool":    {"", "bool"},
	"time":    {"time", "Time"},
	"bytes":   {"", "[]byte"},
}

// LoadConfig reads and validates a generator config file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gen: reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("gen: parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Package == "" {
		c.Package = "models"
	}
	if c.Out == "" {
		c.Out = c.Package
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("gen: config declares no models")
	}
	seen := make(map[string]struct{}, len(c.Models))
	for i := range c.Models {
		m := &c.Models[i]
		if m.Name == "" {
			return fmt.Errorf("gen: model %d has no name", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("gen: duplicate model %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.Table == "" {
			m.Table = naming.TableName(m.TypeName())
		}
		for _, f := range m.Fields {
			if f.Name == "" {
				return fmt.Errorf("gen: model %q has an unnamed field", m.Name)
			}
			if _, ok := fieldTypes[f.Type]; !ok {
				return fmt.Errorf("gen: model %q field %q: unknown type %q (have %s)",
					m.Name, f.Name, f.Type, knownFieldTypes())
			}
		}
	}
	return nil
}

func knownFieldTypes() string {
	names := make([]string, 0, len(fieldTypes))
	for k := range fieldTypes {
		names = append(names, k)
	}
	sort.Strings(names)
	s := ""
	for i, n := range names {
		if i > 0 {
			s += ", "
		}
		s += n
	}
	return s
}
