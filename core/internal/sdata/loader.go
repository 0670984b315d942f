package sdata

import (
	"fmt"

	"github.com/gobuffalo/flect"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk schema document.
type schemaFile struct {
	Collections []Collection `yaml:"collections"`
}

// LoadSchema reads a YAML schema file from the given filesystem and
// builds a Schema from it.
func LoadSchema(fs afero.Fs, path string) (*Schema, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return ParseSchema(b)
}

// ParseSchema builds a Schema from YAML bytes.
func ParseSchema(b []byte) (*Schema, error) {
	var sf schemaFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if len(sf.Collections) == 0 {
		return nil, fmt.Errorf("schema: no collections declared")
	}
	return NewSchema(sf.Collections)
}

// CollectionName derives a collection name from an entity type name,
// e.g. "BlogPost" -> "blog_posts".
func CollectionName(typeName string) string {
	if typeName == "" {
		return ""
	}
	return flect.Pluralize(flect.Underscore(typeName))
}
