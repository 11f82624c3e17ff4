// Package catalog holds the fixed, process-wide catalogs the capture flow
// chooses from: filters, AI caption suggestions and health records.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/moment/internal/annotation"
	"github.com/hpungsan/moment/internal/imaging"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is immutable after Load.
type Catalog struct {
	Filters  []imaging.Filter `yaml:"filters"`
	Captions []string         `yaml:"captions"`
	Health   HealthCatalog    `yaml:"health"`

	byName map[string]imaging.Filter
}

// HealthCatalog lists the selectable records per picker category.
type HealthCatalog struct {
	Activity  []Record `yaml:"activity" json:"activity"`
	Mood      []Record `yaml:"mood" json:"mood"`
	Challenge []Record `yaml:"challenge" json:"challenge"`
}

// Record is one selectable health entry.
type Record struct {
	Label string `yaml:"label" json:"label"`
	Icon  string `yaml:"icon" json:"icon"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in catalog is invalid: %v", err))
	}
	return c
}

// Load returns the catalog at path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c.byName = make(map[string]imaging.Filter, len(c.Filters))
	for _, f := range c.Filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate filter %q", f.Name)
		}
		c.byName[f.Name] = f
	}

	normal, ok := c.byName[imaging.NormalFilter]
	if !ok {
		return nil, fmt.Errorf("catalog must define the %q filter", imaging.NormalFilter)
	}
	if !normal.IsIdentity() {
		return nil, fmt.Errorf("the %q filter must have no adjustments", imaging.NormalFilter)
	}

	return c, nil
}

// Resolve returns the named filter, falling back to Normal for unknown names.
func (c *Catalog) Resolve(name string) imaging.Filter {
	if f, ok := c.byName[name]; ok {
		return f
	}
	return c.byName[imaging.NormalFilter]
}

// Has reports whether name is a catalog filter.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// FilterNames returns filter names in display order.
func (c *Catalog) FilterNames() []string {
	names := make([]string, len(c.Filters))
	for i, f := range c.Filters {
		names[i] = f.Name
	}
	return names
}

// Caption returns the AI caption suggestion at index.
func (c *Catalog) Caption(index int) (string, error) {
	if index < 0 || index >= len(c.Captions) {
		return "", fmt.Errorf("caption index %d out of range [0,%d)", index, len(c.Captions))
	}
	return c.Captions[index], nil
}

// Records returns the health records of a picker category.
func (c *Catalog) Records(category annotation.HealthCategory) []Record {
	switch category {
	case annotation.CategoryActivity:
		return c.Health.Activity
	case annotation.CategoryMood:
		return c.Health.Mood
	case annotation.CategoryChallenge:
		return c.Health.Challenge
	}
	return nil
}

// HealthRecord returns the record at index in category as an annotation value.
func (c *Catalog) HealthRecord(category annotation.HealthCategory, index int) (annotation.HealthRecord, error) {
	records := c.Records(category)
	if records == nil {
		return annotation.HealthRecord{}, fmt.Errorf("unknown health category %q", category)
	}
	if index < 0 || index >= len(records) {
		return annotation.HealthRecord{}, fmt.Errorf("%s index %d out of range [0,%d)", category, index, len(records))
	}
	r := records[index]
	return annotation.HealthRecord{Category: category, Label: r.Label, Icon: r.Icon}, nil
}
