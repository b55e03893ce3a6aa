// Package regulation holds the ordered catalog of regulations used to tag
// requirements, and the keyword matching that applies it.
package regulation

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Regulation is one catalog entry. The name itself always counts as a keyword.
type Regulation struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
}

// UnmarshalYAML accepts either a mapping or a bare regulation name
func (r *Regulation) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Name = node.Value
		return nil
	}
	type plain Regulation
	return node.Decode((*plain)(r))
}

// Catalog is an immutable, ordered list of regulations with their keywords
// pre-normalized for matching.
type Catalog struct {
	regulations []Regulation
	keywords    [][]string // normalized, parallel to regulations
}

type catalogFile struct {
	Regulations []Regulation `yaml:"regulations"`
}

// New validates regs and builds a catalog. Names must be unique and non-empty.
func New(regs []Regulation) (*Catalog, error) {
	c := &Catalog{
		regulations: make([]Regulation, 0, len(regs)),
		keywords:    make([][]string, 0, len(regs)),
	}

	seen := make(map[string]bool, len(regs))
	for i, r := range regs {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("regulation %d: name is required", i+1)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("regulation %q: duplicate name", name)
		}
		seen[strings.ToLower(name)] = true

		kws := make([]string, 0, len(r.Keywords)+1)
		kwSeen := make(map[string]bool)
		for _, kw := range append([]string{name}, r.Keywords...) {
			n := Normalize(kw)
			if n == "" || kwSeen[n] {
				continue
			}
			kwSeen[n] = true
			kws = append(kws, n)
		}

		c.regulations = append(c.regulations, Regulation{
			Name:        name,
			Description: r.Description,
			Keywords:    append([]string(nil), r.Keywords...),
		})
		c.keywords = append(c.keywords, kws)
	}

	return c, nil
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML, "yaml")
	if err != nil {
		panic(fmt.Sprintf("built-in regulation catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. The format follows the extension: .hcl for HCL,
// anything else is read as YAML (which covers JSON).
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regulation catalog: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		format = "hcl"
	}

	c, err := parse(data, format, path)
	if err != nil {
		return nil, fmt.Errorf("load regulation catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML, JSON or HCL source
func Parse(data []byte, format string) (*Catalog, error) {
	return parse(data, format, "catalog."+format)
}

func parse(data []byte, format, filename string) (*Catalog, error) {
	var regs []Regulation

	switch strings.ToLower(format) {
	case "hcl":
		var err error
		regs, err = decodeHCL(data, filename)
		if err != nil {
			return nil, err
		}
	case "yaml", "yml", "json":
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		regs = f.Regulations
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}

	if len(regs) == 0 {
		return nil, fmt.Errorf("catalog defines no regulations")
	}
	return New(regs)
}

// Regulations returns a copy of the catalog entries in order
func (c *Catalog) Regulations() []Regulation {
	out := make([]Regulation, len(c.regulations))
	copy(out, c.regulations)
	return out
}

// Names returns the regulation names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.regulations))
	for i, r := range c.regulations {
		names[i] = r.Name
	}
	return names
}

// Len returns the number of regulations
func (c *Catalog) Len() int {
	return len(c.regulations)
}
