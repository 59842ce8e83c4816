package catalog

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/rowfile"
)

// defaultBeadName is used when a structured bead omits its name.
const defaultBeadName = "X"

// document mirrors the structured catalog file.
type document struct {
	ForceField string                    `yaml:"forcefield"`
	Beads      map[string][]beadDocument `yaml:"beads"`
}

type beadDocument struct {
	Name   string   `yaml:"name"`
	Atoms  []string `yaml:"atoms"`
	Charge *float64 `yaml:"charge"`
	TypeID *int     `yaml:"typeid"`
}

// LoadStructured reads a structured (YAML) catalog from path.
func LoadStructured(path string) (*Catalog, error) {
	f, err := rowfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseStructured(f, path)
}

// ParseStructured decodes a structured catalog. Every atom weighs 1.0, so
// centroids are plain averages. Residue order follows the document.
func ParseStructured(r io.Reader, source string) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return nil, errors.NewMalformedCatalog(source, "empty document")
		}
		return nil, errors.NewMalformedCatalog(source, fmt.Sprintf("invalid YAML: %v", err))
	}

	var doc document
	if err := root.Decode(&doc); err != nil {
		return nil, errors.NewMalformedCatalog(source, fmt.Sprintf("invalid catalog: %v", err))
	}
	if strings.TrimSpace(doc.ForceField) == "" {
		return nil, errors.NewMalformedCatalog(source, "missing forcefield")
	}
	if len(doc.Beads) == 0 {
		return nil, errors.NewMalformedCatalog(source, "missing beads")
	}

	cat := newCatalog(FormatStructured, doc.ForceField, source)
	for _, res := range residueOrder(&root) {
		entries := doc.Beads[res]
		beads := make([]BeadDef, 0, len(entries))
		owner := make(map[string]int)
		for i, e := range entries {
			if len(e.Atoms) == 0 {
				return nil, errors.NewMalformedCatalog(source,
					fmt.Sprintf("residue %s bead %d has no atoms", res, i+1))
			}
			bead := BeadDef{Name: e.Name, ID: i + 1}
			if bead.Name == "" {
				bead.Name = defaultBeadName
			}
			if e.Charge != nil {
				bead.Charge = *e.Charge
			}
			if e.TypeID != nil {
				bead.TypeID = *e.TypeID
			}
			for _, name := range e.Atoms {
				if id, dup := owner[name]; dup {
					return nil, errors.NewMalformedCatalog(source,
						fmt.Sprintf("residue %s: atom %s already belongs to bead %d", res, name, id))
				}
				owner[name] = bead.ID
				bead.Atoms = append(bead.Atoms, AtomDef{Name: name, Weight: 1.0})
			}
			beads = append(beads, bead)
		}
		cat.put(res, beads)
	}
	return cat, nil
}

// residueOrder returns the keys of the top-level "beads" mapping in document
// order; decoding into a Go map loses it.
func residueOrder(root *yaml.Node) []string {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "beads" {
			continue
		}
		beads := doc.Content[i+1]
		if beads.Kind != yaml.MappingNode {
			return nil
		}
		keys := make([]string, 0, len(beads.Content)/2)
		for j := 0; j+1 < len(beads.Content); j += 2 {
			keys = append(keys, beads.Content[j].Value)
		}
		return keys
	}
	return nil
}
