// Package catalog loads reduction catalogs: the residue → bead → atom rules
// that drive coarse graining. Two formats exist. Row-based catalogs (attract1)
// are whitespace-delimited tables with per-atom weights and wildcard rows.
// Structured catalogs (attract2) are YAML documents declaring a force field
// and per-bead charge and type id.
package catalog

import (
	"fmt"
	"strings"

	"github.com/hpungsan/cgreduce/internal/errors"
)

// Format identifies which kind of file a Catalog was built from. It decides
// the matching policy and centroid formula used during assembly.
type Format int

const (
	FormatRowBased Format = iota
	FormatStructured
)

func (f Format) String() string {
	switch f {
	case FormatRowBased:
		return "rows"
	case FormatStructured:
		return "yaml"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name; empty means FormatRowBased.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rows":
		return FormatRowBased, nil
	case "yaml", "yml":
		return FormatStructured, nil
	default:
		return 0, errors.NewInvalidRequest(fmt.Sprintf("unknown catalog format %q (want rows or yaml)", name))
	}
}

// Wildcard is the residue name of rows applied to every residue.
const Wildcard = "*"

// EmptyAtom marks a deliberately absent atom (glycine's side chain).
const EmptyAtom = "EMPTY"

// AtomDef is one expected atom of a bead.
type AtomDef struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// BeadDef is a static catalog entry for one bead of a residue.
// Charge and TypeID are only meaningful for structured catalogs; row-based
// beads take their charge from the charge table and use ID as type.
type BeadDef struct {
	Name   string    `json:"name"`
	ID     int       `json:"id"`
	Atoms  []AtomDef `json:"atoms"`
	Charge float64   `json:"charge"`
	TypeID int       `json:"type_id"`
}

// AtomNames returns the expected atom names in catalog order.
func (b BeadDef) AtomNames() []string {
	names := make([]string, len(b.Atoms))
	for i, a := range b.Atoms {
		names[i] = a.Name
	}
	return names
}

// Expects reports whether name is one of the bead's atoms.
func (b BeadDef) Expects(name string) bool {
	for _, a := range b.Atoms {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Catalog maps residue names to their ordered bead definitions.
// It is immutable once loaded and safe for concurrent reads.
type Catalog struct {
	Format     Format
	ForceField string
	Source     string

	residues map[string][]BeadDef
	order    []string
}

func newCatalog(format Format, forcefield, source string) *Catalog {
	return &Catalog{
		Format:     format,
		ForceField: forcefield,
		Source:     source,
		residues:   make(map[string][]BeadDef),
	}
}

// Lookup returns a copy of the beads of residue, in catalog order.
func (c *Catalog) Lookup(residue string) ([]BeadDef, bool) {
	beads, ok := c.residues[residue]
	if !ok {
		return nil, false
	}
	out := make([]BeadDef, len(beads))
	for i, b := range beads {
		out[i] = b
		out[i].Atoms = append([]AtomDef(nil), b.Atoms...)
	}
	return out, true
}

// Residues returns the residue names in load order.
func (c *Catalog) Residues() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of residues.
func (c *Catalog) Len() int {
	return len(c.order)
}

func (c *Catalog) put(residue string, beads []BeadDef) {
	if _, ok := c.residues[residue]; !ok {
		c.order = append(c.order, residue)
	}
	c.residues[residue] = beads
}

// Load reads the catalog at path using the loader for format.
func Load(path string, format Format) (*Catalog, error) {
	switch format {
	case FormatRowBased:
		return LoadRows(path)
	case FormatStructured:
		return LoadStructured(path)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown catalog format %d", int(format)))
	}
}
