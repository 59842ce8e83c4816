package params

import (
	"fmt"
	"io"

	"github.com/hpungsan/cgreduce/internal/diag"
	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/rowfile"
)

// AnyResidue scopes an atom rename to every residue.
const AnyResidue = "*"

// Conversion holds the rename tables applied before matching.
type Conversion struct {
	// Residues maps an old residue name to its new name.
	Residues map[string]string `json:"residues"`
	// Atoms maps a residue name (or AnyResidue), then an old atom name, to the new atom name.
	Atoms map[string]map[string]string `json:"atoms"`
}

// NewConversion returns empty tables.
func NewConversion() *Conversion {
	return &Conversion{
		Residues: make(map[string]string),
		Atoms:    make(map[string]map[string]string),
	}
}

// DefaultAttract2Conversion returns the renames applied by the attract2 flow
// when no conversion table is given. Each call returns fresh maps.
func DefaultAttract2Conversion() *Conversion {
	return &Conversion{
		Residues: map[string]string{
			"HIE": "HIS",
			"LEU": "LEU",
		},
		Atoms: map[string]map[string]string{
			AnyResidue: {"OT": "O", "OT1": "O", "OT2": "O"},
			"ILE":      {"CD": "CD1"},
		},
	}
}

// Empty reports whether c renames nothing.
func (c *Conversion) Empty() bool {
	return c == nil || (len(c.Residues) == 0 && len(c.Atoms) == 0)
}

// Residue returns the new name of residue, or residue itself.
func (c *Conversion) Residue(residue string) string {
	if c == nil {
		return residue
	}
	if to, ok := c.Residues[residue]; ok {
		return to
	}
	return residue
}

// Atom returns the rename of atom scoped to residue, if any.
func (c *Conversion) Atom(residue, atom string) (string, bool) {
	if c == nil {
		return "", false
	}
	to, ok := c.Atoms[residue][atom]
	return to, ok
}

// LoadConversion reads a conversion table from path. Duplicate keys are
// reported to dc.
func LoadConversion(path string, dc *diag.Collector) (*Conversion, error) {
	f, err := rowfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseConversion(f, path, dc)
}

// ParseConversion reads a conversion table. Two columns rename a residue;
// three columns rename an atom within a residue (`*` for every residue).
// A key defined twice keeps the latest mapping and emits
// DUPLICATE_CONVERSION_ENTRY. dc may be nil.
func ParseConversion(r io.Reader, source string, dc *diag.Collector) (*Conversion, error) {
	conv := NewConversion()
	warn := func(entry string, line int) {
		if dc != nil {
			dc.Warn(errors.NewDuplicateConversionEntry(source, entry, line))
		}
	}

	err := rowfile.Scan(r, func(row rowfile.Row) error {
		switch len(row.Fields) {
		case 2:
			from, to := row.Fields[0], row.Fields[1]
			if _, ok := conv.Residues[from]; ok {
				warn(from, row.Line)
			}
			conv.Residues[from] = to
		case 3:
			res, from, to := row.Fields[0], row.Fields[1], row.Fields[2]
			atoms, ok := conv.Atoms[res]
			if !ok {
				atoms = make(map[string]string)
				conv.Atoms[res] = atoms
			}
			if _, ok := atoms[from]; ok {
				warn(res+":"+from, row.Line)
			}
			atoms[from] = to
		default:
			return errors.NewMalformedRow(errors.ErrMalformedConversionRow, source, row.Line, row.Text,
				fmt.Sprintf("expected 2 or 3 items (found %d)", len(row.Fields)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}
