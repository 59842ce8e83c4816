package catalog

import (
	"fmt"
	"io"
	"strconv"

	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/rowfile"
)

// DefaultRowForceField is the force-field name of row-based catalogs.
const DefaultRowForceField = "attract1"

// catalogRow is one `residue atom weight beadId beadName` line.
type catalogRow struct {
	residue  string
	atom     string
	weight   float64
	beadID   int
	beadName string

	line int
	text string
}

// LoadRows reads a row-based catalog from path.
func LoadRows(path string) (*Catalog, error) {
	f, err := rowfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRows(f, path)
}

// ParseRows builds a row-based catalog. Rows are grouped by residue name in
// first-seen order and applied in file order. Wildcard rows are applied to
// every named residue once all of them are built.
func ParseRows(r io.Reader, source string) (*Catalog, error) {
	var (
		order    []string
		byRes    = make(map[string][]catalogRow)
		wildcard []catalogRow
	)

	err := rowfile.Scan(r, func(row rowfile.Row) error {
		cr, err := parseCatalogRow(source, row)
		if err != nil {
			return err
		}
		if cr.residue == Wildcard {
			wildcard = append(wildcard, cr)
			return nil
		}
		if _, ok := byRes[cr.residue]; !ok {
			order = append(order, cr.residue)
		}
		byRes[cr.residue] = append(byRes[cr.residue], cr)
		return nil
	})
	if err != nil {
		return nil, err
	}

	cat := newCatalog(FormatRowBased, DefaultRowForceField, source)
	for _, res := range order {
		beads, err := addRows(nil, res, byRes[res], source)
		if err != nil {
			return nil, err
		}
		if beads, err = addRows(beads, res, wildcard, source); err != nil {
			return nil, err
		}
		cat.put(res, beads)
	}
	return cat, nil
}

func parseCatalogRow(source string, row rowfile.Row) (catalogRow, error) {
	if len(row.Fields) < 5 {
		return catalogRow{}, errors.NewMalformedRow(errors.ErrMalformedCatalogRow, source, row.Line, row.Text,
			fmt.Sprintf("expected at least 5 items (found %d)", len(row.Fields)))
	}
	weight, err := strconv.ParseFloat(row.Fields[2], 64)
	if err != nil {
		return catalogRow{}, errors.NewMalformedRow(errors.ErrMalformedCatalogRow, source, row.Line, row.Text,
			fmt.Sprintf("invalid atom weight %q", row.Fields[2]))
	}
	beadID, err := strconv.Atoi(row.Fields[3])
	if err != nil {
		return catalogRow{}, errors.NewMalformedRow(errors.ErrMalformedCatalogRow, source, row.Line, row.Text,
			fmt.Sprintf("invalid bead id %q", row.Fields[3]))
	}
	return catalogRow{
		residue:  row.Fields[0],
		atom:     row.Fields[1],
		weight:   weight,
		beadID:   beadID,
		beadName: row.Fields[4],
		line:     row.Line,
		text:     row.Text,
	}, nil
}

// addRows appends rows to the beads of residue: a new bead id opens a new
// bead, a known one receives the atom. EMPTY atoms contribute nothing, not
// even a bead. An atom name may appear only once per residue.
func addRows(beads []BeadDef, residue string, rows []catalogRow, source string) ([]BeadDef, error) {
	for _, r := range rows {
		if r.atom == EmptyAtom {
			continue
		}
		idx := -1
		for i := range beads {
			if beads[i].Expects(r.atom) {
				return nil, errors.NewMalformedRow(errors.ErrMalformedCatalogRow, source, r.line, r.text,
					fmt.Sprintf("residue %s: atom %s already belongs to bead %d", residue, r.atom, beads[i].ID))
			}
			if beads[i].ID == r.beadID {
				idx = i
			}
		}
		if idx < 0 {
			beads = append(beads, BeadDef{Name: r.beadName, ID: r.beadID, TypeID: r.beadID})
			idx = len(beads) - 1
		}
		beads[idx].Atoms = append(beads[idx].Atoms, AtomDef{Name: r.atom, Weight: r.weight})
	}
	return beads, nil
}
