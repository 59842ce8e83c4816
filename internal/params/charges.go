// Package params loads the auxiliary tables of a reduction: the bead charge
// table used by row-based catalogs and the residue/atom rename tables.
package params

import (
	"fmt"
	"io"
	"strconv"

	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/rowfile"
)

// ChargeTable maps a bead id to its charge.
type ChargeTable map[int]float64

// Charge returns the charge of beadID and whether it is defined.
func (t ChargeTable) Charge(beadID int) (float64, bool) {
	c, ok := t[beadID]
	return c, ok
}

// LoadCharges reads a charge table from path.
func LoadCharges(path string) (ChargeTable, error) {
	f, err := rowfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCharges(f, path)
}

// ParseCharges reads `beadId _ _ charge _` rows. Later rows for the same bead
// id overwrite earlier ones.
func ParseCharges(r io.Reader, source string) (ChargeTable, error) {
	table := make(ChargeTable)
	err := rowfile.Scan(r, func(row rowfile.Row) error {
		if len(row.Fields) < 5 {
			return errors.NewMalformedRow(errors.ErrMalformedParameterRow, source, row.Line, row.Text,
				fmt.Sprintf("expected at least 5 items (found %d)", len(row.Fields)))
		}
		id, err := strconv.Atoi(row.Fields[0])
		if err != nil {
			return errors.NewMalformedRow(errors.ErrMalformedParameterRow, source, row.Line, row.Text,
				fmt.Sprintf("invalid bead id %q", row.Fields[0]))
		}
		charge, err := strconv.ParseFloat(row.Fields[3], 64)
		if err != nil {
			return errors.NewMalformedRow(errors.ErrMalformedParameterRow, source, row.Line, row.Text,
				fmt.Sprintf("invalid charge %q", row.Fields[3]))
		}
		table[id] = charge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}
