package structure

import (
	"bufio"
	"fmt"
	"io"
)

// Header returns the first line of a reduced PDB file.
func Header(forcefield string) string {
	return fmt.Sprintf("HEADER    %s REDUCED PDB FILE", forcefield)
}

// FormatAtom renders one bead as a fixed-column ATOM record. The columns
// after the coordinates carry the bead type id and charge, followed by two
// zero flags.
func FormatAtom(a CoarseAtom) string {
	chain := a.Chain
	if chain == "" {
		chain = " "
	}
	return fmt.Sprintf("ATOM  %5d %-4s %3s %1.1s%4d    %8.3f%8.3f%8.3f%5d%8.3f 0 0",
		a.AtomID, a.BeadName, a.ResidueName, chain, a.ResidueID,
		a.Coords[0], a.Coords[1], a.Coords[2], a.TypeID, a.Charge)
}

// WriteReduced writes the header and one record per bead, in slice order.
func WriteReduced(w io.Writer, forcefield string, atoms []CoarseAtom) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, Header(forcefield)); err != nil {
		return err
	}
	for _, a := range atoms {
		if _, err := fmt.Fprintln(bw, FormatAtom(a)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
