// Package structure reads all-atom PDB files and writes reduced (coarse grain)
// PDB files. Only the ATOM record columns needed for reduction are handled.
package structure

import "fmt"

// Atom contains the fields of an ATOM record used during reduction: the serial
// number, atom name, residue name, residue sequence number, chain identifier
// and three dimensional coordinates.
//
// Extra holds everything after the coordinate columns (occupancy, B-factor,
// or the type id and charge of an already reduced file) verbatim.
type Atom struct {
	Serial      int
	Name        string
	ResidueName string
	ResidueID   int
	Chain       string

	// Coords is a triple where the first element is X, the second is Y and
	// the third is Z.
	Coords [3]float64

	Extra string
}

func (a Atom) String() string {
	return fmt.Sprintf("(%d, %s, %s:%d:%s, [%0.3f %0.3f %0.3f])",
		a.Serial, a.Name, a.ResidueName, a.ResidueID, a.Chain,
		a.Coords[0], a.Coords[1], a.Coords[2])
}

// CoarseAtom is one bead of a reduced model.
type CoarseAtom struct {
	AtomID      int        `json:"atom_id"`
	BeadName    string     `json:"bead_name"`
	ResidueName string     `json:"residue_name"`
	ResidueID   int        `json:"residue_id"`
	Chain       string     `json:"chain"`
	Charge      float64    `json:"charge"`
	TypeID      int        `json:"type_id"`
	Coords      [3]float64 `json:"coords"`
}
