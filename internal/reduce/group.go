package reduce

import (
	"fmt"

	"github.com/hpungsan/cgreduce/internal/structure"
)

// Residue is a contiguous run of atoms sharing residue name, chain and id.
type Residue struct {
	Name  string
	Chain string
	ID    int
	Atoms []structure.Atom
}

func (r Residue) String() string {
	return fmt.Sprintf("%s:%d:%s", r.Name, r.ID, r.Chain)
}

func (r Residue) matches(a structure.Atom) bool {
	return r.Name == a.ResidueName && r.Chain == a.Chain && r.ID == a.ResidueID
}

// Group splits atoms into residues, in input order. A new residue starts
// whenever the (name, chain, id) key differs from the previous atom's, so the
// same key appearing twice with other residues in between yields two groups.
// Input order is trusted; atoms are never re-sorted.
func Group(atoms []structure.Atom) []Residue {
	var groups []Residue
	for _, a := range atoms {
		if n := len(groups); n > 0 && groups[n-1].matches(a) {
			groups[n-1].Atoms = append(groups[n-1].Atoms, a)
			continue
		}
		groups = append(groups, Residue{
			Name:  a.ResidueName,
			Chain: a.Chain,
			ID:    a.ResidueID,
			Atoms: []structure.Atom{a},
		})
	}
	return groups
}
