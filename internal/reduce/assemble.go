package reduce

import (
	"github.com/hpungsan/cgreduce/internal/catalog"
	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/params"
	"github.com/hpungsan/cgreduce/internal/structure"
)

// residueResult is the outcome of assembling one residue. Beads carry no
// AtomID yet; ids are assigned during the ordered merge.
type residueResult struct {
	beads    []structure.CoarseAtom
	warnings []*errors.ReduceError
	err      error
	skipped  bool
	done     bool
}

func (r *residueResult) warn(err *errors.ReduceError) {
	r.warnings = append(r.warnings, err)
}

// accumulator collects the atoms of one bead inside one residue.
type accumulator struct {
	def    catalog.BeadDef
	found  []bool
	coords [][3]float64
}

func newAccumulator(def catalog.BeadDef) *accumulator {
	return &accumulator{
		def:    def,
		found:  make([]bool, len(def.Atoms)),
		coords: make([][3]float64, len(def.Atoms)),
	}
}

// add records a; a repeated atom name overwrites the earlier coordinate.
func (acc *accumulator) add(a structure.Atom) {
	for i, want := range acc.def.Atoms {
		if want.Name == a.Name {
			acc.found[i] = true
			acc.coords[i] = a.Coords
		}
	}
}

func (acc *accumulator) foundNames() []string {
	var names []string
	for i, ok := range acc.found {
		if ok {
			names = append(names, acc.def.Atoms[i].Name)
		}
	}
	return names
}

func (acc *accumulator) firstMissing() (string, bool) {
	for i, ok := range acc.found {
		if !ok {
			return acc.def.Atoms[i].Name, true
		}
	}
	return "", false
}

// centroid is the weighted mean of the accumulated atoms. A bead whose
// weights sum to zero falls back to the plain mean.
func (acc *accumulator) centroid() [3]float64 {
	var sum [3]float64
	var wsum float64
	for i, a := range acc.def.Atoms {
		for k := 0; k < 3; k++ {
			sum[k] += acc.coords[i][k] * a.Weight
		}
		wsum += a.Weight
	}
	if wsum == 0 {
		return mean(acc.coords)
	}
	for k := 0; k < 3; k++ {
		sum[k] /= wsum
	}
	return sum
}

func mean(coords [][3]float64) [3]float64 {
	var sum [3]float64
	if len(coords) == 0 {
		return sum
	}
	for _, c := range coords {
		for k := 0; k < 3; k++ {
			sum[k] += c[k]
		}
	}
	n := float64(len(coords))
	for k := 0; k < 3; k++ {
		sum[k] /= n
	}
	return sum
}

func coarse(def catalog.BeadDef, res Residue, coords [3]float64, charge float64, typeID int) structure.CoarseAtom {
	return structure.CoarseAtom{
		BeadName:    def.Name,
		ResidueName: res.Name,
		ResidueID:   res.ID,
		Chain:       res.Chain,
		Charge:      charge,
		TypeID:      typeID,
		Coords:      coords,
	}
}

// assembleRows reduces a residue of a row-based catalog. Every expected atom
// must be present for a bead to be emitted. A missing atom is fatal unless
// allowMissing is set, in which case the bead is dropped with a warning.
func assembleRows(res Residue, defs []catalog.BeadDef, charges params.ChargeTable, allowMissing bool) residueResult {
	var out residueResult
	for _, def := range defs {
		acc := newAccumulator(def)
		for _, a := range res.Atoms {
			acc.add(a)
		}

		if missing, ok := acc.firstMissing(); ok {
			if !allowMissing {
				out.err = errors.NewMissingAtom(missing, def.Name, def.ID, res.Name, res.ID)
				return out
			}
			found := acc.foundNames()
			if len(found) == 0 {
				out.warn(errors.NewEmptyBead(res.Name, res.ID, def.Name, def.AtomNames()))
			} else {
				out.warn(errors.NewBeadAtomCountMismatch(res.Name, res.ID, def.Name, def.AtomNames(), found))
			}
			continue
		}

		charge, ok := charges.Charge(def.ID)
		if !ok {
			out.warn(errors.NewUnresolvedCharge(def.Name, def.ID))
		}
		out.beads = append(out.beads, coarse(def, res, acc.centroid(), charge, def.ID))
	}
	return out
}

// assembleStructured reduces a residue of a structured catalog. Every atom
// whose name the bead expects is collected; a bead is emitted only when the
// count matches, with the plain mean as position and the declared charge and
// type id.
func assembleStructured(res Residue, defs []catalog.BeadDef) residueResult {
	var out residueResult
	for _, def := range defs {
		var coords [][3]float64
		var found []string
		for _, a := range res.Atoms {
			if def.Expects(a.Name) {
				coords = append(coords, a.Coords)
				found = append(found, a.Name)
			}
		}

		switch {
		case len(found) == 0:
			out.warn(errors.NewEmptyBead(res.Name, res.ID, def.Name, def.AtomNames()))
			continue
		case len(found) != len(def.Atoms):
			out.warn(errors.NewBeadAtomCountMismatch(res.Name, res.ID, def.Name, def.AtomNames(), found))
			continue
		}
		out.beads = append(out.beads, coarse(def, res, mean(coords), def.Charge, def.TypeID))
	}
	return out
}
