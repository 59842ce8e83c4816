package reduce

import (
	"github.com/hpungsan/cgreduce/internal/params"
	"github.com/hpungsan/cgreduce/internal/structure"
)

// Normalize applies conv to every atom and returns the renamed copies; atoms
// is not modified. Per atom the residue rename runs first, then the wildcard
// atom rename, then the rename scoped to the (renamed) residue, which wins
// over the wildcard one.
func Normalize(atoms []structure.Atom, conv *params.Conversion) []structure.Atom {
	out := make([]structure.Atom, len(atoms))
	for i, a := range atoms {
		out[i] = normalizeAtom(a, conv)
	}
	return out
}

func normalizeAtom(a structure.Atom, conv *params.Conversion) structure.Atom {
	if conv.Empty() {
		return a
	}
	a.ResidueName = conv.Residue(a.ResidueName)
	if to, ok := conv.Atom(params.AnyResidue, a.Name); ok {
		a.Name = to
	}
	if to, ok := conv.Atom(a.ResidueName, a.Name); ok {
		a.Name = to
	}
	return a
}
