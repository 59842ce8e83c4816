// Package reduce turns an all-atom structure into a coarse grain model:
// names are normalized, atoms are grouped into residues and each residue is
// assembled into beads according to a catalog.
package reduce

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/cgreduce/internal/catalog"
	"github.com/hpungsan/cgreduce/internal/diag"
	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/params"
	"github.com/hpungsan/cgreduce/internal/structure"
)

// Options controls assembly.
type Options struct {
	// AllowMissing drops beads with missing atoms (with a warning) instead of
	// failing the run. Only row-based catalogs are strict; structured
	// catalogs always drop.
	AllowMissing bool

	// Workers is the number of residues assembled concurrently. Values below
	// 2 assemble sequentially. Output does not depend on it.
	Workers int
}

// Model is a reduced structure.
type Model struct {
	ForceField      string                 `json:"forcefield"`
	Atoms           []structure.CoarseAtom `json:"atoms"`
	Residues        int                    `json:"residues"`
	SkippedResidues int                    `json:"skipped_residues"`
}

// Reducer holds the immutable inputs of a reduction. It can be reused and
// shared between goroutines.
type Reducer struct {
	catalog *catalog.Catalog
	charges params.ChargeTable
	conv    *params.Conversion
	opts    Options
	log     *zap.Logger
}

// New creates a Reducer. charges is only consulted for row-based catalogs and
// may be nil otherwise; conv may be nil.
func New(cat *catalog.Catalog, charges params.ChargeTable, conv *params.Conversion, opts Options, log *zap.Logger) *Reducer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reducer{
		catalog: cat,
		charges: charges,
		conv:    conv,
		opts:    opts,
		log:     log,
	}
}

// ForceField returns the force-field name of the catalog.
func (r *Reducer) ForceField() string {
	return r.catalog.ForceField
}

// Reduce normalizes, groups and assembles atoms. Recoverable problems are
// reported to dc (which may be nil) in residue order. The first fatal error,
// in residue order, aborts the run.
func (r *Reducer) Reduce(ctx context.Context, atoms []structure.Atom, dc *diag.Collector) (*Model, error) {
	if dc == nil {
		dc = diag.NewCollector(r.log)
	}

	residues := Group(Normalize(atoms, r.conv))
	results := make([]residueResult, len(residues))

	if r.opts.Workers > 1 {
		g := new(errgroup.Group)
		g.SetLimit(r.opts.Workers)
		for i := range residues {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				results[i] = r.assemble(residues[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range residues {
			if ctx.Err() != nil {
				break
			}
			results[i] = r.assemble(residues[i])
			if results[i].err != nil {
				break
			}
		}
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("reduce")
	}

	return r.merge(residues, results, dc)
}

func (r *Reducer) assemble(res Residue) residueResult {
	defs, ok := r.catalog.Lookup(res.Name)
	if !ok {
		return residueResult{
			warnings: []*errors.ReduceError{errors.NewUnknownResidue(res.Name, res.ID, res.Chain)},
			skipped:  true,
			done:     true,
		}
	}

	var out residueResult
	switch r.catalog.Format {
	case catalog.FormatStructured:
		out = assembleStructured(res, defs)
	default:
		out = assembleRows(res, defs, r.charges, r.opts.AllowMissing)
	}
	out.done = true
	return out
}

// merge walks the results in residue order, flushing warnings and numbering
// beads from 1. It stops at the first fatal error.
func (r *Reducer) merge(residues []Residue, results []residueResult, dc *diag.Collector) (*Model, error) {
	model := &Model{
		ForceField: r.catalog.ForceField,
		Residues:   len(residues),
	}
	for i := range results {
		res := &results[i]
		if !res.done {
			return nil, errors.NewInternal(nil)
		}
		for _, w := range res.warnings {
			dc.Warn(w)
		}
		if res.err != nil {
			return nil, res.err
		}
		if res.skipped {
			model.SkippedResidues++
			continue
		}
		for _, b := range res.beads {
			b.AtomID = len(model.Atoms) + 1
			model.Atoms = append(model.Atoms, b)
		}
	}

	r.log.Debug("reduced structure",
		zap.String("forcefield", model.ForceField),
		zap.Int("residues", model.Residues),
		zap.Int("skipped", model.SkippedResidues),
		zap.Int("beads", len(model.Atoms)),
		zap.Int("warnings", dc.Len()))
	return model, nil
}
