package ops

import (
	"strings"

	"github.com/hpungsan/cgreduce/internal/catalog"
	"github.com/hpungsan/cgreduce/internal/config"
	"github.com/hpungsan/cgreduce/internal/errors"
)

// ShowCatalogInput contains parameters for the ShowCatalog operation.
type ShowCatalogInput struct {
	Path   string // required; relative names fall back to the data directory
	Format string // rows|yaml, default rows

	// RestrictInput applies ValidateInputPath to the resolved path.
	RestrictInput bool
}

// CatalogResidue is one residue entry of a catalog listing.
type CatalogResidue struct {
	Name  string            `json:"name"`
	Beads []catalog.BeadDef `json:"beads"`
}

// ShowCatalogOutput contains the result of the ShowCatalog operation.
type ShowCatalogOutput struct {
	Path       string           `json:"path"`
	Format     string           `json:"format"`
	ForceField string           `json:"forcefield"`
	Residues   []CatalogResidue `json:"residues"`
}

// ShowCatalog loads a catalog and lists its residues and beads in load order.
func ShowCatalog(cfg *config.Config, input ShowCatalogInput) (*ShowCatalogOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("catalog path is required")
	}
	format, err := catalog.ParseFormat(input.Format)
	if err != nil {
		return nil, err
	}

	path := resolveTable(cfg, input.Path)
	if input.RestrictInput {
		if err := ValidateInputPath(path, cfg); err != nil {
			return nil, err
		}
	}
	cat, err := catalog.Load(path, format)
	if err != nil {
		return nil, coded(err)
	}

	out := &ShowCatalogOutput{
		Path:       path,
		Format:     cat.Format.String(),
		ForceField: cat.ForceField,
		Residues:   make([]CatalogResidue, 0, cat.Len()),
	}
	for _, name := range cat.Residues() {
		beads, _ := cat.Lookup(name)
		out.Residues = append(out.Residues, CatalogResidue{Name: name, Beads: beads})
	}
	return out, nil
}
