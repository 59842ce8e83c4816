// Package run describes one recorded reduction in the run ledger.
package run

import "github.com/hpungsan/cgreduce/internal/diag"

// Status is the outcome of a reduction.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Run is a ledger entry for one reduction.
type Run struct {
	// ID is a ULID that uniquely identifies this run
	ID string `json:"id"`

	// ForceField is the force-field name of the catalog used
	ForceField string `json:"forcefield"`

	// InputPath is the all-atom structure that was reduced
	InputPath string `json:"input_path"`

	// CatalogPath is the reduction catalog
	CatalogPath string `json:"catalog_path"`

	// OutputPath is where the reduced model was written (nullable, stdout otherwise)
	OutputPath *string `json:"output_path,omitempty"`

	// Residues is the number of residue groups seen
	Residues int `json:"residues"`

	// SkippedResidues is the number of residues without a reduction rule
	SkippedResidues int `json:"skipped_residues"`

	// Beads is the number of coarse atoms written
	Beads int `json:"beads"`

	// Warnings are the recoverable problems reported during the run (stored as JSON in DB)
	Warnings []diag.Warning `json:"warnings,omitempty"`

	// Status is ok or failed
	Status Status `json:"status"`

	// Error is the fatal error of a failed run (nullable)
	Error *string `json:"error,omitempty"`

	// CreatedAt is the Unix timestamp when the run finished
	CreatedAt int64 `json:"created_at"`
}

// Summary is a run without its warning list, used by list operations.
type Summary struct {
	ID              string  `json:"id"`
	ForceField      string  `json:"forcefield"`
	InputPath       string  `json:"input_path"`
	OutputPath      *string `json:"output_path,omitempty"`
	Residues        int     `json:"residues"`
	SkippedResidues int     `json:"skipped_residues"`
	Beads           int     `json:"beads"`
	WarningCount    int     `json:"warning_count"`
	Status          Status  `json:"status"`
	CreatedAt       int64   `json:"created_at"`
}

// ToSummary converts a Run to a Summary by dropping the warning details.
func (r *Run) ToSummary() Summary {
	return Summary{
		ID:              r.ID,
		ForceField:      r.ForceField,
		InputPath:       r.InputPath,
		OutputPath:      r.OutputPath,
		Residues:        r.Residues,
		SkippedResidues: r.SkippedResidues,
		Beads:           r.Beads,
		WarningCount:    len(r.Warnings),
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
	}
}
