package run

import (
	"testing"

	"github.com/hpungsan/cgreduce/internal/diag"
	"github.com/hpungsan/cgreduce/internal/errors"
)

func TestToSummary(t *testing.T) {
	out := "/tmp/out.pdb"
	r := &Run{
		ID:         "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		ForceField: "attract1",
		InputPath:  "in.pdb",
		OutputPath: &out,
		Residues:   10,
		Beads:      25,
		Warnings: []diag.Warning{
			{Code: errors.ErrUnknownResidue, Message: "skip"},
			{Code: errors.ErrUnresolvedCharge, Message: "zero"},
		},
		Status:    StatusOK,
		CreatedAt: 1700000000,
	}

	s := r.ToSummary()
	if s.WarningCount != 2 {
		t.Errorf("WarningCount = %d, want 2", s.WarningCount)
	}
	if s.ID != r.ID || s.Beads != 25 || s.Residues != 10 {
		t.Errorf("summary = %+v", s)
	}
	if s.OutputPath == nil || *s.OutputPath != out {
		t.Errorf("OutputPath = %v, want %q", s.OutputPath, out)
	}
	if s.Status != StatusOK {
		t.Errorf("Status = %q, want ok", s.Status)
	}
}
