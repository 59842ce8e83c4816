package ops

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/run"
)

func TestReduce_Attract1ToWriter(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)

	var buf bytes.Buffer
	output, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
		Mode:      ModeAttract1,
		InputPath: input,
		Molecule:  MoleculeProtein,
		Output:    &buf,
	})
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	if output.ForceField != "attract1" {
		t.Errorf("ForceField = %q, want attract1", output.ForceField)
	}
	if output.Residues != 3 || output.SkippedResidues != 0 || output.Beads != 7 {
		t.Errorf("counts = %d/%d/%d, want 3/0/7", output.Residues, output.SkippedResidues, output.Beads)
	}
	if len(output.Warnings) != 1 || output.Warnings[0].Code != errors.ErrUnresolvedCharge {
		t.Errorf("Warnings = %+v, want one UNRESOLVED_CHARGE", output.Warnings)
	}
	if output.OutputPath != "" {
		t.Errorf("OutputPath = %q, want empty for writer output", output.OutputPath)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want header + 7 beads:\n%s", len(lines), buf.String())
	}
	if lines[0] != "HEADER    attract1 REDUCED PDB FILE" {
		t.Errorf("header = %q", lines[0])
	}
	// HIE 3 renamed to HIS, its CA bead averages CA and the renamed OT.
	want := "ATOM      7 CA   HIS A   3      10.000   0.000   0.000    2   0.500 0 0"
	if lines[7] != want {
		t.Errorf("last bead = %q, want %q", lines[7], want)
	}

	if output.RunID == "" {
		t.Fatal("RunID is empty, want recorded run")
	}
	r, err := FetchRun(f.database, FetchRunInput{ID: output.RunID})
	if err != nil {
		t.Fatalf("FetchRun failed: %v", err)
	}
	if r.Status != run.StatusOK || r.Beads != 7 || len(r.Warnings) != 1 {
		t.Errorf("recorded run = %+v", r)
	}
}

func TestReduce_Attract1ToFile(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)
	outPath := filepath.Join(t.TempDir(), "1abc.red")

	output, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
		Mode:       ModeAttract1,
		InputPath:  input,
		Molecule:   MoleculeProtein,
		OutputPath: outPath,
	})
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if output.OutputPath != outPath {
		t.Errorf("OutputPath = %q, want %q", output.OutputPath, outPath)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "HEADER    attract1 REDUCED PDB FILE\n") {
		t.Errorf("output starts with %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(outPath))
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want 1", len(entries))
	}
}

func TestReduce_Attract2(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)

	var buf bytes.Buffer
	output, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
		Mode:      ModeAttract2,
		InputPath: input,
		Output:    &buf,
	})
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	if output.ForceField != "ATTRACT2" {
		t.Errorf("ForceField = %q, want ATTRACT2", output.ForceField)
	}
	if output.Beads != 2 || output.SkippedResidues != 2 {
		t.Errorf("Beads = %d SkippedResidues = %d, want 2/2", output.Beads, output.SkippedResidues)
	}
	unknown := 0
	for _, w := range output.Warnings {
		if w.Code == errors.ErrUnknownResidue {
			unknown++
		}
	}
	if unknown != 2 {
		t.Errorf("UNKNOWN_RESIDUE warnings = %d, want 2", unknown)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "HEADER    ATTRACT2 REDUCED PDB FILE" {
		t.Errorf("header = %q", lines[0])
	}
	want := "ATOM      2 SC   ALA A   1       1.000   1.000   0.000    7  -1.000 0 0"
	if len(lines) != 3 || lines[2] != want {
		t.Errorf("output = %q, want last line %q", lines, want)
	}
}

func TestReduce_StrictMissingAtomRecordsFailedRun(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "broken.pdb", []pdbAtom{
		{"N", "ALA", 1, 0, 0, 0},
		{"CA", "ALA", 1, 1, 0, 0},
		{"O", "ALA", 1, 2, 0, 0},
	})

	var buf bytes.Buffer
	_, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
		Mode:      ModeAttract1,
		InputPath: input,
		Molecule:  MoleculeProtein,
		Output:    &buf,
	})
	rErr, ok := errors.As(err)
	if !ok || rErr.Code != errors.ErrMissingAtom {
		t.Fatalf("err = %v, want MISSING_ATOM", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes on fatal error, want none", buf.Len())
	}

	id, _ := rErr.Details["run_id"].(string)
	if id == "" {
		t.Fatalf("Details[run_id] missing: %v", rErr.Details)
	}
	r, err := FetchRun(f.database, FetchRunInput{ID: id})
	if err != nil {
		t.Fatalf("FetchRun failed: %v", err)
	}
	if r.Status != run.StatusFailed || r.Error == nil || !strings.Contains(*r.Error, "MISSING_ATOM") {
		t.Errorf("recorded run = %+v", r)
	}

	// Lenient mode drops the bead instead.
	output, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
		Mode:         ModeAttract1,
		InputPath:    input,
		Molecule:     MoleculeProtein,
		AllowMissing: true,
		Output:       &buf,
	})
	if err != nil {
		t.Fatalf("lenient Reduce failed: %v", err)
	}
	if output.Beads != 2 {
		t.Errorf("Beads = %d, want 2", output.Beads)
	}
	if output.Warnings[0].Code != errors.ErrEmptyBead {
		t.Errorf("first warning = %s, want EMPTY_BEAD", output.Warnings[0].Code)
	}
}

func TestReduce_FileNotFound(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)

	tests := []struct {
		name  string
		input ReduceInput
		path  string
	}{
		{"missing structure", ReduceInput{Mode: ModeAttract1, Molecule: MoleculeProtein, InputPath: filepath.Join(f.home, "none.pdb")}, filepath.Join(f.home, "none.pdb")},
		{"missing dna catalog", ReduceInput{Mode: ModeAttract1, Molecule: MoleculeDNA, InputPath: input}, f.cfg.Path(f.cfg.DNACatalog)},
		{"missing charge table", ReduceInput{Mode: ModeAttract1, Molecule: MoleculeProtein, InputPath: input, ChargeTable: "nope.dat"}, f.cfg.Path("nope.dat")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.input.Output = &bytes.Buffer{}
			_, err := Reduce(context.Background(), f.database, f.cfg, nil, tc.input)
			rErr, ok := errors.As(err)
			if !ok || rErr.Code != errors.ErrFileNotFound {
				t.Fatalf("err = %v, want FILE_NOT_FOUND", err)
			}
			if rErr.Details["path"] != tc.path {
				t.Errorf("Details[path] = %v, want %q", rErr.Details["path"], tc.path)
			}
		})
	}
}

func TestReduce_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)
	out := &bytes.Buffer{}

	tests := []struct {
		name  string
		input ReduceInput
	}{
		{"no input", ReduceInput{Mode: ModeAttract1, Molecule: MoleculeProtein, Output: out}},
		{"no molecule", ReduceInput{Mode: ModeAttract1, InputPath: input, Output: out}},
		{"bad molecule", ReduceInput{Mode: ModeAttract1, Molecule: "rna", InputPath: input, Output: out}},
		{"bad mode", ReduceInput{Mode: "martini", InputPath: input, Output: out}},
		{"no output", ReduceInput{Mode: ModeAttract2, InputPath: input}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Reduce(context.Background(), f.database, f.cfg, nil, tc.input)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("err = %v, want INVALID_REQUEST", err)
			}
		})
	}

	// Rejected requests never reach the ledger.
	list, err := ListRuns(f.database, ListRunsInput{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if list.Pagination.Total != 0 {
		t.Errorf("ledger has %d runs, want 0", list.Pagination.Total)
	}
}

func TestReduce_RecordRunsDisabled(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)
	off := false
	f.cfg.RecordRuns = &off

	output, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
		Mode:      ModeAttract1,
		InputPath: input,
		Molecule:  MoleculeProtein,
		Output:    &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if output.RunID != "" {
		t.Errorf("RunID = %q, want empty", output.RunID)
	}
}

func TestReduce_RestrictOutput(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)

	t.Run("default path under outputs", func(t *testing.T) {
		output, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
			Mode:           ModeAttract2,
			InputPath:      input,
			RestrictOutput: true,
		})
		if err != nil {
			t.Fatalf("Reduce failed: %v", err)
		}
		if filepath.Dir(output.OutputPath) != filepath.Join(f.home, "outputs") {
			t.Errorf("OutputPath = %q, want under outputs", output.OutputPath)
		}
		if !strings.HasPrefix(filepath.Base(output.OutputPath), "1abc-") || filepath.Ext(output.OutputPath) != ".red" {
			t.Errorf("OutputPath = %q", output.OutputPath)
		}
		if _, err := os.Stat(output.OutputPath); err != nil {
			t.Errorf("output not written: %v", err)
		}
	})

	t.Run("outside allowed dirs", func(t *testing.T) {
		_, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
			Mode:           ModeAttract2,
			InputPath:      input,
			OutputPath:     filepath.Join(t.TempDir(), "out.pdb"),
			RestrictOutput: true,
		})
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("err = %v, want INVALID_REQUEST", err)
		}
	})
}

func TestReduce_RestrictInput(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)

	outside := filepath.Join(t.TempDir(), "prot.red")
	if err := os.WriteFile(outside, []byte(testProtCatalog), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tests := []struct {
		name  string
		input ReduceInput
	}{
		{"input", ReduceInput{Mode: ModeAttract1, InputPath: outside, Molecule: MoleculeProtein}},
		{"catalog", ReduceInput{Mode: ModeAttract1, InputPath: input, CatalogPath: outside}},
		{"charges", ReduceInput{Mode: ModeAttract1, InputPath: input, Molecule: MoleculeProtein, ChargeTable: outside}},
		{"conversion", ReduceInput{Mode: ModeAttract2, InputPath: input, ConversionTable: outside}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.input
			in.RestrictInput = true
			in.Output = &bytes.Buffer{}
			_, err := Reduce(context.Background(), f.database, f.cfg, nil, in)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("err = %v, want INVALID_REQUEST", err)
			}
		})
	}

	t.Run("configured tables and data dir names", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := Reduce(context.Background(), f.database, f.cfg, nil, ReduceInput{
			Mode:          ModeAttract1,
			InputPath:     input,
			CatalogPath:   f.cfg.ProtCatalog,
			Output:        &buf,
			RestrictInput: true,
		})
		if err != nil {
			t.Fatalf("Reduce failed: %v", err)
		}
		if buf.Len() == 0 {
			t.Error("expected a reduced model")
		}
	})

	t.Run("unrestricted reads anywhere", func(t *testing.T) {
		_, err := Reduce(context.Background(), nil, f.cfg, nil, ReduceInput{
			Mode:        ModeAttract1,
			InputPath:   input,
			CatalogPath: outside,
			Output:      &bytes.Buffer{},
		})
		if err != nil {
			t.Errorf("Reduce failed: %v", err)
		}
	})
}

func TestReduce_Cancelled(t *testing.T) {
	f := newFixture(t)
	input := f.writePDB(t, "1abc.pdb", protein)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Reduce(ctx, nil, f.cfg, nil, ReduceInput{
		Mode:      ModeAttract1,
		InputPath: input,
		Molecule:  MoleculeProtein,
		Output:    &bytes.Buffer{},
	})
	if !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("err = %v, want CANCELLED", err)
	}
}
