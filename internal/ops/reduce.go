package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/cgreduce/internal/catalog"
	"github.com/hpungsan/cgreduce/internal/config"
	"github.com/hpungsan/cgreduce/internal/db"
	"github.com/hpungsan/cgreduce/internal/diag"
	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/params"
	"github.com/hpungsan/cgreduce/internal/reduce"
	"github.com/hpungsan/cgreduce/internal/run"
	"github.com/hpungsan/cgreduce/internal/structure"
)

// Mode selects the reduction flow.
type Mode string

const (
	// ModeAttract1 uses a row-based catalog, a charge table and a conversion table.
	ModeAttract1 Mode = "attract1"
	// ModeAttract2 uses a structured catalog with declared charges and type ids.
	ModeAttract2 Mode = "attract2"
)

// Molecule picks the default attract1 catalog.
type Molecule string

const (
	MoleculeProtein Molecule = "prot"
	MoleculeDNA     Molecule = "dna"
)

// ReduceInput contains parameters for the Reduce operation.
type ReduceInput struct {
	Mode      Mode
	InputPath string // required, all-atom PDB (optionally .gz)

	// Molecule selects the default catalog when CatalogPath is empty (attract1 only).
	Molecule Molecule

	CatalogPath     string // optional, overrides the configured catalog
	ChargeTable     string // optional, attract1 only
	ConversionTable string // optional; attract2 falls back to the built-in renames
	AllowMissing    bool   // ORed with config allow_missing
	Workers         int    // 0 = config workers

	// OutputPath receives the reduced model. When empty the model goes to
	// Output, or to a generated file under <home>/outputs if RestrictOutput.
	OutputPath string
	Output     io.Writer

	// RestrictOutput applies ValidateOutputPath to OutputPath.
	RestrictOutput bool

	// RestrictInput applies ValidateInputPath to InputPath and to every table
	// path set on the request. Configured defaults are trusted.
	RestrictInput bool
}

// ReduceOutput contains the result of the Reduce operation.
type ReduceOutput struct {
	RunID           string         `json:"run_id,omitempty"`
	ForceField      string         `json:"forcefield"`
	InputPath       string         `json:"input_path"`
	CatalogPath     string         `json:"catalog_path"`
	OutputPath      string         `json:"output_path,omitempty"`
	Residues        int            `json:"residues"`
	SkippedResidues int            `json:"skipped_residues"`
	Beads           int            `json:"beads"`
	Warnings        []diag.Warning `json:"warnings"`
}

// reducePlan is a validated ReduceInput with every table path resolved.
type reducePlan struct {
	mode       Mode
	format     catalog.Format
	input      string
	catalog    string
	charges    string
	conversion string
	output     string
	writer     io.Writer
	opts       reduce.Options
}

// Reduce coarse-grains an all-atom structure and writes the reduced model.
// Every run that gets past request validation is recorded in the ledger when
// database is non-nil and record_runs is on; a fatal error then carries the
// run id in its details.
func Reduce(ctx context.Context, database *sql.DB, cfg *config.Config, log *zap.Logger, input ReduceInput) (*ReduceOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	plan, err := planReduce(cfg, input, time.Now())
	if err != nil {
		return nil, err
	}

	dc := diag.NewCollector(log)
	output, runErr := executeReduce(ctx, plan, dc, log)
	output.Warnings = dc.Warnings()
	if output.Warnings == nil {
		output.Warnings = []diag.Warning{}
	}

	if database != nil && cfg.ShouldRecordRuns() {
		id, err := recordRun(database, plan, output, runErr)
		if err != nil {
			log.Warn("failed to record run", zap.Error(err))
		} else {
			output.RunID = id
			if runErr != nil {
				if runErr.Details == nil {
					runErr.Details = map[string]any{}
				}
				runErr.Details["run_id"] = id
			}
		}
	}

	if runErr != nil {
		log.Error("reduction failed",
			zap.String("input", plan.input),
			zap.String("code", string(runErr.Code)),
			zap.String("error", runErr.Message))
		return nil, runErr
	}

	log.Info("reduction finished",
		zap.String("run_id", output.RunID),
		zap.String("forcefield", output.ForceField),
		zap.String("input", output.InputPath),
		zap.Int("residues", output.Residues),
		zap.Int("beads", output.Beads),
		zap.Int("warnings", len(output.Warnings)))
	return output, nil
}

func planReduce(cfg *config.Config, input ReduceInput, now time.Time) (*reducePlan, error) {
	if strings.TrimSpace(input.InputPath) == "" {
		return nil, errors.NewInvalidRequest("input path is required")
	}

	plan := &reducePlan{
		mode:   input.Mode,
		input:  input.InputPath,
		output: input.OutputPath,
		writer: input.Output,
		opts: reduce.Options{
			AllowMissing: input.AllowMissing || cfg.AllowMissing,
			Workers:      input.Workers,
		},
	}
	if plan.opts.Workers <= 0 {
		plan.opts.Workers = cfg.Workers
	}

	switch input.Mode {
	case ModeAttract1:
		plan.format = catalog.FormatRowBased
		plan.catalog = input.CatalogPath
		if plan.catalog == "" {
			switch input.Molecule {
			case MoleculeProtein:
				plan.catalog = cfg.ProtCatalog
			case MoleculeDNA:
				plan.catalog = cfg.DNACatalog
			case "":
				return nil, errors.NewInvalidRequest("a molecule type (prot or dna) or a catalog path is required")
			default:
				return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown molecule type %q (want prot or dna)", input.Molecule))
			}
		}
		plan.charges = firstNonEmpty(input.ChargeTable, cfg.ChargeTable)
		plan.conversion = firstNonEmpty(input.ConversionTable, cfg.ConversionTable)
	case ModeAttract2:
		plan.format = catalog.FormatStructured
		plan.catalog = firstNonEmpty(input.CatalogPath, cfg.Attract2Catalog)
		plan.conversion = input.ConversionTable
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown mode %q (want attract1 or attract2)", input.Mode))
	}

	plan.catalog = resolveTable(cfg, plan.catalog)
	plan.charges = resolveTable(cfg, plan.charges)
	plan.conversion = resolveTable(cfg, plan.conversion)

	if input.RestrictInput {
		requested := []struct{ given, resolved string }{
			{input.InputPath, plan.input},
			{input.CatalogPath, plan.catalog},
			{input.ChargeTable, plan.charges},
			{input.ConversionTable, plan.conversion},
		}
		for _, p := range requested {
			if p.given == "" {
				continue
			}
			if err := ValidateInputPath(p.resolved, cfg); err != nil {
				return nil, err
			}
		}
	}

	if input.RestrictOutput {
		if plan.output == "" {
			path, err := defaultOutputPath(plan.input, now)
			if err != nil {
				return nil, err
			}
			plan.output = path
		}
		if err := ValidateOutputPath(plan.output, cfg); err != nil {
			return nil, err
		}
	} else if plan.output == "" && plan.writer == nil {
		return nil, errors.NewInvalidRequest("an output path or writer is required")
	}

	return plan, nil
}

// executeReduce runs the pipeline. The returned output is never nil and holds
// whatever was known when a fatal error stopped the run.
func executeReduce(ctx context.Context, plan *reducePlan, dc *diag.Collector, log *zap.Logger) (*ReduceOutput, *errors.ReduceError) {
	output := &ReduceOutput{
		ForceField:  string(plan.mode),
		InputPath:   plan.input,
		CatalogPath: plan.catalog,
	}

	if err := checkFilesExist(plan.input, plan.catalog, plan.charges, plan.conversion); err != nil {
		return output, coded(err)
	}

	cat, err := catalog.Load(plan.catalog, plan.format)
	if err != nil {
		return output, coded(err)
	}
	output.ForceField = cat.ForceField
	log.Debug("catalog loaded",
		zap.String("path", plan.catalog),
		zap.String("format", cat.Format.String()),
		zap.Int("residues", cat.Len()))

	var charges params.ChargeTable
	if plan.charges != "" {
		if charges, err = params.LoadCharges(plan.charges); err != nil {
			return output, coded(err)
		}
	}

	var conv *params.Conversion
	if plan.mode == ModeAttract2 {
		conv = params.DefaultAttract2Conversion()
	}
	if plan.conversion != "" {
		if conv, err = params.LoadConversion(plan.conversion, dc); err != nil {
			return output, coded(err)
		}
	}

	atoms, err := structure.Read(plan.input)
	if err != nil {
		return output, coded(err)
	}
	log.Debug("structure loaded", zap.String("path", plan.input), zap.Int("atoms", len(atoms)))

	model, err := reduce.New(cat, charges, conv, plan.opts, log).Reduce(ctx, atoms, dc)
	if err != nil {
		return output, coded(err)
	}
	output.Residues = model.Residues
	output.SkippedResidues = model.SkippedResidues
	output.Beads = len(model.Atoms)

	write := func(w io.Writer) error {
		return structure.WriteReduced(w, model.ForceField, model.Atoms)
	}
	if plan.output != "" {
		if err := writeFileAtomic(plan.output, write); err != nil {
			return output, coded(err)
		}
		output.OutputPath = plan.output
	} else if err := write(plan.writer); err != nil {
		return output, errors.NewInternal(err)
	}

	return output, nil
}

func recordRun(database *sql.DB, plan *reducePlan, output *ReduceOutput, runErr *errors.ReduceError) (string, error) {
	id, err := generateULID()
	if err != nil {
		return "", errors.NewInternal(err)
	}

	r := &run.Run{
		ID:              id,
		ForceField:      output.ForceField,
		InputPath:       output.InputPath,
		CatalogPath:     output.CatalogPath,
		Residues:        output.Residues,
		SkippedResidues: output.SkippedResidues,
		Beads:           output.Beads,
		Warnings:        output.Warnings,
		Status:          run.StatusOK,
		CreatedAt:       time.Now().Unix(),
	}
	if output.OutputPath != "" {
		path := output.OutputPath
		r.OutputPath = &path
	}
	if runErr != nil {
		msg := runErr.Error()
		r.Status = run.StatusFailed
		r.Error = &msg
	}

	if err := db.InsertRun(database, r); err != nil {
		return "", err
	}
	return id, nil
}

// defaultOutputPath generates <home>/outputs/<input name>-<timestamp>.red.
func defaultOutputPath(inputPath string, now time.Time) (string, error) {
	dir, err := DefaultOutputsDir()
	if err != nil {
		return "", err
	}

	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := SanitizeForFilename(base) + "-" + now.Format("2006-01-02T150405") + ".red"
	return filepath.Join(dir, name), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
