package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/cgreduce/internal/config"
	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/ops"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, log *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "cgreduce",
		Usage:   "All-atom to coarse-grained structure reduction",
		Version: Version,
		Commands: []*cli.Command{
			reduceCmd(db, cfg, log),
			runsCmd(db),
			catalogCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// reduceCmd creates the reduce command group.
func reduceCmd(db *sql.DB, cfg *config.Config, log *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "reduce",
		Usage: "Coarse-grain an all-atom PDB structure",
		Subcommands: []*cli.Command{
			{
				Name:      "attract1",
				Usage:     "Reduce with a row-based catalog, a charge table and a conversion table",
				ArgsUsage: "<pdb>",
				Flags: append(reduceFlags(),
					&cli.BoolFlag{Name: "prot", Usage: "Use the protein catalog"},
					&cli.BoolFlag{Name: "dna", Usage: "Use the nucleic acid catalog"},
					&cli.StringFlag{Name: "ff", Usage: "Bead charge table (default: config charge_table)"},
					&cli.BoolFlag{Name: "allow-missing", Usage: "Drop beads with missing atoms instead of failing"},
				),
				Action: func(c *cli.Context) error {
					if c.Bool("prot") && c.Bool("dna") {
						return outputError(errors.NewInvalidRequest("--prot and --dna are mutually exclusive"))
					}
					input, err := reduceInput(c, ops.ModeAttract1)
					if err != nil {
						return outputError(err)
					}
					switch {
					case c.Bool("prot"):
						input.Molecule = ops.MoleculeProtein
					case c.Bool("dna"):
						input.Molecule = ops.MoleculeDNA
					}
					input.ChargeTable = c.String("ff")
					input.AllowMissing = c.Bool("allow-missing")
					return runReduce(c, db, cfg, log, input)
				},
			},
			{
				Name:      "attract2",
				Usage:     "Reduce with a structured catalog declaring bead charges and type ids",
				ArgsUsage: "<pdb>",
				Flags:     reduceFlags(),
				Action: func(c *cli.Context) error {
					input, err := reduceInput(c, ops.ModeAttract2)
					if err != nil {
						return outputError(err)
					}
					return runReduce(c, db, cfg, log, input)
				},
			},
		},
	}
}

// reduceFlags returns the flags shared by both reduce modes.
func reduceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "red", Usage: "Reduction catalog (default: configured catalog)"},
		&cli.StringFlag{Name: "conv", Usage: "Residue/atom rename table"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the reduced model here instead of stdout"},
		&cli.IntFlag{Name: "workers", Usage: "Residues assembled concurrently (default: config workers)"},
	}
}

func reduceInput(c *cli.Context, mode ops.Mode) (ops.ReduceInput, error) {
	if c.NArg() != 1 {
		return ops.ReduceInput{}, errors.NewInvalidRequest("exactly one input structure is required")
	}
	return ops.ReduceInput{
		Mode:            mode,
		InputPath:       c.Args().First(),
		CatalogPath:     c.String("red"),
		ConversionTable: c.String("conv"),
		Workers:         c.Int("workers"),
		OutputPath:      c.String("output"),
	}, nil
}

// runReduce writes the model to stdout, or to --output followed by a JSON
// summary on stdout.
func runReduce(c *cli.Context, db *sql.DB, cfg *config.Config, log *zap.Logger, input ops.ReduceInput) error {
	if input.OutputPath == "" {
		input.Output = os.Stdout
	}

	output, err := ops.Reduce(c.Context, db, cfg, log, input)
	if err != nil {
		return outputError(err)
	}

	if input.OutputPath != "" {
		return outputJSON(output)
	}
	return nil
}

// runsCmd creates the runs command group.
func runsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect the run ledger",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded reductions, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "forcefield", Aliases: []string{"f"}, Usage: "Filter by force field"},
					&cli.StringFlag{Name: "status", Usage: "Filter by status: ok|failed"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
					&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListRuns(db, ops.ListRunsInput{
						ForceField: c.String("forcefield"),
						Status:     c.String("status"),
						Limit:      c.Int("limit"),
						Offset:     c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}

					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Show one run with its warnings",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.FetchRun(db, ops.FetchRunInput{ID: c.Args().First()})
					if err != nil {
						return outputError(err)
					}

					return outputJSON(output)
				},
			},
			{
				Name:  "purge",
				Usage: "Permanently delete recorded runs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "forcefield", Aliases: []string{"f"}, Usage: "Filter by force field"},
					&cli.StringFlag{Name: "older-than", Usage: "Only purge runs created more than N days ago (e.g., 7d)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.PurgeRunsInput{}

					if ff := c.String("forcefield"); ff != "" {
						input.ForceField = &ff
					}
					if olderThan := c.String("older-than"); olderThan != "" {
						days, err := parseDuration(olderThan)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						input.OlderThanDays = &days
					}

					output, err := ops.PurgeRuns(c.Context, db, input)
					if err != nil {
						return outputError(err)
					}

					return outputJSON(output)
				},
			},
		},
	}
}

// catalogCmd creates the catalog command group.
func catalogCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Inspect reduction catalogs",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "List the residues and beads of a catalog",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "rows", Usage: "Catalog format: rows|yaml"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ShowCatalog(cfg, ops.ShowCatalogInput{
						Path:   c.Args().First(),
						Format: c.String("format"),
					})
					if err != nil {
						return outputError(err)
					}

					return outputJSON(output)
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if rErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
