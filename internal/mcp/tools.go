package mcp

import "github.com/mark3labs/mcp-go/mcp"

// reduceToolOptions returns the parameters shared by both reduce tools.
// Output always goes to a file: output_path when given, otherwise a generated
// name under <home>/outputs.
func reduceToolOptions(description string, extra ...mcp.ToolOption) []mcp.ToolOption {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("input_path",
			mcp.Required(),
			mcp.Description("All-atom PDB file to reduce (.gz accepted); must be inside <home>, the data directory or an allowed path")),
		mcp.WithString("catalog_path",
			mcp.Description("Reduction catalog; defaults to the configured catalog")),
		mcp.WithString("conversion_table",
			mcp.Description("Residue/atom rename table applied before reduction")),
		mcp.WithNumber("workers",
			mcp.Description("Residues assembled concurrently (default: config workers)"),
			mcp.Min(0)),
		mcp.WithString("output_path",
			mcp.Description("Where to write the reduced model (.pdb or .red); must be directly in <home>/outputs or an allowed path")),
		mcp.WithDestructiveHintAnnotation(false),
	}
	return append(opts, extra...)
}

var reduceAttract1ToolDef = mcp.NewTool("reduce_attract1", reduceToolOptions(
	"Coarse-grain an all-atom structure with a row-based ATTRACT1 catalog. Bead charges come from the charge table.",
	mcp.WithString("molecule",
		mcp.Description("Selects the default catalog when catalog_path is empty"),
		mcp.Enum("prot", "dna")),
	mcp.WithString("charge_table",
		mcp.Description("Bead charge table; defaults to the configured table")),
	mcp.WithBoolean("allow_missing",
		mcp.Description("Drop beads with missing atoms instead of failing")),
)...)

var reduceAttract2ToolDef = mcp.NewTool("reduce_attract2", reduceToolOptions(
	"Coarse-grain an all-atom structure with a structured ATTRACT2 catalog declaring bead charges and type ids. Incomplete beads are always dropped with a warning.",
)...)

var runListToolDef = mcp.NewTool("run_list",
	mcp.WithDescription("List recorded reductions, newest first."),
	mcp.WithString("forcefield", mcp.Description("Only runs of this force field")),
	mcp.WithString("status", mcp.Description("Only runs with this status"), mcp.Enum("ok", "failed")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var runFetchToolDef = mcp.NewTool("run_fetch",
	mcp.WithDescription("Fetch one recorded reduction with its warnings."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ULID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var runPurgeToolDef = mcp.NewTool("run_purge",
	mcp.WithDescription("Permanently delete recorded reductions. Output files are left in place."),
	mcp.WithString("forcefield", mcp.Description("Only runs of this force field")),
	mcp.WithNumber("older_than_days", mcp.Description("Only runs created more than N days ago"), mcp.Min(0)),
	mcp.WithDestructiveHintAnnotation(true),
)

var catalogShowToolDef = mcp.NewTool("catalog_show",
	mcp.WithDescription("Show the residues and beads of a reduction catalog."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Catalog file inside <home>, the data directory or an allowed path; names are also looked up in the data directory")),
	mcp.WithString("format", mcp.Description("Catalog format (default rows)"), mcp.Enum("rows", "yaml")),
	mcp.WithReadOnlyHintAnnotation(true),
)
