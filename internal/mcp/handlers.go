package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/cgreduce/internal/config"
	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
	log *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{db: db, cfg: cfg, log: log}
}

// Request types for each tool

// ReduceRequest represents the arguments for reduce_attract1 and reduce_attract2.
type ReduceRequest struct {
	InputPath       string `json:"input_path"`
	Molecule        string `json:"molecule,omitempty"`
	CatalogPath     string `json:"catalog_path,omitempty"`
	ChargeTable     string `json:"charge_table,omitempty"`
	ConversionTable string `json:"conversion_table,omitempty"`
	AllowMissing    bool   `json:"allow_missing,omitempty"`
	Workers         int    `json:"workers,omitempty"`
	OutputPath      string `json:"output_path,omitempty"`
}

// RunListRequest represents the arguments for run_list.
type RunListRequest struct {
	ForceField string `json:"forcefield,omitempty"`
	Status     string `json:"status,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// RunFetchRequest represents the arguments for run_fetch.
type RunFetchRequest struct {
	ID string `json:"id"`
}

// RunPurgeRequest represents the arguments for run_purge.
type RunPurgeRequest struct {
	ForceField    *string `json:"forcefield,omitempty"`
	OlderThanDays *int    `json:"older_than_days,omitempty"`
}

// CatalogShowRequest represents the arguments for catalog_show.
type CatalogShowRequest struct {
	Path   string `json:"path"`
	Format string `json:"format,omitempty"`
}

// Handler implementations

// HandleReduceAttract1 handles the reduce_attract1 tool call.
func (h *Handlers) HandleReduceAttract1(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.handleReduce(ctx, req, ops.ModeAttract1)
}

// HandleReduceAttract2 handles the reduce_attract2 tool call.
func (h *Handlers) HandleReduceAttract2(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.handleReduce(ctx, req, ops.ModeAttract2)
}

func (h *Handlers) handleReduce(ctx context.Context, req mcp.CallToolRequest, mode ops.Mode) (*mcp.CallToolResult, error) {
	input, err := decode[ReduceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	// attract2 has no molecule switch, charge table or strict mode.
	if mode == ops.ModeAttract2 {
		input.Molecule = ""
		input.ChargeTable = ""
		input.AllowMissing = false
	}

	result, err := ops.Reduce(ctx, h.db, h.cfg, h.log, ops.ReduceInput{
		Mode:            mode,
		InputPath:       input.InputPath,
		Molecule:        ops.Molecule(input.Molecule),
		CatalogPath:     input.CatalogPath,
		ChargeTable:     input.ChargeTable,
		ConversionTable: input.ConversionTable,
		AllowMissing:    input.AllowMissing,
		Workers:         input.Workers,
		OutputPath:      input.OutputPath,
		RestrictOutput:  true,
		RestrictInput:   true,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRunList handles the run_list tool call.
func (h *Handlers) HandleRunList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListRuns(h.db, ops.ListRunsInput{
		ForceField: input.ForceField,
		Status:     input.Status,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRunFetch handles the run_fetch tool call.
func (h *Handlers) HandleRunFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.FetchRun(h.db, ops.FetchRunInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRunPurge handles the run_purge tool call.
func (h *Handlers) HandleRunPurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunPurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.PurgeRuns(ctx, h.db, ops.PurgeRunsInput{
		ForceField:    input.ForceField,
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCatalogShow handles the catalog_show tool call.
func (h *Handlers) HandleCatalogShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CatalogShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ShowCatalog(h.cfg, ops.ShowCatalogInput{
		Path:          input.Path,
		Format:        input.Format,
		RestrictInput: true,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if rErr, ok := errors.As(err); ok {
		// Keep wrapper context ("reading foo: ...") when the error was wrapped.
		msg := rErr.Message
		if err != error(rErr) {
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    rErr.Code,
			"message": msg,
			"fatal":   rErr.Fatal,
		}
		if rErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if rErr.Details != nil {
			errorObj["details"] = rErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"fatal":   true,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
