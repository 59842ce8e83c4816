package mcp

import (
	"context"
	"database/sql"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/cgreduce/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"reduce_attract1": {
		def:     reduceAttract1ToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReduceAttract1 },
	},
	"reduce_attract2": {
		def:     reduceAttract2ToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReduceAttract2 },
	},
	"run_list": {
		def:     runListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunList },
	},
	"run_fetch": {
		def:     runFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunFetch },
	},
	"run_purge": {
		def:     runPurgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunPurge },
	},
	"catalog_show": {
		def:     catalogShowToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCatalogShow },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with cgreduce tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, log *zap.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"cgreduce",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, log)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, log *zap.Logger, version string) error {
	s := NewServer(db, cfg, log, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
