// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the corpusci MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, store contract.HistoryStore) *server.MCPServer {
	s := server.NewMCPServer(
		"Corpus Verification Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		store:   store,
	}

	// --- 1. Tool: list_projects ---
	s.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List the repositories of the project index, optionally filtered by a selection predicate."),
		mcp.WithString("projects", mcp.Description("Path to the JSON project index (defaults to the configured index).")),
		mcp.WithString("include", mcp.Description("Selection predicate matched against repository fields, e.g. path == 'Alamofire'.")),
	), h.handleListProjects)

	// --- 2. Tool: check_predicate ---
	s.AddTool(mcp.NewTool("check_predicate",
		mcp.WithDescription("Evaluate a selection predicate against a set of field bindings and report whether it matches."),
		mcp.WithString("predicate", mcp.Description("The predicate expression to evaluate."), mcp.Required()),
		mcp.WithObject("fields", mcp.Description("Field bindings the predicate is evaluated against; values must be strings.")),
	), h.handleCheckPredicate)

	// --- 3. Tool: get_run_history ---
	s.AddTool(mcp.NewTool("get_run_history",
		mcp.WithDescription("Retrieve stored verification runs and their aggregate outcomes from the history backend."),
		mcp.WithNumber("limit", mcp.Description("Limit the number of most recent runs returned.")),
	), h.handleGetRunHistory)

	return s
}

// StartMCPServer starts the corpusci MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, store contract.HistoryStore) error {
	s := NewMCPServer(baseCfg, store)
	return server.ServeStdio(s)
}
