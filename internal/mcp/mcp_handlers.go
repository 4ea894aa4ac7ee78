package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/predicate"
	"github.com/corpusci/corpusci/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	store   contract.HistoryStore
}

func (h *toolHandler) handleListProjects(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indexPath := request.GetString("projects", h.baseCfg.ProjectsPath)
	repos, err := schema.LoadIndex(indexPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load project index: %v", err)), nil
	}

	if include := request.GetString("include", ""); include != "" {
		pred, err := predicate.Parse(include)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid predicate: %v", err)), nil
		}
		filtered := repos[:0]
		for _, repo := range repos {
			if pred.Eval(repo.Fields()) {
				filtered = append(filtered, repo)
			}
		}
		repos = filtered
	}

	jsonData, _ := json.MarshalIndent(repos, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleCheckPredicate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source := request.GetString("predicate", "")
	pred, err := predicate.Parse(source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid predicate: %v", err)), nil
	}

	bindings := map[string]string{}
	if raw, ok := request.GetArguments()["fields"].(map[string]any); ok {
		for key, value := range raw {
			s, ok := value.(string)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("field %q must be a string", key)), nil
			}
			bindings[key] = s
		}
	}

	payload := struct {
		Predicate string `json:"predicate"`
		Matches   bool   `json:"matches"`
	}{
		Predicate: pred.Source(),
		Matches:   pred.Eval(bindings),
	}
	jsonData, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetRunHistory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.store == nil {
		return mcp.NewToolResultError("no history backend configured"), nil
	}
	runs, err := h.store.GetAllRuns()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to retrieve runs: %v", err)), nil
	}

	if limit := request.GetInt("limit", 0); limit > 0 && limit < len(runs) {
		runs = runs[len(runs)-limit:]
	}

	jsonData, _ := json.MarshalIndent(runs, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
