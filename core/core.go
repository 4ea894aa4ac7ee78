// Package core executes verification runs: checking out indexed
// repositories, dispatching their declared build and test actions against
// a candidate toolchain and classifying the outcomes.
package core

import (
	"context"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/scm"
	"github.com/corpusci/corpusci/schema"
)

// ExecuteCompatRun loads the project index and verifies every selected
// repository at its pinned known-good commits.
func ExecuteCompatRun(ctx context.Context, cfg *contract.Config, store contract.HistoryStore) (*schema.ResultList, int, error) {
	return executeRun(ctx, cfg, store, CompatMode)
}

// ExecuteIncrementalRun loads the project index and replays every selected
// repository's incremental commit sequences.
func ExecuteIncrementalRun(ctx context.Context, cfg *contract.Config, store contract.HistoryStore) (*schema.ResultList, int, error) {
	return executeRun(ctx, cfg, store, IncrementalMode)
}

func executeRun(ctx context.Context, cfg *contract.Config, store contract.HistoryStore, mode RunMode) (*schema.ResultList, int, error) {
	index, err := schema.LoadIndex(cfg.ProjectsPath)
	if err != nil {
		return nil, 0, err
	}
	ws := scm.NewWorkspace(cfg.WorkspaceRoot, scm.NewLocalGitClient())
	disp := NewDispatcher(cfg, ws, NewExecRunner(), XcrunLocator{})
	orch := NewOrchestrator(cfg, ws, disp, store)
	list, repoCount := orch.Run(ctx, index, mode)
	return list, repoCount, nil
}
