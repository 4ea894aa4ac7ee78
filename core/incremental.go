package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/scm"
	"github.com/corpusci/corpusci/schema"
)

// IncrementalVerifier replays declared commit sequences against a
// repository, building the first commit from scratch and every later
// commit incrementally on top of the surviving build state. Snapshots of
// the build state are archived after each step so that incremental output
// can be checked against a full build of the same commit.
type IncrementalVerifier struct {
	cfg  *contract.Config
	ws   *scm.Workspace
	disp *Dispatcher
}

// NewIncrementalVerifier wires an incremental verifier.
func NewIncrementalVerifier(cfg *contract.Config, ws *scm.Workspace, disp *Dispatcher) *IncrementalVerifier {
	return &IncrementalVerifier{cfg: cfg, ws: ws, disp: disp}
}

// Run executes every applicable incremental sequence for the action. A
// non-nil error is a configuration problem that aborts the repository task.
func (v *IncrementalVerifier) Run(ctx context.Context, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, logw io.Writer) (schema.Result, error) {
	if len(repo.Incremental) == 0 {
		return schema.Result{Kind: schema.Pass,
			Text: fmt.Sprintf("PASS: %s, no incremental sequences declared", repo.Path)}, nil
	}

	statePath, err := buildStatePath(v.ws.RepoPath(repo), action)
	if err != nil {
		return schema.Result{}, err
	}
	archive := NewSnapshotArchive(v.ws.RepoPath(repo))

	result := schema.Result{Kind: schema.Pass}
	for _, version := range newestFirstVersions(repo.Incremental) {
		seqSpec := repo.Incremental[version]
		if limitExcludes(seqSpec.Limit, action) {
			continue
		}
		res, stop, err := v.runSequence(ctx, repo, action, version, seqSpec.Commits, archive, statePath, logw)
		if err != nil {
			return schema.Result{}, err
		}
		result = res
		if stop {
			break
		}
	}
	return result, nil
}

// runSequence replays one commit sequence. The bool return requests that
// no further sequences be attempted for this action.
func (v *IncrementalVerifier) runSequence(ctx context.Context, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, version string, commits []schema.CommitStep, archive *SnapshotArchive, statePath string, logw io.Writer) (schema.Result, bool, error) {
	if err := archive.Reset(); err != nil {
		return schema.Result{}, false, fmt.Errorf("failed to reset snapshot archive: %w", err)
	}

	statsEnabled := v.cfg.CheckStats || v.cfg.ShowStats != nil
	var statsDir string
	var stats *StatsSummary
	if statsEnabled {
		statsDir = filepath.Join(v.ws.RepoPath(repo), "swift-stats")
		stats = NewStatsSummary()
	}

	result := schema.Result{Kind: schema.Pass}
	for seq, step := range commits {
		flavor := schema.IncrFlavor
		if seq == 0 {
			flavor = schema.FullFlavor
		}

		if err := v.moveToCommit(ctx, repo, step.Commit, seq, logw); err != nil {
			if !isGitFailure(err) {
				return schema.Result{}, false, err
			}
			return v.classify(repo, action, version, step.Commit, err), true, nil
		}

		// The filesystem needs a beat between checkout and build so that
		// modification times are strictly ordered.
		settle(ctx, v.cfg.SettleDelay)
		dispatchErr := v.disp.Dispatch(ctx, repo, action, DispatchOptions{
			Incremental: seq > 0,
			StatsDir:    statsDir,
		}, logw)
		settle(ctx, v.cfg.SettleDelay)

		if dispatchErr != nil && !IsExecutionFailure(dispatchErr) {
			return schema.Result{}, false, dispatchErr
		}
		result = v.classify(repo, action, version, step.Commit, dispatchErr)
		if !result.Kind.Acceptable() {
			return result, true, nil
		}

		if err := archive.SaveState(seq, flavor, step.Commit, statePath); err != nil {
			return schema.Result{}, false, fmt.Errorf("failed to snapshot build state: %w", err)
		}
		if statsEnabled {
			if err := stats.AddFromDir(seq, step.Commit, statsDir); err != nil {
				return schema.Result{}, false, err
			}
			if err := archive.SaveStats(seq, flavor, step.Commit, statsDir); err != nil {
				return schema.Result{}, false, fmt.Errorf("failed to snapshot stats: %w", err)
			}
		}
		if v.cfg.CheckStats && len(step.Stats) > 0 {
			ident := fmt.Sprintf("%s, %s", repo.Path, version)
			if failRes := stats.CheckExpected(ident, seq, step.Commit, step.Stats); failRes != nil {
				return *failRes, true, nil
			}
		}

		if flavor == schema.IncrFlavor && archive.Has(seq, schema.FullFlavor, step.Commit) {
			res, stop, err := v.compareAgainstFull(archive, action, repo, version, seq, step.Commit, logw)
			if err != nil || stop {
				return res, stop, err
			}
		}
	}

	if v.cfg.ShowStats != nil && stats != nil {
		_, _ = fmt.Fprintf(logw, "accumulated stats for %s, %s:\n", repo.Path, version)
		if err := stats.Dump(logw, v.cfg.ShowStats); err != nil {
			return schema.Result{}, false, err
		}
	}
	return result, false, nil
}

// moveToCommit checks out the sequence's first commit from a clean slate
// and advances to later commits without disturbing build state.
func (v *IncrementalVerifier) moveToCommit(ctx context.Context, repo *schema.RepositoryDescriptor, sha string, seq int, logw io.Writer) error {
	if seq == 0 {
		return v.ws.CheckoutSHA(ctx, repo, sha, v.cfg.SkipClean, logw)
	}
	return v.ws.AdvanceToSHA(ctx, repo, sha, logw)
}

// compareAgainstFull diffs the incremental snapshot against the full-build
// snapshot of the same commit. Divergence is a warning unless determinism
// enforcement is on.
func (v *IncrementalVerifier) compareAgainstFull(archive *SnapshotArchive, action *schema.ActionDescriptor, repo *schema.RepositoryDescriptor, version string, seq int, sha string, logw io.Writer) (schema.Result, bool, error) {
	diffs, err := CompareTrees(
		archive.StatePath(seq, schema.FullFlavor, sha),
		archive.StatePath(seq, schema.IncrFlavor, sha),
		IgnoredSnapshotNames(action.Action),
	)
	if err != nil {
		return schema.Result{}, false, err
	}
	if len(diffs) == 0 {
		return schema.Result{}, false, nil
	}
	for _, diff := range diffs {
		_, _ = fmt.Fprintf(logw, "build-state divergence at %.7s: %s\n", sha, diff)
	}
	if v.cfg.EnforceDeterminism {
		text := fmt.Sprintf("FAIL: %s, %s, %.7s, incremental build state diverged from full build (%d differences)",
			repo.Path, version, sha, len(diffs))
		return schema.Result{Kind: schema.Fail, Text: text}, true, nil
	}
	return schema.Result{}, false, nil
}

// classify turns one step's outcome into a result, consulting the action's
// expected-failure table for the sequence's version label.
func (v *IncrementalVerifier) classify(repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, version, sha string, dispatchErr error) schema.Result {
	bug := action.Xfail.Lookup(version, v.cfg.Platform, v.cfg.SwiftBranch)
	ident := fmt.Sprintf("%s, %s, %.7s, %s", repo.Path, version, sha, actionTarget(action))

	if dispatchErr != nil {
		if bug != "" {
			return schema.Result{Kind: schema.XFail, Text: fmt.Sprintf("XFAIL: %s, %s", bug, ident)}
		}
		return schema.Result{Kind: schema.Fail, Text: fmt.Sprintf("FAIL: %s: %v", ident, dispatchErr)}
	}
	if bug != "" {
		return schema.Result{Kind: schema.UPass, Text: fmt.Sprintf("UPASS: %s, %s", bug, ident)}
	}
	return schema.Result{Kind: schema.Pass, Text: fmt.Sprintf("PASS: %s", ident)}
}

// buildStatePath locates the build products directory the action produces.
func buildStatePath(repoPath string, action *schema.ActionDescriptor) (string, error) {
	switch {
	case action.Action == schema.BuildSwiftPackage || action.Action == schema.TestSwiftPackage:
		return filepath.Join(repoPath, ".build"), nil
	case action.Action.IsXcodeAction():
		container := filepath.Join(repoPath, action.ContainerPath())
		return filepath.Join(filepath.Dir(container), "build"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownActionKind, action.Action)
	}
}

// limitExcludes reports whether a sequence's limit clause rules the action
// out. A sequence with a limit runs only for actions matching every field.
func limitExcludes(limit map[string]string, action *schema.ActionDescriptor) bool {
	if len(limit) == 0 {
		return false
	}
	fields := action.Fields()
	for key, want := range limit {
		if fields[key] != want {
			return true
		}
	}
	return false
}

// settle pauses between filesystem-visible steps, honoring cancellation.
func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
