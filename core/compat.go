package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/scm"
	"github.com/corpusci/corpusci/schema"
)

// newestFirstVersions orders compatibility version labels newest first.
// Labels that do not parse as versions sort after the ones that do, in
// reverse lexicographic order, so a stray label never shadows a real pin.
func newestFirstVersions[V any](table map[string]V) []string {
	labels := make([]string, 0, len(table))
	for label := range table {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		vi, errI := semver.NewVersion(labels[i])
		vj, errJ := semver.NewVersion(labels[j])
		switch {
		case errI == nil && errJ == nil:
			return vi.GreaterThan(vj)
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return labels[i] > labels[j]
		}
	})
	return labels
}

// actionTarget names what an action builds, for result text.
func actionTarget(action *schema.ActionDescriptor) string {
	if st := action.SchemeOrTarget(); st != "" {
		return st
	}
	return "Swift Package"
}

// CompatRunner verifies that a repository still builds at its pinned
// known-good commits.
type CompatRunner struct {
	cfg  *contract.Config
	ws   *scm.Workspace
	disp *Dispatcher
}

// NewCompatRunner wires a compatibility runner.
func NewCompatRunner(cfg *contract.Config, ws *scm.Workspace, disp *Dispatcher) *CompatRunner {
	return &CompatRunner{cfg: cfg, ws: ws, disp: disp}
}

// Run executes the action at the newest pinned commit, or against the
// declared branch head when the repository carries no pins. A non-nil
// error is a configuration problem that aborts the repository task.
func (r *CompatRunner) Run(ctx context.Context, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, logw io.Writer) (schema.Result, error) {
	versions := newestFirstVersions(repo.Compatibility)
	if len(versions) == 0 {
		return r.runBranch(ctx, repo, action, logw)
	}

	// Only the newest known-good commit is verified. Older pins stay in
	// the index for reference and for expected-failure bookkeeping.
	versions = versions[:1]

	result := schema.Result{Kind: schema.Pass}
	for _, version := range versions {
		pin := repo.Compatibility[version]
		if err := r.ws.CheckoutSHA(ctx, repo, pin.Commit, r.cfg.SkipClean, logw); err != nil {
			if !isGitFailure(err) {
				return schema.Result{}, err
			}
			result = r.classify(repo, action, version, err)
		} else {
			err := r.disp.Dispatch(ctx, repo, action, DispatchOptions{
				Incremental:         r.cfg.SkipClean,
				StripResourcePhases: true,
			}, logw)
			if err != nil && !IsExecutionFailure(err) {
				return schema.Result{}, err
			}
			result = r.classify(repo, action, version, err)
		}
		if !result.Kind.Acceptable() {
			break
		}
	}
	return result, nil
}

// runBranch builds the repository's declared branch head. Used for
// repositories tracked without pinned commits.
func (r *CompatRunner) runBranch(ctx context.Context, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, logw io.Writer) (schema.Result, error) {
	branch := repo.Branch
	if branch == "" {
		branch = "main"
	}
	if err := r.ws.CheckoutBranch(ctx, repo, branch, r.cfg.SkipClean, logw); err != nil {
		if !isGitFailure(err) {
			return schema.Result{}, err
		}
		return r.classify(repo, action, branch, err), nil
	}
	err := r.disp.Dispatch(ctx, repo, action, DispatchOptions{
		Incremental:         r.cfg.SkipClean,
		StripResourcePhases: true,
	}, logw)
	if err != nil && !IsExecutionFailure(err) {
		return schema.Result{}, err
	}
	return r.classify(repo, action, branch, err), nil
}

// classify turns a dispatch outcome into a result, consulting the action's
// expected-failure table for the version under test.
func (r *CompatRunner) classify(repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, version string, dispatchErr error) schema.Result {
	bug := action.Xfail.Lookup(version, r.cfg.Platform, r.cfg.SwiftBranch)
	ident := resultIdentifier(repo, action, version)

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

// resultIdentifier composes the human-readable identity of one verification.
func resultIdentifier(repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, version string) string {
	parts := []string{repo.Path, version, actionTarget(action)}
	if action.Destination != "" {
		parts = append(parts, action.Destination)
	}
	return strings.Join(parts, ", ")
}

// isGitFailure distinguishes a failed source-control command from other
// configuration errors. Checkout failures count against the repository the
// same way build failures do.
func isGitFailure(err error) bool {
	return errors.Is(err, scm.ErrGitCommand)
}
