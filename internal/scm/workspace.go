package scm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/corpusci/corpusci/schema"
)

// Workspace owns the directory that repository working trees are checked
// out into. Each repository's tree lives under Root at its declared path,
// so concurrent tasks never share a working tree.
type Workspace struct {
	Root   string
	Client Client
}

// NewWorkspace returns a workspace rooted at root.
func NewWorkspace(root string, client Client) *Workspace {
	return &Workspace{Root: root, Client: client}
}

// RepoPath returns the checkout directory for a repository.
func (w *Workspace) RepoPath(repo *schema.RepositoryDescriptor) string {
	return filepath.Join(w.Root, repo.Path)
}

// CheckoutOptions controls how a ref is materialized.
type CheckoutOptions struct {
	RefIsSHA        bool // The ref is a commit sha rather than a branch name
	PullAfterUpdate bool // Fast-forward after checkout (branch refs only)
	SkipClean       bool // Leave untracked build state in place
}

// CheckoutBranch materializes a branch head: clean (unless skipped), forced
// checkout, then pull.
func (w *Workspace) CheckoutBranch(ctx context.Context, repo *schema.RepositoryDescriptor, branch string, skipClean bool, logw io.Writer) error {
	return w.Checkout(ctx, repo, branch, CheckoutOptions{
		PullAfterUpdate: true,
		SkipClean:       skipClean,
	}, logw)
}

// CheckoutSHA materializes a pinned commit.
func (w *Workspace) CheckoutSHA(ctx context.Context, repo *schema.RepositoryDescriptor, sha string, skipClean bool, logw io.Writer) error {
	return w.Checkout(ctx, repo, sha, CheckoutOptions{
		RefIsSHA:  true,
		SkipClean: skipClean,
	}, logw)
}

// Checkout clones or updates the repository's working tree to the given
// ref. Only the Git repository kind is supported; anything else is a
// configuration error.
func (w *Workspace) Checkout(ctx context.Context, repo *schema.RepositoryDescriptor, ref string, opts CheckoutOptions, logw io.Writer) error {
	if repo.Repository != schema.GitRepository {
		return fmt.Errorf("%w: %s", ErrUnsupportedRepository, repo.Repository)
	}
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace root %q: %w", w.Root, err)
	}
	path := w.RepoPath(repo)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return w.Client.Clone(ctx, repo.URL, path, ref, logw)
	}

	if opts.RefIsSHA {
		if err := w.Client.Fetch(ctx, path, logw); err != nil {
			return err
		}
		if !opts.SkipClean {
			if err := w.Client.Clean(ctx, path, logw); err != nil {
				return err
			}
		}
		if err := w.Client.Checkout(ctx, path, ref, true, logw); err != nil {
			return err
		}
		return w.Client.SubmoduleUpdate(ctx, path, logw)
	}

	if !opts.SkipClean {
		if err := w.Client.Clean(ctx, path, logw); err != nil {
			return err
		}
	}
	if err := w.Client.Checkout(ctx, path, ref, true, logw); err != nil {
		return err
	}
	if opts.PullAfterUpdate {
		if err := w.Client.Pull(ctx, path, logw); err != nil {
			return err
		}
	}
	return w.Client.SubmoduleUpdate(ctx, path, logw)
}

// AdvanceToSHA moves an existing working tree to sha with a plain checkout
// plus submodule sync, with no destructive clean. Used between commits of
// an incremental sequence where build state must survive.
func (w *Workspace) AdvanceToSHA(ctx context.Context, repo *schema.RepositoryDescriptor, sha string, logw io.Writer) error {
	if repo.Repository != schema.GitRepository {
		return fmt.Errorf("%w: %s", ErrUnsupportedRepository, repo.Repository)
	}
	path := w.RepoPath(repo)
	if err := w.Client.Checkout(ctx, path, sha, false, logw); err != nil {
		return err
	}
	return w.Client.SubmoduleUpdate(ctx, path, logw)
}
