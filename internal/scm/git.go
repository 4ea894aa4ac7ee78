// Package scm performs source-control operations for repository checkouts
// by executing the local git binary.
package scm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrUnsupportedRepository signals a repository kind other than the one
// supported kind.
var ErrUnsupportedRepository = errors.New("unsupported repository kind")

// ErrGitCommand wraps any git invocation that exited unsuccessfully.
// Callers treat these like build failures rather than configuration errors.
var ErrGitCommand = errors.New("git command failed")

// Client defines the source-control operations needed for checkouts.
// This allows the runners to be tested without a real git executable.
type Client interface {
	// Clone clones url into path and checks out ref.
	Clone(ctx context.Context, url, path, ref string, logw io.Writer) error

	// Fetch updates all remotes of the repository at path.
	Fetch(ctx context.Context, path string, logw io.Writer) error

	// Checkout switches the repository at path to ref.
	Checkout(ctx context.Context, path, ref string, force bool, logw io.Writer) error

	// Clean removes untracked and ignored files from the working tree.
	Clean(ctx context.Context, path string, logw io.Writer) error

	// Pull fast-forwards the current branch.
	Pull(ctx context.Context, path string, logw io.Writer) error

	// SubmoduleUpdate syncs and updates submodules recursively.
	SubmoduleUpdate(ctx context.Context, path string, logw io.Writer) error
}

// LocalGitClient implements Client by executing the local 'git' binary.
type LocalGitClient struct{}

var _ Client = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// run executes one git command with output streamed to logw.
func (c *LocalGitClient) run(ctx context.Context, dir string, logw io.Writer, args ...string) error {
	fullArgs := args
	if dir != "" {
		fullArgs = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	cmd.Stdout = logw
	cmd.Stderr = logw
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: git %s: %v. Ensure git is installed and available on your PATH",
			ErrGitCommand, strings.Join(args, " "), err)
	}
	return nil
}

// Clone implements the Client interface.
func (c *LocalGitClient) Clone(ctx context.Context, url, path, ref string, logw io.Writer) error {
	if err := c.run(ctx, "", logw, "clone", "--recursive", url, path); err != nil {
		return err
	}
	if ref == "" {
		return nil
	}
	if err := c.Checkout(ctx, path, ref, false, logw); err != nil {
		return err
	}
	return c.SubmoduleUpdate(ctx, path, logw)
}

// Fetch implements the Client interface.
func (c *LocalGitClient) Fetch(ctx context.Context, path string, logw io.Writer) error {
	return c.run(ctx, path, logw, "fetch", "--all", "--tags")
}

// Checkout implements the Client interface.
func (c *LocalGitClient) Checkout(ctx context.Context, path, ref string, force bool, logw io.Writer) error {
	args := []string{"checkout"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, ref)
	return c.run(ctx, path, logw, args...)
}

// Clean implements the Client interface.
func (c *LocalGitClient) Clean(ctx context.Context, path string, logw io.Writer) error {
	return c.run(ctx, path, logw, "clean", "-ffdx")
}

// Pull implements the Client interface.
func (c *LocalGitClient) Pull(ctx context.Context, path string, logw io.Writer) error {
	return c.run(ctx, path, logw, "pull", "--ff-only")
}

// SubmoduleUpdate implements the Client interface.
func (c *LocalGitClient) SubmoduleUpdate(ctx context.Context, path string, logw io.Writer) error {
	if err := c.run(ctx, path, logw, "submodule", "sync", "--recursive"); err != nil {
		return err
	}
	return c.run(ctx, path, logw, "submodule", "update", "--init", "--recursive")
}
