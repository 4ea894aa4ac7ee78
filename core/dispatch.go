package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/scm"
	"github.com/corpusci/corpusci/schema"
)

// ErrUnknownActionKind signals an action kind the dispatcher cannot build
// a command line for.
var ErrUnknownActionKind = errors.New("unknown action kind")

// ExecutionError is a build or test command exiting unsuccessfully, or
// being killed on timeout. It is the only dispatch error class that feeds
// expected-failure classification; everything else is a configuration
// error that aborts the repository task.
type ExecutionError struct {
	Args     []string
	Err      error
	TimedOut bool
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("command timed out: %s", strings.Join(e.Args, " "))
	}
	return fmt.Sprintf("command failed: %s: %v", strings.Join(e.Args, " "), e.Err)
}

// Unwrap exposes the underlying exec error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// IsExecutionFailure reports whether err represents a failed build or test
// command rather than a configuration problem.
func IsExecutionFailure(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}

// Invocation is one external command to run.
type Invocation struct {
	Args    []string
	Dir     string
	Env     []string // Appended to the inherited environment
	Timeout time.Duration
}

// CommandRunner executes invocations. Tests substitute a recording fake.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation, logw io.Writer) error
}

// execRunner runs invocations with os/exec, streaming combined output.
type execRunner struct{}

// NewExecRunner returns the production command runner.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

// Run implements the CommandRunner interface.
func (execRunner) Run(ctx context.Context, inv Invocation, logw io.Writer) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}
	_, _ = fmt.Fprintf(logw, "+ %s\n", strings.Join(inv.Args, " "))

	cmd := exec.CommandContext(runCtx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.Stdout = logw
	cmd.Stderr = logw
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	if err := cmd.Run(); err != nil {
		return &ExecutionError{
			Args:     inv.Args,
			Err:      err,
			TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
		}
	}
	return nil
}

// DispatchOptions tunes a single dispatch.
type DispatchOptions struct {
	Incremental         bool   // Keep prior build products; skip clean steps
	StatsDir            string // Compiler stats output directory ("" = off)
	StripResourcePhases bool   // Remove resource build phases before building
}

// Dispatcher translates action descriptors into build-system invocations.
type Dispatcher struct {
	cfg     *contract.Config
	ws      *scm.Workspace
	runner  CommandRunner
	locator ToolchainLocator
	branch  BranchConfig
}

// NewDispatcher wires a dispatcher against a workspace and toolchain.
func NewDispatcher(cfg *contract.Config, ws *scm.Workspace, runner CommandRunner, locator ToolchainLocator) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		ws:      ws,
		runner:  runner,
		locator: locator,
		branch:  BranchConfig{Name: cfg.SwiftBranch},
	}
}

// Dispatch runs the action against the repository's current working tree.
// An *ExecutionError return means the build or test itself failed; other
// errors are configuration problems.
func (d *Dispatcher) Dispatch(ctx context.Context, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, opts DispatchOptions, logw io.Writer) error {
	if opts.StatsDir != "" {
		if err := resetDir(opts.StatsDir); err != nil {
			return fmt.Errorf("failed to reset stats directory: %w", err)
		}
	}
	switch {
	case action.Action == schema.BuildSwiftPackage || action.Action == schema.TestSwiftPackage:
		return d.dispatchPackage(ctx, repo, action, opts, logw)
	case action.Action.IsXcodeAction():
		return d.dispatchXcode(ctx, repo, action, opts, logw)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownActionKind, action.Action)
	}
}

// dispatchPackage drives the package manager for build and test actions.
func (d *Dispatcher) dispatchPackage(ctx context.Context, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, opts DispatchOptions, logw io.Writer) error {
	path := d.ws.RepoPath(repo)
	swift := swiftFromSwiftc(d.cfg.SwiftcPath)
	env := []string{"SWIFT_EXEC=" + d.cfg.SwiftcPath}

	if !opts.Incremental {
		clean := Invocation{
			Args:    d.sandboxWrap(d.branch.PackageCleanArgs(swift, path), d.cfg.SandboxProfilePackage),
			Env:     env,
			Timeout: d.cfg.Timeout,
		}
		if err := d.runner.Run(ctx, clean, logw); err != nil {
			return err
		}
	}

	args := []string{swift}
	if action.Action == schema.TestSwiftPackage {
		args = append(args, "test")
	} else {
		args = append(args, "build")
	}
	if d.branch.DisableSandbox() {
		args = append(args, "--disable-sandbox")
	}
	args = append(args, "-C", path, "--verbose")
	if action.Action == schema.BuildSwiftPackage && action.Configuration != "" {
		args = append(args, "--configuration", action.Configuration)
	}
	if opts.StatsDir != "" {
		args = append(args, "-Xswiftc", "-stats-output-dir", "-Xswiftc", opts.StatsDir)
	}
	for _, flag := range d.cfg.AddedSwiftFlags {
		args = append(args, "-Xswiftc", flag)
	}

	return d.runner.Run(ctx, Invocation{
		Args:    d.sandboxWrap(args, d.cfg.SandboxProfilePackage),
		Env:     env,
		Timeout: d.cfg.Timeout,
	}, logw)
}

// dispatchXcode drives xcodebuild for workspace/project actions.
func (d *Dispatcher) dispatchXcode(ctx context.Context, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, opts DispatchOptions, logw io.Writer) error {
	repoPath := d.ws.RepoPath(repo)
	containerPath := filepath.Join(repoPath, action.ContainerPath())
	buildDir := filepath.Join(filepath.Dir(containerPath), "build")

	sdkPath, err := d.locator.SDKPath(ctx, action.Destination)
	if err != nil {
		return err
	}

	if opts.StripResourcePhases {
		if err := StripResourcePhases(repoPath); err != nil {
			return fmt.Errorf("failed to strip resource phases: %w", err)
		}
	}

	args := []string{"xcodebuild"}
	if opts.Incremental {
		if action.Action.IsTestAction() {
			args = append(args, "build", "test")
		} else {
			args = append(args, "build")
		}
	} else {
		if action.Action.IsTestAction() {
			args = append(args, "clean", "build", "test")
		} else {
			args = append(args, "clean", "build")
		}
	}

	if action.UsesWorkspace() {
		args = append(args, "-workspace", containerPath)
	} else {
		args = append(args, "-project", containerPath)
	}
	if action.UsesScheme() {
		args = append(args, "-scheme", action.Scheme)
	} else {
		args = append(args, "-target", action.Target)
	}
	args = append(args, "-destination", action.Destination)
	if action.UsesScheme() {
		args = append(args, "-derivedDataPath", buildDir)
	}
	if action.Configuration != "" {
		args = append(args, "-configuration", action.Configuration)
	}
	args = append(args, "-sdk", sdkPath,
		"CODE_SIGN_IDENTITY=",
		"CODE_SIGNING_REQUIRED=NO",
		"ENABLE_BITCODE=NO",
		"GCC_TREAT_WARNINGS_AS_ERRORS=0",
		"SWIFT_EXEC="+d.cfg.SwiftcPath,
	)
	if !action.UsesScheme() {
		args = append(args, "SYMROOT="+buildDir)
	}
	if d.cfg.SwiftVersion != "" {
		args = append(args, "SWIFT_VERSION="+d.cfg.SwiftVersion)
	}
	if otherFlags := d.otherSwiftFlags(opts); otherFlags != "" {
		args = append(args, "OTHER_SWIFT_FLAGS="+otherFlags)
	}
	args = append(args, d.cfg.AddedXcodebuildFlags...)

	var env []string
	if action.Action.IsTestAction() {
		stdlib, err := d.locator.StdlibPath(d.cfg.SwiftcPath, action.Destination)
		if err != nil {
			return err
		}
		env = append(env, "SWIFT_LIBRARY_PATH="+stdlib)
	}

	return d.runner.Run(ctx, Invocation{
		Args:    d.sandboxWrap(args, d.cfg.SandboxProfileXcodebuild),
		Env:     env,
		Timeout: d.cfg.Timeout,
	}, logw)
}

// otherSwiftFlags composes the OTHER_SWIFT_FLAGS build setting, preserving
// any value the project already sets.
func (d *Dispatcher) otherSwiftFlags(opts DispatchOptions) string {
	extra := make([]string, 0, 4)
	if d.cfg.SwiftVersion != "" {
		extra = append(extra, "-swift-version", d.cfg.SwiftVersion)
	}
	if opts.StatsDir != "" {
		extra = append(extra, "-stats-output-dir", opts.StatsDir)
	}
	extra = append(extra, d.cfg.AddedSwiftFlags...)
	if len(extra) == 0 {
		return ""
	}
	return "$(OTHER_SWIFT_FLAGS) " + strings.Join(extra, " ")
}

// sandboxWrap prefixes args with a sandbox-exec invocation when a profile
// is configured.
func (d *Dispatcher) sandboxWrap(args []string, profile string) []string {
	if profile == "" {
		return args
	}
	return append([]string{"sandbox-exec", "-f", profile}, args...)
}

// StripResourcePhases removes resource build phases from every Xcode
// project file under root. Resource phases are the dominant source of
// non-compiler build breakage in older projects.
func StripResourcePhases(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "project.pbxproj" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		stripped := stripResourceParagraphs(data)
		if bytes.Equal(stripped, data) {
			return nil
		}
		return os.WriteFile(path, stripped, 0o644)
	})
}

// stripResourceParagraphs drops blank-line-separated paragraphs that
// mention a resources build phase.
func stripResourceParagraphs(data []byte) []byte {
	paragraphs := bytes.Split(data, []byte("\n\n"))
	kept := paragraphs[:0]
	for _, p := range paragraphs {
		if bytes.Contains(p, []byte("Begin PBXResourcesBuildPhase")) {
			continue
		}
		kept = append(kept, p)
	}
	return bytes.Join(kept, []byte("\n\n"))
}

// resetDir removes and recreates a directory.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
