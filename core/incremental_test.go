package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/scm"
	"github.com/corpusci/corpusci/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shaOne   = "1111111111111111111111111111111111111111"
	shaTwo   = "2222222222222222222222222222222222222222"
	shaThree = "3333333333333333333333333333333333333333"
)

type incrHarness struct {
	cfg      *contract.Config
	client   *nopClient
	runner   *fakeRunner
	ws       *scm.Workspace
	verifier *IncrementalVerifier
}

func newIncrHarness(t *testing.T) *incrHarness {
	t.Helper()
	cfg := testConfig(t.TempDir())
	client := &nopClient{}
	ws := scm.NewWorkspace(cfg.WorkspaceRoot, client)
	repoPath := ws.RepoPath(packageRepo())
	require.NoError(t, os.MkdirAll(filepath.Join(repoPath, ".build"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, ".build", "artifact"), []byte("object"), 0o644))
	runner := &fakeRunner{}
	disp := NewDispatcher(cfg, ws, runner, fakeLocator{})
	return &incrHarness{
		cfg:      cfg,
		client:   client,
		runner:   runner,
		ws:       ws,
		verifier: NewIncrementalVerifier(cfg, ws, disp),
	}
}

func incrementalRepo(commits ...schema.CommitStep) *schema.RepositoryDescriptor {
	repo := packageRepo()
	repo.Incremental = map[string]schema.IncrementalSpec{
		"5.0": {Commits: commits},
	}
	return repo
}

func steps(shas ...string) []schema.CommitStep {
	var out []schema.CommitStep
	for _, sha := range shas {
		out = append(out, schema.CommitStep{Commit: sha})
	}
	return out
}

func TestIncrementalRunWithoutSequences(t *testing.T) {
	h := newIncrHarness(t)
	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage}

	result, err := h.verifier.Run(context.Background(), packageRepo(), action, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, schema.Pass, result.Kind)
	assert.Contains(t, result.Text, "no incremental sequences declared")
	assert.Empty(t, h.runner.invocations)
}

func TestIncrementalRunSequence(t *testing.T) {
	h := newIncrHarness(t)
	repo := incrementalRepo(steps(shaOne, shaTwo, shaThree)...)
	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage}

	result, err := h.verifier.Run(context.Background(), repo, action, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, schema.Pass, result.Kind)
	assert.Equal(t, fmt.Sprintf("PASS: Example, 5.0, %.7s, Swift Package", shaThree), result.Text)

	// First commit builds from scratch (clean + build); later commits
	// build incrementally on top of the surviving state.
	require.Len(t, h.runner.invocations, 4)
	assert.Equal(t, []string{shaOne, shaTwo, shaThree}, h.client.checkouts)

	archiveDir := h.ws.RepoPath(repo) + "-incr"
	for _, want := range []string{
		fmt.Sprintf("build-state-000-full-%.7s", shaOne),
		fmt.Sprintf("build-state-001-incr-%.7s", shaTwo),
		fmt.Sprintf("build-state-002-incr-%.7s", shaThree),
	} {
		info, err := os.Stat(filepath.Join(archiveDir, want))
		require.NoError(t, err, want)
		assert.True(t, info.IsDir())
	}
}

func TestIncrementalRunLimitExcludesAction(t *testing.T) {
	h := newIncrHarness(t)
	repo := packageRepo()
	repo.Incremental = map[string]schema.IncrementalSpec{
		"5.0": {
			Commits: steps(shaOne, shaTwo),
			Limit:   map[string]string{"configuration": "debug"},
		},
	}
	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage, Configuration: "release"}

	result, err := h.verifier.Run(context.Background(), repo, action, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, schema.Pass, result.Kind)
	assert.Empty(t, h.runner.invocations)

	// A matching action runs the sequence.
	action.Configuration = "debug"
	_, err = h.verifier.Run(context.Background(), repo, action, io.Discard)
	require.NoError(t, err)
	assert.NotEmpty(t, h.runner.invocations)
}

func TestIncrementalRunStopsOnFailure(t *testing.T) {
	h := newIncrHarness(t)
	builds := 0
	h.runner.hook = func(inv Invocation) error {
		if inv.Args[1] == "build" {
			builds++
			if builds == 2 {
				return &ExecutionError{Args: inv.Args, Err: fmt.Errorf("exit status 1")}
			}
		}
		return nil
	}
	repo := incrementalRepo(steps(shaOne, shaTwo, shaThree)...)
	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage}

	result, err := h.verifier.Run(context.Background(), repo, action, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, schema.Fail, result.Kind)
	assert.Contains(t, result.Text, fmt.Sprintf("%.7s", shaTwo))
	assert.Equal(t, []string{shaOne, shaTwo}, h.client.checkouts, "the sequence must stop at the failing commit")
}

func TestIncrementalRunChecksExpectedStats(t *testing.T) {
	h := newIncrHarness(t)
	h.cfg.CheckStats = true
	repoPath := h.ws.RepoPath(packageRepo())
	statsDir := filepath.Join(repoPath, "swift-stats")
	h.runner.hook = func(inv Invocation) error {
		return os.WriteFile(filepath.Join(statsDir, "frontend.json"),
			[]byte(`{"NumLLVMBytesOutput": 500, "time.wall": 3.5}`), 0o644)
	}

	repo := incrementalRepo(
		schema.CommitStep{Commit: shaOne, Stats: map[string]int64{"NumLLVMBytesOutput": 100}},
		schema.CommitStep{Commit: shaTwo},
	)
	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage}

	result, err := h.verifier.Run(context.Background(), repo, action, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, schema.Fail, result.Kind)
	assert.Contains(t, result.Text, "stat NumLLVMBytesOutput expected at most 100, got 500")
	assert.Equal(t, []string{shaOne}, h.client.checkouts, "a blown stat budget must stop the sequence")
}

func TestIncrementalRunStatsBudgetsArePerCommit(t *testing.T) {
	h := newIncrHarness(t)
	h.cfg.CheckStats = true
	repoPath := h.ws.RepoPath(packageRepo())
	statsDir := filepath.Join(repoPath, "swift-stats")
	h.runner.hook = func(inv Invocation) error {
		return os.WriteFile(filepath.Join(statsDir, "frontend.json"),
			[]byte(`{"NumLLVMBytesOutput": 100}`), 0o644)
	}

	repo := incrementalRepo(
		schema.CommitStep{Commit: shaOne},
		schema.CommitStep{Commit: shaTwo, Stats: map[string]int64{"NumLLVMBytesOutput": 100}},
	)
	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage}

	result, err := h.verifier.Run(context.Background(), repo, action, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, schema.Pass, result.Kind,
		"each commit's budget covers its own build, not the sequence total")
	assert.Equal(t, []string{shaOne, shaTwo}, h.client.checkouts)
}

func TestIncrementalRunShowStats(t *testing.T) {
	h := newIncrHarness(t)
	h.cfg.ShowStats = regexp.MustCompile(`NumLLVM`)
	repoPath := h.ws.RepoPath(packageRepo())
	statsDir := filepath.Join(repoPath, "swift-stats")
	h.runner.hook = func(inv Invocation) error {
		return os.WriteFile(filepath.Join(statsDir, "frontend.json"),
			[]byte(`{"NumLLVMBytesOutput": 42, "NumSourceFiles": 7}`), 0o644)
	}

	repo := incrementalRepo(steps(shaOne)...)
	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage}

	var log bytes.Buffer
	result, err := h.verifier.Run(context.Background(), repo, action, &log)
	require.NoError(t, err)
	assert.Equal(t, schema.Pass, result.Kind)
	assert.Contains(t, log.String(), "accumulated stats for Example, 5.0")
	assert.Contains(t, log.String(), "NumLLVMBytesOutput")
	assert.NotContains(t, log.String(), "NumSourceFiles")
}

func TestIncrementalDivergenceWarnsByDefault(t *testing.T) {
	h := newIncrHarness(t)
	repo := packageRepo()
	archive := NewSnapshotArchive(h.ws.RepoPath(repo))
	require.NoError(t, archive.Reset())

	fullDir := archive.StatePath(1, schema.FullFlavor, shaTwo)
	incrDir := archive.StatePath(1, schema.IncrFlavor, shaTwo)
	require.NoError(t, os.MkdirAll(fullDir, 0o755))
	require.NoError(t, os.MkdirAll(incrDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fullDir, "main.o"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(incrDir, "main.o"), []byte("bbb"), 0o644))

	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage}
	var log bytes.Buffer
	result, stop, err := h.verifier.compareAgainstFull(archive, action, repo, "5.0", 1, shaTwo, &log)
	require.NoError(t, err)
	assert.False(t, stop)
	assert.Equal(t, schema.Result{}, result)
	assert.Contains(t, log.String(), fmt.Sprintf("build-state divergence at %.7s: content differs: main.o", shaTwo))

	h.cfg.EnforceDeterminism = true
	result, stop, err = h.verifier.compareAgainstFull(archive, action, repo, "5.0", 1, shaTwo, io.Discard)
	require.NoError(t, err)
	assert.True(t, stop)
	assert.Equal(t, schema.Fail, result.Kind)
	assert.Contains(t, result.Text, "incremental build state diverged from full build (1 differences)")
}

func TestBuildStatePath(t *testing.T) {
	pkg := &schema.ActionDescriptor{Action: schema.TestSwiftPackage}
	path, err := buildStatePath("/cache/Example", pkg)
	require.NoError(t, err)
	assert.Equal(t, "/cache/Example/.build", path)

	xcode := &schema.ActionDescriptor{
		Action:  schema.BuildXcodeProjectScheme,
		Project: "Sub/Example.xcodeproj",
		Scheme:  "Example",
	}
	path, err = buildStatePath("/cache/Example", xcode)
	require.NoError(t, err)
	assert.Equal(t, "/cache/Example/Sub/build", path)

	_, err = buildStatePath("/cache/Example", &schema.ActionDescriptor{Action: "Bogus"})
	assert.ErrorIs(t, err, ErrUnknownActionKind)
}

func TestLimitExcludes(t *testing.T) {
	action := &schema.ActionDescriptor{Action: schema.BuildSwiftPackage, Configuration: "release"}

	assert.False(t, limitExcludes(nil, action))
	assert.False(t, limitExcludes(map[string]string{"configuration": "release"}, action))
	assert.True(t, limitExcludes(map[string]string{"configuration": "debug"}, action))
	assert.True(t, limitExcludes(map[string]string{"scheme": "Example"}, action))
	assert.True(t, limitExcludes(
		map[string]string{"action": "BuildSwiftPackage", "configuration": "debug"}, action,
	), "every limit field must match")
}
