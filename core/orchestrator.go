package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/scm"
	"github.com/corpusci/corpusci/schema"
)

// RunMode selects which verification family the orchestrator executes.
type RunMode int

// The two run modes.
const (
	CompatMode RunMode = iota
	IncrementalMode
)

// actionRunner is what both runner families look like to the orchestrator.
type actionRunner interface {
	Run(ctx context.Context, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, logw io.Writer) (schema.Result, error)
}

// Orchestrator fans repositories out over a fixed worker pool, applies the
// selection predicates, wires per-action logging and records results in
// the history store.
type Orchestrator struct {
	cfg   *contract.Config
	ws    *scm.Workspace
	disp  *Dispatcher
	store contract.HistoryStore // nil disables history recording
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(cfg *contract.Config, ws *scm.Workspace, disp *Dispatcher, store contract.HistoryStore) *Orchestrator {
	return &Orchestrator{cfg: cfg, ws: ws, disp: disp, store: store}
}

// Run verifies every selected repository of the index and returns the
// merged results along with the count of repositories processed.
func (o *Orchestrator) Run(ctx context.Context, index []schema.RepositoryDescriptor, mode RunMode) (*schema.ResultList, int) {
	selected := o.selectRepositories(index)

	runID := o.beginHistory(mode)

	repoCh := make(chan *schema.RepositoryDescriptor)
	listCh := make(chan *schema.ResultList)

	var wg sync.WaitGroup
	for range o.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for repo := range repoCh {
				listCh <- o.runRepository(ctx, repo, mode, runID)
			}
		}()
	}
	go func() {
		defer close(repoCh)
		for i := range selected {
			select {
			case repoCh <- &selected[i]:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(listCh)
	}()

	merged := schema.NewResultList()
	for list := range listCh {
		merged = merged.Merge(list)
	}

	o.endHistory(runID, merged.Len())
	return merged, len(selected)
}

// selectRepositories applies the platform allow-list and the repository
// predicates.
func (o *Orchestrator) selectRepositories(index []schema.RepositoryDescriptor) []schema.RepositoryDescriptor {
	selected := make([]schema.RepositoryDescriptor, 0, len(index))
	for _, repo := range index {
		if len(repo.Platforms) > 0 && !slices.Contains(repo.Platforms, o.cfg.Platform) {
			continue
		}
		if !o.cfg.RepoRules.Included(repo.Fields()) {
			continue
		}
		selected = append(selected, repo)
	}
	return selected
}

// runRepository runs every selected action of one repository sequentially.
// A configuration error aborts the remaining actions of this repository
// but never the run.
func (o *Orchestrator) runRepository(ctx context.Context, repo *schema.RepositoryDescriptor, mode RunMode, runID int64) *schema.ResultList {
	var runner actionRunner
	if mode == IncrementalMode {
		runner = NewIncrementalVerifier(o.cfg, o.ws, o.disp)
	} else {
		runner = NewCompatRunner(o.cfg, o.ws, o.disp)
	}

	list := schema.NewResultList()
	for i := range repo.Actions {
		action := &repo.Actions[i]
		if !o.cfg.ActionRules.Included(action.Fields()) {
			continue
		}

		logw, logPath := o.openActionLog(repo, action)
		result, err := runner.Run(ctx, repo, action, logw)
		if err != nil {
			result = schema.Result{
				Kind: schema.Fail,
				Text: fmt.Sprintf("FAIL: %s, %s: %v", repo.Path, action.Action, err),
			}
			_, _ = fmt.Fprintln(logw, result.Text)
			list.Add(result)
			o.recordResult(runID, repo, action, result)
			o.closeActionLog(logw, logPath, result.Kind)
			break
		}
		list.Add(result)
		o.recordResult(runID, repo, action, result)
		o.closeActionLog(logw, logPath, result.Kind)
	}
	return list
}

var logNameSanitizer = regexp.MustCompile(`[^\w-]+`)

// openActionLog returns the writer build output streams to. In verbose
// mode that is stdout; otherwise a per-action log file in the workspace
// root, renamed with the result label once the action finishes.
func (o *Orchestrator) openActionLog(repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor) (io.Writer, string) {
	if o.cfg.Verbose {
		return os.Stdout, ""
	}
	parts := []string{string(action.Action), repo.Path}
	if st := action.SchemeOrTarget(); st != "" {
		parts = append(parts, st)
	}
	if action.Destination != "" {
		parts = append(parts, action.Destination)
	}
	name := logNameSanitizer.ReplaceAllString(strings.Join(parts, "_"), "-")
	path := filepath.Join(o.cfg.WorkspaceRoot, name+".log")

	if err := os.MkdirAll(o.cfg.WorkspaceRoot, 0o755); err != nil {
		contract.LogWarn("failed to create workspace root for logs", err)
		return io.Discard, ""
	}
	f, err := os.Create(path)
	if err != nil {
		contract.LogWarn("failed to create action log", err)
		return io.Discard, ""
	}
	return f, path
}

// closeActionLog finalizes a per-action log file, prefixing its name with
// the result label so failures are visible from a directory listing.
func (o *Orchestrator) closeActionLog(logw io.Writer, logPath string, kind schema.ResultKind) {
	f, ok := logw.(*os.File)
	if !ok || logPath == "" {
		return
	}
	if err := f.Close(); err != nil {
		contract.LogWarn("failed to close action log", err)
	}
	renamed := filepath.Join(filepath.Dir(logPath), kind.String()+"_"+filepath.Base(logPath))
	if err := os.Rename(logPath, renamed); err != nil {
		contract.LogWarn("failed to rename action log", err)
	}
}

// beginHistory opens a run row when history recording is enabled.
func (o *Orchestrator) beginHistory(mode RunMode) int64 {
	if o.store == nil {
		return 0
	}
	modeName := "compatibility"
	if mode == IncrementalMode {
		modeName = "incremental"
	}
	params := map[string]any{
		"mode":     modeName,
		"branch":   o.cfg.SwiftBranch,
		"platform": o.cfg.Platform,
		"workers":  o.cfg.Workers,
	}
	if o.cfg.SwiftVersion != "" {
		params["swift-version"] = o.cfg.SwiftVersion
	}
	runID, err := o.store.BeginRun(time.Now(), params)
	if err != nil {
		contract.LogWarn("failed to record run start", err)
		return 0
	}
	return runID
}

// endHistory closes the run row.
func (o *Orchestrator) endHistory(runID int64, totalActions int) {
	if o.store == nil || runID == 0 {
		return
	}
	if err := o.store.EndRun(runID, time.Now(), totalActions); err != nil {
		contract.LogWarn("failed to record run end", err)
	}
}

// recordResult stores one action outcome.
func (o *Orchestrator) recordResult(runID int64, repo *schema.RepositoryDescriptor, action *schema.ActionDescriptor, result schema.Result) {
	if o.store == nil || runID == 0 {
		return
	}
	if err := o.store.RecordActionResult(runID, repo.Path, string(action.Action), result); err != nil {
		contract.LogWarn("failed to record action result", err)
	}
}
