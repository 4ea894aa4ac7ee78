package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/corpusci/corpusci/internal/predicate"
	"github.com/corpusci/corpusci/schema"
	"github.com/fatih/color"
	"github.com/kballard/go-shellquote"
)

// Default values for configuration.
const (
	DefaultWorkers        = 8
	DefaultTimeoutSeconds = 3600
	DefaultSettleSeconds  = 2
	DefaultWorkspaceName  = "project_cache"
)

// Config holds the validated runtime configuration for a verification run.
type Config struct {
	ProjectsPath string // Absolute path to the JSON project index
	SwiftcPath   string // Absolute path to the compiler executable
	SwiftVersion string // Language-version flag value (empty = toolchain default)
	SwiftBranch  string // Toolchain branch configuration label

	RepoRules   *predicate.Rules // Repository include/exclude predicates
	ActionRules *predicate.Rules // Action include/exclude predicates

	SandboxProfileXcodebuild string
	SandboxProfilePackage    string
	AddedSwiftFlags          []string // Extra flags for each compiler invocation
	AddedXcodebuildFlags     []string // Extra xcodebuild arguments

	SkipClean          bool           // Skip clean steps; implies incremental mode throughout
	CheckStats         bool           // Compare accumulated stats to expectations
	ShowStats          *regexp.Regexp // Report accumulated stats matching pattern (nil = off)
	EnforceDeterminism bool           // Treat full-vs-incremental divergence as FAIL

	Workers       int           // Concurrent repository workers
	Verbose       bool          // Stream build output instead of per-action log files
	WorkspaceRoot string        // Root directory for repository checkouts and snapshots
	Timeout       time.Duration // Per-invocation build/test timeout
	SettleDelay   time.Duration // Pause around incremental dispatches

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string

	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	Platform   string
}

// ConfigRawInput holds the raw, unvalidated configuration from all sources
// (file, env, flags). Viper unmarshals into this struct.
type ConfigRawInput struct {
	Projects                 string   `mapstructure:"projects"`
	Swiftc                   string   `mapstructure:"swiftc"`
	SwiftVersion             string   `mapstructure:"swift-version"`
	SwiftBranch              string   `mapstructure:"swift-branch"`
	IncludeRepos             []string `mapstructure:"include-repos"`
	ExcludeRepos             []string `mapstructure:"exclude-repos"`
	IncludeActions           []string `mapstructure:"include-actions"`
	ExcludeActions           []string `mapstructure:"exclude-actions"`
	SandboxProfileXcodebuild string   `mapstructure:"sandbox-profile-xcodebuild"`
	SandboxProfilePackage    string   `mapstructure:"sandbox-profile-package"`
	AddSwiftFlags            string   `mapstructure:"add-swift-flags"`
	AddXcodebuildFlags       string   `mapstructure:"add-xcodebuild-flags"`
	SkipClean                bool     `mapstructure:"skip-clean"`
	CheckStats               bool     `mapstructure:"check-stats"`
	ShowStats                string   `mapstructure:"show-stats"`
	EnforceDeterminism       bool     `mapstructure:"enforce-determinism"`
	Workers                  int      `mapstructure:"workers"`
	Verbose                  bool     `mapstructure:"verbose"`
	ProjectCachePath         string   `mapstructure:"project-cache-path"`
	DefaultTimeout           int      `mapstructure:"default-timeout"`
	SettleDelay              int      `mapstructure:"settle-delay"`
	HistoryBackend           string   `mapstructure:"history-backend"`
	HistoryDBConnect         string   `mapstructure:"history-db-connect"`
	Output                   string   `mapstructure:"output"`
	OutputFile               string   `mapstructure:"output-file"`
	Width                    int      `mapstructure:"width"`
	Color                    string   `mapstructure:"color"`
}

// ProcessAndValidate converts raw input into a validated Config. When
// requireToolchain is false (index and history commands) the compiler path
// is not demanded.
func ProcessAndValidate(cfg *Config, in *ConfigRawInput, requireToolchain bool) error {
	if in.Projects == "" {
		return fmt.Errorf("a project index is required (--projects)")
	}
	projects, err := filepath.Abs(in.Projects)
	if err != nil {
		return fmt.Errorf("failed to resolve project index path: %w", err)
	}
	cfg.ProjectsPath = projects

	if requireToolchain {
		if in.Swiftc == "" {
			return fmt.Errorf("a compiler executable is required (--swiftc)")
		}
		swiftc, err := filepath.Abs(in.Swiftc)
		if err != nil {
			return fmt.Errorf("failed to resolve compiler path: %w", err)
		}
		cfg.SwiftcPath = swiftc
	}

	cfg.SwiftVersion = in.SwiftVersion
	cfg.SwiftBranch = in.SwiftBranch
	if cfg.SwiftBranch == "" {
		cfg.SwiftBranch = "main"
	}

	cfg.RepoRules, err = predicate.CompileRules(in.IncludeRepos, in.ExcludeRepos)
	if err != nil {
		return fmt.Errorf("repository selection: %w", err)
	}
	cfg.ActionRules, err = predicate.CompileRules(in.IncludeActions, in.ExcludeActions)
	if err != nil {
		return fmt.Errorf("action selection: %w", err)
	}

	if in.SandboxProfileXcodebuild != "" {
		cfg.SandboxProfileXcodebuild, err = filepath.Abs(in.SandboxProfileXcodebuild)
		if err != nil {
			return fmt.Errorf("failed to resolve xcodebuild sandbox profile: %w", err)
		}
	}
	if in.SandboxProfilePackage != "" {
		cfg.SandboxProfilePackage, err = filepath.Abs(in.SandboxProfilePackage)
		if err != nil {
			return fmt.Errorf("failed to resolve package sandbox profile: %w", err)
		}
	}

	if in.AddSwiftFlags != "" {
		cfg.AddedSwiftFlags, err = shellquote.Split(in.AddSwiftFlags)
		if err != nil {
			return fmt.Errorf("failed to split --add-swift-flags: %w", err)
		}
	}
	if in.AddXcodebuildFlags != "" {
		cfg.AddedXcodebuildFlags, err = shellquote.Split(in.AddXcodebuildFlags)
		if err != nil {
			return fmt.Errorf("failed to split --add-xcodebuild-flags: %w", err)
		}
	}

	cfg.SkipClean = in.SkipClean
	cfg.CheckStats = in.CheckStats
	cfg.EnforceDeterminism = in.EnforceDeterminism
	if in.ShowStats != "" {
		cfg.ShowStats, err = regexp.Compile(in.ShowStats)
		if err != nil {
			return fmt.Errorf("invalid --show-stats pattern: %w", err)
		}
	}

	cfg.Workers = in.Workers
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	cfg.Verbose = in.Verbose

	cfg.WorkspaceRoot = in.ProjectCachePath
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = filepath.Join(".", DefaultWorkspaceName)
	}
	cfg.WorkspaceRoot, err = filepath.Abs(cfg.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	timeout := in.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds
	}
	cfg.Timeout = time.Duration(timeout) * time.Second

	settle := in.SettleDelay
	if settle < 0 {
		settle = DefaultSettleSeconds
	}
	cfg.SettleDelay = time.Duration(settle) * time.Second

	backend := schema.DatabaseBackend(in.HistoryBackend)
	if in.HistoryBackend == "" {
		backend = schema.NoneBackend
	}
	if err := ValidateDatabaseConnectionString(backend, in.HistoryDBConnect); err != nil {
		return err
	}
	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = in.HistoryDBConnect

	output := schema.OutputMode(strings.ToLower(in.Output))
	if in.Output == "" {
		output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[output]; !ok {
		return fmt.Errorf("invalid output mode %q. Must be text, csv, or json", in.Output)
	}
	cfg.Output = output
	cfg.OutputFile = in.OutputFile
	cfg.Width = in.Width
	cfg.Platform = CurrentPlatform()

	color.NoColor = color.NoColor || !parseColorChoice(in.Color)
	return nil
}

// ValidateDatabaseConnectionString performs backend-specific validation of
// the history connection string.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	if _, ok := schema.ValidHistoryBackends[backend]; !ok {
		return fmt.Errorf("invalid history backend %q. Must be sqlite, mysql, postgresql, or none", backend)
	}
	switch backend {
	case schema.MySQLBackend, schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("%s history backend requires --history-db-connect", backend)
		}
	}
	return nil
}

// GetHistoryDBFilePath returns the default SQLite database location.
func GetHistoryDBFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".corpusci-history.db"
	}
	return filepath.Join(home, ".corpusci-history.db")
}

// parseColorChoice interprets the yes/no-style color flag. Anything
// unrecognized keeps color enabled.
func parseColorChoice(choice string) bool {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "no", "false", "0", "off":
		return false
	}
	return true
}
