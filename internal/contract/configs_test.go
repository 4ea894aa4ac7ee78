package contract

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/corpusci/corpusci/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		Projects: "projects.json",
		Swiftc:   "/toolchain/usr/bin/swiftc",
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validInput(), true))

	assert.True(t, filepath.IsAbs(cfg.ProjectsPath))
	assert.True(t, filepath.IsAbs(cfg.SwiftcPath))
	assert.Equal(t, "main", cfg.SwiftBranch)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, time.Duration(DefaultTimeoutSeconds)*time.Second, cfg.Timeout)
	assert.True(t, filepath.IsAbs(cfg.WorkspaceRoot))
	assert.Equal(t, schema.TextOut, cfg.Output)
	assert.Equal(t, schema.NoneBackend, cfg.HistoryBackend)
	assert.NotEmpty(t, cfg.Platform)
}

func TestProcessAndValidateMissingProjects(t *testing.T) {
	in := validInput()
	in.Projects = ""
	err := ProcessAndValidate(&Config{}, in, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--projects")
}

func TestProcessAndValidateToolchainRequirement(t *testing.T) {
	in := validInput()
	in.Swiftc = ""

	err := ProcessAndValidate(&Config{}, in, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--swiftc")

	// Index commands do not need a compiler.
	assert.NoError(t, ProcessAndValidate(&Config{}, in, false))
}

func TestProcessAndValidateFlagSplitting(t *testing.T) {
	in := validInput()
	in.AddSwiftFlags = `-DDEBUG -Xfrontend "-debug-time-function-bodies"`
	in.AddXcodebuildFlags = `-quiet`

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, in, true))
	assert.Equal(t, []string{"-DDEBUG", "-Xfrontend", "-debug-time-function-bodies"}, cfg.AddedSwiftFlags)
	assert.Equal(t, []string{"-quiet"}, cfg.AddedXcodebuildFlags)
}

func TestProcessAndValidateMalformedFlagString(t *testing.T) {
	in := validInput()
	in.AddSwiftFlags = `"unbalanced`
	err := ProcessAndValidate(&Config{}, in, true)
	assert.Error(t, err)
}

func TestProcessAndValidatePredicates(t *testing.T) {
	in := validInput()
	in.IncludeRepos = []string{`path == 'Alamofire'`}
	in.ExcludeActions = []string{`action == 'TestSwiftPackage'`}

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, in, true))
	assert.True(t, cfg.RepoRules.Included(map[string]string{"path": "Alamofire"}))
	assert.False(t, cfg.ActionRules.Included(map[string]string{"action": "TestSwiftPackage"}))

	in.IncludeRepos = []string{`path ==`}
	err := ProcessAndValidate(&Config{}, in, true)
	assert.Error(t, err)
}

func TestProcessAndValidateShowStats(t *testing.T) {
	in := validInput()
	in.ShowStats = `NumSourceFiles.*`
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, in, true))
	require.NotNil(t, cfg.ShowStats)
	assert.True(t, cfg.ShowStats.MatchString("NumSourceFilesParsed"))

	in.ShowStats = `([`
	err := ProcessAndValidate(&Config{}, in, true)
	assert.Error(t, err)
}

func TestProcessAndValidateTimeouts(t *testing.T) {
	in := validInput()
	in.DefaultTimeout = 120
	in.SettleDelay = 0

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, in, true))
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, time.Duration(0), cfg.SettleDelay)
}

func TestProcessAndValidateOutputModes(t *testing.T) {
	in := validInput()
	in.Output = "JSON"
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, in, true))
	assert.Equal(t, schema.JSONOut, cfg.Output)

	in.Output = "yaml"
	err := ProcessAndValidate(&Config{}, in, true)
	assert.Error(t, err)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.NoneBackend, ""))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, ""))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "user:pass@tcp(localhost:3306)/corpusci"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.DatabaseBackend("oracle"), ""))
}

func TestCurrentPlatform(t *testing.T) {
	p := CurrentPlatform()
	assert.Contains(t, []string{"Darwin", "Linux", "Windows"}, p)
}
