package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *schema.ResultList {
	list := schema.NewResultList()
	list.Add(schema.Result{Kind: schema.Pass, Text: "PASS: Alamofire, 5.0, Swift Package"})
	list.Add(schema.Result{Kind: schema.Fail, Text: "FAIL: Kingfisher, 5.0, Swift Package: exit status 1"})
	list.Add(schema.Result{Kind: schema.XFail, Text: "XFAIL: SR-1234, Charts, 4.2, Charts"})
	return list
}

func TestWriteRunText(t *testing.T) {
	var buf bytes.Buffer
	err := writeRunText(&buf, sampleResults(), 3, 90*time.Second+300*time.Millisecond)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Result: FAIL")
	assert.Contains(t, out, "Failures:")
	assert.Contains(t, out, "Elapsed: 1m30s")
}

func TestWriteRunJSON(t *testing.T) {
	var buf bytes.Buffer
	err := writeRunJSON(&buf, sampleResults(), 3, 2*time.Second)
	require.NoError(t, err)

	var payload struct {
		Result         string   `json:"result"`
		Passed         int      `json:"passed"`
		Failed         int      `json:"failed"`
		XFailed        int      `json:"xfailed"`
		Total          int      `json:"total"`
		Repositories   int      `json:"repositories"`
		ElapsedSeconds float64  `json:"elapsed_seconds"`
		Failures       []string `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, "FAIL", payload.Result)
	assert.Equal(t, 1, payload.Passed)
	assert.Equal(t, 1, payload.Failed)
	assert.Equal(t, 1, payload.XFailed)
	assert.Equal(t, 3, payload.Total)
	assert.Equal(t, 3, payload.Repositories)
	assert.Equal(t, 2.0, payload.ElapsedSeconds)
	require.Len(t, payload.Failures, 1)
	assert.Contains(t, payload.Failures[0], "Kingfisher")
}

func TestWriteRunCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRunCSV(&buf, sampleResults()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus one row per result")
	assert.Equal(t, []string{"kind", "text"}, rows[0])

	kinds := []string{rows[1][0], rows[2][0], rows[3][0]}
	assert.ElementsMatch(t, []string{"PASS", "FAIL", "XFAIL"}, kinds)
}

func indexRepos() []schema.RepositoryDescriptor {
	return []schema.RepositoryDescriptor{
		{
			Path:       "Alamofire",
			Repository: schema.GitRepository,
			URL:        "https://github.com/Alamofire/Alamofire.git",
			Branch:     "master",
			Platforms:  []string{"Darwin", "Linux"},
			Compatibility: map[string]schema.CompatibilityPin{
				"5.0": {Commit: "f2db7be5"},
			},
			Actions: []schema.ActionDescriptor{
				{Action: schema.BuildSwiftPackage},
				{Action: schema.TestSwiftPackage},
			},
		},
	}
}

func TestWriteIndexCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeIndexCSV(&buf, indexRepos()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"path", "branch", "platforms", "pins", "sequences", "actions", "url"}, rows[0])
	assert.Equal(t, []string{
		"Alamofire", "master", "Darwin,Linux", "1", "0", "2",
		"https://github.com/Alamofire/Alamofire.git",
	}, rows[1])
}

func TestWriteIndexTable(t *testing.T) {
	var buf bytes.Buffer
	cfg := &contract.Config{Width: 120}
	require.NoError(t, writeIndexTable(&buf, indexRepos(), cfg))

	out := buf.String()
	assert.Contains(t, out, "Alamofire")
	assert.Contains(t, out, "master")
	assert.Contains(t, strings.ToUpper(out), "PATH")
}

func TestWriteHistoryStatusText(t *testing.T) {
	last := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	oldest := last.Add(-48 * time.Hour)
	status := schema.HistoryStatus{
		Backend:      schema.SQLiteBackend,
		Connected:    true,
		TotalRuns:    4,
		TotalResults: 120,
		LastRun:      &last,
		OldestRun:    &oldest,
	}

	var buf bytes.Buffer
	require.NoError(t, writeHistoryStatusText(&buf, status))
	out := buf.String()
	assert.Contains(t, out, "Backend:       sqlite")
	assert.Contains(t, out, "Total runs:    4")
	assert.Contains(t, out, "Last run:      2025-06-01T13:00:00Z")
}

func TestWriteHistoryStatusTextNeverRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistoryStatusText(&buf, schema.HistoryStatus{Backend: schema.NoneBackend}))
	assert.Contains(t, buf.String(), "Last run:      never")
}

func TestWriteHistoryStatusCSV(t *testing.T) {
	var buf bytes.Buffer
	status := schema.HistoryStatus{Backend: schema.SQLiteBackend, Connected: true, TotalRuns: 2}
	require.NoError(t, writeHistoryStatusCSV(&buf, status))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"sqlite", "true", "2", "0", "", ""}, rows[1])
}

func TestTruncateMiddle(t *testing.T) {
	assert.Equal(t, "short", truncateMiddle("short", 20))
	assert.Equal(t, "abcdefgh", truncateMiddle("abcdefgh", 8))
	got := truncateMiddle("https://github.com/Alamofire/Alamofire.git", 20)
	assert.Len(t, got, 20)
	assert.Contains(t, got, "...")
	assert.True(t, strings.HasPrefix(got, "https://"))
	assert.True(t, strings.HasSuffix(got, ".git"))
}

func TestGetTerminalWidthOverride(t *testing.T) {
	assert.Equal(t, 132, getTerminalWidth(&contract.Config{Width: 132}))
}
