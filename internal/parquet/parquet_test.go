package parquet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/corpusci/corpusci/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertRunRecords(t *testing.T) {
	end := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	records := []schema.RunRecord{
		{
			RunID:        1,
			StartTime:    end.Add(-time.Hour),
			EndTime:      &end,
			TotalActions: 12,
			ConfigParams: `{"mode":"compatibility"}`,
		},
		{
			RunID:     2,
			StartTime: end,
		},
	}

	runs := ConvertRunRecords(records)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(1), runs[0].RunID)
	assert.Equal(t, int32(12), runs[0].TotalActions)
	require.NotNil(t, runs[0].ConfigParams)
	assert.Equal(t, `{"mode":"compatibility"}`, *runs[0].ConfigParams)
	assert.Nil(t, runs[1].EndTime, "an unfinished run keeps a null end time")
	assert.Nil(t, runs[1].ConfigParams)
}

func TestWriteRunsParquetRoundTrip(t *testing.T) {
	end := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	params := `{"workers":4}`
	runs := []Run{
		{RunID: 1, StartTime: end.Add(-time.Hour), EndTime: &end, TotalActions: 3, ConfigParams: &params},
		{RunID: 2, StartTime: end},
	}

	path := filepath.Join(t.TempDir(), "runs.parquet")
	require.NoError(t, WriteRunsParquet(runs, path))

	got, err := parquet.ReadFile[Run](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].RunID)
	assert.Equal(t, int32(3), got[0].TotalActions)
	require.NotNil(t, got[0].ConfigParams)
	assert.Equal(t, params, *got[0].ConfigParams)
	assert.Nil(t, got[1].EndTime)
}

func TestWriteActionResultsParquet(t *testing.T) {
	records := ConvertActionRecords([]schema.ActionRecord{
		{
			ID:        1,
			RunID:     1,
			RepoPath:  "Alamofire",
			Action:    "BuildSwiftPackage",
			Kind:      "PASS",
			Text:      "PASS: Alamofire, 5.0, Swift Package",
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	})

	path := filepath.Join(t.TempDir(), "results.parquet")
	require.NoError(t, WriteActionResultsParquet(records, path))

	got, err := parquet.ReadFile[ActionResult](path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alamofire", got[0].RepoPath)
	assert.Equal(t, "PASS", got[0].Kind)
}

func TestWriteParquetBadPath(t *testing.T) {
	err := WriteRunsParquet(nil, filepath.Join(t.TempDir(), "missing", "runs.parquet"))
	assert.Error(t, err)
}
