package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corpusci/corpusci/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestSnapshotArchivePaths(t *testing.T) {
	a := NewSnapshotArchive("/cache/Example")
	assert.Equal(t, "/cache/Example-incr", a.Dir)
	assert.Equal(t,
		"/cache/Example-incr/build-state-002-incr-1111111",
		a.StatePath(2, schema.IncrFlavor, shaOne))
	assert.Equal(t,
		"/cache/Example-incr/build-stats-000-full-2222222",
		a.StatsPath(0, schema.FullFlavor, shaTwo))
}

func TestSnapshotArchiveSaveAndHas(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, ".build")
	writeTree(t, src, map[string]string{
		"debug/main.o":      "object",
		"debug/sub/other.o": "object2",
	})

	a := NewSnapshotArchive(filepath.Join(root, "Example"))
	require.NoError(t, a.Reset())
	assert.False(t, a.Has(0, schema.FullFlavor, shaOne))

	require.NoError(t, a.SaveState(0, schema.FullFlavor, shaOne, src))
	assert.True(t, a.Has(0, schema.FullFlavor, shaOne))

	data, err := os.ReadFile(filepath.Join(a.StatePath(0, schema.FullFlavor, shaOne), "debug", "sub", "other.o"))
	require.NoError(t, err)
	assert.Equal(t, "object2", string(data))
}

func TestSnapshotArchiveSaveMissingSourceIsNoop(t *testing.T) {
	root := t.TempDir()
	a := NewSnapshotArchive(filepath.Join(root, "Example"))
	require.NoError(t, a.Reset())
	require.NoError(t, a.SaveState(0, schema.FullFlavor, shaOne, filepath.Join(root, "absent")))
	assert.False(t, a.Has(0, schema.FullFlavor, shaOne))
}

func TestCopyTreePreservesSymlinks(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeTree(t, src, map[string]string{"real.txt": "hello"})
	require.NoError(t, os.Symlink("real.txt", filepath.Join(src, "link.txt")))

	dst := filepath.Join(root, "dst")
	require.NoError(t, copyTree(src, dst))

	target, err := os.Readlink(filepath.Join(dst, "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, "real.txt", target)
}

func TestIgnoredSnapshotNames(t *testing.T) {
	pkg := IgnoredSnapshotNames(schema.BuildSwiftPackage)
	assert.Contains(t, pkg, "ModuleCache")
	assert.Contains(t, pkg, "build.db")
	assert.NotContains(t, pkg, "Logs")

	xcode := IgnoredSnapshotNames(schema.BuildXcodeWorkspaceScheme)
	assert.Contains(t, xcode, "ModuleCache")
	assert.Contains(t, xcode, "Logs")
	assert.Contains(t, xcode, "info.plist")
	assert.Contains(t, xcode, "dgph")
}

func TestCompareTreesIdentical(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"debug/main.o":     "object",
		"debug/main.d":     "deps",
		"release/Example":  "binary",
		"release/extra.oa": "archive",
	}
	full := filepath.Join(root, "full")
	incr := filepath.Join(root, "incr")
	writeTree(t, full, files)
	writeTree(t, incr, files)

	diffs, err := CompareTrees(full, incr, nil)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestCompareTreesReportsDivergence(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "full")
	incr := filepath.Join(root, "incr")
	writeTree(t, full, map[string]string{
		"debug/main.o":  "aaa",
		"debug/extra.o": "only in full",
	})
	writeTree(t, incr, map[string]string{
		"debug/main.o": "bbb",
	})

	diffs, err := CompareTrees(full, incr, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"content differs: debug/main.o",
		"missing in incremental build: debug/extra.o",
	}, diffs)
}

func TestCompareTreesSkipsIgnoredNames(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "full")
	incr := filepath.Join(root, "incr")
	writeTree(t, full, map[string]string{
		"ModuleCache/1ABCDEF/Foundation.pcm": "cache-a",
		"build.db":                           "db-a",
		"debug/main.o":                       "same",
	})
	writeTree(t, incr, map[string]string{
		"ModuleCache/2FEDCBA/Foundation.pcm": "cache-b",
		"build.db":                           "db-b",
		"debug/main.o":                       "same",
	})

	diffs, err := CompareTrees(full, incr, IgnoredSnapshotNames(schema.BuildSwiftPackage))
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestCompareTreesToleratesNondeterministicFiles(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "full")
	incr := filepath.Join(root, "incr")
	writeTree(t, full, map[string]string{
		"debug/main.dia":                 "diagnostics",
		"debug/Example-master.swiftdeps": "graph-a",
		"debug/dependency_info.dat":      "info-a",
	})
	writeTree(t, incr, map[string]string{
		"debug/Example-master.swiftdeps": "graph-b",
		"debug/dependency_info.dat":      "info-b",
		"debug/backup.o~":                "editor backup",
	})

	diffs, err := CompareTrees(full, incr, nil)
	require.NoError(t, err)
	assert.Empty(t, diffs,
		".dia files and backups may be one-sided, dependency records may differ")
}

func TestCompareTreesKindMismatch(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "full")
	incr := filepath.Join(root, "incr")
	writeTree(t, full, map[string]string{"debug/thing/file": "x"})
	writeTree(t, incr, map[string]string{"debug/other": "y"})
	require.NoError(t, os.WriteFile(filepath.Join(incr, "debug", "thing"), []byte("a file now"), 0o644))

	diffs, err := CompareTrees(full, incr, nil)
	require.NoError(t, err)
	assert.Contains(t, diffs, "kind mismatch: debug/thing")
}
