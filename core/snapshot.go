package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corpusci/corpusci/schema"
)

// SnapshotArchive stores build-state snapshots for one repository's
// incremental sequence, next to the working tree. Snapshots let later
// commits of the sequence be compared against a from-scratch build of the
// same commit.
type SnapshotArchive struct {
	Dir string
}

// NewSnapshotArchive returns an archive rooted next to the repository
// checkout.
func NewSnapshotArchive(repoPath string) *SnapshotArchive {
	return &SnapshotArchive{Dir: repoPath + "-incr"}
}

// Reset clears the archive directory.
func (a *SnapshotArchive) Reset() error {
	if err := os.RemoveAll(a.Dir); err != nil {
		return err
	}
	return os.MkdirAll(a.Dir, 0o755)
}

// StatePath returns the snapshot directory for one sequence position.
func (a *SnapshotArchive) StatePath(seq int, flavor schema.SnapshotFlavor, sha string) string {
	return filepath.Join(a.Dir, fmt.Sprintf("build-state-%03d-%s-%.7s", seq, flavor, sha))
}

// StatsPath returns the stats snapshot directory for one sequence position.
func (a *SnapshotArchive) StatsPath(seq int, flavor schema.SnapshotFlavor, sha string) string {
	return filepath.Join(a.Dir, fmt.Sprintf("build-stats-%03d-%s-%.7s", seq, flavor, sha))
}

// Has reports whether a state snapshot exists for the position.
func (a *SnapshotArchive) Has(seq int, flavor schema.SnapshotFlavor, sha string) bool {
	info, err := os.Stat(a.StatePath(seq, flavor, sha))
	return err == nil && info.IsDir()
}

// SaveState copies the build-state tree at src into the archive.
func (a *SnapshotArchive) SaveState(seq int, flavor schema.SnapshotFlavor, sha, src string) error {
	return a.save(a.StatePath(seq, flavor, sha), src)
}

// SaveStats copies the stats directory at src into the archive.
func (a *SnapshotArchive) SaveStats(seq int, flavor schema.SnapshotFlavor, sha, src string) error {
	return a.save(a.StatsPath(seq, flavor, sha), src)
}

func (a *SnapshotArchive) save(dst, src string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return copyTree(src, dst)
}

// copyTree duplicates a directory tree, preserving symlinks as symlinks so
// that snapshots mirror the build system's on-disk layout exactly.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	default:
		return copyFile(src, dst, info.Mode().Perm())
	}
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// IgnoredSnapshotNames returns the file and directory basenames excluded
// from full-vs-incremental comparison for an action family. These hold
// caches, logs and bookkeeping the build system never reproduces exactly.
func IgnoredSnapshotNames(kind schema.ActionKind) []string {
	if kind.IsXcodeAction() {
		return []string{
			"ModuleCache",
			"Logs",
			"info.plist",
			"dgph", "dgph~",
			"master.swiftdeps", "master.swiftdeps~",
		}
	}
	return []string{
		"ModuleCache",
		"build.db",
		"master.swiftdeps", "master.swiftdeps~",
	}
}

// CompareTrees diffs two build-state snapshots and returns a description of
// every meaningful divergence. Names in ignored are skipped entirely.
// Diagnostics files and editor backups may legitimately be absent on one
// side, and driver dependency records legitimately differ in content.
func CompareTrees(fullDir, incrDir string, ignored []string) ([]string, error) {
	skip := make(map[string]struct{}, len(ignored))
	for _, name := range ignored {
		skip[name] = struct{}{}
	}
	var diffs []string
	err := compareDirs(fullDir, incrDir, "", skip, &diffs)
	return diffs, err
}

func compareDirs(fullDir, incrDir, rel string, skip map[string]struct{}, diffs *[]string) error {
	names, err := unionNames(filepath.Join(fullDir, rel), filepath.Join(incrDir, rel))
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := skip[name]; ok {
			continue
		}
		childRel := filepath.Join(rel, name)
		fullPath := filepath.Join(fullDir, childRel)
		incrPath := filepath.Join(incrDir, childRel)
		fullInfo, fullErr := os.Lstat(fullPath)
		incrInfo, incrErr := os.Lstat(incrPath)

		switch {
		case fullErr != nil && incrErr != nil:
			continue
		case fullErr != nil:
			if !missingFileOK(name) {
				*diffs = append(*diffs, fmt.Sprintf("missing in full build: %s", childRel))
			}
		case incrErr != nil:
			if !missingFileOK(name) {
				*diffs = append(*diffs, fmt.Sprintf("missing in incremental build: %s", childRel))
			}
		case fullInfo.IsDir() != incrInfo.IsDir():
			*diffs = append(*diffs, fmt.Sprintf("kind mismatch: %s", childRel))
		case fullInfo.IsDir():
			if err := compareDirs(fullDir, incrDir, childRel, skip, diffs); err != nil {
				return err
			}
		default:
			same, err := filesEqual(fullPath, incrPath, fullInfo, incrInfo)
			if err != nil {
				return err
			}
			if !same && !contentDiffOK(name) {
				*diffs = append(*diffs, fmt.Sprintf("content differs: %s", childRel))
			}
		}
	}
	return nil
}

// missingFileOK reports whether a file may exist on only one side. Serialized
// diagnostics and editor backups are emitted non-deterministically.
func missingFileOK(name string) bool {
	return strings.HasSuffix(name, ".dia") || strings.HasSuffix(name, "~")
}

// contentDiffOK reports whether differing content is acceptable. Driver
// dependency records embed absolute paths and orderings that vary run to run.
func contentDiffOK(name string) bool {
	return strings.HasSuffix(name, "-master.swiftdeps") || name == "dependency_info.dat"
}

func filesEqual(aPath, bPath string, aInfo, bInfo os.FileInfo) (bool, error) {
	if aInfo.Mode()&os.ModeSymlink != 0 || bInfo.Mode()&os.ModeSymlink != 0 {
		aTarget, aErr := os.Readlink(aPath)
		bTarget, bErr := os.Readlink(bPath)
		if aErr != nil || bErr != nil {
			return false, nil
		}
		return aTarget == bTarget, nil
	}
	if aInfo.Size() != bInfo.Size() {
		return false, nil
	}
	aData, err := os.ReadFile(aPath)
	if err != nil {
		return false, err
	}
	bData, err := os.ReadFile(bPath)
	if err != nil {
		return false, err
	}
	return bytes.Equal(aData, bData), nil
}

func unionNames(aDir, bDir string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, dir := range []string{aDir, bDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			seen[entry.Name()] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
