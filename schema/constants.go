package schema

// Custom string types for type safety.
type (
	// RepositoryKind tags the source-control flavor of an indexed repository.
	RepositoryKind string

	// ActionKind identifies one declarative build-or-test operation.
	ActionKind string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for run history.
	DatabaseBackend string

	// SnapshotFlavor distinguishes full builds from incremental builds
	// when saving build-state snapshots.
	SnapshotFlavor string
)

// All repository kinds supported. Git is currently the only one.
const (
	GitRepository RepositoryKind = "Git"
)

// All action kinds supported.
const (
	BuildSwiftPackage ActionKind = "BuildSwiftPackage"
	TestSwiftPackage  ActionKind = "TestSwiftPackage"

	BuildXcodeWorkspaceScheme ActionKind = "BuildXcodeWorkspaceScheme"
	BuildXcodeProjectScheme   ActionKind = "BuildXcodeProjectScheme"
	BuildXcodeWorkspaceTarget ActionKind = "BuildXcodeWorkspaceTarget"
	BuildXcodeProjectTarget   ActionKind = "BuildXcodeProjectTarget"

	TestXcodeWorkspaceScheme ActionKind = "TestXcodeWorkspaceScheme"
	TestXcodeProjectScheme   ActionKind = "TestXcodeProjectScheme"
	TestXcodeWorkspaceTarget ActionKind = "TestXcodeWorkspaceTarget"
	TestXcodeProjectTarget   ActionKind = "TestXcodeProjectTarget"
)

// All output modes supported.
const (
	TextOut OutputMode = "text" // default
	CSVOut  OutputMode = "csv"
	JSONOut OutputMode = "json"
)

// All history backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Snapshot flavors.
const (
	FullFlavor SnapshotFlavor = "full"
	IncrFlavor SnapshotFlavor = "incr"
)

// ValidActionKinds lists all valid action kinds.
var ValidActionKinds = map[ActionKind]struct{}{
	BuildSwiftPackage:         {},
	TestSwiftPackage:          {},
	BuildXcodeWorkspaceScheme: {},
	BuildXcodeProjectScheme:   {},
	BuildXcodeWorkspaceTarget: {},
	BuildXcodeProjectTarget:   {},
	TestXcodeWorkspaceScheme:  {},
	TestXcodeProjectScheme:    {},
	TestXcodeWorkspaceTarget:  {},
	TestXcodeProjectTarget:    {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut: {},
	CSVOut:  {},
	JSONOut: {},
}

// ValidHistoryBackends lists all valid history backends.
var ValidHistoryBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// IsXcodeAction reports whether the kind drives xcodebuild rather than
// the package manager.
func (k ActionKind) IsXcodeAction() bool {
	switch k {
	case BuildSwiftPackage, TestSwiftPackage:
		return false
	}
	_, ok := ValidActionKinds[k]
	return ok
}

// IsTestAction reports whether the kind runs tests instead of building.
func (k ActionKind) IsTestAction() bool {
	switch k {
	case TestSwiftPackage, TestXcodeWorkspaceScheme, TestXcodeProjectScheme,
		TestXcodeWorkspaceTarget, TestXcodeProjectTarget:
		return true
	}
	return false
}
