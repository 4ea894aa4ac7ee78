package core

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolchainLocator resolves SDK and standard-library paths for Xcode-style
// destinations. A missing mapping is a configuration error that aborts the
// repository task.
type ToolchainLocator interface {
	// SDKPath returns the absolute SDK root for a destination platform name.
	SDKPath(ctx context.Context, destination string) (string, error)

	// StdlibPath returns the standard-library search path for a destination,
	// derived from the compiler executable location.
	StdlibPath(swiftc, destination string) (string, error)
}

// platformSDKNames maps destination substrings to SDK names for xcrun.
var platformSDKNames = []struct{ key, sdk string }{
	{"Xcode", "macosx"},
	{"macOS", "macosx"},
	{"iOS", "iphoneos"},
	{"tvOS", "appletvos"},
	{"watchOS", "watchos"},
}

// platformStdlibNames maps destination substrings to stdlib directories.
var platformStdlibNames = []struct{ key, dir string }{
	{"macOS", "macosx"},
	{"iOS", "iphonesimulator"},
	{"tvOS", "appletvsimulator"},
	{"watchOS", "watchsimulator"},
}

// XcrunLocator implements ToolchainLocator with the xcrun binary.
type XcrunLocator struct{}

var _ ToolchainLocator = XcrunLocator{} // Compile-time check

// SDKPath implements the ToolchainLocator interface.
func (XcrunLocator) SDKPath(ctx context.Context, destination string) (string, error) {
	for _, entry := range platformSDKNames {
		if strings.Contains(destination, entry.key) {
			out, err := exec.CommandContext(ctx,
				"/usr/bin/xcrun", "-show-sdk-path", "-sdk", entry.sdk).Output()
			if err != nil {
				return "", fmt.Errorf("xcrun failed to locate the %s SDK: %w", entry.sdk, err)
			}
			return strings.TrimSpace(string(out)), nil
		}
	}
	return "", fmt.Errorf("no SDK mapping for destination %q", destination)
}

// StdlibPath implements the ToolchainLocator interface.
func (XcrunLocator) StdlibPath(swiftc, destination string) (string, error) {
	for _, entry := range platformStdlibNames {
		if strings.Contains(destination, entry.key) {
			toolchainRoot := filepath.Dir(filepath.Dir(swiftc))
			return filepath.Join(toolchainRoot, "lib", "swift", entry.dir), nil
		}
	}
	return "", fmt.Errorf("no stdlib mapping for destination %q", destination)
}

// BranchConfig shapes branch-dependent command details. It is threaded
// explicitly through the dispatcher rather than held as process state.
type BranchConfig struct {
	Name string
}

// legacy branch labels that predate the current package-clean subcommand
// and the --disable-sandbox flag.
const (
	branchSwift30 = "swift-3.0-branch"
	branchSwift31 = "swift-3.1-branch"
)

// PackageCleanArgs returns the package-manager clean invocation for the
// branch.
func (b BranchConfig) PackageCleanArgs(swift, path string) []string {
	var args []string
	if b.Name == branchSwift30 {
		args = []string{swift, "build", "-C", path, "--clean"}
	} else {
		args = []string{swift, "package", "-C", path, "clean"}
	}
	if b.DisableSandbox() {
		// Insert after the subcommand, matching the package manager's
		// expected flag position.
		args = append(args[:2:2], append([]string{"--disable-sandbox"}, args[2:]...)...)
	}
	return args
}

// DisableSandbox reports whether the branch's package manager understands
// --disable-sandbox.
func (b BranchConfig) DisableSandbox() bool {
	return b.Name != branchSwift30 && b.Name != branchSwift31
}

// swiftFromSwiftc derives the package-manager driver path from the
// compiler executable path ("swiftc" minus the trailing 'c').
func swiftFromSwiftc(swiftc string) string {
	return strings.TrimSuffix(swiftc, "c")
}
