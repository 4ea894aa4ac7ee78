package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXfailTableLookupPrecedence(t *testing.T) {
	table := &XfailTable{
		Compatibility: map[string]XfailEntry{
			"4.0": {
				Branch:   map[string]string{"main": "SR-1000", "*": "SR-2000"},
				Platform: map[string]string{"Darwin": "SR-3000", "*": "SR-4000"},
			},
			"3.1": {
				Any: "SR-5000 see also SR-5001",
			},
			"5.0": {
				Platform: map[string]string{"Linux": "SR-6000"},
			},
		},
	}

	tests := []struct {
		name     string
		version  string
		platform string
		branch   string
		want     string
	}{
		{"top-level wildcard wins", "3.1", "Darwin", "main", "SR-5000"},
		{"branch wildcard beats platform wildcard", "4.0", "Darwin", "release", "SR-2000"},
		{"exact platform used when nothing else matches", "5.0", "Linux", "main", "SR-6000"},
		{"no entry for version", "2.0", "Darwin", "main", ""},
		{"platform not listed", "5.0", "Darwin", "main", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Lookup(tt.version, tt.platform, tt.branch))
		})
	}
}

func TestXfailTableLookupFirstTokenOnly(t *testing.T) {
	table := &XfailTable{
		Compatibility: map[string]XfailEntry{
			"4.0": {Any: "SR-7000 flaky on CI"},
		},
	}
	assert.Equal(t, "SR-7000", table.Lookup("4.0", "Darwin", "main"))
}

func TestXfailTableLookupNilReceiver(t *testing.T) {
	var table *XfailTable
	assert.Equal(t, "", table.Lookup("4.0", "Darwin", "main"))
}

func TestCommitStepUnmarshalString(t *testing.T) {
	var step CommitStep
	require.NoError(t, json.Unmarshal([]byte(`"abc123def"`), &step))
	assert.Equal(t, "abc123def", step.Commit)
	assert.Nil(t, step.Stats)
}

func TestCommitStepUnmarshalObject(t *testing.T) {
	data := `{"commit": "abc123def", "stats": {"NumLLVMBytesOutput": 1024}}`
	var step CommitStep
	require.NoError(t, json.Unmarshal([]byte(data), &step))
	assert.Equal(t, "abc123def", step.Commit)
	assert.Equal(t, int64(1024), step.Stats["NumLLVMBytesOutput"])
}

func TestCommitStepUnmarshalRejectsMissingCommit(t *testing.T) {
	var step CommitStep
	err := json.Unmarshal([]byte(`{"stats": {}}`), &step)
	assert.Error(t, err)
}

func TestActionDescriptorHelpers(t *testing.T) {
	workspaceAction := ActionDescriptor{
		Action:    BuildXcodeWorkspaceScheme,
		Workspace: "Example.xcworkspace",
		Scheme:    "Example",
	}
	assert.Equal(t, "Example.xcworkspace", workspaceAction.ContainerPath())
	assert.Equal(t, "Example", workspaceAction.SchemeOrTarget())
	assert.True(t, workspaceAction.UsesWorkspace())
	assert.True(t, workspaceAction.UsesScheme())

	targetAction := ActionDescriptor{
		Action:  TestXcodeProjectTarget,
		Project: "Example.xcodeproj",
		Target:  "ExampleTests",
	}
	assert.Equal(t, "Example.xcodeproj", targetAction.ContainerPath())
	assert.Equal(t, "ExampleTests", targetAction.SchemeOrTarget())
	assert.False(t, targetAction.UsesWorkspace())
	assert.False(t, targetAction.UsesScheme())
}

func TestActionDescriptorFields(t *testing.T) {
	action := ActionDescriptor{
		Action:        BuildSwiftPackage,
		Configuration: "release",
		Tags:          "sourcekit",
	}
	fields := action.Fields()
	assert.Equal(t, "BuildSwiftPackage", fields["action"])
	assert.Equal(t, "release", fields["configuration"])
	assert.Equal(t, "sourcekit", fields["tags"])
	_, ok := fields["scheme"]
	assert.False(t, ok, "empty fields must not appear")
}

func TestActionKindClassification(t *testing.T) {
	assert.False(t, BuildSwiftPackage.IsXcodeAction())
	assert.False(t, TestSwiftPackage.IsXcodeAction())
	assert.True(t, BuildXcodeWorkspaceScheme.IsXcodeAction())
	assert.True(t, TestXcodeProjectTarget.IsXcodeAction())
	assert.False(t, ActionKind("Bogus").IsXcodeAction())

	assert.True(t, TestSwiftPackage.IsTestAction())
	assert.True(t, TestXcodeWorkspaceScheme.IsTestAction())
	assert.False(t, BuildSwiftPackage.IsTestAction())
}
