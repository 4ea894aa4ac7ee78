package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadIndex reads and validates a project index file. The index is a JSON
// array of repository objects.
func LoadIndex(path string) ([]RepositoryDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project index %q: %w", path, err)
	}
	var index []RepositoryDescriptor
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse project index %q: %w", path, err)
	}
	if err := ValidateIndex(index); err != nil {
		return nil, fmt.Errorf("invalid project index %q: %w", path, err)
	}
	return index, nil
}

// ValidateIndex checks structural invariants of a loaded index. An
// unrecognized action kind or repository kind is a configuration error, not
// something classified at run time.
func ValidateIndex(index []RepositoryDescriptor) error {
	seen := make(map[string]struct{}, len(index))
	for i := range index {
		repo := &index[i]
		if repo.Path == "" {
			return fmt.Errorf("repository #%d has no path", i)
		}
		if _, dup := seen[repo.Path]; dup {
			return fmt.Errorf("duplicate repository path %q", repo.Path)
		}
		seen[repo.Path] = struct{}{}
		if repo.URL == "" {
			return fmt.Errorf("repository %q has no url", repo.Path)
		}
		if repo.Repository != GitRepository {
			return fmt.Errorf("repository %q has unsupported kind %q", repo.Path, repo.Repository)
		}
		for j := range repo.Actions {
			action := &repo.Actions[j]
			if _, ok := ValidActionKinds[action.Action]; !ok {
				return fmt.Errorf("repository %q action #%d has unknown kind %q",
					repo.Path, j, action.Action)
			}
			if action.Action.IsXcodeAction() {
				if action.ContainerPath() == "" {
					return fmt.Errorf("repository %q action %q needs a project or workspace",
						repo.Path, action.Action)
				}
				if action.SchemeOrTarget() == "" {
					return fmt.Errorf("repository %q action %q needs a scheme or target",
						repo.Path, action.Action)
				}
				if action.Destination == "" {
					return fmt.Errorf("repository %q action %q needs a destination",
						repo.Path, action.Action)
				}
			}
		}
		for label, pin := range repo.Compatibility {
			if pin.Commit == "" {
				return fmt.Errorf("repository %q compatibility %q has no commit", repo.Path, label)
			}
		}
		for label, spec := range repo.Incremental {
			if len(spec.Commits) == 0 {
				return fmt.Errorf("repository %q incremental %q has no commits", repo.Path, label)
			}
		}
	}
	return nil
}
