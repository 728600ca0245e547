package builder

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

// RevisionDefine carries the commit a build was made from when project.stamp-revision is set
const RevisionDefine = "NUBS_REVISION"

// Revision returns the HEAD commit hash of the repository containing dir.
// ok is false if dir is not inside a repository or the repository has no commits.
func Revision(dir string) (hash string, ok bool, err error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to open repository at %s: %w", dir, err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), true, nil
}
