// Package vcs provides the version-control backend capability consumed by
// the tree synchronizer.
//
// The Backend interface exposes exactly the three operations the
// synchronizer needs: read a branch head, list the files at the root of
// that branch's tree, and create one commit from explicit put/delete
// instructions. The go-git implementation lives in gitbackend.go.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors that can be checked with errors.Is().

// ErrRepoNotFound is returned when the target repository does not exist.
var ErrRepoNotFound = errors.New("repository not found")

// ErrRepoExists is returned when initializing a repository that already exists.
var ErrRepoExists = errors.New("repository already exists")

// ErrBranchNotFound is returned when the target branch does not exist.
var ErrBranchNotFound = errors.New("branch not found")

// ErrStaleParent is returned when a commit names a parent that is no
// longer the branch head, meaning a concurrent writer won the race.
var ErrStaleParent = errors.New("parent commit is no longer the branch head")

// ErrInvalidRequest is returned when a commit request is malformed
// (missing parent, empty author, illegal path).
var ErrInvalidRequest = errors.New("invalid commit request")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while
// preserving the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Signature identifies the author and committer of a commit.
type Signature struct {
	// Name is the author's name.
	Name string

	// Email is the author's email address.
	Email string

	// When is the commit timestamp. The zero value means "now".
	When time.Time
}

// Put instructs the backend to write or update one file.
type Put struct {
	// Path is the repository-relative file path.
	Path string

	// Content is the full file content.
	Content []byte
}

// CommitRequest describes one atomic commit: the expected parent, the
// files to write, the files to remove, and the commit metadata.
type CommitRequest struct {
	// Parent is the commit id the caller observed as the branch head.
	// The backend must reject the request if the branch has moved.
	Parent string

	// Puts are the files to write or update.
	Puts []Put

	// Deletes are the paths to remove.
	Deletes []string

	// Author signs the commit as both author and committer.
	Author Signature

	// Message is the commit message.
	Message string
}

// Backend is the version-control capability consumed by the synchronizer.
// Implementations must make CreateCommit atomic: either the full commit
// lands on the branch or the branch is left untouched.
type Backend interface {
	// BranchHead returns the commit id at the tip of the branch.
	BranchHead(ctx context.Context, repoID, branch string) (string, error)

	// ListRootFiles returns the file paths at the root of the branch's
	// current tree. Nested directories are not descended into.
	ListRootFiles(ctx context.Context, repoID, branch string) ([]string, error)

	// CreateCommit applies the request as one commit on the branch and
	// returns the new commit id. It returns ErrStaleParent if the branch
	// head no longer matches req.Parent.
	CreateCommit(ctx context.Context, repoID, branch string, req CommitRequest) (string, error)
}
