package treesync

import (
	"context"
	"fmt"

	"github.com/gitdrop/gitdrop/internal/vcs"
)

// Default commit metadata, used when the synchronizer is constructed
// with empty values. Policy only: it carries no invariant.
const (
	DefaultAuthorName  = "gitdrop"
	DefaultAuthorEmail = "gitdrop@localhost"
	DefaultMessage     = "Synchronized uploaded archive"
)

// Synchronizer lands a desired file set on a branch as one commit.
//
// It is stateless across invocations and performs no retries: a stale
// parent, a missing repository, or a backend outage surface to the
// caller unchanged. Concurrent writers on the same branch are not
// coordinated here; the backend's check-and-set commit rejects the loser.
type Synchronizer struct {
	backend vcs.Backend
	author  vcs.Signature
	message string
}

// New constructs a Synchronizer over the given backend. Empty author or
// message fields fall back to the package defaults.
func New(backend vcs.Backend, author vcs.Signature, message string) *Synchronizer {
	if author.Name == "" {
		author.Name = DefaultAuthorName
	}
	if author.Email == "" {
		author.Email = DefaultAuthorEmail
	}
	if message == "" {
		message = DefaultMessage
	}

	return &Synchronizer{
		backend: backend,
		author:  author,
		message: message,
	}
}

// Sync makes the branch's tree equal the desired file set (filtered by
// the empty-content exclusion rule) and returns the new commit id.
//
// The sequence is: read the branch head (the commit parent), read the
// current root listing, diff, and issue exactly one commit. Only the
// repository root is synchronized; nested desired paths are written but
// existing nested files are never matched for deletion.
func (s *Synchronizer) Sync(
	ctx context.Context,
	repoID, branch string,
	desired map[string][]byte,
) (string, error) {
	parent, err := s.backend.BranchHead(ctx, repoID, branch)
	if err != nil {
		return "", fmt.Errorf("resolving branch head: %w", err)
	}

	current, err := s.backend.ListRootFiles(ctx, repoID, branch)
	if err != nil {
		return "", fmt.Errorf("listing current tree: %w", err)
	}

	changes := Plan(current, desired)

	commitID, err := s.backend.CreateCommit(ctx, repoID, branch, vcs.CommitRequest{
		Parent:  parent,
		Puts:    changes.Puts,
		Deletes: changes.Deletes,
		Author:  s.author,
		Message: s.message,
	})
	if err != nil {
		return "", fmt.Errorf("creating commit: %w", err)
	}

	return commitID, nil
}
