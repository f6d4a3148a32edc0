// Package http exposes the caller-facing request surface of gitdrop:
// one push operation that authenticates the caller, fetches the uploaded
// archive, and synchronizes it into the caller's repository.
package http

import (
	"context"

	"github.com/gitdrop/gitdrop/internal/logger"
)

// IdentityResolver exchanges a bearer token for a stable subject id.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// ArchiveFetcher retrieves an uploaded archive by object key.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// TreeSynchronizer lands a desired file set on a branch as one commit.
type TreeSynchronizer interface {
	Sync(ctx context.Context, repoID, branch string, desired map[string][]byte) (string, error)
}

// Handler carries the explicitly injected collaborators of the push
// pipeline. There are no process-wide singletons: every dependency is a
// constructor argument, so tests can substitute doubles.
type Handler struct {
	identity IdentityResolver
	archives ArchiveFetcher
	sync     TreeSynchronizer

	defaultBranch string
	logger        *logger.Logger
}

// NewHandler constructs the handler. An empty defaultBranch falls back
// to "main".
func NewHandler(
	identity IdentityResolver,
	archives ArchiveFetcher,
	sync TreeSynchronizer,
	defaultBranch string,
	log *logger.Logger,
) *Handler {
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	return &Handler{
		identity:      identity,
		archives:      archives,
		sync:          sync,
		defaultBranch: defaultBranch,
		logger:        log,
	}
}
