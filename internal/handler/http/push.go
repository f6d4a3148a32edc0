package http

import (
	"net/http"
	"strings"

	"github.com/gitdrop/gitdrop/internal/archive"
	"github.com/gitdrop/gitdrop/internal/logger"
)

// pushResponse is the success body of the push operation.
type pushResponse struct {
	CommitID string `json:"commit_id"`
}

// push runs the full pipeline: resolve the caller's identity, fetch the
// uploaded archive, decode it, and synchronize it into the caller's
// repository as one commit.
func (h *Handler) push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	key := r.URL.Query().Get("Key")
	repoName := r.URL.Query().Get("Repository")
	branch := r.URL.Query().Get("Branch")
	if branch == "" {
		branch = h.defaultBranch
	}

	if key == "" || repoName == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "Key and Repository query parameters are required")
		return
	}

	sub, err := h.identity.Resolve(ctx, bearerToken(r))
	if err != nil {
		log.Warn().Err(err).Msg("token resolution failed")
		writeMappedError(w, err)
		return
	}

	// Repositories are namespaced per user: the subject id prefixes the
	// repository name.
	repoID := sub + repoName

	data, err := h.archives.Fetch(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("archive fetch failed")
		writeMappedError(w, err)
		return
	}

	files, err := archive.Unpack(data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("archive decode failed")
		writeMappedError(w, err)
		return
	}

	commitID, err := h.sync.Sync(ctx, repoID, branch, files)
	if err != nil {
		log.Error().Err(err).Str("repo", repoID).Str("branch", branch).Msg("synchronization failed")
		writeMappedError(w, err)
		return
	}

	log.Info().
		Str("repo", repoID).
		Str("branch", branch).
		Str("commit", commitID).
		Int("files", len(files)).
		Msg("archive synchronized")

	writeJSON(w, http.StatusOK, pushResponse{CommitID: commitID})
}

// bearerToken extracts the caller's credential from the Authorization
// header, falling back to the legacy userToken query parameter.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}

	return r.URL.Query().Get("userToken")
}
