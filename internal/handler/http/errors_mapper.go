package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gitdrop/gitdrop/internal/archive"
	"github.com/gitdrop/gitdrop/internal/identity"
	"github.com/gitdrop/gitdrop/internal/objectstore"
	"github.com/gitdrop/gitdrop/internal/vcs"
)

// Stable error codes carried in the response body alongside the HTTP
// status, so callers can branch without parsing messages.
const (
	codeUnauthorized = "UNAUTHORIZED"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeInvalidInput = "INVALID_INPUT"
	codeUnavailable  = "SERVICE_UNAVAILABLE"
	codeInternal     = "INTERNAL_ERROR"
)

// errorClass maps one sentinel to its HTTP status and error code.
// The slice is ordered; the first matching sentinel wins.
var errorClasses = []struct {
	target error
	status int
	code   string
}{
	{identity.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized},
	{vcs.ErrRepoNotFound, http.StatusNotFound, codeNotFound},
	{vcs.ErrBranchNotFound, http.StatusNotFound, codeNotFound},
	{objectstore.ErrObjectNotFound, http.StatusNotFound, codeNotFound},
	{vcs.ErrStaleParent, http.StatusConflict, codeConflict},
	{archive.ErrMalformedArchive, http.StatusBadRequest, codeInvalidInput},
	{vcs.ErrInvalidRequest, http.StatusBadRequest, codeInvalidInput},
	{identity.ErrUnavailable, http.StatusBadGateway, codeUnavailable},
	{objectstore.ErrUnavailable, http.StatusBadGateway, codeUnavailable},
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeMappedError classifies err against the known sentinels and writes
// the structured error response. Unclassified errors become 500s.
func writeMappedError(w http.ResponseWriter, err error) {
	for _, class := range errorClasses {
		if errors.Is(err, class.target) {
			writeError(w, class.status, class.code, err.Error())
			return
		}
	}

	writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
