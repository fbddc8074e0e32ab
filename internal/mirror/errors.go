package mirror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a mirroring failure.
type Kind string

const (
	KindLocalNotFound      Kind = "local_not_found"
	KindInvalidPath        Kind = "invalid_path"
	KindRemoteQueryFailed  Kind = "remote_query_failed"
	KindRemoteWriteFailed  Kind = "remote_write_failed"
	KindTimeout            Kind = "timeout"
	KindPartialTreeFailure Kind = "partial_tree_failure"
)

var (
	// ErrNotFound is returned by the contents client when the remote path does not exist.
	ErrNotFound = errors.New("remote content not found")

	errIsDirectory    = errors.New("path is a directory")
	errNotDirectory   = errors.New("path is not a directory")
	errEmptyRemote    = errors.New("remote path is empty")
	errRemoteIsFolder = errors.New("remote path is a directory")
	errSymlinkCycle   = errors.New("symlink loops back to a parent directory")
)

// SyncError is the error returned by every Syncer operation.
type SyncError struct {
	Kind       Kind
	LocalPath  string
	RemotePath string
	Err        error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mirror %s: local=%s remote=%s", e.Kind, e.LocalPath, e.RemotePath)
	}
	return fmt.Sprintf("mirror %s: local=%s remote=%s: %v", e.Kind, e.LocalPath, e.RemotePath, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// KindOf returns the Kind of a *SyncError in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// APIError is a non-success answer from the remote host.
type APIError struct {
	StatusCode       int
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
	Body             string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Body)
}

// IsConflict reports whether err is a rejected write caused by a stale or
// missing revision marker.
func IsConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusConflict || apiErr.StatusCode == http.StatusUnprocessableEntity
}
