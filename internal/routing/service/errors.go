package service

import (
	"context"
	"errors"

	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/platform/sentinel"
)

// wrapStoreErr translates store facts into domain errors. Errors that already
// carry a domain code pass through untouched.
func wrapStoreErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "document was modified concurrently, retry")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting write")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "storage deadline exceeded")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorage, "storage failure")
	}
}

func documentNotFound(err error) error {
	return wrapStoreErr(err, "document not found")
}
