package error

import (
	"errors"
	"net/http"
)

// StaleSelectionError signals that a discovery-based selection no longer
// resolves against the freshly-loaded candidate list. Callers show an inline
// "refresh and reselect" message instead of a generic failure.
type StaleSelectionError string

func (err StaleSelectionError) Error() string {
	return string(err)
}

func (err StaleSelectionError) ErrCode() string {
	return "STALE_SELECTION"
}

func (err StaleSelectionError) StatusCode() int {
	return http.StatusConflict
}

func IsStaleSelection(err error) bool {
	var stale StaleSelectionError
	return errors.As(err, &stale)
}
