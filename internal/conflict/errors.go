package conflict

import (
	"errors"
	"fmt"

	"github.com/roach88/learnsync/internal/model"
)

var (
	// ErrConflictNotFound is returned for conflict ids not in the log.
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrAlreadyResolved is returned when resolving a resolved conflict.
	ErrAlreadyResolved = errors.New("conflict already resolved")

	// ErrInvalidResolution is returned for resolutions other than local,
	// remote or merge.
	ErrInvalidResolution = errors.New("invalid resolution")
)

// ResolutionError is a resolution that could not be carried out.
// The conflict stays unresolved and its item stays queued.
type ResolutionError struct {
	ConflictID string
	ItemID     string
	Policy     model.Policy
	Err        error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve conflict %s (item=%s, policy=%s): %v", shortID(e.ConflictID), e.ItemID, e.Policy, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsResolutionError returns true if err is a failed resolution.
// Uses errors.As to handle wrapped errors.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// shortID trims content-addressed ids for messages.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
