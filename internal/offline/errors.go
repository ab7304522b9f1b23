package offline

import "errors"

var (
	// ErrNotInitialized is returned by every operation before
	// InitializeOfflineMode succeeds and after CleanupOfflineMode.
	ErrNotInitialized = errors.New("offline mode not initialized")

	// ErrInvalidCourse is returned for course data that cannot be stored.
	ErrInvalidCourse = errors.New("invalid course data")

	// ErrInvalidProgress is returned for progress outside [0, 100] or
	// without course and module ids.
	ErrInvalidProgress = errors.New("invalid progress")

	// ErrInvalidExport is returned when an import document fails validation.
	ErrInvalidExport = errors.New("invalid sync export")
)
