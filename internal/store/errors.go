package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable is returned by every operation before Init
	// completes or after Close.
	ErrStorageUnavailable = errors.New("storage unavailable: store not initialized")

	// ErrStorageQuotaExceeded is returned when a write would exceed the byte budget.
	ErrStorageQuotaExceeded = errors.New("storage quota exceeded")

	// ErrUnknownCollection is returned for collections not registered at Init.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrUnknownIndex is returned for indexes not declared on a collection.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrMissingKey is returned when a value lacks its collection's key path.
	ErrMissingKey = errors.New("value has no primary key")
)

// QuotaError describes a rejected write.
// It matches ErrStorageQuotaExceeded under errors.Is.
type QuotaError struct {
	Collection string
	Key        string
	Used       int64 // Bytes stored before the write
	Delta      int64 // Net bytes the write would add
	Budget     int64 // Configured byte budget
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded: writing %s/%s needs %d bytes, %d of %d used",
		e.Collection, e.Key, e.Delta, e.Used, e.Budget)
}

// Is makes errors.Is(err, ErrStorageQuotaExceeded) true for quota errors.
func (e *QuotaError) Is(target error) bool {
	return target == ErrStorageQuotaExceeded
}

// IsQuotaError reports whether err is (or wraps) a quota violation.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrStorageQuotaExceeded)
}

// IsUnavailable reports whether err is (or wraps) ErrStorageUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
