package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable means the store file could not be opened or its
	// schema could not be applied. It is fatal for the session.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotInitialized is returned by every operation issued before
	// Initialize or after Close.
	ErrNotInitialized = errors.New("store not initialized")

	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownIndex      = errors.New("unknown index")
	ErrEmptyKey          = errors.New("record has an empty primary key")
)

// StorageError reports a single failed store operation.
type StorageError struct {
	Op         string
	Collection Collection
	Err        error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
