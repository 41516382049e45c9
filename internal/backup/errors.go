package backup

import (
	"errors"
	"fmt"
)

// ErrImportFailed matches every *ImportError with errors.Is.
var ErrImportFailed = errors.New("import failed")

// ImportError reports a snapshot that could not be restored. The store is
// left as it was before the import started.
type ImportError struct {
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed: %v", e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

func (e *ImportError) Is(target error) bool { return target == ErrImportFailed }

func importFailed(err error) error {
	return &ImportError{Err: err}
}
