package parse

import (
	"errors"
	"fmt"
)

// Sentinel content defects. Content errors are properties of the file itself:
// retrying the download cannot fix them, so the catalog entry goes to error
// with a distinct message instead of back to pending.
var (
	ErrCorruptArchive = errors.New("corrupt archive")
	ErrUnknownLayout  = errors.New("unknown record layout")
	ErrEmptyFile      = errors.New("file has no data rows")
)

// ContentError wraps a defect in the file content.
type ContentError struct {
	Filename string
	Err      error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content error in %s: %v", e.Filename, e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }

// IsContentError reports whether err is a file-content defect rather than a
// transient infrastructure failure.
func IsContentError(err error) bool {
	var ce *ContentError
	return errors.As(err, &ce)
}
