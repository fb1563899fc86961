package converter

import (
	"fmt"

	"github.com/nuance-dev/convierto-sub000/internal/format"
)

// InvalidInputError indicates the source file is unreadable, empty, or of
// an unrecognized format. It is never retried.
type InvalidInputError struct {
	Path   string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Path, e.Reason)
}

// FileAccessError indicates a permission failure on the source or output.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("file access denied for %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// UnsupportedError indicates no converter variant handles the format pair.
type UnsupportedError struct {
	From format.Descriptor
	To   format.Descriptor
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported conversion: %s to %s", e.From.Ext, e.To.Ext)
}

// ConversionFailedError indicates the backend reported a failure while
// transforming media. It is retryable.
type ConversionFailedError struct {
	Reason string
	Err    error
}

func (e *ConversionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversion failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("conversion failed: %s", e.Reason)
}

func (e *ConversionFailedError) Unwrap() error { return e.Err }

// ExportFailedError indicates the output could not be produced or was
// missing after the backend reported success. It is retryable.
type ExportFailedError struct {
	Reason string
	Err    error
}

func (e *ExportFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("export failed: %s", e.Reason)
}

func (e *ExportFailedError) Unwrap() error { return e.Err }
