// Package apperr defines the error taxonomy shared by the submission
// workflow and the HTTP layer.
package apperr

import "fmt"

// ValidationError reports missing or malformed form input. It is returned
// before any upload or database write has happened.
type ValidationError struct {
	Violations map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Violations))
}

// UploadError means the document store rejected a file. No database write has
// happened yet when it is returned.
type UploadError struct {
	Name string // form field of the offending file
	Err  error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload %s: %v", e.Name, e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError reports a failed insert, update or delete. Op names the
// step that failed; rows already written for the same submission are kept.
type PersistenceError struct {
	Op  string // application, company, director, psc, status, delete
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError is logged by the workflow and never surfaced to the
// applicant: their data is already durable when notification runs.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string { return fmt.Sprintf("notify: %v", e.Err) }
func (e *NotificationError) Unwrap() error { return e.Err }
