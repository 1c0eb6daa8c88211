package main

import "errors"

// Process exit statuses of greenova-import.
const (
	exitOK = 0
	// exitValidation: a row error halted the run.
	exitValidation = 2
	// exitUsage: bad flags, mappings or an unreadable source.
	exitUsage = 3
	// exitDB: the database is unreachable or not migrated.
	exitDB = 4
	// exitDBWrite: migrate or recount failed while writing.
	exitDBWrite = 5
	// exitLocked: another run holds the import lock.
	exitLocked = 6
)

// exitError attaches an exit status to err.
type exitError struct {
	status int
	err    error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(status int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{status: status, err: err}
}

// exitCode maps err to a process status; untagged errors exit 1.
func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ee):
		return ee.status
	}
	return 1
}
