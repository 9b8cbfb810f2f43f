package core

import "fmt"

// ParseError describes a persisted record that could not be understood.
// Record is the zero-based array index for the catalog and the one-based
// line number for ledgers.
type ParseError struct {
	Source string
	Record int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s record %d: %s", e.Source, e.Record, e.Reason)
}

// StorageError wraps a failure of the underlying storage. It is fatal to the
// operation that hit it and is never retried.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
