package publisher

import (
	"errors"
	"fmt"
)

var (
	ErrObjectNotFound       = errors.New("the object does not exist.")
	ErrUnsupportedDelimiter = errors.New("the storage backend only supports \"/\" as a delimiter.")
	ErrNoBuildID            = errors.New("a build id could not be resolved from the build.")
	ErrNoStorage            = errors.New("an object storage client must be assigned.")
)

// ConfigurationError is returned at construction time when a required option is missing or invalid.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration option %q is required.", e.Field)
	}
	return fmt.Sprintf("configuration option %q is invalid: %s", e.Field, e.Reason)
}

// TransferError wraps any failure raised by the storage backend during an upload, list, read or delete.
type TransferError struct {
	Op  string
	Key string
	Err error
}

func (e *TransferError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func transferError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var terr *TransferError
	if errors.As(err, &terr) {
		return err
	}
	return &TransferError{Op: op, Key: key, Err: err}
}
