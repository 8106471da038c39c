package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by the driver. Callers match them with errors.Is.
var (
	ErrConnectionFailure = errors.New("connection failure")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrIndexConflict     = errors.New("index conflict")
	ErrTimeout           = errors.New("operation timed out")
	ErrNotFound          = errors.New("not found")
	ErrClientClosed      = errors.New("client is closed")
	ErrBadFilter         = errors.New("bad filter")
	ErrBadIndex          = errors.New("bad index specification")
	ErrIndexNotFound     = errors.New("index not found")
	ErrInvalidDocument   = errors.New("invalid document")
)

var errorKinds = []struct {
	kind string
	err  error
}{
	{"ConnectionFailure", ErrConnectionFailure},
	{"DuplicateKey", ErrDuplicateKey},
	{"IndexConflict", ErrIndexConflict},
	{"Timeout", ErrTimeout},
	{"NotFound", ErrNotFound},
	{"ClientClosed", ErrClientClosed},
	{"BadFilter", ErrBadFilter},
	{"BadIndex", ErrBadIndex},
	{"IndexNotFound", ErrIndexNotFound},
	{"InvalidDocument", ErrInvalidDocument},
}

// KindInternal is reported for errors that carry none of the known kinds
const KindInternal = "Internal"

// ErrorKind names the kind of err, or KindInternal when it has none.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ErrorForKind maps a kind name back to its sentinel. Unknown kinds yield nil.
func ErrorForKind(kind string) error {
	for _, k := range errorKinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}

// DuplicateKeyError reports an insert rejected by a unique index
type DuplicateKeyError struct {
	Index string
	Key   Document
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key error: index %s dup key: %s", e.Index, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// WriteError is the failure of one document in a bulk insert
type WriteError struct {
	Index int
	Err   error
}

func (e WriteError) Error() string {
	return fmt.Sprintf("document %d: %v", e.Index, e.Err)
}

func (e WriteError) Unwrap() error { return e.Err }

// BulkWriteError reports a partially applied InsertMany. InsertedIDs holds
// the identities of the documents that were stored.
type BulkWriteError struct {
	WriteErrors []WriteError
	InsertedIDs []Value
}

func (e *BulkWriteError) Error() string {
	msgs := make([]string, len(e.WriteErrors))
	for i, we := range e.WriteErrors {
		msgs[i] = we.Error()
	}
	return fmt.Sprintf("bulk write: %d inserted, %d failed: %s",
		len(e.InsertedIDs), len(e.WriteErrors), strings.Join(msgs, "; "))
}

func (e *BulkWriteError) Unwrap() []error {
	errs := make([]error, len(e.WriteErrors))
	for i, we := range e.WriteErrors {
		errs[i] = we
	}
	return errs
}
