package table

import (
	"errors"

	"github.com/ristrettodb/ristretto-tablev2/internal/mmapfile"
)

// Sentinel errors covering the error kinds of spec.md §7. ErrIO,
// ErrFormatInvalid, and ErrCapacity are the same values the
// internal/mmapfile layer returns, re-exported so collaborators never
// need to import that package directly to classify a failure.
var (
	ErrSchemaInvalid = errors.New("table: schema rejected")
	ErrTypeMismatch  = errors.New("table: value type does not match column")
	ErrHandleClosed  = errors.New("table: handle is closed")

	ErrIO            = mmapfile.ErrIO
	ErrFormatInvalid = mmapfile.ErrFormatInvalid
	ErrCapacity      = mmapfile.ErrCapacity
)
