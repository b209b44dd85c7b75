package identify

import (
	"errors"
	"fmt"
)

var (
	ErrNotCFDI      = errors.New("root element is not Comprobante")
	ErrNoReceptor   = errors.New("Receptor element not found")
	ErrNoRFC        = errors.New("RFC not found in XML")
	ErrInvalidRFC   = errors.New("RFC has an invalid format")
	ErrUnresolvable = errors.New("RFC not resolvable")
)

// IdentityError is a file-level failure to establish a document's RFC.
type IdentityError struct {
	File string
	Err  error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}

// Cause is the human-readable message recorded on the audit row.
func (e *IdentityError) Cause() string {
	return e.Err.Error()
}
