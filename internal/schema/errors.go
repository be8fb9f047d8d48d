package schema

import (
	"errors"
	"fmt"
)

// VersionError reports a stored schema revision this build cannot serve.
// Fatal: continuing against an ahead-of-build schema risks writing rows a
// newer layout no longer expects.
type VersionError struct {
	// Stored is the revision recorded in the tenant's metadata table.
	Stored int

	// Expected is the revision this build was written for.
	Expected int
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("schema version %d is newer than expected version %d", e.Stored, e.Expected)
}

// IsVersionError returns true if the error is a schema version mismatch.
// Uses errors.As to handle wrapped errors.
func IsVersionError(err error) bool {
	var ve *VersionError
	return errors.As(err, &ve)
}
