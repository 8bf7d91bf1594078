package savegame

import (
	"errors"
	"fmt"

	"vaultfinder/internal/report"
)

var (
	// ErrNotGzip is returned when the save file is not gzip-compressed.
	ErrNotGzip = errors.New("save file is not gzip-compressed")

	// ErrMalformed covers XML that is not well-formed or ends early.
	ErrMalformed = errors.New("malformed save file")

	// ErrEmptyPath is a close event with no open element.
	ErrEmptyPath = errors.New("close event with empty element path")

	// ErrMissingCode is an object of interest without a code attribute.
	ErrMissingCode = errors.New("object without code attribute")

	// ErrNoSector is an object of interest outside of any open sector.
	ErrNoSector = errors.New("object outside of any sector")

	// ErrDuplicateCode is a second object with the same code in a sector.
	ErrDuplicateCode = report.ErrDuplicateCode

	// ErrUnknownVault is vault loot whose vault was never recorded.
	ErrUnknownVault = errors.New("vault loot without a recorded vault")
)

// StructuralError locates a fatal problem in the save file. Offset is the
// position in the decompressed XML stream, Path the open elements.
type StructuralError struct {
	Offset int64
	Path   string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v (at byte %d)", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v (at byte %d, path %s)", e.Err, e.Offset, e.Path)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}
