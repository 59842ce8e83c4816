package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents a cgreduce error code.
type ErrorCode string

const (
	// Fatal: input files cannot be parsed.
	ErrMalformedCatalogRow    ErrorCode = "MALFORMED_CATALOG_ROW"
	ErrMalformedCatalog       ErrorCode = "MALFORMED_CATALOG"
	ErrMalformedParameterRow  ErrorCode = "MALFORMED_PARAMETER_ROW"
	ErrMalformedConversionRow ErrorCode = "MALFORMED_CONVERSION_ROW"
	ErrMalformedStructureRow  ErrorCode = "MALFORMED_STRUCTURE_ROW"

	// Recoverable unless promoted (MISSING_ATOM in strict mode).
	ErrUnknownResidue           ErrorCode = "UNKNOWN_RESIDUE"
	ErrMissingAtom              ErrorCode = "MISSING_ATOM"
	ErrBeadAtomCountMismatch    ErrorCode = "BEAD_ATOM_COUNT_MISMATCH"
	ErrEmptyBead                ErrorCode = "EMPTY_BEAD"
	ErrDuplicateConversionEntry ErrorCode = "DUPLICATE_CONVERSION_ENTRY"
	ErrUnresolvedCharge         ErrorCode = "UNRESOLVED_CHARGE"

	// Operation level.
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrCancelled      ErrorCode = "CANCELLED"
	ErrInternal       ErrorCode = "INTERNAL"
)

// ReduceError represents a structured error with code, severity, and details.
// Fatal errors abort a run; the others are reported as warnings.
type ReduceError struct {
	Code    ErrorCode
	Fatal   bool
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ReduceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewMalformedRow creates a fatal parse error for a single line of an input file.
// code must be one of the MALFORMED_*_ROW codes.
func NewMalformedRow(code ErrorCode, path string, line int, content, reason string) *ReduceError {
	content = strings.TrimRight(content, "\r\n")
	return &ReduceError{
		Code:    code,
		Fatal:   true,
		Message: fmt.Sprintf("%s:%d: %s: %q", path, line, reason, content),
		Details: map[string]any{"path": path, "line": line, "content": content, "reason": reason},
	}
}

// NewMalformedCatalog creates a fatal error for a structured catalog document.
func NewMalformedCatalog(path, reason string) *ReduceError {
	return &ReduceError{
		Code:    ErrMalformedCatalog,
		Fatal:   true,
		Message: fmt.Sprintf("%s: %s", path, reason),
		Details: map[string]any{"path": path, "reason": reason},
	}
}

// NewUnknownResidue reports a residue with no reduction rule.
func NewUnknownResidue(resname string, resid int, chain string) *ReduceError {
	return &ReduceError{
		Code: ErrUnknownResidue,
		Message: fmt.Sprintf("no reduction rule for residue %s:%d (chain %q), skipping this residue",
			resname, resid, chain),
		Details: map[string]any{"residue": resname, "resid": resid, "chain": chain},
	}
}

// NewMissingAtom reports an expected atom absent from a residue.
// The returned error is fatal; callers running in lenient mode report a
// bead-level warning instead.
func NewMissingAtom(atom, bead string, beadID int, resname string, resid int) *ReduceError {
	return &ReduceError{
		Code:  ErrMissingAtom,
		Fatal: true,
		Message: fmt.Sprintf("missing atom %s in bead %s %d for residue %s:%d, please fix your PDB",
			atom, bead, beadID, resname, resid),
		Details: map[string]any{"atom": atom, "bead": bead, "bead_id": beadID, "residue": resname, "resid": resid},
	}
}

// NewBeadAtomCountMismatch reports a bead whose atoms were only partially found.
// Name lists are sorted in the message and details.
func NewBeadAtomCountMismatch(resname string, resid int, bead string, expected, found []string) *ReduceError {
	expected = sortedCopy(expected)
	found = sortedCopy(found)
	return &ReduceError{
		Code: ErrBeadAtomCountMismatch,
		Message: fmt.Sprintf("residue %s:%d, bead %s: expected atoms %v, found %v",
			resname, resid, bead, expected, found),
		Details: map[string]any{"residue": resname, "resid": resid, "bead": bead, "expected": expected, "found": found},
	}
}

// NewEmptyBead reports a bead for which no expected atom was found.
func NewEmptyBead(resname string, resid int, bead string, expected []string) *ReduceError {
	return &ReduceError{
		Code: ErrEmptyBead,
		Message: fmt.Sprintf("no atom found for bead %s (atoms=%v) of residue %s:%d",
			bead, expected, resname, resid),
		Details: map[string]any{"residue": resname, "resid": resid, "bead": bead, "expected": expected},
	}
}

// NewDuplicateConversionEntry reports a conversion key defined twice.
func NewDuplicateConversionEntry(path, entry string, line int) *ReduceError {
	return &ReduceError{
		Code:    ErrDuplicateConversionEntry,
		Message: fmt.Sprintf("duplicate entry %s at line %d of %s", entry, line, path),
		Details: map[string]any{"path": path, "entry": entry, "line": line},
	}
}

// NewUnresolvedCharge reports a bead id absent from the charge table.
func NewUnresolvedCharge(bead string, beadID int) *ReduceError {
	return &ReduceError{
		Code:    ErrUnresolvedCharge,
		Message: fmt.Sprintf("cannot find charge for bead %s %d, defaults to 0.0", bead, beadID),
		Details: map[string]any{"bead": bead, "bead_id": beadID},
	}
}

// NewFileNotFound creates an error for a missing input file.
func NewFileNotFound(path string) *ReduceError {
	return &ReduceError{
		Code:    ErrFileNotFound,
		Fatal:   true,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *ReduceError {
	return &ReduceError{
		Code:    ErrInvalidRequest,
		Fatal:   true,
		Message: msg,
	}
}

// NewNotFound creates an error for when a run cannot be found.
func NewNotFound(identifier string) *ReduceError {
	return &ReduceError{
		Code:    ErrNotFound,
		Fatal:   true,
		Message: fmt.Sprintf("run not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *ReduceError {
	return &ReduceError{
		Code:    ErrCancelled,
		Fatal:   true,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *ReduceError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ReduceError{
		Code:    ErrInternal,
		Fatal:   true,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is a ReduceError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *ReduceError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}

// As returns the ReduceError wrapped in err, if any.
func As(err error) (*ReduceError, bool) {
	var rErr *ReduceError
	ok := stderrors.As(err, &rErr)
	return rErr, ok
}

func sortedCopy(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}
