// Package apperr defines the sentinel error kinds returned by the mpm core.
//
// Callers should compare with errors.Is against the exported sentinels;
// the wrapped detail (via fmt.Errorf("%w: ...")) carries the human-readable
// context and is not meant to be parsed.
package apperr

import "errors"

var (
	// ErrNoDatabase is returned when an operation needs a loaded database
	// and none is attached.
	ErrNoDatabase = errors.New("no database loaded")

	// ErrWrongLevel is returned when an operation needs a higher unlock
	// level than the database currently holds.
	ErrWrongLevel = errors.New("operation requires a higher unlock level")

	// ErrTryNotFound is returned when no chunk matched a nickname+password pair.
	ErrTryNotFound = errors.New("no holder chunk matched nickname and password")

	// ErrTryAlreadyOpen is returned when a holder has already authenticated
	// this session.
	ErrTryAlreadyOpen = errors.New("holder already open this session")

	// ErrTryInconsistent is returned when a chunk match disagrees with the
	// holder record already loaded from the common section.
	ErrTryInconsistent = errors.New("chunk matched but is inconsistent with loaded holder")

	// ErrIntegrityFail is returned when the common section's MAGICCOM
	// terminator or the chunk magic does not verify.
	ErrIntegrityFail = errors.New("integrity check failed")

	// ErrInsufficientShares is returned when a save is attempted with
	// fewer distributed shares than a threshold requires.
	ErrInsufficientShares = errors.New("insufficient shares distributed")

	// ErrIoError wraps an underlying OS/file error.
	ErrIoError = errors.New("i/o error")

	// ErrInvalidArg is returned for bad IDs, unknown field names, or
	// mismatched confirmations.
	ErrInvalidArg = errors.New("invalid argument")

	// ErrCryptoFail is returned when the CryptoProvider reports failure.
	ErrCryptoFail = errors.New("cryptographic operation failed")
)
