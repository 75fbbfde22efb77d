package persist

import "errors"

// Sentinel errors for snapshot loading, matching the error kinds an
// IndexFacade surfaces to callers.
var (
	ErrBadCRC       = errors.New("persist: section CRC32 mismatch")
	ErrBadFormat    = errors.New("persist: unrecognized magic or version")
	ErrCorruptIndex = errors.New("persist: unresolvable neighbor page id")
	ErrLoaderFailed = errors.New("persist: record loader failed")
)
