// Package backing implements the three interchangeable strategies that
// materialize a fragment's payload bytes on demand: Positional
// (seek+read against a shared file handle), Mapped (a read-only mmap
// of the whole source), and Resident (payload bytes copied into
// owned memory at load time).
//
// All three expose the same Store interface over logical coordinates
// — byte positions with embedded newlines excluded — so callers never
// need to know which variant is mounted.
package backing

import (
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

// Store extracts a fragment's payload over a logical byte range,
// translating to source coordinates by skipping LF bytes internally.
// It never sees pending overlay edits — callers check
// catalog.Fragment.HasPending first and route to the overlay instead.
type Store interface {
	Extract(frag *catalog.Fragment, l0, l1 int64) ([]byte, error)

	// ExtractRaw returns a fragment's raw payload bytes exactly as
	// they appear in the backing store, embedded newlines included.
	// The Commit Engine uses this to copy untouched fragments
	// verbatim rather than re-wrapping them.
	ExtractRaw(frag *catalog.Fragment) ([]byte, error)

	Close() error
}

func validateRange(frag *catalog.Fragment, l0, l1 int64) error {
	ll := frag.LogicalLength()
	if l0 < 0 || l1 < l0 || l1 > ll {
		return fustaerr.Newf(fustaerr.InvalidArgument,
			"range [%d,%d) out of bounds for fragment %q of logical length %d", l0, l1, frag.ID, ll)
	}
	return nil
}
