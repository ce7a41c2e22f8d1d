// Package rangeresolver parses and validates get/<id>:<start>-<end>
// entry names: 1-based, fully-closed logical ranges over a fragment's
// sequence.
package rangeresolver

import (
	"regexp"
	"strconv"

	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

var nameRe = regexp.MustCompile(`^(.+):(\d+)-(\d+)$`)

// Match splits name into its id, start, and end components if it has
// the get/ range grammar. ok is false for any name that isn't even
// shaped like a range request — callers treat that as a plain
// not-found lookup, distinct from a range that parses but fails
// validation.
func Match(name string) (id string, start, end int64, ok bool) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return "", 0, 0, false
	}
	s, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	e, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	return m[1], s, e, true
}

// Resolve validates a matched range against the catalog and returns
// the target fragment plus the equivalent half-open logical range
// [l0, l1) ready to hand to a backing store or overlay. Coordinates
// that fail validation are rejected outright — never clamped.
func Resolve(cat *catalog.Catalog, name string) (*catalog.Fragment, int64, int64, error) {
	id, start, end, ok := Match(name)
	if !ok {
		return nil, 0, 0, fustaerr.Newf(fustaerr.NotFound, "%q is not a range entry", name)
	}

	frag, found := cat.GetByID(id)
	if !found {
		return nil, 0, 0, fustaerr.Newf(fustaerr.NotFound, "unknown fragment id %q in range request", id)
	}

	ll := frag.LogicalLength()
	if start < 1 || end < start || end > ll {
		return nil, 0, 0, fustaerr.Newf(fustaerr.InvalidArgument,
			"range %d-%d invalid for fragment %q of logical length %d", start, end, id, ll)
	}

	return frag, start - 1, end, nil
}
