package catalog

import (
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

// Catalog is the {id -> Fragment} / {inode -> Fragment} dual index.
// Insertion order is preserved for stable directory listings and a
// deterministic commit rewrite.
type Catalog struct {
	byID  map[string]*Fragment
	byIno map[uint64]*Fragment
	order []*Fragment

	nextIno        uint64
	allowOverwrite bool
}

// New returns an empty Catalog. firstIno is the first inode number it
// will hand out for fragment files; every fragment consumes three
// (fasta/<id>.fa, seqs/<id>.seq, and a reserved slot). allowOverwrite
// controls Insert's and Rename's collision policy.
func New(firstIno uint64, allowOverwrite bool) *Catalog {
	return &Catalog{
		byID:           make(map[string]*Fragment),
		byIno:          make(map[uint64]*Fragment),
		nextIno:        firstIno,
		allowOverwrite: allowOverwrite,
	}
}

// AllowOverwrite reports the catalog's collision policy, so callers
// that need to pre-validate a batch (the Append Ingestor) can check
// for collisions before mutating anything.
func (c *Catalog) AllowOverwrite() bool {
	return c.allowOverwrite
}

// allocInodes hands out three consecutive inode numbers for a new
// fragment.
func (c *Catalog) allocInodes() (fastaIno, seqIno, rangeIno uint64) {
	base := c.nextIno
	c.nextIno += 3
	return base, base + 1, base + 2
}

// GetByID returns the active fragment for id, or false if there is
// none (including if it exists only as a tombstone).
func (c *Catalog) GetByID(id string) (*Fragment, bool) {
	f, ok := c.byID[id]
	if !ok || f.Tombstoned {
		return nil, false
	}
	return f, true
}

// GetByIno returns the active fragment owning ino, or false.
func (c *Catalog) GetByIno(ino uint64) (*Fragment, bool) {
	f, ok := c.byIno[ino]
	if !ok || f.Tombstoned {
		return nil, false
	}
	return f, true
}

// IterActive returns every non-tombstoned fragment in insertion order.
func (c *Catalog) IterActive() []*Fragment {
	active := make([]*Fragment, 0, len(c.order))
	for _, f := range c.order {
		if !f.Tombstoned {
			active = append(active, f)
		}
	}
	return active
}

// Len returns the number of active fragments.
func (c *Catalog) Len() int {
	n := 0
	for _, f := range c.order {
		if !f.Tombstoned {
			n++
		}
	}
	return n
}

// Insert adds rec as a new fragment, append-only. If id collides with
// an active fragment, Insert rejects with a fustaerr.Exists error
// unless the catalog's allow-overwrite policy is set, in which case
// the prior fragment is tombstoned and the new one replaces it.
func (c *Catalog) Insert(rec fasta.Record) (*Fragment, error) {
	if existing, ok := c.byID[rec.ID]; ok && !existing.Tombstoned {
		if !c.allowOverwrite {
			return nil, fustaerr.Newf(fustaerr.Exists, "fragment id %q already exists", rec.ID)
		}
		existing.Tombstoned = true
	}

	fastaIno, seqIno, rangeIno := c.allocInodes()
	frag := newFragment(rec, fastaIno, seqIno, rangeIno)

	c.byID[rec.ID] = frag
	c.byIno[fastaIno] = frag
	c.byIno[seqIno] = frag
	c.order = append(c.order, frag)
	return frag, nil
}

// Rename changes a fragment's id, checking uniqueness against the
// current active set. Renaming onto an existing active id follows the
// same allow-overwrite policy as Insert.
func (c *Catalog) Rename(oldID, newID string) error {
	frag, ok := c.byID[oldID]
	if !ok || frag.Tombstoned {
		return fustaerr.Newf(fustaerr.NotFound, "no such fragment %q", oldID)
	}
	if oldID == newID {
		return nil
	}
	if target, ok := c.byID[newID]; ok && !target.Tombstoned {
		if !c.allowOverwrite {
			return fustaerr.Newf(fustaerr.Exists, "fragment id %q already exists", newID)
		}
		target.Tombstoned = true
	}

	delete(c.byID, oldID)
	frag.ID = newID
	c.byID[newID] = frag
	return nil
}

// Remove tombstones the fragment owning ino. Tombstoned fragments
// disappear from IterActive and from GetByID/GetByIno, and are omitted
// from the commit rewrite.
func (c *Catalog) Remove(ino uint64) error {
	frag, ok := c.byIno[ino]
	if !ok || frag.Tombstoned {
		return fustaerr.Newf(fustaerr.NotFound, "no such fragment")
	}
	frag.Tombstoned = true
	return nil
}
