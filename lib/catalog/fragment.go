// Package catalog holds the dual-indexed fragment store: one entry per
// FASTA record, looked up either by id (for the fasta/ and seqs/
// directories) or by inode (for Getattr/Read on an already-opened
// handle).
//
// Catalog is not safe for concurrent use on its own — callers serialize
// access with the same lock that guards the virtual tree and write
// overlay, per the mount's single coarse mutex.
package catalog

import (
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/overlay"
)

// Fragment is one header-delimited record, active or tombstoned.
type Fragment struct {
	ID    string
	Extra string

	HeaderRange  fasta.Range
	PayloadRange fasta.Range

	// FastaIno and SeqIno back fasta/<id>.fa and seqs/<id>.seq
	// respectively. RangeIno is reserved per the data model but is
	// not handed out as a persistent inode — get/ entries are
	// allocated fresh on every lookup.
	FastaIno uint64
	SeqIno   uint64
	RangeIno uint64

	// Pending is non-nil once seqs/<id>.seq has received a write.
	// While set, it fully shadows PayloadRange: all reads of this
	// fragment's payload, through any view, go through Pending.
	Pending *overlay.Pending

	Tombstoned bool

	// Appended is true for fragments created by the Append Ingestor
	// rather than the initial Index Builder pass. The Commit Engine
	// uses this to decide whether a fragment's payload can be copied
	// verbatim (original, untouched fragments) or must be freshly
	// line-wrapped (appended or overlay-modified fragments).
	Appended bool

	// logicalLength is the non-newline byte count computed at load
	// time from PayloadRange. Ignored once Pending is set.
	logicalLength int64
}

func newFragment(rec fasta.Record, fastaIno, seqIno, rangeIno uint64) *Fragment {
	return &Fragment{
		ID:            rec.ID,
		Extra:         rec.Extra,
		HeaderRange:   rec.HeaderRange,
		PayloadRange:  rec.PayloadRange,
		FastaIno:      fastaIno,
		SeqIno:        seqIno,
		RangeIno:      rangeIno,
		logicalLength: rec.LogicalLength,
	}
}

// LogicalLength returns the fragment's current non-newline payload
// length, deferring to the pending overlay buffer once one exists.
func (f *Fragment) LogicalLength() int64 {
	if f.Pending != nil {
		return f.Pending.LogicalLength()
	}
	return f.logicalLength
}

// HasPending reports whether writes have shadowed the backing payload.
func (f *Fragment) HasPending() bool {
	return f.Pending != nil
}
