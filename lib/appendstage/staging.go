// Package appendstage implements the append/ staging directory: a
// file created under append/ accumulates raw bytes, and when it is
// closed is parsed as FASTA and merged into the catalog. A failed parse discards
// the staged bytes without mutating the catalog.
package appendstage

import (
	"github.com/fusta-fs/fusta/lib/backing"
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/fustaerr"
	"github.com/fusta-fs/fusta/lib/overlay"
)

// Buffer is one append/ file's pending byte accumulator, from create()
// until the file is closed. It reuses the write-overlay's memory/spill
// buffer but bypasses its seqs/ content policy: append/ accepts raw
// FASTA bytes, '>' header markers included.
type Buffer struct {
	pending *overlay.Pending
}

// NewBuffer returns an empty staging buffer. dir is where it spills
// past ceiling, if ceiling is non-nil and eventually exceeded.
func NewBuffer(dir string, ceiling *overlay.Ceiling) (*Buffer, error) {
	p, err := overlay.NewPending(nil, ceiling, dir)
	if err != nil {
		return nil, err
	}
	return &Buffer{pending: p}, nil
}

func (b *Buffer) Write(offset int64, data []byte) (int, error) {
	return b.pending.WriteRaw(offset, data)
}

func (b *Buffer) Truncate(size int64) error {
	return b.pending.Truncate(size)
}

func (b *Buffer) Size() int64 {
	return b.pending.Size()
}

// Close discards the buffer and its spill file, if any.
func (b *Buffer) Close() error {
	return b.pending.Close()
}

// Ingest parses b's content as FASTA and inserts each resulting
// fragment into cat, storing its payload bytes in resident. It returns
// the ids of every fragment it added. On any error — a parse failure,
// or a catalog collision the allow-overwrite policy doesn't permit —
// nothing is inserted and the caller is expected to Close b and leave
// append/ empty.
func Ingest(cat *catalog.Catalog, resident *backing.Resident, b *Buffer) ([]string, error) {
	recs, err := fasta.ReadAll(b.pending.Reader())
	if err != nil {
		return nil, fustaerr.New(fustaerr.InvalidArgument, err)
	}

	// Validate the whole batch against the live catalog before
	// mutating anything: a partially-ingested append would leave the
	// catalog in a state no caller could have asked for.
	if !cat.AllowOverwrite() {
		for _, rec := range recs {
			if _, exists := cat.GetByID(rec.ID); exists {
				return nil, fustaerr.Newf(fustaerr.Exists, "fragment id %q already exists", rec.ID)
			}
		}
	}

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		raw, err := b.pending.ReadAt(rec.PayloadRange.Start, rec.PayloadRange.Len())
		if err != nil {
			return nil, err
		}
		frag, err := cat.Insert(rec)
		if err != nil {
			return nil, err
		}
		frag.Appended = true
		resident.Put(frag, raw)
		ids = append(ids, frag.ID)
	}
	return ids, nil
}
