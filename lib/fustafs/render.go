package fustafs

import (
	"bytes"

	"github.com/fusta-fs/fusta/lib/backing"
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

// renderChunk bounds how much logical payload is pulled from the
// backing store or overlay at a time while composing fasta/<id>.fa,
// matching the Commit Engine's chunking so a single huge fragment
// never forces one giant Extract call.
const renderChunk = 1 << 20

// renderFasta composes the full virtual content of fasta/<id>.fa: the
// header line followed by the fragment's logical payload rewrapped at
// fasta.WrapWidth, sourced from the overlay if one shadows the
// fragment, otherwise from the backing store. Unlike the Commit
// Engine, this always rewraps — fasta/<id>.fa's layout is independent
// of whether the fragment was touched since mount.
func renderFasta(frag *catalog.Fragment, store backing.Store) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('>')
	buf.WriteString(frag.ID)
	if frag.Extra != "" {
		buf.WriteByte(' ')
		buf.WriteString(frag.Extra)
	}
	buf.WriteByte('\n')

	ww := fasta.NewWrapWriter(&buf, fasta.WrapWidth)
	ll := frag.LogicalLength()
	for pos := int64(0); pos < ll; pos += renderChunk {
		end := pos + renderChunk
		if end > ll {
			end = ll
		}
		chunk, err := extractLogical(frag, store, pos, end)
		if err != nil {
			return nil, err
		}
		if _, err := ww.Write(chunk); err != nil {
			return nil, fustaerr.New(fustaerr.IO, err)
		}
	}
	if err := ww.Flush(); err != nil {
		return nil, fustaerr.New(fustaerr.IO, err)
	}
	return buf.Bytes(), nil
}

// extractLogical is the single point that chooses between the
// overlay and the backing store for a fragment's logical payload
// bytes, used by every read path (fasta/, get/) that needs the
// post-edit view.
func extractLogical(frag *catalog.Fragment, store backing.Store, l0, l1 int64) ([]byte, error) {
	if frag.HasPending() {
		return frag.Pending.LogicalReadAt(l0, l1)
	}
	return store.Extract(frag, l0, l1)
}

// fastaSize computes fasta/<id>.fa's byte length without rendering
// its content, so Getattr and Lookup stay cheap. It must track
// renderFasta's layout exactly, or stat() size and actual read length
// diverge.
func fastaSize(frag *catalog.Fragment) uint64 {
	headerLen := 1 + len(frag.ID) + 1 // '>' + id + '\n'
	if frag.Extra != "" {
		headerLen += 1 + len(frag.Extra) // ' ' + extra
	}
	ll := frag.LogicalLength()
	wrapLines := (ll + fasta.WrapWidth - 1) / fasta.WrapWidth
	return uint64(headerLen) + uint64(ll) + uint64(wrapLines)
}
