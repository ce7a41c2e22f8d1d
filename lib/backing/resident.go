package backing

import (
	"io"
	"os"

	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

// Resident holds every fragment's raw payload copied into owned
// memory, keyed by the fragment's stable seqs/ inode. Lock-free after
// load: its map is built once at mount time and only appended to (by
// the Append Ingestor), never concurrently mutated and read at once
// under the mount's coarse lock.
type Resident struct {
	data map[uint64][]byte
}

// NewResident returns an empty Resident store.
func NewResident() *Resident {
	return &Resident{data: make(map[uint64][]byte)}
}

// Load copies frag's payload range out of f into the store.
func (r *Resident) Load(f *os.File, frag *catalog.Fragment) error {
	buf := make([]byte, frag.PayloadRange.Len())
	if _, err := f.ReadAt(buf, frag.PayloadRange.Start); err != nil && err != io.EOF {
		return fustaerr.New(fustaerr.IO, err)
	}
	r.data[frag.SeqIno] = buf
	return nil
}

// Put installs raw as frag's payload directly — used by the Append
// Ingestor, whose staged bytes are already resident in memory.
func (r *Resident) Put(frag *catalog.Fragment, raw []byte) {
	r.data[frag.SeqIno] = raw
}

func (r *Resident) Extract(frag *catalog.Fragment, l0, l1 int64) ([]byte, error) {
	if err := validateRange(frag, l0, l1); err != nil {
		return nil, err
	}
	raw, ok := r.data[frag.SeqIno]
	if !ok {
		return nil, fustaerr.Newf(fustaerr.NotFound, "no resident payload for fragment %q", frag.ID)
	}
	return fasta.ExtractLogical(raw, l0, l1), nil
}

func (r *Resident) ExtractRaw(frag *catalog.Fragment) ([]byte, error) {
	raw, ok := r.data[frag.SeqIno]
	if !ok {
		return nil, fustaerr.Newf(fustaerr.NotFound, "no resident payload for fragment %q", frag.ID)
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (r *Resident) Close() error {
	r.data = nil
	return nil
}
