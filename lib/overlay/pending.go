package overlay

import (
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/google/uuid"

	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

// Pending is a mutable shadow of one fragment's payload. It is not
// safe for concurrent use; callers hold the mount's coarse state lock
// around every method call.
type Pending struct {
	ceiling  *Ceiling
	spillDir string

	mem   []byte
	spill *os.File

	size int64 // canonical raw (newline-inclusive) length

	dirtyLen bool
	cachedLL int64
}

// NewPending materializes initial as the starting content of a pending
// buffer. initial is copied; the caller's slice is not retained.
func NewPending(initial []byte, ceiling *Ceiling, spillDir string) (*Pending, error) {
	p := &Pending{
		ceiling:  ceiling,
		spillDir: spillDir,
		mem:      append([]byte(nil), initial...),
		size:     int64(len(initial)),
		dirtyLen: true,
	}
	if !ceiling.Reserve(p.size) {
		if err := p.spillToFile(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Size returns the buffer's current raw byte length, newlines included.
func (p *Pending) Size() int64 { return p.size }

// LogicalLength returns the count of non-newline bytes currently in
// the buffer, recomputing only if a write or truncate has invalidated
// the cached value.
func (p *Pending) LogicalLength() int64 {
	if !p.dirtyLen {
		return p.cachedLL
	}
	data, err := p.readAllForScan()
	if err != nil {
		// Scanning failure degrades to the last known-good value
		// rather than propagating: LogicalLength has no error
		// return in the fragment attribute path.
		return p.cachedLL
	}
	var n int64
	for _, b := range data {
		if b != '\n' {
			n++
		}
	}
	p.cachedLL = n
	p.dirtyLen = false
	return n
}

func (p *Pending) readAllForScan() ([]byte, error) {
	if p.spill == nil {
		return p.mem, nil
	}
	buf := make([]byte, p.size)
	if _, err := p.spill.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fustaerr.New(fustaerr.IO, err)
	}
	return buf, nil
}

// ReadAt returns up to length bytes starting at offset, truncated to
// the buffer's current size.
func (p *Pending) ReadAt(offset, length int64) ([]byte, error) {
	if offset < 0 {
		return nil, fustaerr.Newf(fustaerr.InvalidArgument, "negative read offset")
	}
	if offset >= p.size || length <= 0 {
		return []byte{}, nil
	}
	end := offset + length
	if end > p.size {
		end = p.size
	}
	if p.spill == nil {
		out := make([]byte, end-offset)
		copy(out, p.mem[offset:end])
		return out, nil
	}
	out := make([]byte, end-offset)
	if _, err := p.spill.ReadAt(out, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, fustaerr.New(fustaerr.IO, err)
	}
	return out, nil
}

// Reader returns a one-shot sequential io.Reader over the buffer's
// current full contents, used by the append ingestor to hand staged
// bytes to the FASTA parser without first materializing them as a
// single slice.
func (p *Pending) Reader() io.Reader {
	return &pendingReader{p: p}
}

type pendingReader struct {
	p   *Pending
	pos int64
}

func (r *pendingReader) Read(buf []byte) (int, error) {
	if r.pos >= r.p.size {
		return 0, io.EOF
	}
	chunk, err := r.p.ReadAt(r.pos, int64(len(buf)))
	if err != nil {
		return 0, err
	}
	if len(chunk) == 0 {
		return 0, io.EOF
	}
	n := copy(buf, chunk)
	r.pos += int64(n)
	return n, nil
}

// LogicalReadAt returns the non-newline bytes of the buffer falling
// in logical range [l0, l1), used when a fragment's payload is
// rendered (fasta/<id>.fa, get/ ranges, commit) while pending edits
// shadow the backing store.
func (p *Pending) LogicalReadAt(l0, l1 int64) ([]byte, error) {
	raw, err := p.readAllForScan()
	if err != nil {
		return nil, err
	}
	return fasta.ExtractLogical(raw, l0, l1), nil
}

// Write validates data against the seqs/ content policy, then applies
// it at offset as a single atomic operation: either every byte is
// valid and the whole write lands, or none of it does.
func (p *Pending) Write(offset int64, data []byte) (int, error) {
	for _, b := range data {
		if !isValidSeqByte(b) {
			return 0, fustaerr.Newf(fustaerr.InvalidArgument, "disallowed byte %#x in seqs/ write", b)
		}
	}
	return p.WriteRaw(offset, data)
}

// WriteRaw applies data at offset without the seqs/ content policy,
// used by the append staging buffer, which accepts arbitrary FASTA
// bytes (including the '>' header marker the seqs/ policy forbids).
func (p *Pending) WriteRaw(offset int64, data []byte) (int, error) {
	if offset < 0 {
		return 0, fustaerr.Newf(fustaerr.InvalidArgument, "negative write offset")
	}

	needed := offset + int64(len(data))
	if err := p.ensureCapacity(needed); err != nil {
		return 0, err
	}

	if p.spill != nil {
		if _, err := p.spill.WriteAt(data, offset); err != nil {
			return 0, ioOrSpaceErr(err)
		}
	} else {
		copy(p.mem[offset:], data)
	}

	if needed > p.size {
		p.size = needed
	}
	p.dirtyLen = true
	return len(data), nil
}

// Truncate grows or shrinks the buffer to newSize.
func (p *Pending) Truncate(newSize int64) error {
	if newSize < 0 {
		return fustaerr.Newf(fustaerr.InvalidArgument, "negative truncate size")
	}

	if p.spill != nil {
		if err := p.spill.Truncate(newSize); err != nil {
			return ioOrSpaceErr(err)
		}
	} else if newSize <= int64(len(p.mem)) {
		p.ceiling.Release(int64(len(p.mem)) - newSize)
		p.mem = p.mem[:newSize]
	} else if err := p.growMem(newSize); err != nil {
		return err
	}

	p.size = newSize
	p.dirtyLen = true
	return nil
}

// Close releases the buffer's spill file, if any, and its memory
// reservation against the ceiling.
func (p *Pending) Close() error {
	if p.spill != nil {
		name := p.spill.Name()
		p.spill.Close()
		p.spill = nil
		return os.Remove(name)
	}
	p.ceiling.Release(int64(len(p.mem)))
	p.mem = nil
	return nil
}

func (p *Pending) ensureCapacity(needed int64) error {
	if p.spill != nil {
		if needed <= p.size {
			return nil
		}
		if err := p.spill.Truncate(needed); err != nil {
			return ioOrSpaceErr(err)
		}
		return nil
	}
	if needed <= int64(len(p.mem)) {
		return nil
	}
	return p.growMem(needed)
}

func (p *Pending) growMem(newLen int64) error {
	delta := newLen - int64(len(p.mem))
	if delta <= 0 {
		return nil
	}
	if !p.ceiling.Reserve(delta) {
		if err := p.spillToFile(); err != nil {
			return err
		}
		if err := p.spill.Truncate(newLen); err != nil {
			return ioOrSpaceErr(err)
		}
		return nil
	}
	grown := make([]byte, newLen)
	copy(grown, p.mem)
	p.mem = grown
	return nil
}

func (p *Pending) spillToFile() error {
	f, err := os.CreateTemp(p.spillDir, "fusta-overlay-"+uuid.NewString()+"-*.tmp")
	if err != nil {
		return fustaerr.New(fustaerr.IO, err)
	}
	if len(p.mem) > 0 {
		if _, err := f.Write(p.mem); err != nil {
			f.Close()
			os.Remove(f.Name())
			return ioOrSpaceErr(err)
		}
	}
	p.ceiling.Release(int64(len(p.mem)))
	p.spill = f
	p.mem = nil
	return nil
}

func isValidSeqByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '\n', '-', '_', '.', '+', '=':
		return true
	}
	return false
}

func ioOrSpaceErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fustaerr.New(fustaerr.OutOfSpace, err)
	}
	return fustaerr.New(fustaerr.IO, err)
}
