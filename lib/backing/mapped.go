//go:build darwin || linux

package backing

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

// Mapped extracts fragment bytes from a read-only memory map of the
// whole source file. Slicing a mapping is cheap enough that, unlike
// Positional, it needs no per-fragment skip-list.
type Mapped struct {
	file *os.File
	data []byte
}

// NewMapped mmaps f's full contents read-only. f is retained and
// closed by Close.
func NewMapped(f *os.File) (*Mapped, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fustaerr.New(fustaerr.IO, err)
	}
	size := info.Size()
	if size == 0 {
		return &Mapped{file: f}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fustaerr.New(fustaerr.IO, err)
	}
	return &Mapped{file: f, data: data}, nil
}

func (m *Mapped) Extract(frag *catalog.Fragment, l0, l1 int64) ([]byte, error) {
	if err := validateRange(frag, l0, l1); err != nil {
		return nil, err
	}
	raw := m.data[frag.PayloadRange.Start:frag.PayloadRange.End]
	return fasta.ExtractLogical(raw, l0, l1), nil
}

func (m *Mapped) ExtractRaw(frag *catalog.Fragment) ([]byte, error) {
	raw := m.data[frag.PayloadRange.Start:frag.PayloadRange.End]
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (m *Mapped) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return fustaerr.New(fustaerr.IO, err)
		}
		m.data = nil
	}
	return m.file.Close()
}
