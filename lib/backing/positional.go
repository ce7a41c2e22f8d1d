package backing

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

// positionalStride is the logical byte spacing between cached anchors
// in Positional's per-fragment skip-list.
const positionalStride = 4096

type anchor struct {
	logical int64
	source  int64
}

// Positional extracts fragment bytes by seeking into a shared file
// handle. Access is serialized internally with a mutex, since a single
// *os.File's offset (and read calls against it) cannot be shared
// safely across goroutines — every read here uses ReadAt/SectionReader
// against explicit offsets, so the mutex really only protects the
// per-fragment anchor cache.
type Positional struct {
	mu      sync.Mutex
	file    *os.File
	anchors map[uint64][]anchor
}

// NewPositional returns a Positional store reading from f.
func NewPositional(f *os.File) *Positional {
	return &Positional{file: f, anchors: make(map[uint64][]anchor)}
}

func (s *Positional) Extract(frag *catalog.Fragment, l0, l1 int64) ([]byte, error) {
	if err := validateRange(frag, l0, l1); err != nil {
		return nil, err
	}
	if l0 == l1 {
		return []byte{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	startLogical, startSource := s.bestAnchor(frag, l0)
	section := io.NewSectionReader(s.file, startSource, frag.PayloadRange.End-startSource)
	br := bufio.NewReaderSize(section, 64*1024)

	out := make([]byte, 0, l1-l0)
	logical := startLogical
	source := startSource
	nextAnchorAt := ((logical / positionalStride) + 1) * positionalStride

	for logical < l1 {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fustaerr.New(fustaerr.IO, err)
		}
		source++
		if b == '\n' {
			continue
		}
		if logical >= l0 {
			out = append(out, b)
		}
		logical++
		if logical == nextAnchorAt {
			s.anchors[frag.SeqIno] = append(s.anchors[frag.SeqIno], anchor{logical, source})
			nextAnchorAt += positionalStride
		}
	}
	return out, nil
}

// bestAnchor returns the closest cached (logical, source) pair at or
// before l0, defaulting to the fragment's own payload start.
func (s *Positional) bestAnchor(frag *catalog.Fragment, l0 int64) (logical, source int64) {
	source = frag.PayloadRange.Start
	for _, a := range s.anchors[frag.SeqIno] {
		if a.logical <= l0 && a.logical > logical {
			logical, source = a.logical, a.source
		}
	}
	return logical, source
}

func (s *Positional) ExtractRaw(frag *catalog.Fragment) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, frag.PayloadRange.Len())
	if _, err := s.file.ReadAt(buf, frag.PayloadRange.Start); err != nil && err != io.EOF {
		return nil, fustaerr.New(fustaerr.IO, err)
	}
	return buf, nil
}

func (s *Positional) Close() error {
	return s.file.Close()
}
