// Package commit implements the single rewrite of the backing FASTA
// performed at unmount: every active fragment, in catalog insertion
// order, with its effective payload (overlay-shadowed or not).
package commit

import (
	"io"

	"github.com/natefinch/atomic"

	"github.com/fusta-fs/fusta/lib/backing"
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/fustaerr"
)

// chunkSize bounds how much logical payload is requested per call
// while re-wrapping a modified or appended fragment. It does not bound
// peak memory by itself: an untouched fragment is copied with a single
// ExtractRaw call holding its whole raw payload, and each overlay read
// scans the whole pending buffer.
const chunkSize = 1 << 20

// Run rewrites sourcePath to contain every active fragment in cat, in
// insertion order, reading unmodified payloads from store and
// overlay-modified or appended payloads freshly line-wrapped. The
// rewrite goes through a temporary file in the same directory and is
// renamed over sourcePath only on complete success; on any failure
// the original file is left untouched.
func Run(sourcePath string, cat *catalog.Catalog, store backing.Store) error {
	pr, pw := io.Pipe()
	renderErr := make(chan error, 1)

	go func() {
		err := render(pw, cat, store)
		renderErr <- err
		if err != nil {
			pw.CloseWithError(err)
		} else {
			pw.Close()
		}
	}()

	if err := atomic.WriteFile(sourcePath, pr); err != nil {
		<-renderErr
		return fustaerr.New(fustaerr.IO, err)
	}
	return <-renderErr
}

func render(w io.Writer, cat *catalog.Catalog, store backing.Store) error {
	for _, frag := range cat.IterActive() {
		if err := writeHeader(w, frag); err != nil {
			return err
		}
		if frag.HasPending() || frag.Appended {
			if err := writeWrapped(w, frag, store); err != nil {
				return err
			}
			continue
		}
		if err := writeVerbatim(w, frag, store); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(w io.Writer, frag *catalog.Fragment) error {
	header := ">" + frag.ID
	if frag.Extra != "" {
		header += " " + frag.Extra
	}
	header += "\n"
	if _, err := w.Write([]byte(header)); err != nil {
		return fustaerr.New(fustaerr.IO, err)
	}
	return nil
}

// writeVerbatim copies an untouched fragment's original raw bytes,
// embedded newlines included, appending one LF if the payload didn't
// already end with one.
func writeVerbatim(w io.Writer, frag *catalog.Fragment, store backing.Store) error {
	raw, err := store.ExtractRaw(frag)
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return fustaerr.New(fustaerr.IO, err)
	}
	if len(raw) == 0 || raw[len(raw)-1] != '\n' {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return fustaerr.New(fustaerr.IO, err)
		}
	}
	return nil
}

// writeWrapped re-renders a modified or appended fragment's logical
// sequence at the standard wrap width.
func writeWrapped(w io.Writer, frag *catalog.Fragment, store backing.Store) error {
	ww := fasta.NewWrapWriter(w, fasta.WrapWidth)
	ll := frag.LogicalLength()
	for pos := int64(0); pos < ll; pos += chunkSize {
		end := pos + chunkSize
		if end > ll {
			end = ll
		}
		var chunk []byte
		var err error
		if frag.HasPending() {
			chunk, err = frag.Pending.LogicalReadAt(pos, end)
		} else {
			chunk, err = store.Extract(frag, pos, end)
		}
		if err != nil {
			return err
		}
		if _, err := ww.Write(chunk); err != nil {
			return fustaerr.New(fustaerr.IO, err)
		}
	}
	if err := ww.Flush(); err != nil {
		return fustaerr.New(fustaerr.IO, err)
	}
	return nil
}
