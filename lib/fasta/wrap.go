package fasta

import "io"

// WrapWidth is the number of sequence characters per line in a
// rendered fasta/<id>.fa file.
const WrapWidth = 60

// WrapWriter reflows a stream of logical sequence bytes into
// fixed-width lines terminated by LF, matching the layout the virtual
// FASTA view promises getattr callers via its size computation.
type WrapWriter struct {
	w     io.Writer
	width int
	col   int
}

// NewWrapWriter returns a WrapWriter that breaks lines every width
// bytes.
func NewWrapWriter(w io.Writer, width int) *WrapWriter {
	return &WrapWriter{w: w, width: width}
}

func (ww *WrapWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		room := ww.width - ww.col
		n := room
		if n > len(p) {
			n = len(p)
		}
		if _, err := ww.w.Write(p[:n]); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
		ww.col += n
		if ww.col == ww.width {
			if _, err := ww.w.Write([]byte{'\n'}); err != nil {
				return written, err
			}
			ww.col = 0
		}
	}
	return written, nil
}

// Flush terminates a partial trailing line with LF, if one is open.
func (ww *WrapWriter) Flush() error {
	if ww.col == 0 {
		return nil
	}
	_, err := ww.w.Write([]byte{'\n'})
	ww.col = 0
	return err
}
