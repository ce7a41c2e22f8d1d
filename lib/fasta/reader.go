package fasta

import (
	"bufio"
	"fmt"
	"io"
)

// Range is a half-open byte interval [Start, End) in the source stream.
type Range struct {
	Start int64
	End   int64
}

// Len returns End - Start.
func (r Range) Len() int64 { return r.End - r.Start }

// Record describes one header-delimited fragment found by Reader.
type Record struct {
	// ID is the header text up to the first ASCII whitespace byte.
	ID string

	// Extra is whatever follows the first whitespace byte on the
	// header line, unmodified. Empty if the header has no whitespace.
	Extra string

	// HeaderRange spans the '>' prefix through the line's terminating
	// LF (exclusive of any byte past the LF). If the header was the
	// final line of the stream with no trailing LF, HeaderRange.End
	// is simply the end of the header text.
	HeaderRange Range

	// PayloadRange spans the raw bytes between this header and the
	// next '>'-at-start-of-line (or end of stream), newlines included.
	PayloadRange Range

	// LogicalLength is the count of non-newline bytes in PayloadRange.
	LogicalLength int64
}

// Reader performs a single streaming pass over a FASTA byte stream,
// yielding Records in source order. It never buffers payload bytes; it
// only tracks offsets and a running non-newline byte count.
//
// Only UNIX line endings are recognized — a bare CR is not treated as a
// line terminator and is counted as a non-newline payload byte when it
// precedes a LF.
type Reader struct {
	br      *bufio.Reader
	pos     int64
	pending *pendingFragment
}

type pendingFragment struct {
	id           string
	extra        string
	headerStart  int64
	headerEnd    int64
	payloadStart int64
	logicalLen   int64
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next Record, or io.EOF once the stream is exhausted.
// Bytes appearing before the first header line are silently skipped —
// they belong to no fragment.
func (rd *Reader) Next() (Record, error) {
	for {
		content, start, _, _ := rd.readLine()
		if content == nil {
			// True end of stream: no more bytes were read at all.
			if rd.pending != nil {
				rec := rd.finalize(rd.pos)
				rd.pending = nil
				return rec, nil
			}
			return Record{}, io.EOF
		}

		if len(content) > 0 && content[0] == '>' {
			var completed Record
			haveCompleted := false
			if rd.pending != nil {
				completed = rd.finalize(start)
				haveCompleted = true
			}

			id, extra := splitHeader(content[1:])
			rd.pending = &pendingFragment{
				id:           id,
				extra:        extra,
				headerStart:  start,
				headerEnd:    rd.pos,
				payloadStart: rd.pos,
			}

			if haveCompleted {
				return completed, nil
			}
			continue
		}

		if rd.pending != nil {
			rd.pending.logicalLen += int64(len(content))
		}
	}
}

func (rd *Reader) finalize(payloadEnd int64) Record {
	p := rd.pending
	return Record{
		ID:            p.id,
		Extra:         p.extra,
		HeaderRange:   Range{p.headerStart, p.headerEnd},
		PayloadRange:  Range{p.payloadStart, payloadEnd},
		LogicalLength: p.logicalLen,
	}
}

// readLine reads up to and including the next LF, reporting the byte
// range it consumed. content is nil only when zero bytes remained to
// read. A final line with no trailing LF is reported with err == io.EOF
// and a non-nil content.
func (rd *Reader) readLine() (content []byte, start, end int64, err error) {
	start = rd.pos
	raw, err := rd.br.ReadBytes('\n')
	rd.pos += int64(len(raw))
	end = rd.pos

	if len(raw) == 0 {
		return nil, start, end, io.EOF
	}
	if raw[len(raw)-1] == '\n' {
		return raw[:len(raw)-1], start, end, nil
	}
	return raw, start, end, io.EOF
}

func splitHeader(b []byte) (id, extra string) {
	for i, c := range b {
		if isASCIISpace(c) {
			return string(b[:i]), string(b[i+1:])
		}
	}
	return string(b), ""
}

func isASCIISpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}

// ErrDuplicateID is wrapped into the error returned by ReadAll when two
// records share an id.
type ErrDuplicateID struct{ ID string }

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicated fragment id %q", e.ID)
}

// ErrInvalidID is wrapped into the error returned by ReadAll or
// ValidateID when an id is empty or contains a character forbidden in a
// POSIX filename.
type ErrInvalidID struct {
	ID     string
	Reason string
}

func (e *ErrInvalidID) Error() string {
	return fmt.Sprintf("fragment id %q is invalid: %s", e.ID, e.Reason)
}

// ValidateID reports whether id is non-empty and contains only bytes
// that are legal in a POSIX filename: no '/', no NUL, no control
// character.
func ValidateID(id string) error {
	if id == "" {
		return &ErrInvalidID{ID: id, Reason: "empty id"}
	}
	for _, c := range []byte(id) {
		if c == '/' || c == 0 || c < 0x20 || c == 0x7f {
			return &ErrInvalidID{ID: id, Reason: fmt.Sprintf("forbidden character %q", c)}
		}
	}
	return nil
}

// ReadAll drains r into a slice of Records, validating every id with
// ValidateID and rejecting duplicates. This is the FASTA Index Builder
// entry point: mount aborts if this returns an error.
func ReadAll(r io.Reader) ([]Record, error) {
	reader := NewReader(r)
	seen := make(map[string]bool)
	var records []Record

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if verr := ValidateID(rec.ID); verr != nil {
			return nil, verr
		}
		if seen[rec.ID] {
			return nil, &ErrDuplicateID{ID: rec.ID}
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records, nil
}
