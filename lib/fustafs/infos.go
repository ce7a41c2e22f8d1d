package fustafs

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// generatedFileNode serves one of the three read-only synthetic
// listing files. Content is recomputed on every Open — cheap relative
// to a typical fragment count, and simpler than memoizing with
// catalog-mutation invalidation for a marginal gain.
type generatedFileNode struct {
	gofuse.Inode
	st       *state
	generate func(st *state) []byte
}

var _ gofuse.InodeEmbedder = (*generatedFileNode)(nil)
var _ gofuse.NodeGetattrer = (*generatedFileNode)(nil)
var _ gofuse.NodeOpener = (*generatedFileNode)(nil)
var _ gofuse.NodeReader = (*generatedFileNode)(nil)

func (g *generatedFileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	g.st.mu.Lock()
	content := g.generate(g.st)
	g.st.mu.Unlock()
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(len(content))
	return 0
}

func (g *generatedFileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	g.st.mu.Lock()
	content := g.generate(g.st)
	g.st.mu.Unlock()
	return &bufferHandle{content: content}, fuse.FOPEN_DIRECT_IO, 0
}

func (g *generatedFileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	handle, ok := fh.(*bufferHandle)
	if !ok {
		return nil, syscall.EIO
	}
	return handle.readAt(dest, off), 0
}

// generateInfosCSV renders "name<sep>info<sep>length" followed by one
// row per active fragment. An empty catalog renders nothing at all,
// matching the contract that the generated files stay size 0 until
// there is something to report.
func generateInfosCSV(st *state) []byte {
	active := st.cat.IterActive()
	if len(active) == 0 {
		return nil
	}

	var buf bytes.Buffer
	sep := string(st.sep)

	fmt.Fprintf(&buf, "name%sinfo%slength\n", sep, sep)
	for _, frag := range active {
		fmt.Fprintf(&buf, "%s%s%s%s%d\n", frag.ID, sep, frag.Extra, sep, frag.LogicalLength())
	}
	return buf.Bytes()
}

// generateInfosTxt renders a banner line, an underline, and a
// fixed-width aligned table with columns Name, Info, Length — the
// original's make_info_buffer layout. Empty for an empty catalog.
func generateInfosTxt(st *state) []byte {
	active := st.cat.IterActive()
	if len(active) == 0 {
		return nil
	}

	banner := fmt.Sprintf("%s - %d sequences", st.sourcePath, len(active))

	nameWidth := len("Name")
	infoWidth := len("Info")
	lengthWidth := len("Length")
	for _, frag := range active {
		if len(frag.ID) > nameWidth {
			nameWidth = len(frag.ID)
		}
		if len(frag.Extra) > infoWidth {
			infoWidth = len(frag.Extra)
		}
		if w := len(strconv.FormatInt(frag.LogicalLength(), 10)); w > lengthWidth {
			lengthWidth = w
		}
	}

	var buf bytes.Buffer
	buf.WriteString(banner)
	buf.WriteByte('\n')
	buf.WriteString(strings.Repeat("=", len(banner)))
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "%-*s  %-*s  %*s\n", nameWidth, "Name", infoWidth, "Info", lengthWidth, "Length")
	for _, frag := range active {
		fmt.Fprintf(&buf, "%-*s  %-*s  %*d\n", nameWidth, frag.ID, infoWidth, frag.Extra, lengthWidth, frag.LogicalLength())
	}
	return buf.Bytes()
}

// generateLabelsTxt renders one line per active fragment containing
// the original header text (without the leading '>'). Empty for an
// empty catalog.
func generateLabelsTxt(st *state) []byte {
	active := st.cat.IterActive()
	if len(active) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, frag := range active {
		buf.WriteString(frag.ID)
		if frag.Extra != "" {
			buf.WriteByte(' ')
			buf.WriteString(frag.Extra)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
