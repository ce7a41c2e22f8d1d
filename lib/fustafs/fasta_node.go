package fustafs

import (
	"context"
	"strings"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/fusta-fs/fusta/lib/catalog"
)

// fastaDirNode is fasta/: read-only, one <id>.fa entry per active
// fragment, rendered fresh on each open.
type fastaDirNode struct {
	gofuse.Inode
	st *state
}

var _ gofuse.InodeEmbedder = (*fastaDirNode)(nil)
var _ gofuse.NodeLookuper = (*fastaDirNode)(nil)
var _ gofuse.NodeReaddirer = (*fastaDirNode)(nil)

func (d *fastaDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	id, ok := strings.CutSuffix(name, ".fa")
	if !ok {
		return nil, syscall.ENOENT
	}

	d.st.mu.Lock()
	frag, found := d.st.cat.GetByID(id)
	d.st.mu.Unlock()
	if !found {
		return nil, syscall.ENOENT
	}

	child := d.NewPersistentInode(ctx, &fastaFileNode{st: d.st, frag: frag},
		gofuse.StableAttr{Mode: syscall.S_IFREG, Ino: frag.FastaIno})
	out.Mode = syscall.S_IFREG | 0o444
	d.st.mu.Lock()
	out.Size = fastaSize(frag)
	d.st.mu.Unlock()
	return child, 0
}

func (d *fastaDirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	d.st.mu.Lock()
	active := d.st.cat.IterActive()
	d.st.mu.Unlock()

	entries := make([]fuse.DirEntry, 0, len(active))
	for _, frag := range active {
		entries = append(entries, fuse.DirEntry{
			Name: frag.ID + ".fa",
			Mode: syscall.S_IFREG,
			Ino:  frag.FastaIno,
		})
	}
	return &sliceDirStream{entries: entries}, 0
}

// fastaFileNode is fasta/<id>.fa: the header line followed by the
// fragment's logical payload rewrapped at fasta.WrapWidth.
type fastaFileNode struct {
	gofuse.Inode
	st   *state
	frag *catalog.Fragment
}

var _ gofuse.InodeEmbedder = (*fastaFileNode)(nil)
var _ gofuse.NodeGetattrer = (*fastaFileNode)(nil)
var _ gofuse.NodeOpener = (*fastaFileNode)(nil)
var _ gofuse.NodeReader = (*fastaFileNode)(nil)

func (f *fastaFileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	f.st.mu.Lock()
	out.Size = fastaSize(f.frag)
	f.st.mu.Unlock()
	return 0
}

func (f *fastaFileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	f.st.mu.Lock()
	content, err := renderFasta(f.frag, f.st.store)
	f.st.mu.Unlock()
	if err != nil {
		return nil, 0, f.st.errno("fasta.open", err)
	}
	return &bufferHandle{content: content}, fuse.FOPEN_DIRECT_IO, 0
}

func (f *fastaFileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	handle, ok := fh.(*bufferHandle)
	if !ok {
		return nil, syscall.EIO
	}
	return handle.readAt(dest, off), 0
}

// bufferHandle serves reads from a fully-rendered, immutable byte
// slice captured at Open time — used for fasta/<id>.fa and get/
// entries, whose content is cheapest to build once per handle rather
// than reconstructed on every Read.
type bufferHandle struct {
	content []byte
}

func (h *bufferHandle) readAt(dest []byte, off int64) fuse.ReadResult {
	if off < 0 || off >= int64(len(h.content)) {
		return fuse.ReadResultData(nil)
	}
	end := off + int64(len(dest))
	if end > int64(len(h.content)) {
		end = int64(len(h.content))
	}
	return fuse.ReadResultData(h.content[off:end])
}

var _ gofuse.FileReleaser = (*bufferHandle)(nil)

func (h *bufferHandle) Release(ctx context.Context) syscall.Errno {
	return 0
}
