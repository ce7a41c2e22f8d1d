package fustafs

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/rangeresolver"
)

// getDirNode is get/: never enumerable, synthesizing a read-only
// ephemeral entry on lookup of an ID:START-END name.
type getDirNode struct {
	gofuse.Inode
	st *state
}

var _ gofuse.InodeEmbedder = (*getDirNode)(nil)
var _ gofuse.NodeLookuper = (*getDirNode)(nil)
var _ gofuse.NodeReaddirer = (*getDirNode)(nil)

func (d *getDirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	return &sliceDirStream{}, 0
}

func (d *getDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	d.st.mu.Lock()
	frag, l0, l1, err := rangeresolver.Resolve(d.st.cat, name)
	d.st.mu.Unlock()
	if err != nil {
		return nil, d.st.errno("get.lookup", err)
	}

	// get/ entries never persist a stable inode across lookups: a
	// fresh ephemeral inode every time, never added as a child, so
	// repeated lookups of the same range do not share state.
	child := d.NewInode(ctx, &rangeFileNode{st: d.st, frag: frag, l0: l0, l1: l1}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(l1 - l0)
	return child, 0
}

// rangeFileNode is the ephemeral get/<id>:<start>-<end> entry: the
// range is fixed at Lookup time, and its bytes are extracted at Open.
type rangeFileNode struct {
	gofuse.Inode
	st   *state
	frag *catalog.Fragment
	l0   int64
	l1   int64
}

var _ gofuse.InodeEmbedder = (*rangeFileNode)(nil)
var _ gofuse.NodeGetattrer = (*rangeFileNode)(nil)
var _ gofuse.NodeOpener = (*rangeFileNode)(nil)
var _ gofuse.NodeReader = (*rangeFileNode)(nil)

func (f *rangeFileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(f.l1 - f.l0)
	return 0
}

func (f *rangeFileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	f.st.mu.Lock()
	content, err := extractLogical(f.frag, f.st.store, f.l0, f.l1)
	f.st.mu.Unlock()
	if err != nil {
		return nil, 0, f.st.errno("get.open", err)
	}
	return &bufferHandle{content: content}, fuse.FOPEN_DIRECT_IO, 0
}

func (f *rangeFileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	handle, ok := fh.(*bufferHandle)
	if !ok {
		return nil, syscall.EIO
	}
	return handle.readAt(dest, off), 0
}
