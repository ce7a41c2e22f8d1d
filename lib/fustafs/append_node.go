package fustafs

import (
	"context"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/fusta-fs/fusta/lib/appendstage"
)

// appendDirNode is append/: a staging directory that always lists
// empty (per spec's resolved open question), accepting new files that
// are parsed as FASTA and merged into the catalog on flush (close).
type appendDirNode struct {
	gofuse.Inode
	st *state
}

var _ gofuse.InodeEmbedder = (*appendDirNode)(nil)
var _ gofuse.NodeReaddirer = (*appendDirNode)(nil)
var _ gofuse.NodeCreater = (*appendDirNode)(nil)
var _ gofuse.NodeFsyncer = (*appendDirNode)(nil)

func (d *appendDirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	return &sliceDirStream{}, 0
}

// Fsync acknowledges fsyncdir as a successful no-op, matching
// seqsDirNode.Fsync.
func (d *appendDirNode) Fsync(ctx context.Context, f gofuse.FileHandle, flags uint32) syscall.Errno {
	return 0
}

func (d *appendDirNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	buf, err := appendstage.NewBuffer(d.st.spillDir, d.st.ceiling)
	if err != nil {
		return nil, nil, 0, d.st.errno("append.create", err)
	}

	handle := &appendWriteHandle{st: d.st, buf: buf}
	node := &appendInProgressNode{handle: handle}
	child := d.NewInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o644

	return child, handle, 0, 0
}

// appendInProgressNode is the ephemeral inode for a file mid-write
// under append/. It never appears in Readdir and is dropped once the
// kernel forgets it; its only purpose is to answer Getattr with the
// buffer's current size during the write.
type appendInProgressNode struct {
	gofuse.Inode
	handle *appendWriteHandle
}

var _ gofuse.InodeEmbedder = (*appendInProgressNode)(nil)
var _ gofuse.NodeGetattrer = (*appendInProgressNode)(nil)

func (n *appendInProgressNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(n.handle.buf.Size())
	return 0
}

// appendWriteHandle buffers one append/ file and, on Flush, parses and
// ingests it into the catalog. Ingestion failures are reported as the
// Flush errno and leave the catalog untouched.
type appendWriteHandle struct {
	mu sync.Mutex

	st      *state
	buf     *appendstage.Buffer
	flushed bool
}

var _ gofuse.FileWriter = (*appendWriteHandle)(nil)
var _ gofuse.FileFlusher = (*appendWriteHandle)(nil)
var _ gofuse.FileReleaser = (*appendWriteHandle)(nil)
var _ gofuse.FileFsyncer = (*appendWriteHandle)(nil)

func (h *appendWriteHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, err := h.buf.Write(off, data)
	if err != nil {
		return 0, h.st.errno("append.write", err)
	}
	return uint32(n), 0
}

func (h *appendWriteHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.flushed {
		return 0
	}
	h.flushed = true
	defer h.buf.Close()

	h.st.mu.Lock()
	ids, err := appendstage.Ingest(h.st.cat, h.st.appended, h.buf)
	h.st.mu.Unlock()

	if err != nil {
		h.st.logger.Error("append ingestion failed", "error", err)
		return h.st.errno("append.flush", err)
	}
	h.st.logger.Info("append ingested", "fragments", ids)
	return 0
}

func (h *appendWriteHandle) Release(ctx context.Context) syscall.Errno {
	return 0
}

// Fsync acknowledges fsync as a successful no-op; ingestion happens on
// Flush, not fsync.
func (h *appendWriteHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return 0
}
