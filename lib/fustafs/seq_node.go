package fustafs

import (
	"context"
	"strings"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/overlay"
)

// seqsDirNode is seqs/: read/write, one <id>.seq entry per active
// fragment, exposing raw payload bytes (embedded newlines preserved).
type seqsDirNode struct {
	gofuse.Inode
	st *state
}

var _ gofuse.InodeEmbedder = (*seqsDirNode)(nil)
var _ gofuse.NodeLookuper = (*seqsDirNode)(nil)
var _ gofuse.NodeReaddirer = (*seqsDirNode)(nil)
var _ gofuse.NodeUnlinker = (*seqsDirNode)(nil)
var _ gofuse.NodeRenamer = (*seqsDirNode)(nil)
var _ gofuse.NodeFsyncer = (*seqsDirNode)(nil)

// Fsync acknowledges fsyncdir as a successful no-op. seqs/ commits
// only at unmount, so there is nothing to flush here, but leaving
// this unimplemented makes go-fuse return ENOSYS, which some editors
// surface as a save error.
func (d *seqsDirNode) Fsync(ctx context.Context, f gofuse.FileHandle, flags uint32) syscall.Errno {
	return 0
}

func (d *seqsDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	id, ok := strings.CutSuffix(name, ".seq")
	if !ok {
		return nil, syscall.ENOENT
	}

	d.st.mu.Lock()
	frag, found := d.st.cat.GetByID(id)
	d.st.mu.Unlock()
	if !found {
		return nil, syscall.ENOENT
	}

	child := d.NewPersistentInode(ctx, &seqFileNode{st: d.st, frag: frag},
		gofuse.StableAttr{Mode: syscall.S_IFREG, Ino: frag.SeqIno})
	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(seqSize(frag))
	return child, 0
}

func (d *seqsDirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	d.st.mu.Lock()
	active := d.st.cat.IterActive()
	d.st.mu.Unlock()

	entries := make([]fuse.DirEntry, 0, len(active))
	for _, frag := range active {
		entries = append(entries, fuse.DirEntry{
			Name: frag.ID + ".seq",
			Mode: syscall.S_IFREG,
			Ino:  frag.SeqIno,
		})
	}
	return &sliceDirStream{entries: entries}, 0
}

// Unlink tombstones the fragment and releases its overlay buffer, if
// any. The catalog keeps the tombstoned entry only for bookkeeping —
// it is invisible to every lookup and omitted from commit.
func (d *seqsDirNode) Unlink(ctx context.Context, name string) syscall.Errno {
	id, ok := strings.CutSuffix(name, ".seq")
	if !ok {
		return syscall.ENOENT
	}

	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	frag, found := d.st.cat.GetByID(id)
	if !found {
		return syscall.ENOENT
	}
	if err := d.st.cat.Remove(frag.SeqIno); err != nil {
		return d.st.errno("seqs.unlink", err)
	}
	if frag.Pending != nil {
		frag.Pending.Close()
		frag.Pending = nil
	}
	return 0
}

// Rename changes a fragment's id in place. Only renames within seqs/
// are meaningful — the catalog has no notion of a seqs/-to-elsewhere
// move.
func (d *seqsDirNode) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if _, ok := newParent.(*seqsDirNode); !ok {
		return syscall.EXDEV
	}
	oldID, ok := strings.CutSuffix(name, ".seq")
	if !ok {
		return syscall.ENOENT
	}
	newID, ok := strings.CutSuffix(newName, ".seq")
	if !ok {
		return syscall.EINVAL
	}
	if err := fasta.ValidateID(newID); err != nil {
		return syscall.EINVAL
	}

	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	if err := d.st.cat.Rename(oldID, newID); err != nil {
		return d.st.errno("seqs.rename", err)
	}
	return 0
}

// seqFileNode is seqs/<id>.seq: raw payload bytes, shadowed by the
// write overlay once a write has landed.
type seqFileNode struct {
	gofuse.Inode
	st   *state
	frag *catalog.Fragment
}

var _ gofuse.InodeEmbedder = (*seqFileNode)(nil)
var _ gofuse.NodeGetattrer = (*seqFileNode)(nil)
var _ gofuse.NodeSetattrer = (*seqFileNode)(nil)
var _ gofuse.NodeOpener = (*seqFileNode)(nil)
var _ gofuse.NodeReader = (*seqFileNode)(nil)

func seqSize(frag *catalog.Fragment) int64 {
	if frag.Pending != nil {
		return frag.Pending.Size()
	}
	return frag.PayloadRange.Len()
}

func (f *seqFileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o644
	f.st.mu.Lock()
	out.Size = uint64(seqSize(f.frag))
	f.st.mu.Unlock()
	return 0
}

// Setattr handles truncation: seqs/ files are mutable, so unlike a
// read-only generated file, a truncate request materializes the
// overlay (if not already pending) and resizes it.
func (f *seqFileNode) Setattr(ctx context.Context, fh gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		f.st.mu.Lock()
		err := f.ensurePendingLocked()
		if err == nil {
			err = f.frag.Pending.Truncate(int64(size))
		}
		f.st.mu.Unlock()
		if err != nil {
			return f.st.errno("seqs.setattr", err)
		}
	}
	out.Mode = syscall.S_IFREG | 0o644
	f.st.mu.Lock()
	out.Size = uint64(seqSize(f.frag))
	f.st.mu.Unlock()
	return 0
}

func (f *seqFileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		f.st.mu.Lock()
		err := f.ensurePendingLocked()
		f.st.mu.Unlock()
		if err != nil {
			return nil, 0, f.st.errno("seqs.open", err)
		}
		return &seqWriteHandle{st: f.st, frag: f.frag}, 0, 0
	}

	f.st.mu.Lock()
	content, err := f.rawContentLocked()
	f.st.mu.Unlock()
	if err != nil {
		return nil, 0, f.st.errno("seqs.open", err)
	}
	return &bufferHandle{content: content}, fuse.FOPEN_DIRECT_IO, 0
}

func (f *seqFileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	handle, ok := fh.(*bufferHandle)
	if !ok {
		return nil, syscall.EIO
	}
	return handle.readAt(dest, off), 0
}

// ensurePendingLocked materializes the overlay buffer from the
// fragment's current effective payload if no overlay exists yet.
// Callers hold st.mu.
func (f *seqFileNode) ensurePendingLocked() error {
	if f.frag.Pending != nil {
		return nil
	}
	raw, err := f.rawContentLocked()
	if err != nil {
		return err
	}
	pending, err := overlay.NewPending(raw, f.st.ceiling, f.st.spillDir)
	if err != nil {
		return err
	}
	f.frag.Pending = pending
	return nil
}

// rawContentLocked returns the fragment's current effective raw
// payload (embedded newlines included), from the overlay if pending,
// else from the backing store. Callers hold st.mu only to keep the
// catalog/overlay access coherent; the store fetch itself does not
// require the lock.
func (f *seqFileNode) rawContentLocked() ([]byte, error) {
	if f.frag.Pending != nil {
		return f.frag.Pending.ReadAt(0, f.frag.Pending.Size())
	}
	return f.st.store.ExtractRaw(f.frag)
}

// seqWriteHandle is the FileHandle returned by Open in write mode. It
// forwards directly to the fragment's overlay buffer, already
// materialized by Open.
type seqWriteHandle struct {
	st   *state
	frag *catalog.Fragment
}

var _ gofuse.FileWriter = (*seqWriteHandle)(nil)
var _ gofuse.FileFlusher = (*seqWriteHandle)(nil)
var _ gofuse.FileReleaser = (*seqWriteHandle)(nil)
var _ gofuse.FileFsyncer = (*seqWriteHandle)(nil)

func (h *seqWriteHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.st.mu.Lock()
	n, err := h.frag.Pending.Write(off, data)
	h.st.mu.Unlock()
	if err != nil {
		return 0, h.st.errno("seqs.write", err)
	}
	return uint32(n), 0
}

func (h *seqWriteHandle) Flush(ctx context.Context) syscall.Errno {
	return 0
}

func (h *seqWriteHandle) Release(ctx context.Context) syscall.Errno {
	return 0
}

// Fsync acknowledges fsync as a successful no-op; the overlay commits
// only at unmount, per the Commit Engine's contract.
func (h *seqWriteHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return 0
}
