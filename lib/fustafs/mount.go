package fustafs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/fusta-fs/fusta/lib/backing"
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/commit"
	"github.com/fusta-fs/fusta/lib/overlay"
)

// DefaultCeilingBytes is the overlay memory ceiling used when Options
// leaves Ceiling nil, matching the CLI's --max-cache default of 500 MB.
const DefaultCeilingBytes = 500 * 1 << 20

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory the filesystem is mounted at. It
	// is created if it does not exist.
	Mountpoint string

	// SourcePath is the original FASTA file's path, rewritten by the
	// Commit Engine at unmount.
	SourcePath string

	// Catalog is the fragment catalog built by the Index Builder
	// (and mutated at runtime by the Append Ingestor, Write Overlay,
	// and rename/unlink handlers).
	Catalog *catalog.Catalog

	// Store serves unmodified fragment payload, dispatching appended
	// fragments to Appended rather than the original source.
	Store *backing.Dispatcher

	// Appended is the Resident store backing fragments created by
	// the Append Ingestor. Must be the same store wrapped inside
	// Store's Dispatcher.
	Appended *backing.Resident

	// Ceiling is the aggregate overlay memory budget shared across
	// every pending seqs/ buffer and append/ staging buffer. If nil,
	// DefaultCeilingBytes is used.
	Ceiling *overlay.Ceiling

	// SpillDir is where pending buffers and staging buffers spill
	// past the ceiling. If empty, os.TempDir() is used.
	SpillDir string

	// Separator is the infos.csv field separator. Defaults to ','.
	Separator byte

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// NonEmpty permits mounting over a non-empty directory.
	NonEmpty bool

	// Logger receives diagnostic messages. If nil, a quiet logger
	// that discards everything below Error is used.
	Logger *slog.Logger
}

// Server wraps the go-fuse server with the Commit Engine teardown
// sequence: unmount the kernel mount, then rewrite the source file,
// then release the backing store — matching spec's "destroy runs the
// commit engine before releasing the backing store." Unmount is safe
// to call more than once; only the first call does anything, so a
// repeated termination signal cannot re-enter the commit.
type Server struct {
	raw *fuse.Server
	st  *state

	once       sync.Once
	unmountErr error
}

// Unmount stops serving the mount, commits pending changes to the
// source file, and releases the backing store.
func (s *Server) Unmount() error {
	s.once.Do(func() {
		if err := s.raw.Unmount(); err != nil {
			s.unmountErr = fmt.Errorf("unmounting: %w", err)
			return
		}
		if err := commit.Run(s.st.sourcePath, s.st.cat, s.st.store); err != nil {
			s.unmountErr = fmt.Errorf("committing: %w", err)
			return
		}
		s.unmountErr = s.st.store.Close()
	})
	return s.unmountErr
}

// Wait blocks until the mount is unmounted, by any means (kernel
// umount(8), a crash, or this process's own Unmount).
func (s *Server) Wait() {
	s.raw.Wait()
}

// Mount mounts the fusta filesystem at the configured mountpoint.
func Mount(options Options) (*Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if options.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if options.SourcePath == "" {
		return nil, fmt.Errorf("source path is required")
	}

	if options.Ceiling == nil {
		options.Ceiling = overlay.NewCeiling(DefaultCeilingBytes)
	}
	if options.SpillDir == "" {
		options.SpillDir = os.TempDir()
	}
	if options.Separator == 0 {
		options.Separator = ','
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}
	if !options.NonEmpty {
		entries, err := os.ReadDir(options.Mountpoint)
		if err != nil {
			return nil, fmt.Errorf("reading mountpoint %s: %w", options.Mountpoint, err)
		}
		if len(entries) > 0 {
			return nil, fmt.Errorf("mountpoint %s is not empty (pass --non-empty to proceed anyway)", options.Mountpoint)
		}
	}

	st := &state{
		cat:        options.Catalog,
		store:      options.Store,
		appended:   options.Appended,
		ceiling:    options.Ceiling,
		spillDir:   options.SpillDir,
		sep:        options.Separator,
		sourcePath: options.SourcePath,
		logger:     options.Logger,
	}

	root := &rootNode{st: st}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	raw, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "fusta",
			Name:       "fusta",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	st.logger.Info("fusta mounted", "mountpoint", options.Mountpoint, "source", options.SourcePath)
	return &Server{raw: raw, st: st}, nil
}

// rootNode is the filesystem root: append/, fasta/, get/, seqs/, and
// the three generated files.
type rootNode struct {
	gofuse.Inode
	st *state
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	appendDir := r.NewPersistentInode(ctx, &appendDirNode{st: r.st}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("append", appendDir, true)

	fastaDir := r.NewPersistentInode(ctx, &fastaDirNode{st: r.st}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("fasta", fastaDir, true)

	getDir := r.NewPersistentInode(ctx, &getDirNode{st: r.st}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("get", getDir, true)

	seqsDir := r.NewPersistentInode(ctx, &seqsDirNode{st: r.st}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("seqs", seqsDir, true)

	infosCSV := r.NewPersistentInode(ctx, &generatedFileNode{st: r.st, generate: generateInfosCSV}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	r.AddChild("infos.csv", infosCSV, true)

	infosTxt := r.NewPersistentInode(ctx, &generatedFileNode{st: r.st, generate: generateInfosTxt}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	r.AddChild("infos.txt", infosTxt, true)

	labelsTxt := r.NewPersistentInode(ctx, &generatedFileNode{st: r.st, generate: generateLabelsTxt}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	r.AddChild("labels.txt", labelsTxt, true)
}

// sliceDirStream implements gofuse.DirStream over a fixed slice of
// entries, used by every directory whose listing is computed once per
// Readdir call rather than streamed incrementally.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
