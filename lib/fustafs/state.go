// Package fustafs maps the fragment catalog, backing store, and write
// overlay onto a FUSE directory tree: root/{append,fasta,get,seqs}/ plus
// the three generated listing files, grounded on the teacher's
// lib/artifact/fuse and lib/artifactstore/fuse mount packages
// (rootNode.OnAdd building persistent child directories, NodeLookuper/
// NodeReaddirer/NodeCreater/NodeGetattrer node types, sliceDirStream).
package fustafs

import (
	"log/slog"
	"sync"
	"syscall"

	"github.com/fusta-fs/fusta/lib/backing"
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fustaerr"
	"github.com/fusta-fs/fusta/lib/overlay"
)

// state is the mount-wide shared data every node reaches into. A
// single coarse mutex guards the catalog and overlay mutations, per
// the concurrency model of one shared state tree visited by parallel
// kernel-driven callback goroutines. Reads from the backing store are
// made while holding the lock as well.
type state struct {
	mu sync.Mutex

	cat      *catalog.Catalog
	store    backing.Store
	appended *backing.Resident

	ceiling  *overlay.Ceiling
	spillDir string
	sep      byte

	sourcePath string
	logger     *slog.Logger
}

// errno translates an internal error to the syscall.Errno a FUSE
// callback should return, logging anything that isn't a well-typed
// fustaerr.Error at error level since those indicate a bug rather than
// an expected user-facing condition.
func (s *state) errno(op string, err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if fustaerr.KindOf(err) == fustaerr.Unknown {
		s.logger.Error("unclassified error", "op", op, "error", err)
	}
	return fustaerr.Errno(err)
}
