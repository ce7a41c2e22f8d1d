// Package fustaerr defines the error kinds that cross the FUSE boundary.
//
// Internal packages return plain Go errors, wrapped with fmt.Errorf as
// usual. Where a caller needs to report a specific POSIX errno back to
// the kernel, it wraps the error in a *Error carrying a Kind. Only the
// lib/fustafs callback layer inspects Kind; everything below it just
// returns error.
package fustaerr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies an error for translation to a FUSE errno.
type Kind int

const (
	// Unknown is the zero value; callers that don't care about the
	// specific kind map it to EIO.
	Unknown Kind = iota

	// NotFound means an unknown path, id, or inode was requested.
	NotFound

	// InvalidArgument means malformed input: a bad range request,
	// disallowed bytes in a seqs/ write, or unparsable appended FASTA.
	InvalidArgument

	// Exists means a create or rename collided without the
	// allow-overwrite policy in effect.
	Exists

	// PermissionDenied means a write was attempted on a read-only
	// virtual file or directory.
	PermissionDenied

	// IO means a backing-store or commit failure.
	IO

	// OutOfSpace means the overlay's spill storage is exhausted.
	OutOfSpace
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case InvalidArgument:
		return "invalid argument"
	case Exists:
		return "exists"
	case PermissionDenied:
		return "permission denied"
	case IO:
		return "I/O error"
	case OutOfSpace:
		return "out of space"
	default:
		return "unknown error"
	}
}

// Errno returns the syscall.Errno a FUSE callback should reply with for
// this kind.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case NotFound:
		return syscall.ENOENT
	case InvalidArgument:
		return syscall.EINVAL
	case Exists:
		return syscall.EEXIST
	case PermissionDenied:
		return syscall.EACCES
	case IO:
		return syscall.EIO
	case OutOfSpace:
		return syscall.ENOSPC
	default:
		return syscall.EIO
	}
}

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. Returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Newf builds a *Error from a format string, like fmt.Errorf.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to Unknown if err does
// not wrap a *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Errno maps any error to the syscall.Errno a FUSE callback should
// return. Errors not wrapped in *Error map to EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind.Errno()
	}
	return syscall.EIO
}
