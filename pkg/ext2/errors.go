// Package ext2 implements the metadata and namespace engine of an ext2
// filesystem: superblock and group-descriptor lifecycle, block/inode bitmap
// allocation, inode and indirect-block mapping, byte-range file I/O, and the
// directory entry protocol, all layered over a blockcache.Cache.
package ext2

import "github.com/pkg/errors"

// Errno is the status taxonomy surfaced to callers, matching the codes an
// ext2 adapter hands up to its VFS.
type Errno int

const (
	Success Errno = iota
	Invalid
	NotFound
	NoMemory
	Busy
	Permission
)

func (e Errno) String() string {
	switch e {
	case Success:
		return "SUCCESS"
	case Invalid:
		return "INVALID"
	case NotFound:
		return "NOT_FOUND"
	case NoMemory:
		return "NO_MEMORY"
	case Busy:
		return "BUSY"
	case Permission:
		return "PERMISSION"
	default:
		return "UNKNOWN"
	}
}

// Error wraps an Errno with context, built with github.com/pkg/errors so
// that Cause and StackTrace are preserved through the call chain.
type Error struct {
	Code Errno
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

func newErr(code Errno, msg string) *Error {
	return &Error{Code: code, msg: msg}
}

func wrapErr(code Errno, msg string, cause error) *Error {
	return &Error{Code: code, msg: msg, err: errors.WithStack(cause)}
}

// Is reports whether err is an *Error carrying code.
func Is(err error, code Errno) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

var (
	ErrInvalid    = newErr(Invalid, "ext2: invalid argument")
	ErrNotFound   = newErr(NotFound, "ext2: not found")
	ErrNoMemory   = newErr(NoMemory, "ext2: no space left")
	ErrBusy       = newErr(Busy, "ext2: no cache slot available")
	ErrPermission = newErr(Permission, "ext2: permission denied")
)
