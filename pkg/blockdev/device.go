// Package blockdev defines the capability-set interface the ext2 engine
// needs from whatever sits below it — a RAM disk, a VirtIO block device, or
// a plain host file used by tests and the cmd/ext2util harness — plus two
// concrete adapters over that interface.
//
// The real VirtIO/RAM-disk drivers live outside this subsystem (see
// spec.md §1); BlockDevice is the seam between them and the cache.
package blockdev

import "github.com/pkg/errors"

// ErrOutOfRange is returned by ReadBlock/WriteBlock when the requested block
// number is not less than BlockCount.
var ErrOutOfRange = errors.New("blockdev: block number out of range")

// BlockDevice abstracts a raw, block-addressable device. Any type exposing
// these four operations satisfies it — there is no vtable or struct of
// function pointers the way the C original's device_ops_t works; Go's
// interfaces already give us that dispatch.
type BlockDevice interface {
	// ReadBlock reads exactly BlockSize() bytes for block n into buf. buf
	// must be at least BlockSize() bytes. Returns ErrOutOfRange if
	// n >= BlockCount().
	ReadBlock(n uint64, buf []byte) error

	// WriteBlock writes exactly BlockSize() bytes from buf to block n. buf
	// must be at least BlockSize() bytes. Returns ErrOutOfRange if
	// n >= BlockCount().
	WriteBlock(n uint64, buf []byte) error

	// BlockSize returns the device's block size in bytes.
	BlockSize() int

	// BlockCount returns the total number of addressable blocks.
	BlockCount() uint64
}
