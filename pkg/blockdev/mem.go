package blockdev

import "sync"

// MemDevice is an in-memory BlockDevice, used by tests. It also doubles as
// the fault-injection harness spec.md §8's scenario 6 calls for:
// FailNextWrites and FailNextReads let a test force the next N operations to
// return an error without disturbing the underlying bytes.
type MemDevice struct {
	mu         sync.Mutex
	blockSize  int
	blockCount uint64
	data       []byte

	failReads  int
	failWrites int
}

// NewMemDevice allocates a zero-filled in-memory device of blockCount blocks
// of blockSize bytes each.
func NewMemDevice(blockSize int, blockCount uint64) *MemDevice {
	return &MemDevice{
		blockSize:  blockSize,
		blockCount: blockCount,
		data:       make([]byte, blockSize*int(blockCount)),
	}
}

// BlockSize implements BlockDevice.
func (d *MemDevice) BlockSize() int { return d.blockSize }

// BlockCount implements BlockDevice.
func (d *MemDevice) BlockCount() uint64 { return d.blockCount }

// ReadBlock implements BlockDevice.
func (d *MemDevice) ReadBlock(n uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n >= d.blockCount {
		return ErrOutOfRange
	}

	if d.failReads > 0 {
		d.failReads--
		return errInjected
	}

	off := int(n) * d.blockSize
	copy(buf, d.data[off:off+d.blockSize])
	return nil
}

// WriteBlock implements BlockDevice.
func (d *MemDevice) WriteBlock(n uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n >= d.blockCount {
		return ErrOutOfRange
	}

	if d.failWrites > 0 {
		d.failWrites--
		return errInjected
	}

	off := int(n) * d.blockSize
	copy(d.data[off:off+d.blockSize], buf[:d.blockSize])
	return nil
}

// FailNextWrites makes the next n calls to WriteBlock fail with an injected
// error, used to exercise the "flush preserves dirty-on-failure" scenario.
func (d *MemDevice) FailNextWrites(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWrites = n
}

// FailNextReads makes the next n calls to ReadBlock fail with an injected
// error.
func (d *MemDevice) FailNextReads(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failReads = n
}

var errInjected = &injectedError{}

type injectedError struct{}

func (*injectedError) Error() string { return "blockdev: injected I/O failure" }
