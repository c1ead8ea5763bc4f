package blockdev

import (
	"io"
	"os"
)

// FileDevice adapts a host file to BlockDevice. It stands in for the real
// kernel's VirtIO block device or RAM disk driver — both out of scope for
// this subsystem (spec.md §1) — when exercising the engine from a host
// process, as cmd/ext2util does.
type FileDevice struct {
	f          *os.File
	blockSize  int
	blockCount uint64
}

// OpenFileDevice opens path (which must already exist) as a BlockDevice. Its
// block count is the file's size divided by blockSize, rounded down.
func OpenFileDevice(path string, blockSize int) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileDevice{
		f:          f,
		blockSize:  blockSize,
		blockCount: uint64(fi.Size()) / uint64(blockSize),
	}, nil
}

// BlockSize implements BlockDevice.
func (d *FileDevice) BlockSize() int { return d.blockSize }

// BlockCount implements BlockDevice.
func (d *FileDevice) BlockCount() uint64 { return d.blockCount }

// ReadBlock implements BlockDevice.
func (d *FileDevice) ReadBlock(n uint64, buf []byte) error {
	if n >= d.blockCount {
		return ErrOutOfRange
	}
	_, err := d.f.ReadAt(buf[:d.blockSize], int64(n)*int64(d.blockSize))
	if err == io.EOF {
		return nil
	}
	return err
}

// WriteBlock implements BlockDevice.
func (d *FileDevice) WriteBlock(n uint64, buf []byte) error {
	if n >= d.blockCount {
		return ErrOutOfRange
	}
	_, err := d.f.WriteAt(buf[:d.blockSize], int64(n)*int64(d.blockSize))
	return err
}

// Close releases the underlying host file handle.
func (d *FileDevice) Close() error {
	return d.f.Close()
}
