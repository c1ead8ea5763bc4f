package ext2

import (
	"github.com/devine-kernel/ext2fs/pkg/blockcache"
	"github.com/devine-kernel/ext2fs/pkg/blockdev"
	"github.com/devine-kernel/ext2fs/pkg/elog"
)

// RootInode is the fixed inode number of the filesystem root directory.
const RootInode = 2

// FS is a mounted filesystem handle. It owns the cache and the in-memory
// copies of the superblock and group descriptor array; there is no
// in-memory inode lock table, and no mutex guards FS itself, since the
// kernel this engine runs in never executes two filesystem operations
// concurrently (§5). A future multi-threaded port would add one here.
type FS struct {
	cache     *blockcache.Cache
	sb        *Superblock
	groups    []GroupDescriptor
	blockSize int
	dirty     bool
	log       elog.Logger
}

// MountOptions configures Mount beyond the defaults spec.md assumes.
type MountOptions struct {
	// CacheCapacity overrides blockcache.DefaultCapacity when nonzero.
	CacheCapacity int
	Log           elog.Logger
}

// Mount reads and validates the superblock directly from dev (no cache
// exists yet — constructing one needs the real block size, which is only
// known after this read, per §9), then builds the cache over dev at the
// filesystem's own block size and reads the group descriptor table through it.
func Mount(dev blockdev.BlockDevice, opts MountOptions) (*FS, error) {
	sb, err := readSuperblockRaw(dev, dev.BlockSize())
	if err != nil {
		return nil, err
	}
	if err := validateSuperblock(sb); err != nil {
		return nil, err
	}

	blockSize := sb.BlockSize()
	if blockSize != dev.BlockSize() {
		return nil, newErr(Invalid, "ext2: device block size does not match the filesystem's block size")
	}

	log := elog.Of(opts.Log)
	cache := blockcache.New(dev, blockSize, opts.CacheCapacity, log)

	numGroups := sb.NumGroups()
	groups, err := readGroupDescs(cache, blockSize, numGroups)
	if err != nil {
		return nil, err
	}

	return &FS{
		cache:     cache,
		sb:        sb,
		groups:    groups,
		blockSize: blockSize,
		log:       log,
	}, nil
}

// BlockSize returns the mounted filesystem's block size.
func (fs *FS) BlockSize() int { return fs.blockSize }

// Superblock returns a copy of the in-memory superblock.
func (fs *FS) Superblock() Superblock { return *fs.sb }

// markDirty records that in-RAM metadata differs from the device.
func (fs *FS) markDirty() { fs.dirty = true }

// Sync writes back the superblock, the group descriptor table, and every
// dirty cache entry. It returns the number of blocks that failed to flush;
// 0 means everything made it to the device (§9's resolution of the
// partial-flush open question).
func (fs *FS) Sync() int {
	failures := 0

	if fs.dirty {
		ok := true
		if err := writeSuperblock(fs.cache, fs.blockSize, fs.sb); err != nil {
			fs.log.Warnf("ext2: sync: writing superblock failed: %v", err)
			failures++
			ok = false
		}
		if err := writeGroupDescs(fs.cache, fs.blockSize, fs.groups); err != nil {
			fs.log.Warnf("ext2: sync: writing group descriptors failed: %v", err)
			failures++
			ok = false
		}
		// Leave dirty set on failure so the next Sync retries the write
		// instead of silently abandoning unpersisted metadata.
		if ok {
			fs.dirty = false
		}
	}

	failures += fs.cache.Flush()
	return failures
}

// Unmount flushes all pending metadata and data to the device. Callers must
// not use fs after Unmount returns.
func (fs *FS) Unmount() int {
	return fs.Sync()
}

// CacheStats exposes the block cache's hit/miss counters.
func (fs *FS) CacheStats() (hits, misses uint64) { return fs.cache.Stats() }
