package ext2

import (
	"encoding/binary"

	"github.com/devine-kernel/ext2fs/pkg/blockcache"
)

// Magic is the ext2 superblock signature.
const Magic = 0xEF53

const superblockSize = 1024

// superblockDevOffset is the fixed byte offset of the superblock on disk.
const superblockDevOffset = 1024

// DefaultInodeSize is used when the on-disk inode_size field is zero, which
// is the normal case for a Revision 0 filesystem.
const DefaultInodeSize = 128

// Superblock mirrors the on-disk ext2 superblock (§6.1). Field order and
// sizes reproduce the standard layout byte-for-byte so that magic lands at
// offset 56 and inode_size at offset 88, as required; fields belonging to
// the dynamic (Revision 1) feature set are kept only far enough to preserve
// that offset and are not interpreted beyond InodeSize, since Revision 0 is
// the only revision in scope.
type Superblock struct {
	InodesCount      uint32
	BlocksCount      uint32
	ReservedBlocks   uint32
	FreeBlocksCount  uint32
	FreeInodesCount  uint32
	FirstDataBlock   uint32
	LogBlockSize     uint32
	LogFragSize      uint32
	BlocksPerGroup   uint32
	FragsPerGroup    uint32
	InodesPerGroup   uint32
	MountTime        uint32
	WriteTime        uint32
	MountCount       uint16
	MaxMountCount    uint16
	Magic            uint16
	State            uint16
	Errors           uint16
	MinorRevLevel    uint16
	LastCheck        uint32
	CheckInterval    uint32
	CreatorOS        uint32
	RevLevel         uint32
	DefResUID        uint16
	DefResGID        uint16
	FirstInode       uint32
	InodeSize        uint16
	BlockGroupNr     uint16
}

// BlockSize returns the filesystem block size derived from LogBlockSize.
func (sb *Superblock) BlockSize() int {
	return 1024 << sb.LogBlockSize
}

// EffectiveInodeSize returns InodeSize, defaulting to DefaultInodeSize when
// the on-disk field is zero (the Revision 0 convention).
func (sb *Superblock) EffectiveInodeSize() int {
	if sb.InodeSize == 0 {
		return DefaultInodeSize
	}
	return int(sb.InodeSize)
}

// NumGroups returns the number of block groups implied by BlocksCount and
// BlocksPerGroup.
func (sb *Superblock) NumGroups() uint32 {
	if sb.BlocksPerGroup == 0 {
		return 0
	}
	return (sb.BlocksCount + sb.BlocksPerGroup - 1) / sb.BlocksPerGroup
}

func (sb *Superblock) marshal() []byte {
	buf := make([]byte, superblockSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], sb.InodesCount)
	le.PutUint32(buf[4:], sb.BlocksCount)
	le.PutUint32(buf[8:], sb.ReservedBlocks)
	le.PutUint32(buf[12:], sb.FreeBlocksCount)
	le.PutUint32(buf[16:], sb.FreeInodesCount)
	le.PutUint32(buf[20:], sb.FirstDataBlock)
	le.PutUint32(buf[24:], sb.LogBlockSize)
	le.PutUint32(buf[28:], sb.LogFragSize)
	le.PutUint32(buf[32:], sb.BlocksPerGroup)
	le.PutUint32(buf[36:], sb.FragsPerGroup)
	le.PutUint32(buf[40:], sb.InodesPerGroup)
	le.PutUint32(buf[44:], sb.MountTime)
	le.PutUint32(buf[48:], sb.WriteTime)
	le.PutUint16(buf[52:], sb.MountCount)
	le.PutUint16(buf[54:], sb.MaxMountCount)
	le.PutUint16(buf[56:], sb.Magic)
	le.PutUint16(buf[58:], sb.State)
	le.PutUint16(buf[60:], sb.Errors)
	le.PutUint16(buf[62:], sb.MinorRevLevel)
	le.PutUint32(buf[64:], sb.LastCheck)
	le.PutUint32(buf[68:], sb.CheckInterval)
	le.PutUint32(buf[72:], sb.CreatorOS)
	le.PutUint32(buf[76:], sb.RevLevel)
	le.PutUint16(buf[80:], sb.DefResUID)
	le.PutUint16(buf[82:], sb.DefResGID)
	le.PutUint32(buf[84:], sb.FirstInode)
	le.PutUint16(buf[88:], sb.InodeSize)
	le.PutUint16(buf[90:], sb.BlockGroupNr)
	return buf
}

func unmarshalSuperblock(buf []byte) *Superblock {
	le := binary.LittleEndian
	sb := &Superblock{}
	sb.InodesCount = le.Uint32(buf[0:])
	sb.BlocksCount = le.Uint32(buf[4:])
	sb.ReservedBlocks = le.Uint32(buf[8:])
	sb.FreeBlocksCount = le.Uint32(buf[12:])
	sb.FreeInodesCount = le.Uint32(buf[16:])
	sb.FirstDataBlock = le.Uint32(buf[20:])
	sb.LogBlockSize = le.Uint32(buf[24:])
	sb.LogFragSize = le.Uint32(buf[28:])
	sb.BlocksPerGroup = le.Uint32(buf[32:])
	sb.FragsPerGroup = le.Uint32(buf[36:])
	sb.InodesPerGroup = le.Uint32(buf[40:])
	sb.MountTime = le.Uint32(buf[44:])
	sb.WriteTime = le.Uint32(buf[48:])
	sb.MountCount = le.Uint16(buf[52:])
	sb.MaxMountCount = le.Uint16(buf[54:])
	sb.Magic = le.Uint16(buf[56:])
	sb.State = le.Uint16(buf[58:])
	sb.Errors = le.Uint16(buf[60:])
	sb.MinorRevLevel = le.Uint16(buf[62:])
	sb.LastCheck = le.Uint32(buf[64:])
	sb.CheckInterval = le.Uint32(buf[68:])
	sb.CreatorOS = le.Uint32(buf[72:])
	sb.RevLevel = le.Uint32(buf[76:])
	sb.DefResUID = le.Uint16(buf[80:])
	sb.DefResGID = le.Uint16(buf[82:])
	sb.FirstInode = le.Uint32(buf[84:])
	sb.InodeSize = le.Uint16(buf[88:])
	sb.BlockGroupNr = le.Uint16(buf[90:])
	return sb
}

// readSuperblockRaw reads the 1024-byte superblock straight from the
// device, bypassing the cache: mount must validate the block size before a
// blockcache.Cache can even be constructed (§9's resolution of the
// cache/superblock block-size open question), so this one read happens
// before the cache exists.
func readSuperblockRaw(dev devReader, devBlockSize int) (*Superblock, error) {
	if devBlockSize <= 0 {
		return nil, wrapErr(Invalid, "ext2: device reports non-positive block size", errBadBlockSize)
	}

	firstBlock := superblockDevOffset / devBlockSize
	blocksNeeded := (superblockDevOffset+superblockSize+devBlockSize-1)/devBlockSize - firstBlock
	raw := make([]byte, blocksNeeded*devBlockSize)

	buf := make([]byte, devBlockSize)
	for i := 0; i < blocksNeeded; i++ {
		if err := dev.ReadBlock(uint64(firstBlock+i), buf); err != nil {
			return nil, wrapErr(Invalid, "ext2: reading superblock", err)
		}
		copy(raw[i*devBlockSize:], buf)
	}

	off := superblockDevOffset - firstBlock*devBlockSize
	return unmarshalSuperblock(raw[off : off+superblockSize]), nil
}

// validateSuperblock enforces the §3 mount invariants.
func validateSuperblock(sb *Superblock) error {
	if sb.Magic != Magic {
		return wrapErr(Invalid, "ext2: bad superblock magic", errBadMagic)
	}
	if sb.InodesCount == 0 || sb.BlocksCount == 0 || sb.BlocksPerGroup == 0 || sb.InodesPerGroup == 0 {
		return newErr(Invalid, "ext2: superblock has a zero-valued required field")
	}
	if sb.LogBlockSize != 0 {
		return newErr(Invalid, "ext2: only a 1024-byte block size is supported")
	}
	if sb.FreeBlocksCount > sb.BlocksCount {
		return newErr(Invalid, "ext2: free_blocks_count exceeds blocks_count")
	}
	if sb.FreeInodesCount > sb.InodesCount {
		return newErr(Invalid, "ext2: free_inodes_count exceeds inodes_count")
	}
	return nil
}

// writeSuperblock serializes sb and writes it through the cache at the
// fixed device offset.
func writeSuperblock(c *blockcache.Cache, blockSize int, sb *Superblock) error {
	firstBlock := superblockDevOffset / blockSize
	blocksNeeded := (superblockDevOffset+superblockSize+blockSize-1)/blockSize - firstBlock
	off := superblockDevOffset - firstBlock*blockSize

	raw := make([]byte, blocksNeeded*blockSize)
	for i := 0; i < blocksNeeded; i++ {
		buf := make([]byte, blockSize)
		if err := c.Read(uint64(firstBlock+i), buf); err != nil {
			return wrapErr(Invalid, "ext2: reading superblock region before rewrite", err)
		}
		copy(raw[i*blockSize:], buf)
	}

	copy(raw[off:off+superblockSize], sb.marshal())

	for i := 0; i < blocksNeeded; i++ {
		if err := c.Write(uint64(firstBlock+i), raw[i*blockSize:(i+1)*blockSize]); err != nil {
			return wrapErr(Invalid, "ext2: writing superblock", err)
		}
	}
	return nil
}

// devReader is the minimal capability readSuperblockRaw needs, satisfied by
// blockdev.BlockDevice; kept narrow so the pre-cache read doesn't depend on
// the full device interface surface.
type devReader interface {
	ReadBlock(n uint64, buf []byte) error
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const (
	errBadMagic     sentinelError = "bad magic"
	errBadBlockSize sentinelError = "bad block size"
)
