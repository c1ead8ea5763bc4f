package ext2

import (
	"encoding/binary"

	"github.com/devine-kernel/ext2fs/pkg/blockcache"
)

const groupDescSize = 32

// groupDescTableBlock is the fixed starting block of the group descriptor
// table (§6.1).
const groupDescTableBlock = 2

// GroupDescriptor mirrors one 32-byte on-disk block group descriptor.
type GroupDescriptor struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
	pad             uint16
	reserved        [12]byte
}

func (g *GroupDescriptor) marshal(buf []byte) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], g.BlockBitmap)
	le.PutUint32(buf[4:], g.InodeBitmap)
	le.PutUint32(buf[8:], g.InodeTable)
	le.PutUint16(buf[12:], g.FreeBlocksCount)
	le.PutUint16(buf[14:], g.FreeInodesCount)
	le.PutUint16(buf[16:], g.UsedDirsCount)
	le.PutUint16(buf[18:], g.pad)
	copy(buf[20:32], g.reserved[:])
}

func unmarshalGroupDescriptor(buf []byte) GroupDescriptor {
	le := binary.LittleEndian
	var g GroupDescriptor
	g.BlockBitmap = le.Uint32(buf[0:])
	g.InodeBitmap = le.Uint32(buf[4:])
	g.InodeTable = le.Uint32(buf[8:])
	g.FreeBlocksCount = le.Uint16(buf[12:])
	g.FreeInodesCount = le.Uint16(buf[14:])
	g.UsedDirsCount = le.Uint16(buf[16:])
	g.pad = le.Uint16(buf[18:])
	copy(g.reserved[:], buf[20:32])
	return g
}

// readGroupDescs reads the flat group descriptor array starting at block 2,
// packing blockSize/groupDescSize entries per block (§4.3). A partial last block
// is tolerated: only numGroups entries are decoded even if the final block
// holds padding past them.
func readGroupDescs(c *blockcache.Cache, blockSize int, numGroups uint32) ([]GroupDescriptor, error) {
	perBlock := blockSize / groupDescSize
	if perBlock == 0 {
		return nil, newErr(Invalid, "ext2: block size too small to hold a group descriptor")
	}

	groups := make([]GroupDescriptor, numGroups)
	buf := make([]byte, blockSize)

	for i := uint32(0); i < numGroups; i++ {
		blockIdx := i / uint32(perBlock)
		within := i % uint32(perBlock)
		if within == 0 {
			if err := c.Read(uint64(groupDescTableBlock+blockIdx), buf); err != nil {
				return nil, wrapErr(Invalid, "ext2: reading group descriptor table", err)
			}
		}
		off := int(within) * groupDescSize
		groups[i] = unmarshalGroupDescriptor(buf[off : off+groupDescSize])
	}

	return groups, nil
}

// writeGroupDescs is the inverse of readGroupDescs.
func writeGroupDescs(c *blockcache.Cache, blockSize int, groups []GroupDescriptor) error {
	perBlock := blockSize / groupDescSize
	if perBlock == 0 {
		return newErr(Invalid, "ext2: block size too small to hold a group descriptor")
	}

	numBlocks := (len(groups) + perBlock - 1) / perBlock
	buf := make([]byte, blockSize)

	for b := 0; b < numBlocks; b++ {
		for k := range buf {
			buf[k] = 0
		}
		base := b * perBlock
		for j := 0; j < perBlock && base+j < len(groups); j++ {
			groups[base+j].marshal(buf[j*groupDescSize : (j+1)*groupDescSize])
		}
		if err := c.Write(uint64(groupDescTableBlock+b), buf); err != nil {
			return wrapErr(Invalid, "ext2: writing group descriptor table", err)
		}
	}

	return nil
}
