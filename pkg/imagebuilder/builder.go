// Package imagebuilder assembles minimal, valid ext2 images directly on a
// blockdev.BlockDevice, for tests and local development. It plays the same
// role the production mkfs compiler would — laying out the superblock, the
// group descriptor table, per-group bitmaps and inode tables, and the root
// directory's "." / ".." entries — generalized from a one-shot compiler
// into a small, repeatedly-callable builder. Building filesystem images is
// explicitly out of the ext2 engine's scope (mkfs is a named external
// collaborator), so this lives in its own package rather than inside
// pkg/ext2, and it keeps its own on-disk struct encodings rather than
// reaching into pkg/ext2's unexported marshaling — mirroring how the
// compiler and the read-only decompiler each kept independent struct
// definitions for the same on-disk layout.
package imagebuilder

import (
	"encoding/binary"

	"github.com/devine-kernel/ext2fs/pkg/blockdev"
)

const (
	blockSize      = 1024
	inodeSize      = 128
	groupDescSize  = 32
	dirEntryHeader = 8
	magic          = 0xEF53
	rootInode      = 2
)

// Geometry describes the shape of the image to build, mirroring the
// parameters spec.md's scenario 1 names.
type Geometry struct {
	BlocksCount    uint32
	BlocksPerGroup uint32
	InodesPerGroup uint32
}

// groupLayout is the per-group block plan computed by plan().
type groupLayout struct {
	blockBitmap     uint32
	inodeBitmap     uint32
	inodeTable      uint32
	inodeTableBlock uint32 // number of blocks the inode table occupies
	firstDataBlock  uint32 // first block after this group's own metadata
	dataBlocks      uint32 // total blocks (meta + data) owned by this group
}

func itBlocksFor(inodesPerGroup uint32) uint32 {
	total := inodesPerGroup * inodeSize
	return (total + blockSize - 1) / blockSize
}

// plan lays out metadata for every group. Group 0 additionally carries the
// superblock (block 1) and the group descriptor table (starting at block
// 2), so its metadata starts after those; every other group's metadata
// starts at the first block of its own range.
func plan(g Geometry) []groupLayout {
	numGroups := (g.BlocksCount + g.BlocksPerGroup - 1) / g.BlocksPerGroup
	itBlocks := itBlocksFor(g.InodesPerGroup)

	gdtBlocks := uint32((int(numGroups)*groupDescSize + blockSize - 1) / blockSize)

	layouts := make([]groupLayout, numGroups)
	for gi := uint32(0); gi < numGroups; gi++ {
		groupStart := uint32(1) + gi*g.BlocksPerGroup // first_data_block == 1

		var metaStart uint32
		if gi == 0 {
			metaStart = 2 + gdtBlocks // block 1 is the superblock, 2.. the GDT
		} else {
			metaStart = groupStart
		}

		l := groupLayout{
			blockBitmap:     metaStart,
			inodeBitmap:     metaStart + 1,
			inodeTable:      metaStart + 2,
			inodeTableBlock: itBlocks,
			firstDataBlock:  metaStart + 2 + itBlocks,
		}

		groupEnd := groupStart + g.BlocksPerGroup
		if groupEnd > g.BlocksCount {
			groupEnd = g.BlocksCount
		}
		l.dataBlocks = groupEnd - groupStart

		layouts[gi] = l
	}

	return layouts
}

// RootDataBlock returns the block number Build assigns to the root
// directory's sole data block, for callers (tests, mainly) that need to
// refer to it without re-deriving the layout.
func RootDataBlock(g Geometry) uint32 {
	return plan(g)[0].firstDataBlock
}

// Build assembles a fresh ext2 image of the given geometry on dev (which
// must already be sized for g.BlocksCount blocks of 1024 bytes), with an
// empty root directory containing only "." and "..".
func Build(dev *blockdev.MemDevice, g Geometry) error {
	layouts := plan(g)

	writeBlock := func(n uint32, b []byte) error {
		full := make([]byte, blockSize)
		copy(full, b)
		return dev.WriteBlock(uint64(n), full)
	}

	freeBlocksTotal := uint32(0)
	freeInodesTotal := uint32(0)

	for gi, l := range layouts {
		// Every block from the start of the group's range up to its first
		// data block is metadata: bitmaps + inode table, plus the superblock
		// and group descriptor table in group 0.
		usedInGroup := l.firstDataBlock - (1 + uint32(gi)*g.BlocksPerGroup)
		if gi == 0 {
			usedInGroup++ // the root directory's single data block
		}

		bitmap := make([]byte, blockSize)
		for i := uint32(0); i < usedInGroup; i++ {
			setBit(bitmap, int(i))
		}
		if err := writeBlock(l.blockBitmap, bitmap); err != nil {
			return err
		}

		inodeBitmap := make([]byte, blockSize)
		if gi == 0 {
			setBit(inodeBitmap, 0) // inode 1, reserved
			setBit(inodeBitmap, 1) // inode 2, root
		}
		if err := writeBlock(l.inodeBitmap, inodeBitmap); err != nil {
			return err
		}

		for b := uint32(0); b < l.inodeTableBlock; b++ {
			if err := writeBlock(l.inodeTable+b, make([]byte, blockSize)); err != nil {
				return err
			}
		}

		freeBlocksTotal += l.dataBlocks - usedInGroup
		if gi == 0 {
			freeInodesTotal += g.InodesPerGroup - 2
		} else {
			freeInodesTotal += g.InodesPerGroup
		}
	}

	rootDataBlock := layouts[0].firstDataBlock

	rootInodeBuf := make([]byte, inodeSize)
	writeRootInode(rootInodeBuf, rootDataBlock)

	inodeTableBuf := make([]byte, blockSize)
	copy(inodeTableBuf[inodeSize:2*inodeSize], rootInodeBuf)
	if err := writeBlock(layouts[0].inodeTable, inodeTableBuf); err != nil {
		return err
	}

	dirBuf := make([]byte, blockSize)
	writeDirEntry(dirBuf[0:], rootInode, ".", 2, 12)
	writeDirEntry(dirBuf[12:], rootInode, "..", 2, uint16(blockSize-12))
	if err := writeBlock(rootDataBlock, dirBuf); err != nil {
		return err
	}

	sbBuf := make([]byte, blockSize)
	writeSuperblock(sbBuf, g, freeBlocksTotal, freeInodesTotal)
	if err := writeBlock(1, sbBuf); err != nil {
		return err
	}

	gdtBuf := make([]byte, blockSize*int((uint32(len(layouts))*groupDescSize+blockSize-1)/blockSize))
	for i, l := range layouts {
		off := i * groupDescSize
		dataUsed := l.firstDataBlock - (1 + uint32(i)*g.BlocksPerGroup)
		if i == 0 {
			dataUsed++
		}
		binary.LittleEndian.PutUint32(gdtBuf[off:], l.blockBitmap)
		binary.LittleEndian.PutUint32(gdtBuf[off+4:], l.inodeBitmap)
		binary.LittleEndian.PutUint32(gdtBuf[off+8:], l.inodeTable)
		binary.LittleEndian.PutUint16(gdtBuf[off+12:], uint16(l.dataBlocks-dataUsed))
		if i == 0 {
			binary.LittleEndian.PutUint16(gdtBuf[off+14:], uint16(g.InodesPerGroup-2))
			binary.LittleEndian.PutUint16(gdtBuf[off+16:], 1) // used_dirs_count
		} else {
			binary.LittleEndian.PutUint16(gdtBuf[off+14:], uint16(g.InodesPerGroup))
		}
	}
	for b := 0; b*blockSize < len(gdtBuf); b++ {
		if err := writeBlock(uint32(2+b), gdtBuf[b*blockSize:(b+1)*blockSize]); err != nil {
			return err
		}
	}

	return nil
}

func setBit(buf []byte, idx int) { buf[idx/8] |= 1 << uint(idx%8) }

func writeSuperblock(buf []byte, g Geometry, freeBlocks, freeInodes uint32) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], g.InodesPerGroup*uint32((g.BlocksCount+g.BlocksPerGroup-1)/g.BlocksPerGroup))
	le.PutUint32(buf[4:], g.BlocksCount)
	le.PutUint32(buf[12:], freeBlocks)
	le.PutUint32(buf[16:], freeInodes)
	le.PutUint32(buf[20:], 1) // first_data_block
	le.PutUint32(buf[32:], g.BlocksPerGroup)
	le.PutUint32(buf[36:], g.BlocksPerGroup)
	le.PutUint32(buf[40:], g.InodesPerGroup)
	le.PutUint16(buf[56:], magic)
	le.PutUint16(buf[88:], inodeSize)
}

func writeRootInode(buf []byte, dataBlock uint32) {
	le := binary.LittleEndian
	const modeDir = 0x4000
	le.PutUint16(buf[0:], modeDir|0755)
	le.PutUint16(buf[26:], 2) // links_count
	le.PutUint32(buf[28:], blockSize/512)
	le.PutUint32(buf[4:], blockSize) // size
	le.PutUint32(buf[40:], dataBlock)
}

func writeDirEntry(buf []byte, inode uint32, name string, fileType uint8, recLen uint16) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], inode)
	le.PutUint16(buf[4:], recLen)
	buf[6] = uint8(len(name))
	buf[7] = fileType
	copy(buf[dirEntryHeader:], name)
}
