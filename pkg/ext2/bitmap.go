package ext2

// findFirstZeroBit scans buf byte-then-bit for the first zero bit and
// returns its index, or -1 if the buffer (limited to nbits) is saturated.
// Bit 0 of byte 0 is the lowest-numbered bit, matching the ext2 on-disk
// bitmap convention.
func findFirstZeroBit(buf []byte, nbits int) int {
	for byteIdx, b := range buf {
		if b == 0xFF {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			idx := byteIdx*8 + bit
			if idx >= nbits {
				return -1
			}
			if b&(1<<uint(bit)) == 0 {
				return idx
			}
		}
	}
	return -1
}

func setBit(buf []byte, idx int) {
	buf[idx/8] |= 1 << uint(idx%8)
}

func clearBit(buf []byte, idx int) bool {
	byteIdx, bit := idx/8, uint(idx%8)
	was := buf[byteIdx]&(1<<bit) != 0
	buf[byteIdx] &^= 1 << bit
	return was
}

// AllocBlock scans block groups in ascending order, skipping any whose
// FreeBlocksCount is zero, and allocates the first free bit in the first
// group that has room (§4.4).
func (fs *FS) AllocBlock() (uint32, error) {
	blocksPerGroup := int(fs.sb.BlocksPerGroup)

	for g := range fs.groups {
		desc := &fs.groups[g]
		if desc.FreeBlocksCount == 0 {
			continue
		}

		nbits := blocksPerGroup
		totalBits := int(fs.sb.BlocksCount) - int(fs.sb.FirstDataBlock)
		if remaining := totalBits - g*blocksPerGroup; remaining < nbits {
			nbits = remaining
		}

		buf := make([]byte, fs.blockSize)
		if err := fs.cache.Read(uint64(desc.BlockBitmap), buf); err != nil {
			return 0, wrapErr(Invalid, "ext2: reading block bitmap", err)
		}

		bit := findFirstZeroBit(buf, nbits)
		if bit < 0 {
			continue
		}

		setBit(buf, bit)
		if err := fs.cache.Write(uint64(desc.BlockBitmap), buf); err != nil {
			return 0, wrapErr(Invalid, "ext2: writing block bitmap", err)
		}

		desc.FreeBlocksCount--
		fs.sb.FreeBlocksCount--
		fs.markDirty()

		blockNum := fs.sb.FirstDataBlock + uint32(g)*fs.sb.BlocksPerGroup + uint32(bit)
		return blockNum, nil
	}

	return 0, ErrNoMemory
}

// FreeBlock clears blockNum's bit in its group's block bitmap and restores
// the free counters. Clearing an already-clear bit is a non-fatal,
// logged double-free (§4.4).
func (fs *FS) FreeBlock(blockNum uint32) error {
	if blockNum < fs.sb.FirstDataBlock || blockNum >= fs.sb.BlocksCount {
		return newErr(Invalid, "ext2: block number out of range")
	}

	rel := blockNum - fs.sb.FirstDataBlock
	g := rel / fs.sb.BlocksPerGroup
	bit := rel % fs.sb.BlocksPerGroup

	if int(g) >= len(fs.groups) {
		return newErr(Invalid, "ext2: block number out of range")
	}
	desc := &fs.groups[g]

	buf := make([]byte, fs.blockSize)
	if err := fs.cache.Read(uint64(desc.BlockBitmap), buf); err != nil {
		return wrapErr(Invalid, "ext2: reading block bitmap", err)
	}

	wasSet := clearBit(buf, int(bit))
	if !wasSet {
		fs.log.Warnf("ext2: free_block: block %d was already free", blockNum)
	}

	if err := fs.cache.Write(uint64(desc.BlockBitmap), buf); err != nil {
		return wrapErr(Invalid, "ext2: writing block bitmap", err)
	}

	desc.FreeBlocksCount++
	fs.sb.FreeBlocksCount++
	fs.markDirty()

	return nil
}

// AllocInode scans groups for a free inode bit, returning the 1-based inode
// number (§4.4's numbering formula).
func (fs *FS) AllocInode() (uint32, error) {
	inodesPerGroup := int(fs.sb.InodesPerGroup)

	for g := range fs.groups {
		desc := &fs.groups[g]
		if desc.FreeInodesCount == 0 {
			continue
		}

		buf := make([]byte, fs.blockSize)
		if err := fs.cache.Read(uint64(desc.InodeBitmap), buf); err != nil {
			return 0, wrapErr(Invalid, "ext2: reading inode bitmap", err)
		}

		bit := findFirstZeroBit(buf, inodesPerGroup)
		if bit < 0 {
			continue
		}

		setBit(buf, bit)
		if err := fs.cache.Write(uint64(desc.InodeBitmap), buf); err != nil {
			return 0, wrapErr(Invalid, "ext2: writing inode bitmap", err)
		}

		desc.FreeInodesCount--
		fs.sb.FreeInodesCount--
		fs.markDirty()

		ino := uint32(g)*fs.sb.InodesPerGroup + uint32(bit) + 1
		return ino, nil
	}

	return 0, ErrNoMemory
}

// FreeInode clears ino's bit in its group's inode bitmap and restores the
// free counters.
func (fs *FS) FreeInode(ino uint32) error {
	if ino == 0 || ino > fs.sb.InodesCount {
		return newErr(Invalid, "ext2: inode number out of range")
	}

	g := (ino - 1) / fs.sb.InodesPerGroup
	bit := (ino - 1) % fs.sb.InodesPerGroup

	if int(g) >= len(fs.groups) {
		return newErr(Invalid, "ext2: inode number out of range")
	}
	desc := &fs.groups[g]

	buf := make([]byte, fs.blockSize)
	if err := fs.cache.Read(uint64(desc.InodeBitmap), buf); err != nil {
		return wrapErr(Invalid, "ext2: reading inode bitmap", err)
	}

	wasSet := clearBit(buf, int(bit))
	if !wasSet {
		fs.log.Warnf("ext2: free_inode: inode %d was already free", ino)
	}

	if err := fs.cache.Write(uint64(desc.InodeBitmap), buf); err != nil {
		return wrapErr(Invalid, "ext2: writing inode bitmap", err)
	}

	desc.FreeInodesCount++
	fs.sb.FreeInodesCount++
	fs.markDirty()

	return nil
}
