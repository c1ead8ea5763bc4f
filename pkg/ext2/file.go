package ext2

// sectorsPerBlock is the constant used for i_blocks accounting (§9: i_blocks
// counts every 512-byte sector, including indirect-block metadata, per the
// ext2 standard rather than the direct-block-only shortcut).
func (fs *FS) sectorsPerBlock() uint32 { return uint32(fs.blockSize / 512) }

// ReadFile reads up to len(dst) bytes starting at offset from in, clamped
// so that offset+size never exceeds in.Size() (§4.6). Returns the number of
// bytes actually read.
func (fs *FS) ReadFile(in *Inode, offset uint64, dst []byte) (int, error) {
	size := in.Size()
	if offset >= size {
		return 0, nil
	}

	want := uint64(len(dst))
	if offset+want > size {
		want = size - offset
	}

	blockSize := uint64(fs.blockSize)
	read := uint64(0)
	buf := make([]byte, fs.blockSize)

	for read < want {
		pos := offset + read
		fileBlock := uint32(pos / blockSize)
		within := pos % blockSize

		chunk := blockSize - within
		if remaining := want - read; chunk > remaining {
			chunk = remaining
		}

		blockNum, err := fs.GetBlockNum(in, fileBlock)
		if err != nil {
			return int(read), err
		}

		dstSlice := dst[read : read+chunk]
		if blockNum == 0 {
			for i := range dstSlice {
				dstSlice[i] = 0
			}
		} else {
			if err := fs.cache.Read(uint64(blockNum), buf); err != nil {
				return int(read), wrapErr(Invalid, "ext2: reading file data block", err)
			}
			copy(dstSlice, buf[within:within+chunk])
		}

		read += chunk
	}

	return int(read), nil
}

// WriteFile writes src at offset into in, allocating blocks on demand and
// extending in.Size() as needed (§4.6). Partial blocks are read-modified
// before being written back; full blocks are written directly. Callers are
// responsible for persisting the mutated inode with WriteInode. Returns the
// number of bytes written.
func (fs *FS) WriteFile(in *Inode, offset uint64, src []byte, now uint32) (int, error) {
	blockSize := uint64(fs.blockSize)
	written := uint64(0)
	total := uint64(len(src))
	buf := make([]byte, fs.blockSize)

	for written < total {
		pos := offset + written
		fileBlock := uint32(pos / blockSize)
		within := pos % blockSize

		chunk := blockSize - within
		if remaining := total - written; chunk > remaining {
			chunk = remaining
		}

		blockNum, err := fs.GetBlockNum(in, fileBlock)
		if err != nil {
			return int(written), err
		}

		if blockNum == 0 {
			blockNum, err = fs.AllocBlock()
			if err != nil {
				return int(written), err
			}
			extraIndirect, err := fs.SetBlockNum(in, fileBlock, blockNum)
			if err != nil {
				_ = fs.FreeBlock(blockNum)
				return int(written), err
			}
			in.Blocks += fs.sectorsPerBlock() * uint32(1+extraIndirect)
		}

		srcSlice := src[written : written+chunk]

		if chunk == blockSize {
			copy(buf, srcSlice)
		} else {
			if err := fs.cache.Read(uint64(blockNum), buf); err != nil {
				return int(written), wrapErr(Invalid, "ext2: read-modify-write of file data block", err)
			}
			copy(buf[within:within+chunk], srcSlice)
		}

		if err := fs.cache.Write(uint64(blockNum), buf); err != nil {
			return int(written), wrapErr(Invalid, "ext2: writing file data block", err)
		}

		written += chunk
	}

	if newSize := offset + written; newSize > in.Size() {
		in.SetSize(newSize)
	}
	in.MTime = now
	fs.markDirty()

	return int(written), nil
}
