package ext2

import "encoding/binary"

// numFileBlocks returns the number of logical blocks spanned by in's
// current size.
func (fs *FS) numFileBlocks(in *Inode) uint32 {
	blockSize := uint64(fs.blockSize)
	size := in.Size()
	if size == 0 {
		return 0
	}
	return uint32((size + blockSize - 1) / blockSize)
}

// forEachDirBlock invokes fn once per data block of the directory inode in,
// in order, stopping early (without error) if fn returns (false, nil).
func (fs *FS) forEachDirBlock(in *Inode, fn func(fileBlock uint32, blockNum uint32, buf []byte) (bool, error)) error {
	n := fs.numFileBlocks(in)
	buf := make([]byte, fs.blockSize)

	for fb := uint32(0); fb < n; fb++ {
		blockNum, err := fs.GetBlockNum(in, fb)
		if err != nil {
			return err
		}
		if blockNum == 0 {
			continue
		}
		if err := fs.cache.Read(uint64(blockNum), buf); err != nil {
			return wrapErr(Invalid, "ext2: reading directory block", err)
		}

		cont, err := fn(fb, blockNum, buf)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}

	return nil
}

// Lookup resolves name within the directory inode parent (§4.7). The first
// live (Inode != 0) match wins; an entry with RecLen == 0 halts the scan of
// that block as a corruption guard.
func (fs *FS) Lookup(parent *Inode, name string) (uint32, error) {
	var found uint32

	err := fs.forEachDirBlock(parent, func(_ uint32, _ uint32, buf []byte) (bool, error) {
		off := 0
		for off < len(buf) {
			entry, ok := decodeDirEntry(buf[off:])
			if !ok {
				return true, nil
			}
			if entry.Inode != 0 && entry.Name == name {
				found = entry.Inode
				return false, nil
			}
			off += int(entry.RecLen)
		}
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	if found == 0 {
		return 0, ErrNotFound
	}
	return found, nil
}

// Readdir returns the index-th live entry (0-based, counting only entries
// with Inode != 0) of the directory inode in's data (§4.7).
func (fs *FS) Readdir(in *Inode, index int) (DirEntry, error) {
	var (
		found DirEntry
		seen  = -1
	)

	err := fs.forEachDirBlock(in, func(_ uint32, _ uint32, buf []byte) (bool, error) {
		off := 0
		for off < len(buf) {
			entry, ok := decodeDirEntry(buf[off:])
			if !ok {
				return false, nil
			}
			if entry.Inode != 0 {
				seen++
				if seen == index {
					found = entry
					return false, nil
				}
			}
			off += int(entry.RecLen)
		}
		return true, nil
	})
	if err != nil {
		return DirEntry{}, err
	}
	if seen != index {
		return DirEntry{}, ErrNotFound
	}
	return found, nil
}

// addEntry installs a new directory entry for (name, ino, fileType) into
// parent, splitting an existing entry's slack or reusing a tombstone where
// possible, and growing the directory by one block only when nothing fits
// (§4.7).
func (fs *FS) addEntry(parent *Inode, name string, ino uint32, fileType uint8) error {
	needed := actualLen(len(name))
	if needed > fs.blockSize {
		return newErr(Invalid, "ext2: name too long for this block size")
	}

	installed := false

	err := fs.forEachDirBlock(parent, func(_ uint32, blockNum uint32, buf []byte) (bool, error) {
		off := 0
		for off < len(buf) {
			entry, ok := decodeDirEntry(buf[off:])
			if !ok {
				// Fresh, never-initialized block: install at offset 0.
				if off == 0 {
					newEntry := DirEntry{
						Inode:    ino,
						RecLen:   uint16(fs.blockSize),
						NameLen:  uint8(len(name)),
						FileType: fileType,
						Name:     name,
					}
					encodeDirEntry(buf[off:], newEntry)
					if err := fs.cache.Write(uint64(blockNum), buf); err != nil {
						return false, wrapErr(Invalid, "ext2: writing directory block", err)
					}
					installed = true
				}
				return false, nil
			}

			live := actualLen(len(entry.Name))
			slack := int(entry.RecLen) - live

			if (entry.Inode == 0 && int(entry.RecLen) >= needed) ||
				(entry.Inode != 0 && slack >= needed) {

				var newOff int
				var newRecLen int

				if entry.Inode == 0 {
					newOff = off
					newRecLen = int(entry.RecLen)
				} else {
					entry.RecLen = uint16(live)
					encodeDirEntry(buf[off:off+live], entry)
					newOff = off + live
					newRecLen = slack
				}

				newEntry := DirEntry{
					Inode:    ino,
					RecLen:   uint16(newRecLen),
					NameLen:  uint8(len(name)),
					FileType: fileType,
					Name:     name,
				}
				encodeDirEntry(buf[newOff:newOff+newRecLen], newEntry)

				if err := fs.cache.Write(uint64(blockNum), buf); err != nil {
					return false, wrapErr(Invalid, "ext2: writing directory block", err)
				}
				installed = true
				return false, nil
			}

			off += int(entry.RecLen)
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if installed {
		return nil
	}

	// Nothing fit in any existing block: grow the directory by one.
	fb := fs.numFileBlocks(parent)
	blockNum, err := fs.allocZeroBlock()
	if err != nil {
		return err
	}
	extraIndirect, err := fs.SetBlockNum(parent, fb, blockNum)
	if err != nil {
		_ = fs.FreeBlock(blockNum)
		return err
	}
	parent.Blocks += fs.sectorsPerBlock() * uint32(1+extraIndirect)

	buf := make([]byte, fs.blockSize)
	newEntry := DirEntry{
		Inode:    ino,
		RecLen:   uint16(fs.blockSize),
		NameLen:  uint8(len(name)),
		FileType: fileType,
		Name:     name,
	}
	encodeDirEntry(buf, newEntry)
	if err := fs.cache.Write(uint64(blockNum), buf); err != nil {
		return wrapErr(Invalid, "ext2: writing new directory block", err)
	}

	newSize := uint64(fb+1) * uint64(fs.blockSize)
	if newSize > parent.Size() {
		parent.SetSize(newSize)
	}
	fs.markDirty()

	return nil
}

// Create allocates a fresh regular-file inode, writes it, and links it into
// parent under name (§4.7). On failure after the inode is allocated, it is
// freed again.
func (fs *FS) Create(parent *Inode, name string, perm uint16, now uint32) (uint32, error) {
	ino, err := fs.AllocInode()
	if err != nil {
		return 0, err
	}

	in := Inode{
		Mode:       ModeReg | (perm & PermMask),
		LinksCount: 1,
		ATime:      now,
		CTime:      now,
		MTime:      now,
	}

	if err := fs.WriteInode(ino, &in); err != nil {
		_ = fs.FreeInode(ino)
		return 0, err
	}

	if err := fs.addEntry(parent, name, ino, FTRegFile); err != nil {
		_ = fs.FreeInode(ino)
		return 0, err
	}

	return ino, nil
}

// Mkdir allocates a fresh directory inode with its initial "." / ".." block,
// links it into parent under name, and bumps parent's link count for the
// child's ".." reference (§4.7). Any failure rolls back whatever was
// allocated so far.
func (fs *FS) Mkdir(parentIno uint32, parent *Inode, name string, perm uint16, now uint32) (uint32, error) {
	ino, err := fs.AllocInode()
	if err != nil {
		return 0, err
	}

	blockNum, err := fs.AllocBlock()
	if err != nil {
		_ = fs.FreeInode(ino)
		return 0, err
	}

	buf := make([]byte, fs.blockSize)
	dot := DirEntry{Inode: ino, RecLen: 12, NameLen: 1, FileType: FTDir, Name: "."}
	dotdot := DirEntry{Inode: parentIno, RecLen: uint16(fs.blockSize - 12), NameLen: 2, FileType: FTDir, Name: ".."}
	encodeDirEntry(buf[0:], dot)
	encodeDirEntry(buf[12:], dotdot)

	if err := fs.cache.Write(uint64(blockNum), buf); err != nil {
		_ = fs.FreeBlock(blockNum)
		_ = fs.FreeInode(ino)
		return 0, wrapErr(Invalid, "ext2: writing new directory's initial block", err)
	}

	in := Inode{
		Mode:       ModeDir | (perm & PermMask),
		LinksCount: 2,
		ATime:      now,
		CTime:      now,
		MTime:      now,
		Blocks:     fs.sectorsPerBlock(),
	}
	in.Block[0] = blockNum
	in.SetSize(uint64(fs.blockSize))

	if err := fs.WriteInode(ino, &in); err != nil {
		_ = fs.FreeBlock(blockNum)
		_ = fs.FreeInode(ino)
		return 0, err
	}

	if err := fs.addEntry(parent, name, ino, FTDir); err != nil {
		_ = fs.FreeBlock(blockNum)
		_ = fs.FreeInode(ino)
		return 0, err
	}

	parent.LinksCount++
	if err := fs.bumpUsedDirs(ino, 1); err != nil {
		return 0, err
	}

	return ino, nil
}

// bumpUsedDirs adjusts the UsedDirsCount of the group descriptor owning
// ino, used when a directory inode is created or destroyed.
func (fs *FS) bumpUsedDirs(ino uint32, delta int16) error {
	g := (ino - 1) / fs.sb.InodesPerGroup
	if int(g) >= len(fs.groups) {
		return newErr(Invalid, "ext2: inode number out of range")
	}
	if delta >= 0 {
		fs.groups[g].UsedDirsCount += uint16(delta)
	} else {
		fs.groups[g].UsedDirsCount -= uint16(-delta)
	}
	fs.markDirty()
	return nil
}

// Unlink removes name from parent. It tombstones the directory entry
// in-place (§9's resolution of the unlink open question) and, if the
// target's link count drops to zero, frees every direct/indirect block
// reachable from it and then the inode itself.
func (fs *FS) Unlink(parent *Inode, name string) error {
	ino, err := fs.Lookup(parent, name)
	if err != nil {
		return err
	}

	if err := fs.tombstoneEntry(parent, name); err != nil {
		return err
	}

	target, err := fs.ReadInode(ino)
	if err != nil {
		return err
	}

	if target.LinksCount > 0 {
		target.LinksCount--
	}

	if target.LinksCount == 0 {
		if err := fs.freeInodeBlocks(&target); err != nil {
			return err
		}
		return fs.FreeInode(ino)
	}

	return fs.WriteInode(ino, &target)
}

// tombstoneEntry finds name in parent's data blocks and sets its Inode
// field to 0, leaving RecLen (and the rest of the block layout) untouched
// so later entries remain reachable.
func (fs *FS) tombstoneEntry(parent *Inode, name string) error {
	done := false

	err := fs.forEachDirBlock(parent, func(_ uint32, blockNum uint32, buf []byte) (bool, error) {
		off := 0
		for off < len(buf) {
			entry, ok := decodeDirEntry(buf[off:])
			if !ok {
				return false, nil
			}
			if entry.Inode != 0 && entry.Name == name {
				zero := make([]byte, 4)
				copy(buf[off:off+4], zero)
				if err := fs.cache.Write(uint64(blockNum), buf); err != nil {
					return false, wrapErr(Invalid, "ext2: writing tombstoned directory block", err)
				}
				done = true
				return false, nil
			}
			off += int(entry.RecLen)
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if !done {
		return ErrNotFound
	}
	return nil
}

// freeInodeBlocks releases every direct and indirect block reachable from
// in's 15 block pointers, per §4.7's "free directly" instruction.
func (fs *FS) freeInodeBlocks(in *Inode) error {
	for i := 0; i < NumDirect; i++ {
		if in.Block[i] != 0 {
			if err := fs.FreeBlock(in.Block[i]); err != nil {
				return err
			}
		}
	}

	if in.Block[IndSingle] != 0 {
		if err := fs.freeIndirectChain(in.Block[IndSingle], 0); err != nil {
			return err
		}
	}
	if in.Block[IndDouble] != 0 {
		if err := fs.freeIndirectChain(in.Block[IndDouble], 1); err != nil {
			return err
		}
	}

	return nil
}

// freeIndirectChain frees blockNum and, recursively, the blocks it points
// to: depth 0 means blockNum is a single-indirect block of data pointers;
// depth 1 means it's a double-indirect block of single-indirect pointers.
func (fs *FS) freeIndirectChain(blockNum uint32, depth int) error {
	buf := make([]byte, fs.blockSize)
	if err := fs.cache.Read(uint64(blockNum), buf); err != nil {
		return wrapErr(Invalid, "ext2: reading indirect block during free", err)
	}

	n := fs.ptrsPerBlock()
	for i := 0; i < n; i++ {
		ptr := binary.LittleEndian.Uint32(buf[i*4:])
		if ptr == 0 {
			continue
		}
		if depth == 0 {
			if err := fs.FreeBlock(ptr); err != nil {
				return err
			}
		} else {
			if err := fs.freeIndirectChain(ptr, depth-1); err != nil {
				return err
			}
		}
	}

	return fs.FreeBlock(blockNum)
}
