package ext2

import "encoding/binary"

const dirEntryHeaderSize = 8

// DirEntry is a decoded directory entry (§3, §6.1). Inode == 0 marks a
// tombstone whose RecLen span may be reclaimed by a later insert.
type DirEntry struct {
	Inode    uint32
	RecLen   uint16
	NameLen  uint8
	FileType uint8
	Name     string
}

// align4 rounds n up to the next multiple of 4.
func align4(n int) int { return (n + 3) &^ 3 }

// actualLen is the minimal 4-byte-aligned span an entry with this name
// length needs, as opposed to RecLen, which may be larger because it also
// carries trailing slack reclaimed from a split or a fresh block.
func actualLen(nameLen int) int { return align4(dirEntryHeaderSize + nameLen) }

// decodeDirEntry parses one entry at the front of buf. ok is false if
// RecLen is zero (the corruption guard from §4.7) or the record would
// overrun buf.
func decodeDirEntry(buf []byte) (entry DirEntry, ok bool) {
	if len(buf) < dirEntryHeaderSize {
		return DirEntry{}, false
	}

	le := binary.LittleEndian
	inode := le.Uint32(buf[0:])
	recLen := le.Uint16(buf[4:])
	nameLen := buf[6]
	fileType := buf[7]

	if recLen == 0 {
		return DirEntry{}, false
	}
	if int(recLen) > len(buf) || int(dirEntryHeaderSize)+int(nameLen) > int(recLen) {
		return DirEntry{}, false
	}

	name := string(buf[dirEntryHeaderSize : dirEntryHeaderSize+int(nameLen)])

	return DirEntry{
		Inode:    inode,
		RecLen:   recLen,
		NameLen:  nameLen,
		FileType: fileType,
		Name:     name,
	}, true
}

// encodeDirEntry writes entry into the front of buf using entry.RecLen as
// the on-disk span (buf must be at least that long).
func encodeDirEntry(buf []byte, entry DirEntry) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], entry.Inode)
	le.PutUint16(buf[4:], entry.RecLen)
	buf[6] = entry.NameLen
	buf[7] = entry.FileType
	copy(buf[dirEntryHeaderSize:], entry.Name)
}
