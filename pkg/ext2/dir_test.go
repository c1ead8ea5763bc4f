package ext2

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaddirRootDotAndDotDot(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)

	e0, err := fs.Readdir(&root, 0)
	require.NoError(t, err)
	require.Equal(t, ".", e0.Name)
	require.EqualValues(t, RootInode, e0.Inode)

	e1, err := fs.Readdir(&root, 1)
	require.NoError(t, err)
	require.Equal(t, "..", e1.Name)
	require.EqualValues(t, RootInode, e1.Inode)

	_, err = fs.Readdir(&root, 2)
	require.True(t, Is(err, NotFound))
}

func TestLookupRoot(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)

	ino, err := fs.Lookup(&root, ".")
	require.NoError(t, err)
	require.EqualValues(t, RootInode, ino)

	_, err = fs.Lookup(&root, "nonexistent")
	require.True(t, Is(err, NotFound))
}

func TestCreateAndLookup(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 64)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)

	ino, err := fs.Create(&root, "test.txt", 0644, 12345)
	require.NoError(t, err)
	require.NoError(t, fs.WriteInode(RootInode, &root))

	root2, err := fs.ReadInode(RootInode)
	require.NoError(t, err)
	got, err := fs.Lookup(&root2, "test.txt")
	require.NoError(t, err)
	require.Equal(t, ino, got)

	file, err := fs.ReadInode(ino)
	require.NoError(t, err)
	require.EqualValues(t, ModeReg|0644, file.Mode)
	require.EqualValues(t, 1, file.LinksCount)
}

func TestCreateWriteReadLookup(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 64)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)

	ino, err := fs.Create(&root, "test.txt", 0644, 1)
	require.NoError(t, err)
	require.NoError(t, fs.WriteInode(RootInode, &root))

	file, err := fs.ReadInode(ino)
	require.NoError(t, err)

	payload := []byte("Hello from ext2 filesystem!\n")
	_, err = fs.WriteFile(&file, 0, payload, 2)
	require.NoError(t, err)
	require.NoError(t, fs.WriteInode(ino, &file))

	root2, err := fs.ReadInode(RootInode)
	require.NoError(t, err)
	found, err := fs.Lookup(&root2, "test.txt")
	require.NoError(t, err)
	require.Equal(t, ino, found)

	reread, err := fs.ReadInode(found)
	require.NoError(t, err)
	require.EqualValues(t, len(payload), reread.Size())

	out := make([]byte, len(payload))
	n, err := fs.ReadFile(&reread, 0, out)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, string(payload), string(out))
}

func TestMkdirConsistency(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 64)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)
	linksBefore := root.LinksCount

	newIno, err := fs.Mkdir(RootInode, &root, "mydir", 0755, 1)
	require.NoError(t, err)
	require.NoError(t, fs.WriteInode(RootInode, &root))

	require.Equal(t, linksBefore+1, root.LinksCount)

	child, err := fs.ReadInode(newIno)
	require.NoError(t, err)

	selfIno, err := fs.Lookup(&child, ".")
	require.NoError(t, err)
	require.Equal(t, newIno, selfIno)

	parentIno, err := fs.Lookup(&child, "..")
	require.NoError(t, err)
	require.EqualValues(t, RootInode, parentIno)
}

func TestCreateUnlinkLookupNotFound(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 64)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)

	ino, err := fs.Create(&root, "gone.txt", 0644, 1)
	require.NoError(t, err)
	require.NoError(t, fs.WriteInode(RootInode, &root))

	root2, err := fs.ReadInode(RootInode)
	require.NoError(t, err)
	require.NoError(t, fs.Unlink(&root2, "gone.txt"))

	_, err = fs.Lookup(&root2, "gone.txt")
	require.True(t, Is(err, NotFound))

	_, err = fs.ReadInode(ino) // freed, but reading the slot itself still succeeds
	require.NoError(t, err)
}

func TestDirectoryGrowsWhenFullBlockCannotSplit(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 256)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)

	// Entries of 12 bytes each (3- and 4-char names) fit roughly 1024/12 ~ 85 per
	// block; push past that to force a second directory block.
	for i := 0; i < 120; i++ {
		name := fmt.Sprintf("f%02d", i)
		_, err := fs.Create(&root, name, 0644, 1)
		require.NoError(t, err)
	}
	require.NoError(t, fs.WriteInode(RootInode, &root))

	require.Greater(t, fs.numFileBlocks(&root), uint32(1))

	root2, err := fs.ReadInode(RootInode)
	require.NoError(t, err)
	ino, err := fs.Lookup(&root2, "f119")
	require.NoError(t, err)
	require.NotZero(t, ino)
}

func TestDirEntryRecLenSumsToBlockSize(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 64)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)

	_, err = fs.Create(&root, "a.txt", 0644, 1)
	require.NoError(t, err)

	err = fs.forEachDirBlock(&root, func(_ uint32, _ uint32, buf []byte) (bool, error) {
		sum := 0
		off := 0
		for off < len(buf) {
			entry, ok := decodeDirEntry(buf[off:])
			if !ok {
				break
			}
			sum += int(entry.RecLen)
			off += int(entry.RecLen)
		}
		require.Equal(t, fs.blockSize, sum)
		return true, nil
	})
	require.NoError(t, err)
}
