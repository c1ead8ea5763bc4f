package imagebuilder_test

import (
	"testing"

	"github.com/devine-kernel/ext2fs/pkg/blockdev"
	"github.com/devine-kernel/ext2fs/pkg/ext2"
	"github.com/devine-kernel/ext2fs/pkg/imagebuilder"
	"github.com/stretchr/testify/require"
)

func TestBuiltImageMountsAndListsRoot(t *testing.T) {
	geo := imagebuilder.Geometry{
		BlocksCount:    16384,
		BlocksPerGroup: 8192,
		InodesPerGroup: 128,
	}

	dev := blockdev.NewMemDevice(1024, geo.BlocksCount)
	require.NoError(t, imagebuilder.Build(dev, geo))

	fs, err := ext2.Mount(dev, ext2.MountOptions{})
	require.NoError(t, err)

	root, err := fs.ReadInode(ext2.RootInode)
	require.NoError(t, err)

	e0, err := fs.Readdir(&root, 0)
	require.NoError(t, err)
	require.Equal(t, ".", e0.Name)

	e1, err := fs.Readdir(&root, 1)
	require.NoError(t, err)
	require.Equal(t, "..", e1.Name)

	_, err = fs.Readdir(&root, 2)
	require.True(t, ext2.Is(err, ext2.NotFound))

	require.Zero(t, fs.Unmount())
}

func TestBuiltImageSupportsCreate(t *testing.T) {
	geo := imagebuilder.Geometry{
		BlocksCount:    16384,
		BlocksPerGroup: 8192,
		InodesPerGroup: 128,
	}

	dev := blockdev.NewMemDevice(1024, geo.BlocksCount)
	require.NoError(t, imagebuilder.Build(dev, geo))

	fs, err := ext2.Mount(dev, ext2.MountOptions{})
	require.NoError(t, err)

	root, err := fs.ReadInode(ext2.RootInode)
	require.NoError(t, err)

	ino, err := fs.Create(&root, "hello.txt", 0644, 1)
	require.NoError(t, err)
	require.NoError(t, fs.WriteInode(ext2.RootInode, &root))

	got, err := fs.Lookup(&root, "hello.txt")
	require.NoError(t, err)
	require.Equal(t, ino, got)
}

func TestRootDataBlockFollowsGroupZeroMetadata(t *testing.T) {
	geo := imagebuilder.Geometry{
		BlocksCount:    16384,
		BlocksPerGroup: 8192,
		InodesPerGroup: 128,
	}
	// group 0: superblock(1) + gdt(1) + block bitmap + inode bitmap +
	// inode table(16) = blocks 1..20, so the root data block is 21.
	require.EqualValues(t, 21, imagebuilder.RootDataBlock(geo))
}
