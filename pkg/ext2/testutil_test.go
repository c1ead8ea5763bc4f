package ext2

import (
	"testing"

	"github.com/devine-kernel/ext2fs/pkg/blockdev"
	"github.com/devine-kernel/ext2fs/pkg/imagebuilder"
	"github.com/stretchr/testify/require"
)

// testImageLayout captures the geometry fixtures build, so tests can verify
// scenario-specific expectations against known constants instead of magic
// numbers scattered through each test.
type testImageLayout struct {
	blockSize      int
	blocksCount    uint32
	blocksPerGroup uint32
	inodesPerGroup uint32
	firstDataBlock uint32
	rootDirBlock   uint32
}

// buildTestImage assembles a minimal, valid two-group ext2 image via
// pkg/imagebuilder, matching the geometry spec.md's scenario 1 describes
// (blocks_count=16384, blocks_per_group=8192, inodes_per_group=128). Every
// test in this package that mounts a filesystem mounts the device this
// returns.
func buildTestImage(t *testing.T) (*blockdev.MemDevice, testImageLayout) {
	t.Helper()

	const (
		blockSize      = 1024
		blocksCount    = 16384
		blocksPerGroup = 8192
		inodesPerGroup = 128
	)

	geo := imagebuilder.Geometry{
		BlocksCount:    blocksCount,
		BlocksPerGroup: blocksPerGroup,
		InodesPerGroup: inodesPerGroup,
	}

	dev := blockdev.NewMemDevice(blockSize, blocksCount)
	require.NoError(t, imagebuilder.Build(dev, geo))

	return dev, testImageLayout{
		blockSize:      blockSize,
		blocksCount:    blocksCount,
		blocksPerGroup: blocksPerGroup,
		inodesPerGroup: inodesPerGroup,
		firstDataBlock: 1,
		rootDirBlock:   imagebuilder.RootDataBlock(geo),
	}
}

func mustMount(t *testing.T, dev *blockdev.MemDevice, capacity int) *FS {
	t.Helper()
	fs, err := Mount(dev, MountOptions{CacheCapacity: capacity})
	require.NoError(t, err)
	return fs
}
