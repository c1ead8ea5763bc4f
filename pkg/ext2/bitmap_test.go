package ext2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindFirstZeroBit(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0x01}
	if got := findFirstZeroBit(buf, 24); got != 17 {
		t.Fatalf("findFirstZeroBit = %d, want 17", got)
	}
}

func TestFindFirstZeroBitSaturated(t *testing.T) {
	buf := []byte{0xFF}
	if got := findFirstZeroBit(buf, 8); got != -1 {
		t.Fatalf("findFirstZeroBit = %d, want -1", got)
	}
}

func TestAllocFreeBlockRoundTrip(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 32)

	before := fs.Superblock().FreeBlocksCount

	blk, err := fs.AllocBlock()
	require.NoError(t, err)
	require.NotZero(t, blk)

	require.Equal(t, before-1, fs.Superblock().FreeBlocksCount)

	require.NoError(t, fs.FreeBlock(blk))
	require.Equal(t, before, fs.Superblock().FreeBlocksCount)
}

func TestAllocBlockDistinctEachTime(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 32)

	seen := map[uint32]bool{}
	for i := 0; i < 10; i++ {
		blk, err := fs.AllocBlock()
		require.NoError(t, err)
		require.False(t, seen[blk], "block %d allocated twice", blk)
		seen[blk] = true
	}
}

func TestAllocInodeRoundTrip(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 32)

	before := fs.Superblock().FreeInodesCount

	ino, err := fs.AllocInode()
	require.NoError(t, err)
	require.NotZero(t, ino)
	require.Equal(t, before-1, fs.Superblock().FreeInodesCount)

	require.NoError(t, fs.FreeInode(ino))
	require.Equal(t, before, fs.Superblock().FreeInodesCount)
}

func TestFreeBlockDoubleFreeIsNonFatal(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 32)

	blk, err := fs.AllocBlock()
	require.NoError(t, err)
	require.NoError(t, fs.FreeBlock(blk))
	require.NoError(t, fs.FreeBlock(blk)) // double free: logged, not an error
}

func TestAllocBlockExhaustion(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 4096)

	for {
		_, err := fs.AllocBlock()
		if err != nil {
			require.True(t, Is(err, NoMemory))
			break
		}
	}
}
