package ext2

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

// offsetOf reports the byte offset of field within an on-disk marshal of an
// Inode, by toggling a single field and diffing the marshaled bytes.
func offsetOf(t *testing.T, field string) int {
	t.Helper()
	var zero Inode
	v := reflect.ValueOf(&zero).Elem()
	f := v.FieldByName(field)
	require.True(t, f.IsValid(), "no such field %q", field)

	zeroBuf := make([]byte, onDiskInodeSize)
	zero.marshal(zeroBuf)

	switch f.Kind() {
	case reflect.Uint16:
		f.SetUint(0x1)
	case reflect.Uint32:
		f.SetUint(0x1)
	default:
		t.Fatalf("unsupported field kind %v", f.Kind())
	}

	buf := make([]byte, onDiskInodeSize)
	zero.marshal(buf)

	for i := range buf {
		if buf[i] != zeroBuf[i] {
			return i
		}
	}
	t.Fatalf("field %q did not change the marshaled bytes", field)
	return -1
}

func TestInodeFieldOffsets(t *testing.T) {
	cases := map[string]int{
		"Mode":      0,
		"UID":       2,
		"SizeLower": 4,
		"ATime":     8,
		"CTime":     12,
		"MTime":     16,
		"DTime":     20,
		"GID":       24,
		"LinksCount": 26,
		"Blocks":    28,
		"Flags":     32,
	}
	for field, want := range cases {
		got := offsetOf(t, field)
		if got != want {
			t.Errorf("field %s at offset %d, want %d", field, got, want)
		}
	}
}

func TestInodeRoundTrip(t *testing.T) {
	in := Inode{
		Mode:       ModeReg | 0644,
		UID:        1000,
		GID:        1000,
		LinksCount: 1,
		SizeLower:  4096,
		Blocks:     8,
	}
	in.Block[0] = 42
	in.Block[12] = 99

	buf := make([]byte, onDiskInodeSize)
	in.marshal(buf)
	got := unmarshalInode(buf)

	require.Equal(t, in, got)
}

func TestLocateInode(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	block, offset, err := fs.locateInode(RootInode)
	require.NoError(t, err)
	require.Equal(t, uint64(5), block) // group 0's inode table starts at block 5
	require.Equal(t, 128, offset)      // inode 2 is the second entry (index 1)
}

func TestLocateInodeOutOfRange(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	_, _, err := fs.locateInode(0)
	require.True(t, Is(err, Invalid))

	_, _, err = fs.locateInode(fs.Superblock().InodesCount + 1)
	require.True(t, Is(err, Invalid))
}

func TestReadWriteInode(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	root, err := fs.ReadInode(RootInode)
	require.NoError(t, err)
	require.Equal(t, uint16(ModeDir|0755), root.Mode)
	require.EqualValues(t, 2, root.LinksCount)

	root.LinksCount = 3
	require.NoError(t, fs.WriteInode(RootInode, &root))

	reread, err := fs.ReadInode(RootInode)
	require.NoError(t, err)
	require.EqualValues(t, 3, reread.LinksCount)
}

func TestGetSetBlockNumDirect(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	var in Inode
	extra, err := fs.SetBlockNum(&in, 5, 777)
	require.NoError(t, err)
	require.Zero(t, extra)

	got, err := fs.GetBlockNum(&in, 5)
	require.NoError(t, err)
	require.EqualValues(t, 777, got)
}

func TestGetSetBlockNumSingleIndirect(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	var in Inode
	fileBlock := uint32(NumDirect) // first single-indirect slot
	extra, err := fs.SetBlockNum(&in, fileBlock, 555)
	require.NoError(t, err)
	require.Equal(t, 1, extra) // allocated the indirect block itself
	require.NotZero(t, in.Block[IndSingle])

	got, err := fs.GetBlockNum(&in, fileBlock)
	require.NoError(t, err)
	require.EqualValues(t, 555, got)

	// A second pointer in the same indirect block shouldn't allocate again.
	extra2, err := fs.SetBlockNum(&in, fileBlock+1, 556)
	require.NoError(t, err)
	require.Zero(t, extra2)
}

func TestGetSetBlockNumDoubleIndirect(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	n := uint32(fs.ptrsPerBlock())
	var in Inode
	fileBlock := NumDirect + n // first double-indirect slot

	extra, err := fs.SetBlockNum(&in, fileBlock, 321)
	require.NoError(t, err)
	require.Equal(t, 2, extra) // double-indirect block + its first single-indirect block
	require.NotZero(t, in.Block[IndDouble])

	got, err := fs.GetBlockNum(&in, fileBlock)
	require.NoError(t, err)
	require.EqualValues(t, 321, got)
}

func TestGetBlockNumHoleReturnsZero(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	var in Inode
	got, err := fs.GetBlockNum(&in, 3)
	require.NoError(t, err)
	require.Zero(t, got)
}

func TestGetBlockNumTripleIndirectOutOfScope(t *testing.T) {
	dev, _ := buildTestImage(t)
	fs := mustMount(t, dev, 16)

	n := uint32(fs.ptrsPerBlock())
	var in Inode
	_, err := fs.GetBlockNum(&in, NumDirect+n+n*n)
	require.True(t, Is(err, Invalid))
}
