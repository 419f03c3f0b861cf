package icache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/bitmap"
	"github.com/shawlson/quickfs/blockio"
	"github.com/shawlson/quickfs/icache"
)

func newTestCache(t *testing.T) (*icache.Cache, *bitmap.Bitmap, *bitmap.Bitmap, *quickfs.Superblock) {
	t.Helper()
	totalBlocks := quickfs.FirstDataBlockNum + 4
	storage := make([]byte, totalBlocks*quickfs.BlockSize)
	blocks := blockio.New(bytesextra.NewReadWriteSeeker(storage), totalBlocks)

	inodeBitmap := bitmap.New(quickfs.MaxInodes)
	inodeBitmap.Mark(quickfs.RootInodeNum)
	dataBitmap := bitmap.New(quickfs.MaxDataBlocks)
	super := &quickfs.Superblock{
		Magic:          quickfs.MagicNumber,
		DataBlocksFree: quickfs.MaxDataBlocks,
		InodesFree:     quickfs.MaxInodes - 1,
	}

	return icache.New(blocks, inodeBitmap, dataBitmap, super), inodeBitmap, dataBitmap, super
}

// Flush (write_inode) copies attribute fields, including data_block_count,
// back to disk, but must leave name, the data_blocks array, and link exactly
// as Create/Link/Unlink/the block mapper last set them.
func TestFlush_LeavesNameDataBlocksArrayAndLinkUntouched(t *testing.T) {
	c, inodeBitmap, _, _ := newTestCache(t)
	inodeBitmap.Mark(1)

	var raw quickfs.RawInode
	require.NoError(t, raw.SetName("original-name"))
	raw.DataBlockCount = 1
	raw.DataBlocks[0] = 7
	raw.Link = -1
	require.NoError(t, c.WriteRaw(1, raw))

	in, err := c.Get(1)
	require.NoError(t, err)

	in.Name = "should-not-persist"
	in.DataBlockCount = 2 // an attribute; flush IS allowed to write this back.
	in.Mode = 0o600
	c.MarkDirty(in)
	require.NoError(t, c.Flush(in))

	reread, err := c.ReadRaw(1)
	require.NoError(t, err)
	assert.Equal(t, "original-name", reread.GetName())
	assert.Equal(t, uint16(2), reread.DataBlockCount)
	assert.Equal(t, uint16(7), reread.DataBlocks[0])
	assert.Equal(t, int16(-1), reread.Link)
	assert.Equal(t, uint16(0o600), reread.Mode)
}

// Touch only overwrites the fields given non-zero values, so a caller
// bumping just mtime (as a file write does) never clobbers atime/ctime.
func TestTouch_OnlyOverwritesNonZeroFields(t *testing.T) {
	in := &icache.Inode{}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in.Touch(base, base, base)

	later := base.Add(time.Hour)
	in.Touch(time.Time{}, later, time.Time{})

	assert.Equal(t, base, in.AccessTime)
	assert.Equal(t, later, in.ModTime)
	assert.Equal(t, base, in.ChangeTime)
}

func TestGet_SharesCachedPointerAndRefcounts(t *testing.T) {
	c, inodeBitmap, _, _ := newTestCache(t)
	inodeBitmap.Mark(1)

	var raw quickfs.RawInode
	raw.Link = -1
	raw.HardLinks = 1
	require.NoError(t, c.WriteRaw(1, raw))

	a, err := c.Get(1)
	require.NoError(t, err)
	b, err := c.Get(1)
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, c.Put(a))
	require.NoError(t, c.Put(b))
}

func TestPut_DeletesWhenHardLinksZero(t *testing.T) {
	c, inodeBitmap, dataBitmap, super := newTestCache(t)
	inodeBitmap.Mark(1)
	dataBitmap.Mark(0)
	super.DataBlocksFree--

	var raw quickfs.RawInode
	raw.Link = -1
	raw.HardLinks = 0
	raw.DataBlockCount = 1
	raw.DataBlocks[0] = 0
	require.NoError(t, c.WriteRaw(1, raw))

	in, err := c.Get(1)
	require.NoError(t, err)
	require.NoError(t, c.Put(in))

	assert.False(t, inodeBitmap.Test(1))
	assert.False(t, dataBitmap.Test(0))
	assert.Equal(t, quickfs.MaxDataBlocks, int(super.DataBlocksFree))
}
