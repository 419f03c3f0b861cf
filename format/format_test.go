package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/format"
	"github.com/shawlson/quickfs/testimage"
)

func TestFormat_FullSizeImage(t *testing.T) {
	const totalBlocks = 16384 // 8,388,608 bytes.
	_, storage := testimage.NewBlockCache(t, totalBlocks)

	require.NoError(t, format.Format(bytesextra.NewReadWriteSeeker(storage), totalBlocks))

	sb, err := quickfs.DecodeSuperblock(storage[:quickfs.SuperblockByteSize])
	require.NoError(t, err)
	assert.Equal(t, uint64(quickfs.MagicNumber), sb.Magic)
	assert.Equal(t, uint64(4095), sb.InodesFree)
	assert.Equal(t, uint64(16384-4102), sb.DataBlocksFree)

	inodeBitmapBlock := storage[quickfs.BlockSize : 2*quickfs.BlockSize]
	assert.Equal(t, byte(0x80), inodeBitmapBlock[0])
	for _, b := range inodeBitmapBlock[1:] {
		assert.Equal(t, byte(0), b)
	}

	dataBitmapStart := quickfs.FirstDataBitmapBlockNum * quickfs.BlockSize
	dataBitmapEnd := dataBitmapStart + quickfs.NumDataBitmapBlocks*quickfs.BlockSize
	dataBitmap := storage[dataBitmapStart:dataBitmapEnd]
	// 16384 blocks leave 12282 data blocks: bits [0, 12282) are clear and the
	// tail [12282, 16384) is capped set as nonexistent blocks.
	for i := 0; i < quickfs.MaxDataBlocks; i++ {
		byteIdx, mask := i/8, byte(0x80>>(i%8))
		if i < 16384-4102 {
			assert.Zerof(t, dataBitmap[byteIdx]&mask, "bit %d should be clear", i)
		} else {
			assert.NotZerof(t, dataBitmap[byteIdx]&mask, "bit %d should be set", i)
		}
	}

	rootBlock := storage[quickfs.FirstInodeBlockNum*quickfs.BlockSize : (quickfs.FirstInodeBlockNum+1)*quickfs.BlockSize]
	root, err := quickfs.DecodeRawInode(rootBlock)
	require.NoError(t, err)
	assert.Equal(t, ".", root.GetName())
	assert.Equal(t, uint32(1), root.HardLinks)
	assert.Equal(t, int16(-1), root.Link)
	assert.True(t, quickfs.IsDir(root.Mode))
}

// A tail-capped data bitmap for an image with only 100 data blocks' worth
// of capacity.
func TestFormat_TailCappedDataBitmap(t *testing.T) {
	const totalBlocks = quickfs.FirstDataBlockNum + 100
	_, storage := testimage.NewBlockCache(t, totalBlocks)

	require.NoError(t, format.Format(bytesextra.NewReadWriteSeeker(storage), totalBlocks))

	sb, err := quickfs.DecodeSuperblock(storage[:quickfs.SuperblockByteSize])
	require.NoError(t, err)
	assert.Equal(t, uint64(100), sb.DataBlocksFree)

	dataBitmapStart := quickfs.FirstDataBitmapBlockNum * quickfs.BlockSize
	dataBitmap := storage[dataBitmapStart : dataBitmapStart+quickfs.NumDataBitmapBlocks*quickfs.BlockSize]

	// Bits [0, 100) clear.
	for i := 0; i < 100; i++ {
		byteIdx, mask := i/8, byte(0x80>>(i%8))
		assert.Zerof(t, dataBitmap[byteIdx]&mask, "bit %d should be clear", i)
	}
	// Bits [100, 16384) set.
	for i := 100; i < 16384; i++ {
		byteIdx, mask := i/8, byte(0x80>>(i%8))
		assert.NotZerof(t, dataBitmap[byteIdx]&mask, "bit %d should be set", i)
	}
}

func TestFormat_ImageTooSmall(t *testing.T) {
	_, storage := testimage.NewBlockCache(t, quickfs.FirstDataBlockNum)
	err := format.Format(bytesextra.NewReadWriteSeeker(storage), quickfs.FirstDataBlockNum)
	assert.ErrorIs(t, err, quickfs.ErrInvalidImage)
}

func TestGetPreset(t *testing.T) {
	preset, err := format.GetPreset("reference")
	require.NoError(t, err)
	assert.Equal(t, 16384, preset.TotalBlocks)
	assert.Equal(t, int64(16384*quickfs.BlockSize), preset.TotalSizeBytes())

	_, err = format.GetPreset("not-a-real-preset")
	assert.Error(t, err)
}
