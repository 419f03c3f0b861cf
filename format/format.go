// Package format implements the QuickFS formatter: it writes the
// superblock, inode bitmap, data bitmap, and root inode to a raw image that
// is already sized to the target device length.
package format

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/shawlson/quickfs"
)

// MinBlocks is the smallest image size Format accepts: the fixed header
// region plus at least one data block.
const MinBlocks = quickfs.FirstDataBlockNum + 1

// Format initializes a raw image of totalBlocks blocks (each
// quickfs.BlockSize bytes), already present in stream, with a fresh
// QuickFS layout: superblock, inode bitmap with only the root bit set,
// data bitmap tail-capped to the image's actual capacity, and the root
// inode. stream must be seeked to wherever the caller wants; Format seeks
// explicitly before every write.
func Format(stream io.WriteSeeker, totalBlocks int) error {
	if totalBlocks < MinBlocks {
		return quickfs.ErrInvalidImage.WithMessage("image too small for quickfs header region")
	}

	capacity := totalBlocks - quickfs.FirstDataBlockNum
	if capacity > quickfs.MaxDataBlocks {
		capacity = quickfs.MaxDataBlocks
	}

	headerBlocks := quickfs.FirstDataBlockNum
	headerBuf := make([]byte, headerBlocks*quickfs.BlockSize)
	writer := bytewriter.New(headerBuf)

	if err := writeSuperblock(writer, capacity); err != nil {
		return quickfs.ErrIO.Wrap(err)
	}
	if err := writeInodeBitmap(writer); err != nil {
		return quickfs.ErrIO.Wrap(err)
	}
	if err := writeDataBitmap(writer, capacity); err != nil {
		return quickfs.ErrIO.Wrap(err)
	}
	if err := writeRootInode(writer); err != nil {
		return quickfs.ErrIO.Wrap(err)
	}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return quickfs.ErrIO.Wrap(err)
	}
	if _, err := stream.Write(headerBuf); err != nil {
		return quickfs.ErrIO.Wrap(err)
	}
	return nil
}

func writeSuperblock(w io.Writer, capacity int) error {
	sb := quickfs.Superblock{
		Magic:          quickfs.MagicNumber,
		DataBlocksFree: uint64(capacity),
		InodesFree:     quickfs.MaxInodes - 1,
	}
	if err := binary.Write(w, binary.LittleEndian, &sb); err != nil {
		return err
	}
	// Rest of block 0 is don't-care; pad up to the block boundary.
	pad := quickfs.BlockSize - quickfs.SuperblockByteSize
	_, err := w.Write(make([]byte, pad))
	return err
}

func writeInodeBitmap(w io.Writer) error {
	block := make([]byte, quickfs.BlockSize)
	block[0] = 0x80 // root inode bit, MSB-first.
	_, err := w.Write(block)
	return err
}

// writeDataBitmap writes NumDataBitmapBlocks blocks: bits [0, capacity) are
// clear (free), bits [capacity, MaxDataBlocks) are set permanently,
// representing blocks that don't exist in this image. The straddling byte
// has high-order zero bits for the valid tail of the run and low-order one
// bits for the invalid prefix of the next run, i.e. ones starting at bit
// capacity%8 within that byte.
func writeDataBitmap(w io.Writer, capacity int) error {
	data := make([]byte, quickfs.NumDataBitmapBlocks*quickfs.BlockSize)
	if capacity < quickfs.MaxDataBlocks {
		firstInvalidByte := capacity / 8
		bitInByte := capacity % 8
		if bitInByte != 0 {
			data[firstInvalidByte] = 0xFF >> uint(bitInByte)
			firstInvalidByte++
		}
		for i := firstInvalidByte; i < len(data); i++ {
			data[i] = 0xFF
		}
	}
	_, err := w.Write(data)
	return err
}

func writeRootInode(w io.Writer) error {
	var raw quickfs.RawInode
	if err := raw.SetName("."); err != nil {
		return err
	}
	raw.Size = 0
	raw.DataBlockCount = 0
	raw.HardLinks = 1
	raw.Link = -1
	raw.Mode = quickfs.RootDirMode
	raw.UID = uint32(os.Getuid())
	raw.GID = uint32(os.Getgid())

	t := time.Now().UTC()
	raw.SetTimes(t, t, t)

	return binary.Write(w, binary.LittleEndian, &raw)
}
