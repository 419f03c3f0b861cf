package fs

import (
	"time"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/icache"
)

// MapBlock returns the physical data block for in's logical block
// logicalBlock. With create false, a logical block beyond the inode's
// current data_block_count reports ok=false with no error: that's a normal
// "no mapping yet" result, not a failure. With create true, the call fails
// with ErrNoSpaceData whenever the superblock reports no free data blocks;
// otherwise the existing mapping is returned when the inode's size is
// nonzero and logicalBlock is below data_block_count, and a new block is
// allocated in every other case. Allocation always picks the lowest free
// bit in the data bitmap and appends it as entry data_block_count of the
// inode's block list, whatever logicalBlock is; sparse files are not
// supported.
func (m *FS) MapBlock(in *icache.Inode, logicalBlock int, create bool) (physical int, ok bool, err error) {
	if !create {
		if logicalBlock >= int(in.DataBlockCount) {
			return 0, false, nil
		}
		return quickfs.DataBlockNum(int(in.DataBlocks[logicalBlock])), true, nil
	}

	if m.super.DataBlocksFree == 0 {
		return 0, false, quickfs.ErrNoSpaceData
	}

	if in.Size > 0 && logicalBlock < int(in.DataBlockCount) {
		return quickfs.DataBlockNum(int(in.DataBlocks[logicalBlock])), true, nil
	}

	if int(in.DataBlockCount) >= quickfs.MaxDataBlocksPerInode {
		return 0, false, quickfs.ErrNoSpaceData.WithMessage("file is already at its maximum block count")
	}

	j := m.dataBitmap.FirstFree()
	if j < 0 {
		return 0, false, quickfs.ErrNoSpaceData
	}
	m.dataBitmap.Mark(j)

	in.DataBlocks[in.DataBlockCount] = uint16(j)
	in.DataBlockCount++
	m.super.DataBlocksFree--

	if err := m.inodes.SyncFull(in); err != nil {
		return 0, false, err
	}
	if err := m.flushSuper(); err != nil {
		return 0, false, err
	}
	if err := m.markDataBitmapDirty(j); err != nil {
		return 0, false, err
	}

	return quickfs.DataBlockNum(j), true, nil
}

// ReadFile reads up to len(buf) bytes of in's data starting at byte offset,
// following the block mapping. It returns the number of bytes copied,
// which is less than len(buf) at end-of-file.
func (m *FS) ReadFile(in *icache.Inode, offset int64, buf []byte) (int, error) {
	if offset >= int64(in.Size) {
		return 0, nil
	}
	remaining := int64(in.Size) - offset
	if int64(len(buf)) > remaining {
		buf = buf[:remaining]
	}

	total := 0
	for total < len(buf) {
		logical := int((offset + int64(total)) / quickfs.BlockSize)
		blockOffset := int((offset + int64(total)) % quickfs.BlockSize)

		physical, ok, err := m.MapBlock(in, logical, false)
		if err != nil {
			return total, err
		}
		if !ok {
			break
		}
		block, err := m.blocks.ReadBlock(physical)
		if err != nil {
			return total, err
		}
		n := copy(buf[total:], block[blockOffset:])
		total += n
	}
	return total, nil
}

// WriteFile writes data into in starting at byte offset, allocating new
// data blocks as needed, and updates in's size and mtime. Only append-style
// writes growing the file are meaningfully supported: there is no sparse
// allocation or truncation.
func (m *FS) WriteFile(in *icache.Inode, offset int64, data []byte) (int, error) {
	if offset+int64(len(data)) > MaxFileSize {
		return 0, quickfs.ErrNoSpaceData.WithMessage("write would exceed maximum file size")
	}

	total := 0
	for total < len(data) {
		logical := int((offset + int64(total)) / quickfs.BlockSize)
		blockOffset := int((offset + int64(total)) % quickfs.BlockSize)

		physical, ok, err := m.MapBlock(in, logical, true)
		if err != nil {
			return total, err
		}
		if !ok {
			return total, quickfs.ErrNoSpaceData
		}

		block, err := m.blocks.ReadBlock(physical)
		if err != nil {
			return total, err
		}
		n := copy(block[blockOffset:], data[total:])
		if err := m.blocks.MarkDirty(physical); err != nil {
			return total, err
		}
		total += n
	}

	newSize := offset + int64(total)
	if newSize > int64(in.Size) {
		in.Size = uint16(newSize)
	}
	in.Touch(time.Time{}, now(), time.Time{})
	if err := m.inodes.SyncFull(in); err != nil {
		return total, err
	}
	return total, nil
}
