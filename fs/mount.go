// Package fs implements the QuickFS core: the block mapper, directory
// enumeration, name lookup, create/link/unlink, and mount, all operating
// against a formatted image through blockio and icache.
//
// A single Mount assumes single filesystem-wide mutual exclusion: callers
// serialize their own access, and every exported operation here runs to
// completion — all bitmap, superblock, and inode mutations for one logical
// operation are written into the block cache and marked dirty before the
// method returns; Sync writes them to the backing stream.
package fs

import (
	"io"
	"time"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/bitmap"
	"github.com/shawlson/quickfs/blockio"
	"github.com/shawlson/quickfs/icache"
)

// MaxFileSize is the largest a file's data can be: the maximum number of
// data blocks an inode can reference, times the block size.
const MaxFileSize = quickfs.MaxDataBlocksPerInode * quickfs.BlockSize

// FS is a live, mounted QuickFS image.
type FS struct {
	blocks      *blockio.Cache
	inodeBitmap *bitmap.Bitmap
	dataBitmap  *bitmap.Bitmap
	super       *quickfs.Superblock
	inodes      *icache.Cache
	root        *icache.Inode
}

// Mount loads the superblock from stream, verifies its magic number, wraps
// the inode and data bitmaps, and anchors the root inode. stream must
// already hold totalBlocks*quickfs.BlockSize bytes of a formatted image.
func Mount(stream io.ReadWriteSeeker, totalBlocks int) (*FS, error) {
	blocks := blockio.New(stream, totalBlocks)

	sbBlock, err := blocks.ReadBlock(quickfs.SuperblockBlockNum)
	if err != nil {
		return nil, err
	}
	sb, err := quickfs.DecodeSuperblock(sbBlock)
	if err != nil {
		return nil, err
	}
	if sb.Magic != quickfs.MagicNumber {
		return nil, quickfs.ErrInvalidImage
	}

	inodeBitmapBytes, err := blocks.BlockRange(quickfs.InodeBitmapBlockNum, 1)
	if err != nil {
		return nil, err
	}
	inodeBitmap := bitmap.Wrap(inodeBitmapBytes, quickfs.MaxInodes)

	dataBitmapBytes, err := blocks.BlockRange(quickfs.FirstDataBitmapBlockNum, quickfs.NumDataBitmapBlocks)
	if err != nil {
		return nil, err
	}
	dataBitmap := bitmap.Wrap(dataBitmapBytes, quickfs.MaxDataBlocks)

	if !inodeBitmap.Test(quickfs.RootInodeNum) {
		return nil, quickfs.ErrInvalidImage.WithMessage("root inode bit is clear")
	}

	m := &FS{
		blocks:      blocks,
		inodeBitmap: inodeBitmap,
		dataBitmap:  dataBitmap,
		super:       &sb,
		inodes:      icache.New(blocks, inodeBitmap, dataBitmap, &sb),
	}

	root, err := m.inodes.Get(quickfs.RootInodeNum)
	if err != nil {
		return nil, err
	}
	m.root = root
	return m, nil
}

// Root returns the anchored root inode.
func (m *FS) Root() *icache.Inode {
	return m.root
}

// Inodes exposes the underlying inode cache for callers that need
// fetch/release access to objects beyond the root (e.g. the external
// VFS-like layer opening a file by inode number after a lookup).
func (m *FS) Inodes() *icache.Cache {
	return m.inodes
}

// FSStat mirrors the handful of statfs-style fields the mount surface
// reports: block size, max file size, and the live free counts.
type FSStat struct {
	BlockSize      int
	MaxFileSize    int
	InodesFree     uint64
	DataBlocksFree uint64
}

// Stat reports the current superblock free counts alongside the fixed
// geometry limits.
func (m *FS) Stat() FSStat {
	return FSStat{
		BlockSize:      quickfs.BlockSize,
		MaxFileSize:    MaxFileSize,
		InodesFree:     m.super.InodesFree,
		DataBlocksFree: m.super.DataBlocksFree,
	}
}

func (m *FS) flushSuper() error {
	buf := make([]byte, quickfs.BlockSize)
	copy(buf, m.super.Encode())
	return m.blocks.WriteBlock(quickfs.SuperblockBlockNum, buf)
}

func (m *FS) markInodeBitmapDirty() error {
	return m.blocks.MarkDirty(quickfs.InodeBitmapBlockNum)
}

func (m *FS) markDataBitmapDirty(j int) error {
	block := quickfs.FirstDataBitmapBlockNum + j/(quickfs.BlockSize*8)
	return m.blocks.MarkDirty(block)
}

// Sync flushes every block the cache has marked dirty to the backing
// stream.
func (m *FS) Sync() error {
	return m.blocks.Flush()
}

// InodeAllocated reports whether the inode bitmap bit for ino is set.
func (m *FS) InodeAllocated(ino int) bool {
	return m.inodeBitmap.Test(ino)
}

// DataBlockAllocated reports whether the data bitmap bit for data block j is
// set.
func (m *FS) DataBlockAllocated(j int) bool {
	return m.dataBitmap.Test(j)
}

// CountFreeInodeBits returns the number of clear bits in the inode bitmap,
// scanned directly rather than read from the superblock cache.
func (m *FS) CountFreeInodeBits() int {
	return m.inodeBitmap.CountFree()
}

// CountFreeDataBits returns the number of clear bits in the data bitmap,
// scanned directly rather than read from the superblock cache.
func (m *FS) CountFreeDataBits() int {
	return m.dataBitmap.CountFree()
}

func now() time.Time {
	return time.Now().UTC()
}
