// Package blockio provides a block-oriented cache over a QuickFS image,
// giving the rest of the file system a uniform "read block N / write block
// N" interface regardless of whether the backing image is a file or an
// in-memory buffer; the backing stream must support seeking.
//
// QuickFS images have a single, fixed geometry (quickfs.MaxInodes inodes,
// quickfs.MaxDataBlocks data blocks) established once at format time, so
// unlike a general-purpose disk cache this one never resizes.
package blockio

import (
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
	"github.com/xaionaro-go/bytesextra"

	"github.com/shawlson/quickfs"
)

// Cache is a lazily-loaded, write-back cache over an io.ReadWriteSeeker
// backing store, addressed in quickfs.BlockSize chunks.
type Cache struct {
	stream      io.ReadWriteSeeker
	totalBlocks int
	loaded      bitmap.Bitmap
	dirty       bitmap.Bitmap
	data        []byte
}

// New wraps stream, an io.ReadWriteSeeker already sized to exactly
// totalBlocks*quickfs.BlockSize bytes.
func New(stream io.ReadWriteSeeker, totalBlocks int) *Cache {
	return &Cache{
		stream:      stream,
		totalBlocks: totalBlocks,
		loaded:      bitmap.New(totalBlocks),
		dirty:       bitmap.New(totalBlocks),
		data:        make([]byte, totalBlocks*quickfs.BlockSize),
	}
}

// WrapSlice wraps an in-memory image buffer directly, for tests and for
// images small enough to hold entirely in memory.
func WrapSlice(storage []byte) *Cache {
	if len(storage)%quickfs.BlockSize != 0 {
		panic("blockio: storage size is not a multiple of the block size")
	}
	stream := bytesextra.NewReadWriteSeeker(storage)
	return New(stream, len(storage)/quickfs.BlockSize)
}

// TotalBlocks reports the fixed number of blocks in the image.
func (c *Cache) TotalBlocks() int {
	return c.totalBlocks
}

func (c *Cache) checkBlock(block int) error {
	if block < 0 || block >= c.totalBlocks {
		return quickfs.ErrIO.WithMessage(
			fmt.Sprintf("block %d not in range [0, %d)", block, c.totalBlocks))
	}
	return nil
}

func (c *Cache) load(block int) error {
	if c.loaded.Get(block) {
		return nil
	}
	offset := int64(block) * quickfs.BlockSize
	if _, err := c.stream.Seek(offset, io.SeekStart); err != nil {
		return quickfs.ErrIO.Wrap(err)
	}
	buf := c.data[block*quickfs.BlockSize : (block+1)*quickfs.BlockSize]
	if _, err := io.ReadFull(c.stream, buf); err != nil {
		return quickfs.ErrIO.Wrap(err)
	}
	c.loaded.Set(block, true)
	return nil
}

// ReadBlock returns the contents of block, loading it from the backing
// store on first access. The returned slice aliases the cache; callers
// must not retain it across a WriteBlock to the same block without
// copying.
func (c *Cache) ReadBlock(block int) ([]byte, error) {
	if err := c.checkBlock(block); err != nil {
		return nil, err
	}
	if err := c.load(block); err != nil {
		return nil, err
	}
	return c.data[block*quickfs.BlockSize : (block+1)*quickfs.BlockSize], nil
}

// BlockRange returns a slice over count consecutive blocks starting at
// block, loading any that aren't yet cached. The returned slice aliases the
// cache directly: in-place mutations are visible immediately, but callers
// must still call MarkDirty for each modified block so Flush writes it
// back.
func (c *Cache) BlockRange(block, count int) ([]byte, error) {
	if err := c.checkBlock(block); err != nil {
		return nil, err
	}
	if err := c.checkBlock(block + count - 1); err != nil {
		return nil, err
	}
	for b := block; b < block+count; b++ {
		if err := c.load(b); err != nil {
			return nil, err
		}
	}
	return c.data[block*quickfs.BlockSize : (block+count)*quickfs.BlockSize], nil
}

// WriteBlock overwrites block's contents and marks it dirty. buf must be
// exactly quickfs.BlockSize bytes.
func (c *Cache) WriteBlock(block int, buf []byte) error {
	if err := c.checkBlock(block); err != nil {
		return err
	}
	if len(buf) != quickfs.BlockSize {
		return quickfs.ErrIO.WithMessage(
			fmt.Sprintf("write buffer is %d bytes, want %d", len(buf), quickfs.BlockSize))
	}
	dst := c.data[block*quickfs.BlockSize : (block+1)*quickfs.BlockSize]
	copy(dst, buf)
	c.loaded.Set(block, true)
	c.dirty.Set(block, true)
	return nil
}

// MarkDirty flags block for write-back without changing its contents, for
// callers that mutated a slice obtained from ReadBlock in place.
func (c *Cache) MarkDirty(block int) error {
	if err := c.checkBlock(block); err != nil {
		return err
	}
	c.dirty.Set(block, true)
	return nil
}

// Flush writes every dirty block back to the backing store and clears the
// dirty bitmap.
func (c *Cache) Flush() error {
	for block := 0; block < c.totalBlocks; block++ {
		if !c.dirty.Get(block) {
			continue
		}
		offset := int64(block) * quickfs.BlockSize
		if _, err := c.stream.Seek(offset, io.SeekStart); err != nil {
			return quickfs.ErrIO.Wrap(err)
		}
		buf := c.data[block*quickfs.BlockSize : (block+1)*quickfs.BlockSize]
		if _, err := c.stream.Write(buf); err != nil {
			return quickfs.ErrIO.Wrap(err)
		}
		c.dirty.Set(block, false)
	}
	return nil
}
