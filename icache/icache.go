// Package icache implements the in-memory inode cache: fetch-or-create an
// inode object keyed by number, mark it dirty, and evict it, plus the
// inode-persistence operations (read_inode, write_inode, delete_inode) that
// move an inode between its in-memory and on-disk forms.
//
// Block allocation for new files and all inode-bitmap mutation beyond
// delete_inode's own bit-clear belong to the fs package; icache only owns
// the shape and lifetime of inode objects themselves.
package icache

import (
	"time"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/bitmap"
	"github.com/shawlson/quickfs/blockio"
)

// Inode is the in-memory mirror of a RawInode, plus cache bookkeeping.
type Inode struct {
	Num int

	Name           string
	Size           uint16
	DataBlockCount uint16
	DataBlocks     [quickfs.MaxDataBlocksPerInode]uint16
	HardLinks      uint32
	Link           int16
	UID            uint32
	GID            uint32
	Mode           uint16
	AccessTime     time.Time
	ModTime        time.Time
	ChangeTime     time.Time

	refs  int
	dirty bool
}

// IsAlias reports whether this inode is an alias record pointing at another
// real inode.
func (in *Inode) IsAlias() bool {
	return in.Link > 0
}

// IsDir reports whether this is the root directory inode.
func (in *Inode) IsDir() bool {
	return in.Num == quickfs.RootInodeNum
}

// Touch stamps in's timestamps from the given time.Time values, leaving
// zero-valued fields untouched so callers can update only atime, only
// mtime, or all three without reading back the others first.
func (in *Inode) Touch(accessed, modified, changed time.Time) {
	if !accessed.IsZero() {
		in.AccessTime = accessed
	}
	if !modified.IsZero() {
		in.ModTime = modified
	}
	if !changed.IsZero() {
		in.ChangeTime = changed
	}
}

func (in *Inode) toRaw() quickfs.RawInode {
	var raw quickfs.RawInode
	raw.SetName(in.Name)
	raw.Size = in.Size
	raw.DataBlockCount = in.DataBlockCount
	raw.DataBlocks = in.DataBlocks
	raw.HardLinks = in.HardLinks
	raw.Link = in.Link
	raw.UID = in.UID
	raw.GID = in.GID
	raw.Mode = in.Mode
	raw.SetTimes(in.AccessTime, in.ModTime, in.ChangeTime)
	return raw
}

func fromRaw(num int, raw quickfs.RawInode) *Inode {
	return &Inode{
		Num:            num,
		Name:           raw.GetName(),
		Size:           raw.Size,
		DataBlockCount: raw.DataBlockCount,
		DataBlocks:     raw.DataBlocks,
		HardLinks:      raw.HardLinks,
		Link:           raw.Link,
		UID:            raw.UID,
		GID:            raw.GID,
		Mode:           raw.Mode,
		AccessTime:     raw.AccessedAt(),
		ModTime:        raw.ModifiedAt(),
		ChangeTime:     raw.ChangedAt(),
	}
}

// Cache is the in-memory inode cache over a formatted QuickFS image. It
// holds the shared inode bitmap, data bitmap, and superblock pointers that
// delete_inode needs to update when an inode's last reference drops with
// hard_links == 0; the fs package constructs one of these and shares the
// same bitmap/superblock pointers with its own allocation logic.
type Cache struct {
	blocks      *blockio.Cache
	inodeBitmap *bitmap.Bitmap
	dataBitmap  *bitmap.Bitmap
	super       *quickfs.Superblock

	entries map[int]*Inode
}

// New builds an inode cache over blocks, sharing inodeBitmap, dataBitmap,
// and super with the caller (typically an fs.FS).
func New(blocks *blockio.Cache, inodeBitmap, dataBitmap *bitmap.Bitmap, super *quickfs.Superblock) *Cache {
	return &Cache{
		blocks:      blocks,
		inodeBitmap: inodeBitmap,
		dataBitmap:  dataBitmap,
		super:       super,
		entries:     make(map[int]*Inode),
	}
}

func (c *Cache) checkInodeNum(ino int) error {
	if ino < 0 || ino >= quickfs.MaxInodes {
		return quickfs.ErrIO.Wrap(quickfs.ErrBadInodeNumber)
	}
	return nil
}

// ReadRaw reads inode ino's on-disk record directly, bypassing the cache.
// Name lookup, directory enumeration, and unlink's alias search use this:
// they need to inspect many inode records without promoting each one to a
// long-lived cached object.
func (c *Cache) ReadRaw(ino int) (quickfs.RawInode, error) {
	if err := c.checkInodeNum(ino); err != nil {
		return quickfs.RawInode{}, err
	}
	block, err := c.blocks.ReadBlock(quickfs.InodeBlockNum(ino))
	if err != nil {
		return quickfs.RawInode{}, err
	}
	return quickfs.DecodeRawInode(block)
}

// WriteRaw writes raw directly to inode ino's on-disk record. Create and
// Link use this to write a fresh inode or alias record, establishing name,
// data_blocks, and link — fields write_inode (Flush) deliberately leaves
// untouched.
func (c *Cache) WriteRaw(ino int, raw quickfs.RawInode) error {
	if err := c.checkInodeNum(ino); err != nil {
		return err
	}
	if err := c.blocks.WriteBlock(quickfs.InodeBlockNum(ino), raw.Encode()); err != nil {
		return err
	}
	if cached, ok := c.entries[ino]; ok {
		*cached = *fromRaw(ino, raw)
	}
	return nil
}

// SyncFull writes in's entire in-memory state back to disk, including
// name, data_blocks, and link — the fields Flush deliberately skips. Unlink
// (when it tombstones a name), the block mapper, and WriteFile call this
// after establishing new values for those fields.
func (c *Cache) SyncFull(in *Inode) error {
	if err := c.checkInodeNum(in.Num); err != nil {
		return err
	}
	raw := in.toRaw()
	if err := c.blocks.WriteBlock(quickfs.InodeBlockNum(in.Num), raw.Encode()); err != nil {
		return err
	}
	in.dirty = false
	return nil
}

// AddRef takes an additional reference on an already-fetched inode, for
// operations (like Link) that bind a second directory entry to the same
// in-memory object.
func (c *Cache) AddRef(in *Inode) {
	in.refs++
}

// Get fetches inode ino, reading it from disk on first access, and takes a
// reference on it. Every successful Get must be matched with a Put.
func (c *Cache) Get(ino int) (*Inode, error) {
	if err := c.checkInodeNum(ino); err != nil {
		return nil, err
	}
	if in, ok := c.entries[ino]; ok {
		in.refs++
		return in, nil
	}

	raw, err := c.ReadRaw(ino)
	if err != nil {
		return nil, err
	}
	in := fromRaw(ino, raw)
	in.refs = 1
	c.entries[ino] = in
	return in, nil
}

// MarkDirty flags in for write-back on its next Flush.
func (c *Cache) MarkDirty(in *Inode) {
	in.dirty = true
}

// Flush is write_inode: it copies the in-memory attribute fields (mode,
// uid, gid, size, data_block_count, hard_links, and the three timestamps)
// back into the on-disk record, without touching that record's name,
// data_blocks contents, or link field.
func (c *Cache) Flush(in *Inode) error {
	if err := c.checkInodeNum(in.Num); err != nil {
		return err
	}
	raw, err := c.ReadRaw(in.Num)
	if err != nil {
		return err
	}
	raw.Mode = in.Mode
	raw.UID = in.UID
	raw.GID = in.GID
	raw.Size = in.Size
	raw.DataBlockCount = in.DataBlockCount
	raw.HardLinks = in.HardLinks
	raw.SetTimes(in.AccessTime, in.ModTime, in.ChangeTime)

	if err := c.blocks.WriteBlock(quickfs.InodeBlockNum(in.Num), raw.Encode()); err != nil {
		return err
	}
	in.dirty = false
	return nil
}

// Put releases one reference on in. When the last reference drops, an inode
// whose hard_links has reached zero is destroyed via Delete; any other dirty
// inode is flushed.
func (c *Cache) Put(in *Inode) error {
	in.refs--
	if in.refs > 0 {
		return nil
	}

	if in.HardLinks == 0 {
		if err := c.Delete(in); err != nil {
			return err
		}
		delete(c.entries, in.Num)
		return nil
	}

	if in.dirty {
		if err := c.Flush(in); err != nil {
			return err
		}
	}
	delete(c.entries, in.Num)
	return nil
}

// Delete is delete_inode: it frees every data block the inode holds,
// clears the inode's bitmap bit, and credits the superblock's free counts.
// Callers are expected to have already reduced hard_links to zero; Delete
// itself does not check it.
func (c *Cache) Delete(in *Inode) error {
	if err := c.checkInodeNum(in.Num); err != nil {
		return err
	}

	count := in.DataBlockCount
	blocks := in.DataBlocks
	for i := uint16(0); i < count; i++ {
		j := int(blocks[i])
		c.dataBitmap.Clear(j)
	}
	c.super.DataBlocksFree += uint64(count)

	c.inodeBitmap.Clear(in.Num)
	c.super.InodesFree++

	if err := c.blocks.MarkDirty(quickfs.InodeBitmapBlockNum); err != nil {
		return err
	}
	for d := 0; d < quickfs.NumDataBitmapBlocks; d++ {
		if err := c.blocks.MarkDirty(quickfs.FirstDataBitmapBlockNum + d); err != nil {
			return err
		}
	}

	buf := make([]byte, quickfs.BlockSize)
	copy(buf, c.super.Encode())
	return c.blocks.WriteBlock(quickfs.SuperblockBlockNum, buf)
}
