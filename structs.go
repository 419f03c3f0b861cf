package quickfs

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Superblock is the byte-exact record stored at SuperblockBlockNum. Per the
// on-disk layout, it occupies the first 24 bytes of block 0; the rest of
// that block is don't-care.
type Superblock struct {
	Magic          uint64
	DataBlocksFree uint64
	InodesFree     uint64
}

// SuperblockByteSize is the number of on-disk bytes Superblock occupies.
const SuperblockByteSize = 24

// Encode serializes the superblock to its 24-byte on-disk form.
func (sb *Superblock) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(SuperblockByteSize)
	binary.Write(buf, binary.LittleEndian, sb)
	return buf.Bytes()
}

// DecodeSuperblock parses a Superblock from the first SuperblockByteSize
// bytes of data.
func DecodeSuperblock(data []byte) (Superblock, error) {
	var sb Superblock
	reader := bytes.NewReader(data)
	if err := binary.Read(reader, binary.LittleEndian, &sb); err != nil {
		return Superblock{}, ErrIO.Wrap(err)
	}
	return sb, nil
}

// RawInode is the byte-exact 512-byte inode record. One occupies each block
// from FirstInodeBlockNum onward, one inode per block, so inode_num maps
// trivially to block_num.
//
// Name is a NUL-terminated string; an empty Name marks a tombstoned record
// whose name was unlinked while aliases keep it alive. Link being > 0 marks this
// record as an alias pointing at inode Link; Link <= 0 means this is a real
// inode and DataBlockCount/DataBlocks are meaningful.
type RawInode struct {
	Name           [MaxNameLength + 1]byte
	Size           uint16
	DataBlockCount uint16
	DataBlocks     [MaxDataBlocksPerInode]uint16
	HardLinks      uint32
	Link           int16
	UID            uint32
	GID            uint32
	Mode           uint16
	AccessTime     int64
	ModTime        int64
	ChangeTime     int64
	_              [4]byte
}

// RawInodeByteSize is the number of on-disk bytes a RawInode occupies. It
// must not exceed BlockSize, since exactly one inode record lives per block.
const RawInodeByteSize = 512

// Encode serializes the inode record to its 512-byte on-disk form.
func (r *RawInode) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(RawInodeByteSize)
	binary.Write(buf, binary.LittleEndian, r)
	return buf.Bytes()
}

// DecodeRawInode parses a RawInode from a 512-byte block buffer.
func DecodeRawInode(data []byte) (RawInode, error) {
	var raw RawInode
	reader := bytes.NewReader(data)
	if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
		return RawInode{}, ErrIO.Wrap(err)
	}
	return raw, nil
}

// GetName returns the inode's name with the NUL terminator and any trailing
// padding stripped.
func (r *RawInode) GetName() string {
	n := bytes.IndexByte(r.Name[:], 0)
	if n < 0 {
		n = len(r.Name)
	}
	return string(r.Name[:n])
}

// SetName stores name as a NUL-terminated byte string. It fails with
// ErrNameTooLong if name exceeds MaxNameLength bytes.
func (r *RawInode) SetName(name string) error {
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	var buf [MaxNameLength + 1]byte
	copy(buf[:], name)
	r.Name = buf
	return nil
}

// IsAlias reports whether this record is an alias inode, i.e. it exists
// solely to give another inode a second name.
func (r *RawInode) IsAlias() bool {
	return r.Link > 0
}

// IsTombstone reports whether this is a real inode whose name was unlinked
// while aliases still keep it alive.
func (r *RawInode) IsTombstone() bool {
	return !r.IsAlias() && r.GetName() == ""
}

func unixSeconds(t time.Time) int64 {
	return t.Unix()
}

func fromUnixSeconds(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// AccessedAt, ModifiedAt, and ChangedAt convert the raw Unix-second
// timestamps to time.Time.
func (r *RawInode) AccessedAt() time.Time { return fromUnixSeconds(r.AccessTime) }
func (r *RawInode) ModifiedAt() time.Time { return fromUnixSeconds(r.ModTime) }
func (r *RawInode) ChangedAt() time.Time  { return fromUnixSeconds(r.ChangeTime) }

// SetTimes stamps all three timestamps from time.Time values.
func (r *RawInode) SetTimes(accessed, modified, changed time.Time) {
	r.AccessTime = unixSeconds(accessed)
	r.ModTime = unixSeconds(modified)
	r.ChangeTime = unixSeconds(changed)
}
