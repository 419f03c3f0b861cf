package fs

import (
	"time"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/icache"
)

// Create allocates a fresh inode named name with the given mode and
// ownership, attaches it to the directory, and returns it with one
// reference held.
func (m *FS) Create(name string, mode uint16, uid, gid uint32) (*icache.Inode, error) {
	if len(name) > quickfs.MaxNameLength {
		return nil, quickfs.ErrNameTooLong
	}

	ino := m.inodeBitmap.FirstFree()
	if ino < 0 {
		return nil, quickfs.ErrNoSpaceInodes
	}

	t := now()
	var raw quickfs.RawInode
	if err := raw.SetName(name); err != nil {
		return nil, err
	}
	raw.Size = 0
	raw.DataBlockCount = 0
	raw.HardLinks = 1
	raw.Link = -1
	raw.UID = uid
	raw.GID = gid
	raw.Mode = mode | quickfs.ModeTypeRegular
	raw.SetTimes(t, t, t)

	m.inodeBitmap.Mark(ino)
	m.super.InodesFree--

	if err := m.inodes.WriteRaw(ino, raw); err != nil {
		return nil, err
	}
	if err := m.markInodeBitmapDirty(); err != nil {
		return nil, err
	}
	if err := m.flushSuper(); err != nil {
		return nil, err
	}

	return m.inodes.Get(ino)
}

// Link creates a second name, newName, for the inode I, which must already
// be held with a reference by the caller. On success I's hard_links and
// timestamps are updated and it gains one additional in-memory reference,
// matching the additional reference the new directory entry holds.
func (m *FS) Link(I *icache.Inode, newName string) error {
	if len(newName) > quickfs.MaxNameLength {
		return quickfs.ErrNameTooLong
	}

	a := m.inodeBitmap.FirstFree()
	if a < 0 {
		return quickfs.ErrNoSpaceInodes
	}

	var alias quickfs.RawInode
	if err := alias.SetName(newName); err != nil {
		return err
	}
	alias.Link = int16(I.Num)

	m.inodeBitmap.Mark(a)
	m.super.InodesFree--

	if err := m.inodes.WriteRaw(a, alias); err != nil {
		return err
	}
	if err := m.markInodeBitmapDirty(); err != nil {
		return err
	}
	if err := m.flushSuper(); err != nil {
		return err
	}

	t := now()
	I.HardLinks++
	I.Touch(t, time.Time{}, t)
	if err := m.inodes.Flush(I); err != nil {
		return err
	}
	m.inodes.AddRef(I)
	return nil
}

// Unlink removes the directory entry name bound to I, which must already
// be held with a reference by the caller. A real inode's sole name is
// either dropped in place (to be reclaimed once the caller's reference is
// released) or tombstoned if other aliases still keep it alive; any other
// name is resolved to its alias record, which is freed directly.
func (m *FS) Unlink(I *icache.Inode, name string) error {
	sameName := name == I.Name

	if I.HardLinks == 1 {
		if sameName {
			// Nothing to do on disk now; Delete reclaims everything once
			// the caller's reference drops.
			I.HardLinks--
			return m.inodes.Flush(I)
		}
		return m.unlinkAlias(I, name)
	}

	if sameName {
		// Tombstone the real inode; its aliases keep it reachable.
		I.Name = ""
		I.HardLinks--
		return m.inodes.SyncFull(I)
	}
	return m.unlinkAlias(I, name)
}

func (m *FS) unlinkAlias(I *icache.Inode, name string) error {
	a, err := m.findAlias(name, I.Num)
	if err != nil {
		return err
	}

	m.inodeBitmap.Clear(a)
	m.super.InodesFree++
	I.HardLinks--

	if err := m.markInodeBitmapDirty(); err != nil {
		return err
	}
	if err := m.flushSuper(); err != nil {
		return err
	}
	return m.inodes.Flush(I)
}
