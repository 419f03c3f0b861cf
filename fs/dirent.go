package fs

import (
	"github.com/shawlson/quickfs"
)

// DirEntrySink receives one (name, resolved inode number) pair per call
// during ReadDir. It returns false to stop enumeration early.
type DirEntrySink func(name string, ino int) bool

// ReadDir enumerates the single directory starting after the first cursor
// entries have been skipped. It always yields "." and ".." first (at the
// synthesized virtual inode numbers), then every live, non-tombstoned
// inode in ascending bitmap order, resolving aliases to the inode they
// point at.
func (m *FS) ReadDir(cursor int, sink DirEntrySink) error {
	pos := 0
	emit := func(name string, ino int) (bool, error) {
		if pos < cursor {
			pos++
			return true, nil
		}
		pos++
		return sink(name, ino), nil
	}

	if cont, err := emit(".", quickfs.DotInodeNum); err != nil || !cont {
		return err
	}
	if cont, err := emit("..", quickfs.DotDotInodeNum); err != nil || !cont {
		return err
	}

	for i := 1; i < quickfs.MaxInodes; i++ {
		if !m.inodeBitmap.Test(i) {
			continue
		}
		raw, err := m.inodes.ReadRaw(i)
		if err != nil {
			return err
		}
		name := raw.GetName()
		if name == "" {
			continue
		}
		resolved := i
		if raw.Link > 0 {
			resolved = int(raw.Link)
		}
		cont, err := emit(name, resolved)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Lookup scans the directory for name and resolves it to a real inode
// number, following alias indirection. It fails with ErrNameTooLong for an
// over-long name and ErrNotFound when no entry matches.
func (m *FS) Lookup(name string) (int, error) {
	if len(name) > quickfs.MaxNameLength {
		return 0, quickfs.ErrNameTooLong
	}

	for i := 0; i < quickfs.MaxInodes; i++ {
		if !m.inodeBitmap.Test(i) {
			continue
		}
		raw, err := m.inodes.ReadRaw(i)
		if err != nil {
			return 0, err
		}
		// Tombstoned inodes (empty name) never match, even a lookup of "".
		if n := raw.GetName(); n == "" || n != name {
			continue
		}
		if raw.Link > 0 {
			return int(raw.Link), nil
		}
		return i, nil
	}
	return 0, quickfs.ErrNotFound
}

// findAlias scans for a live alias inode named name that points at
// targetIno, returning its inode number.
func (m *FS) findAlias(name string, targetIno int) (int, error) {
	if len(name) > quickfs.MaxNameLength {
		return 0, quickfs.ErrNameTooLong
	}
	for i := 0; i < quickfs.MaxInodes; i++ {
		if !m.inodeBitmap.Test(i) {
			continue
		}
		raw, err := m.inodes.ReadRaw(i)
		if err != nil {
			return 0, err
		}
		if raw.Link > 0 && int(raw.Link) == targetIno && raw.GetName() == name {
			return i, nil
		}
	}
	return 0, quickfs.ErrUnlinkTarget
}
