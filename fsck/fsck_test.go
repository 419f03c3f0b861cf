package fsck_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/format"
	"github.com/shawlson/quickfs/fs"
	"github.com/shawlson/quickfs/fsck"
	"github.com/shawlson/quickfs/testimage"
)

func mountFreshImage(t *testing.T, totalBlocks int) *fs.FS {
	t.Helper()
	_, storage := testimage.NewBlockCache(t, totalBlocks)
	require.NoError(t, format.Format(bytesextra.NewReadWriteSeeker(storage), totalBlocks))

	m, err := fs.Mount(bytesextra.NewReadWriteSeeker(storage), totalBlocks)
	require.NoError(t, err)
	return m
}

func TestCheck_FreshlyFormattedImageIsConsistent(t *testing.T) {
	m := mountFreshImage(t, 16384)
	assert.NoError(t, fsck.Check(m))
}

func TestCheck_AfterOrdinaryUseStillConsistent(t *testing.T) {
	m := mountFreshImage(t, 16384)

	hello, err := m.Create("hello", quickfs.ModeOwnerRead|quickfs.ModeOwnerWrite, 0, 0)
	require.NoError(t, err)
	_, err = m.WriteFile(hello, 0, []byte("some file contents"))
	require.NoError(t, err)
	require.NoError(t, m.Link(hello, "hi"))
	require.NoError(t, m.Unlink(hello, "hello"))

	assert.NoError(t, fsck.Check(m))
}

func TestCheck_DetectsDuplicateName(t *testing.T) {
	m := mountFreshImage(t, 16384)

	a, err := m.Create("dup", 0, 0, 0)
	require.NoError(t, err)
	b, err := m.Create("other", 0, 0, 0)
	require.NoError(t, err)

	bRaw, err := m.Inodes().ReadRaw(b.Num)
	require.NoError(t, err)
	require.NoError(t, bRaw.SetName("dup"))
	require.NoError(t, m.Inodes().WriteRaw(b.Num, bRaw))
	_ = a

	err = fsck.Check(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claimed by 2 directory entries")
}

func TestCheck_DetectsHardLinksMismatch(t *testing.T) {
	m := mountFreshImage(t, 16384)

	in, err := m.Create("lonely", 0, 0, 0)
	require.NoError(t, err)

	raw, err := m.Inodes().ReadRaw(in.Num)
	require.NoError(t, err)
	raw.HardLinks = 9
	require.NoError(t, m.Inodes().WriteRaw(in.Num, raw))

	err = fsck.Check(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has hard_links=9, want 1")
}

func TestCheck_DetectsAliasWithNonzeroDataBlockCount(t *testing.T) {
	m := mountFreshImage(t, 16384)

	real, err := m.Create("real", 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.Link(real, "alias"))

	resolved, err := m.Lookup("alias")
	require.NoError(t, err)
	require.Equal(t, real.Num, resolved)
	// Lookup resolves the alias to the real inode, so address the alias
	// record's own slot: Link took the lowest free inode bit, right after real.
	aliasIno := real.Num + 1

	raw, err := m.Inodes().ReadRaw(aliasIno)
	require.NoError(t, err)
	require.True(t, raw.IsAlias())
	raw.DataBlockCount = 3
	require.NoError(t, m.Inodes().WriteRaw(aliasIno, raw))

	err = fsck.Check(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is an alias")
	assert.Contains(t, err.Error(), "data_block_count=3, want 0")
}

func TestCheck_DetectsDoublyClaimedDataBlock(t *testing.T) {
	m := mountFreshImage(t, 16384)

	a, err := m.Create("a", quickfs.ModeOwnerRead|quickfs.ModeOwnerWrite, 0, 0)
	require.NoError(t, err)
	_, err = m.WriteFile(a, 0, []byte("contents of a"))
	require.NoError(t, err)

	b, err := m.Create("b", quickfs.ModeOwnerRead|quickfs.ModeOwnerWrite, 0, 0)
	require.NoError(t, err)
	_, err = m.WriteFile(b, 0, []byte("contents of b"))
	require.NoError(t, err)

	aRaw, err := m.Inodes().ReadRaw(a.Num)
	require.NoError(t, err)
	bRaw, err := m.Inodes().ReadRaw(b.Num)
	require.NoError(t, err)
	bRaw.DataBlocks[0] = aRaw.DataBlocks[0]
	require.NoError(t, m.Inodes().WriteRaw(b.Num, bRaw))

	err = fsck.Check(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is claimed by more than one inode")
}

func TestCheck_DetectsSizeTooLargeForDataBlockCount(t *testing.T) {
	m := mountFreshImage(t, 16384)

	in, err := m.Create("oversized", 0, 0, 0)
	require.NoError(t, err)

	raw, err := m.Inodes().ReadRaw(in.Num)
	require.NoError(t, err)
	raw.DataBlockCount = 0
	raw.Size = 10
	require.NoError(t, m.Inodes().WriteRaw(in.Num, raw))

	err = fsck.Check(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large for data_block_count=0")
}
