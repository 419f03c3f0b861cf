// Package fsck checks a mounted QuickFS image for internal consistency:
// that the root inode is allocated, that every inode's bookkeeping agrees
// with the blocks and names it actually claims, that hard link counts match
// the aliases pointing at each inode, and that the superblock's free
// counters agree with the bitmaps. It never repairs anything; QuickFS has
// no journal or crash recovery, so a found inconsistency is something a
// reformat or a human has to resolve. Every violation found is reported —
// the checker does not stop at the first, unlike the core's fail-fast
// operations.
package fsck

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/fs"
)

// Check scans every inode bitmap slot and the root inode of m, returning an
// aggregate of every invariant violation found. A nil return means the
// image is consistent.
func Check(m *fs.FS) error {
	var result *multierror.Error

	if !m.InodeAllocated(quickfs.RootInodeNum) {
		result = multierror.Append(result, fmt.Errorf("root inode bit (0) is clear"))
	}

	aliasRefs := make(map[int]int) // real inode number -> count of aliases pointing at it
	type liveInode struct {
		num int
		raw quickfs.RawInode
	}
	var realInodes []liveInode
	seenNames := make(map[string][]int)
	claimedDataBlocks := make(map[int][]int) // data block index -> owning inode numbers

	for i := 0; i < quickfs.MaxInodes; i++ {
		if !m.InodeAllocated(i) {
			continue
		}
		raw, err := m.Inodes().ReadRaw(i)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("inode %d: failed to read: %w", i, err))
			continue
		}

		if raw.IsAlias() {
			if raw.DataBlockCount != 0 {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d is an alias (link=%d) but data_block_count=%d, want 0",
					i, raw.Link, raw.DataBlockCount))
			}
			aliasRefs[int(raw.Link)]++
			if name := raw.GetName(); name != "" {
				seenNames[name] = append(seenNames[name], i)
			}
			continue
		}

		realInodes = append(realInodes, liveInode{num: i, raw: raw})

		if raw.DataBlockCount > quickfs.MaxDataBlocksPerInode {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d has data_block_count=%d, want <= %d",
				i, raw.DataBlockCount, quickfs.MaxDataBlocksPerInode))
		}
		if int(raw.Size) > int(raw.DataBlockCount)*quickfs.BlockSize {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d has size=%d, too large for data_block_count=%d",
				i, raw.Size, raw.DataBlockCount))
		}
		if name := raw.GetName(); name != "" {
			seenNames[name] = append(seenNames[name], i)
		}

		count := int(raw.DataBlockCount)
		if count > quickfs.MaxDataBlocksPerInode {
			count = quickfs.MaxDataBlocksPerInode
		}
		for k := 0; k < count; k++ {
			j := int(raw.DataBlocks[k])
			claimedDataBlocks[j] = append(claimedDataBlocks[j], i)
			if !m.DataBlockAllocated(j) {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d claims data block %d, but its bitmap bit is clear", i, j))
			}
		}
	}

	for name, owners := range seenNames {
		if len(owners) > 1 {
			result = multierror.Append(result, fmt.Errorf(
				"name %q is claimed by %d directory entries (inodes %v)", name, len(owners), owners))
		}
	}

	for j, owners := range claimedDataBlocks {
		if len(owners) > 1 {
			result = multierror.Append(result, fmt.Errorf(
				"data block %d is claimed by more than one inode (%v)", j, owners))
		}
	}

	for _, live := range realInodes {
		want := uint32(1) + uint32(aliasRefs[live.num])
		if live.raw.GetName() == "" {
			want--
		}
		if live.raw.HardLinks != want {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d has hard_links=%d, want %d (%d aliases, name empty=%v)",
				live.num, live.raw.HardLinks, want, aliasRefs[live.num], live.raw.GetName() == ""))
		}
	}

	stat := m.Stat()
	if freeBits := m.CountFreeInodeBits(); uint64(freeBits) != stat.InodesFree {
		result = multierror.Append(result, fmt.Errorf(
			"superblock inodes_free=%d, but %d bits are actually clear", stat.InodesFree, freeBits))
	}
	if freeBits := m.CountFreeDataBits(); uint64(freeBits) != stat.DataBlocksFree {
		result = multierror.Append(result, fmt.Errorf(
			"superblock data_blocks_free=%d, but %d bits are actually clear", stat.DataBlocksFree, freeBits))
	}

	return result.ErrorOrNil()
}
