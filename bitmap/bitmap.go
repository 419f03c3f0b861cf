// Package bitmap wraps github.com/boljen/go-bitmap with the MSB-first bit
// convention QuickFS uses on disk. go-bitmap itself addresses bit i at byte
// i/8, mask 1<<(i%8) (LSB-first); QuickFS's on-disk format addresses bit i
// at byte i/8, mask 0x80>>(i%8) (MSB-first). Flipping the bit position
// within its byte before every call reconciles the two without touching
// which byte a given index lands in, so the backing []byte stays byte-for-
// byte identical to the on-disk format.
package bitmap

import (
	"github.com/boljen/go-bitmap"
)

// Bitmap is a fixed-length bit vector backed by an on-disk-format byte
// slice, addressed MSB-first.
type Bitmap struct {
	bits bitmap.Bitmap
	n    int
}

// msbIndex reorders i's position within its byte from MSB-first to the
// LSB-first convention go-bitmap expects natively.
func msbIndex(i int) int {
	return (i/8)*8 + (7 - i%8)
}

// New allocates a fresh all-clear bitmap describing n bits.
func New(n int) *Bitmap {
	return &Bitmap{bits: bitmap.New(n), n: n}
}

// Wrap adapts an existing MSB-first on-disk byte slice in place; mutations
// through the returned Bitmap mutate data directly. len(data) must be at
// least bitmap.Len(n) bytes.
func Wrap(data []byte, n int) *Bitmap {
	return &Bitmap{bits: bitmap.Bitmap(data), n: n}
}

// Len reports the number of bits this bitmap describes.
func (b *Bitmap) Len() int {
	return b.n
}

// Bytes returns the backing on-disk-format byte slice.
func (b *Bitmap) Bytes() []byte {
	return b.bits.Data(false)
}

// Test reports whether bit i is set.
func (b *Bitmap) Test(i int) bool {
	return b.bits.Get(msbIndex(i))
}

// Mark sets bit i.
func (b *Bitmap) Mark(i int) {
	b.bits.Set(msbIndex(i), true)
}

// Clear unsets bit i.
func (b *Bitmap) Clear(i int) {
	b.bits.Set(msbIndex(i), false)
}

// FirstFree returns the index of the first clear bit, or -1 if every bit in
// [0, Len) is set. A linear scan is plenty: QuickFS never has more than a
// few thousand bits to search.
func (b *Bitmap) FirstFree() int {
	for i := 0; i < b.n; i++ {
		if !b.Test(i) {
			return i
		}
	}
	return -1
}

// CountFree returns the number of clear bits in [0, Len).
func (b *Bitmap) CountFree() int {
	free := 0
	for i := 0; i < b.n; i++ {
		if !b.Test(i) {
			free++
		}
	}
	return free
}

// CapTail sets the on-disk bookkeeping bits for indices in [validBits, n),
// marking them permanently allocated, the way a formatter pads a bitmap
// whose last block doesn't divide evenly into real units. validBits must be
// <= n.
func (b *Bitmap) CapTail(validBits int) {
	for i := validBits; i < b.n; i++ {
		b.Mark(i)
	}
}
