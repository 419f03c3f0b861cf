// Package testimage provides fixture helpers for tests that need a raw
// QuickFS image: freshly sized random bytes, wrapped in a blockio.Cache.
package testimage

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/blockio"
)

// NewRandomImage returns totalBlocks*quickfs.BlockSize bytes of random data,
// useful for exercising the formatter against an image with no prior
// structure.
func NewRandomImage(t *testing.T, totalBlocks int) []byte {
	data := make([]byte, totalBlocks*quickfs.BlockSize)
	_, err := rand.Read(data)
	require.NoErrorf(t, err, "failed to fill %d blocks with random bytes", totalBlocks)
	return data
}

// NewBlockCache wraps a freshly allocated random image in a blockio.Cache,
// for tests that want to exercise the formatter or the core against a
// scratch image without a backing file.
func NewBlockCache(t *testing.T, totalBlocks int) (*blockio.Cache, []byte) {
	data := NewRandomImage(t, totalBlocks)
	return blockio.WrapSlice(data), data
}
