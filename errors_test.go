package quickfs_test

import (
	"errors"
	"testing"

	"github.com/shawlson/quickfs"
	"github.com/stretchr/testify/assert"
)

func TestErrorWithMessage(t *testing.T) {
	newErr := quickfs.ErrNoSpaceData.WithMessage("all 16384 bits set")
	assert.Equal(t, "no space left for data blocks: all 16384 bits set", newErr.Error())
	assert.ErrorIs(t, newErr, quickfs.ErrNoSpaceData)
}

func TestErrorWrap(t *testing.T) {
	originalErr := errors.New("short read")
	newErr := quickfs.ErrIO.Wrap(originalErr)

	assert.Equal(t, "I/O error: short read", newErr.Error())
	assert.ErrorIs(t, newErr, originalErr)
	assert.ErrorIs(t, newErr, quickfs.ErrIO)
}
