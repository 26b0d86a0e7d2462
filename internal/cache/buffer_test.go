package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSetRelease(t *testing.T) {
	var b Buffer
	assert.False(t, b.Present())
	assert.False(t, b.Release(), "releasing an empty buffer reports nothing held")

	g := b.Generation()
	b.Set([]byte{1, 2, 3})
	require.True(t, b.Present())
	assert.Equal(t, 3, b.Len())
	assert.Greater(t, b.Generation(), g)

	g = b.Generation()
	assert.True(t, b.Release())
	assert.False(t, b.Present())
	assert.Nil(t, b.Bytes())
	assert.Greater(t, b.Generation(), g)
}

func TestBufferTake(t *testing.T) {
	var src, dst Buffer
	src.Set([]byte{1, 2})
	dst.Set([]byte{9})

	srcGen, dstGen := src.Generation(), dst.Generation()
	dst.Take(&src)

	assert.Equal(t, []byte{1, 2}, dst.Bytes())
	assert.False(t, src.Present(), "source must be emptied by a move")
	assert.Greater(t, src.Generation(), srcGen)
	assert.Greater(t, dst.Generation(), dstGen)

	// self move is a no-op
	g := dst.Generation()
	dst.Take(&dst)
	assert.Equal(t, []byte{1, 2}, dst.Bytes())
	assert.Equal(t, g, dst.Generation())
}

func TestAllocate(t *testing.T) {
	data, err := Allocate(16, 0)
	require.NoError(t, err)
	assert.Len(t, data, 16)

	data, err = Allocate(16, 16)
	require.NoError(t, err)
	assert.Len(t, data, 16)

	_, err = Allocate(17, 16)
	assert.ErrorIs(t, err, ErrTooLarge)
}
