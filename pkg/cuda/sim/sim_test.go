package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamOrdering(t *testing.T) {
	stream := NewStream()

	var order []int
	stream.Enqueue(func() error { order = append(order, 1); return nil })
	stream.Enqueue(func() error { order = append(order, 2); return nil })
	stream.Enqueue(func() error { order = append(order, 3); return nil })

	assert.Empty(t, order)
	assert.Equal(t, 3, stream.Pending())

	require.NoError(t, stream.Synchronize())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, stream.Pending())
}

func TestStreamStopsOnError(t *testing.T) {
	stream := NewStream()

	ran := false
	stream.Enqueue(func() error { return fmt.Errorf("boom") })
	stream.Enqueue(func() error { ran = true; return nil })

	require.ErrorContains(t, stream.Synchronize(), "boom")
	assert.False(t, ran)
	assert.Equal(t, 0, stream.Pending())
}

func TestStreamHandlesAreDistinct(t *testing.T) {
	assert.NotEqual(t, NewStream().Handle(), NewStream().Handle())
}

func TestAllocatorTracksLive(t *testing.T) {
	alloc := NewAllocator()
	stream := NewStream()

	a, err := alloc.Alloc(16, stream)
	require.NoError(t, err)
	b, err := alloc.Alloc(0, stream)
	require.NoError(t, err)
	assert.Equal(t, 2, alloc.Live())
	assert.NotZero(t, b.Ptr())

	require.NoError(t, a.Free())
	assert.Equal(t, 1, alloc.Live())
	require.Error(t, a.Free())
	require.NoError(t, b.Free())
	assert.Equal(t, 0, alloc.Live())
}

func TestAllocatorInjectedFailure(t *testing.T) {
	alloc := NewAllocator()
	alloc.AllocErr = fmt.Errorf("out of memory")

	_, err := alloc.Alloc(16, NewStream())
	require.ErrorContains(t, err, "out of memory")

	// One-shot: the next allocation succeeds.
	mem, err := alloc.Alloc(16, NewStream())
	require.NoError(t, err)
	mem.Free()
}

func TestCopyFromIsDeferred(t *testing.T) {
	alloc := NewAllocator()
	stream := NewStream()

	src, err := alloc.Alloc(4, stream)
	require.NoError(t, err)
	dst, err := alloc.Alloc(4, stream)
	require.NoError(t, err)

	require.NoError(t, src.CopyFromHost([]byte{9, 8, 7, 6}, stream))
	require.NoError(t, dst.CopyFrom(src, 4, stream))

	// Not yet visible.
	assert.Equal(t, []byte{0, 0, 0, 0}, dst.(*Memory).Bytes())
	require.NoError(t, stream.Synchronize())
	assert.Equal(t, []byte{9, 8, 7, 6}, dst.(*Memory).Bytes())
}

func TestCopyBounds(t *testing.T) {
	alloc := NewAllocator()
	stream := NewStream()

	small, err := alloc.Alloc(2, stream)
	require.NoError(t, err)
	big, err := alloc.Alloc(8, stream)
	require.NoError(t, err)

	require.Error(t, big.CopyFrom(small, 4, stream))
	require.Error(t, small.CopyFromHost([]byte{1, 2, 3}, stream))
	require.Error(t, small.CopyToHost(make([]byte, 3), stream))
}

func TestCopyTouchingFreedMemoryFails(t *testing.T) {
	alloc := NewAllocator()
	stream := NewStream()

	src, err := alloc.Alloc(4, stream)
	require.NoError(t, err)
	dst, err := alloc.Alloc(4, stream)
	require.NoError(t, err)

	require.NoError(t, dst.CopyFrom(src, 4, stream))
	require.NoError(t, src.Free())

	// The deferred copy observes the free.
	require.Error(t, stream.Synchronize())
}

func TestBytesAt(t *testing.T) {
	alloc := NewAllocator()
	mem, err := alloc.Alloc(4, nil)
	require.NoError(t, err)
	defer mem.Free()

	require.NoError(t, mem.CopyFromHost([]byte{1, 2, 3, 4}, nil))
	assert.Equal(t, []byte{1, 2, 3, 4}, BytesAt(mem.Ptr(), 4))
	assert.Nil(t, BytesAt(0, 4))
}
