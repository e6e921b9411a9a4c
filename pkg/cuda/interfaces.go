// Package cuda defines the narrow interfaces through which the engine
// wrapper consumes the device layer: stream-ordered memory allocation,
// device-to-device copies and stream synchronization. Implementations live
// in subpackages; the core never talks to the device directly.
package cuda

// Stream is an ordered queue of asynchronous device operations. Operations
// enqueued on the same stream execute in enqueue order. The stream is owned
// by the caller, never by this module.
type Stream interface {
	// Handle returns the native stream handle for passing into foreign
	// calls (e.g. enqueue). Zero means the default stream.
	Handle() uintptr

	// Synchronize blocks until all work enqueued so far has completed.
	Synchronize() error
}

// Memory is one device allocation. A Memory is exclusively owned by whoever
// created it and must be freed before the stream it was allocated on is
// destroyed.
type Memory interface {
	// Ptr returns the device address of the allocation.
	Ptr() uintptr

	// Size returns the allocation size in bytes.
	Size() int

	// CopyFrom enqueues an asynchronous device-to-device copy of n bytes
	// from src, ordered on stream. The copy is complete only after the
	// stream has been synchronized.
	CopyFrom(src Memory, n int, stream Stream) error

	// CopyFromHost enqueues a host-to-device copy of data, ordered on
	// stream. The caller must keep data alive until the stream is
	// synchronized.
	CopyFromHost(data []byte, stream Stream) error

	// CopyToHost enqueues a device-to-host copy into dst, ordered on
	// stream. dst holds defined data only after synchronization.
	CopyToHost(dst []byte, stream Stream) error

	// Free releases the allocation.
	Free() error
}

// Allocator hands out device memory. Allocation is stream-ordered: the
// memory is usable by work enqueued on stream after the allocation.
type Allocator interface {
	Alloc(size int, stream Stream) (Memory, error)
}
