// Package sim implements the cuda interfaces on top of host memory, for
// tests and CPU-only development. The stream preserves the real semantics
// that matter to callers: work is deferred when enqueued and only runs, in
// enqueue order, when the stream is synchronized.
package sim

import (
	"fmt"
	"sync"
	"sync/atomic"

	"k8s.io/examples/AI/trtengine/pkg/cuda"
)

var streamIDs atomic.Uintptr

// Stream is a FIFO of deferred operations.
type Stream struct {
	id uintptr

	mu  sync.Mutex
	ops []func() error
}

var _ cuda.Stream = (*Stream)(nil)

func NewStream() *Stream {
	return &Stream{id: streamIDs.Add(1)}
}

func (s *Stream) Handle() uintptr {
	return s.id
}

// Enqueue appends op to the stream. It runs on the next Synchronize.
func (s *Stream) Enqueue(op func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
}

// Pending reports the number of operations not yet executed.
func (s *Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

// Synchronize runs all pending operations in enqueue order. On the first
// failure the remaining operations are discarded, matching a device stream
// that sticks on error.
func (s *Stream) Synchronize() error {
	s.mu.Lock()
	ops := s.ops
	s.ops = nil
	s.mu.Unlock()

	for i, op := range ops {
		if err := op(); err != nil {
			return fmt.Errorf("stream op %d: %w", i, err)
		}
	}
	return nil
}

// Allocator hands out host-backed allocations and tracks how many are
// still live, so tests can assert nothing leaked.
type Allocator struct {
	mu   sync.Mutex
	live int

	// AllocErr, when set, makes the next Alloc fail with this error.
	AllocErr error
}

var _ cuda.Allocator = (*Allocator)(nil)

func NewAllocator() *Allocator {
	return &Allocator{}
}

func (a *Allocator) Alloc(size int, stream cuda.Stream) (cuda.Memory, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.AllocErr != nil {
		err := a.AllocErr
		a.AllocErr = nil
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("negative allocation size %d", size)
	}
	// At least one byte so every allocation has a distinct address.
	n := size
	if n == 0 {
		n = 1
	}
	a.live++
	return &Memory{alloc: a, buf: make([]byte, n), size: size}, nil
}

// Live reports the number of allocations that have not been freed.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// Memory is one host-backed allocation.
type Memory struct {
	alloc *Allocator
	buf   []byte
	size  int
	freed bool
}

var _ cuda.Memory = (*Memory)(nil)

func (m *Memory) Ptr() uintptr {
	return ptrOf(m.buf)
}

func (m *Memory) Size() int {
	return m.size
}

// Bytes exposes the backing storage for test assertions.
func (m *Memory) Bytes() []byte {
	return m.buf[:m.size]
}

func (m *Memory) CopyFrom(src cuda.Memory, n int, stream cuda.Stream) error {
	if m.freed {
		return fmt.Errorf("copy into freed memory")
	}
	from, ok := src.(*Memory)
	if !ok {
		return fmt.Errorf("copy from foreign memory %T", src)
	}
	if n > m.size || n > from.size {
		return fmt.Errorf("copy of %d bytes exceeds allocation (dst %d, src %d)", n, m.size, from.size)
	}

	do := func() error {
		if m.freed || from.freed {
			return fmt.Errorf("copy touches freed memory")
		}
		copy(m.buf[:n], from.buf[:n])
		return nil
	}
	if s, ok := stream.(*Stream); ok && s != nil {
		s.Enqueue(do)
		return nil
	}
	return do()
}

func (m *Memory) CopyFromHost(data []byte, stream cuda.Stream) error {
	if len(data) > m.size {
		return fmt.Errorf("host copy of %d bytes exceeds allocation of %d", len(data), m.size)
	}
	do := func() error {
		if m.freed {
			return fmt.Errorf("copy into freed memory")
		}
		copy(m.buf, data)
		return nil
	}
	if s, ok := stream.(*Stream); ok && s != nil {
		s.Enqueue(do)
		return nil
	}
	return do()
}

func (m *Memory) CopyToHost(dst []byte, stream cuda.Stream) error {
	if len(dst) > m.size {
		return fmt.Errorf("host copy of %d bytes exceeds allocation of %d", len(dst), m.size)
	}
	do := func() error {
		if m.freed {
			return fmt.Errorf("copy from freed memory")
		}
		copy(dst, m.buf)
		return nil
	}
	if s, ok := stream.(*Stream); ok && s != nil {
		s.Enqueue(do)
		return nil
	}
	return do()
}

func (m *Memory) Free() error {
	if m.freed {
		return fmt.Errorf("double free")
	}
	m.freed = true
	m.alloc.mu.Lock()
	m.alloc.live--
	m.alloc.mu.Unlock()
	return nil
}
