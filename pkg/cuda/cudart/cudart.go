//go:build cuda && cgo

// Package cudart implements the cuda interfaces over the CUDA runtime
// library. Build with -tags cuda on a machine with the CUDA toolkit.
package cudart

/*
#cgo CFLAGS: -I/usr/local/cuda/include
#cgo LDFLAGS: -L/usr/local/cuda/lib64 -lcudart
#include <cuda_runtime_api.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"k8s.io/examples/AI/trtengine/pkg/cuda"
)

func cudaErr(op string, code C.cudaError_t) error {
	if code == C.cudaSuccess {
		return nil
	}
	return fmt.Errorf("%s: %s", op, C.GoString(C.cudaGetErrorString(code)))
}

// Stream owns a CUDA stream.
type Stream struct {
	s C.cudaStream_t
}

var _ cuda.Stream = (*Stream)(nil)

func NewStream() (*Stream, error) {
	var s C.cudaStream_t
	if err := cudaErr("cudaStreamCreate", C.cudaStreamCreate(&s)); err != nil {
		return nil, err
	}
	return &Stream{s: s}, nil
}

func (s *Stream) Handle() uintptr {
	return uintptr(unsafe.Pointer(s.s))
}

func (s *Stream) Synchronize() error {
	return cudaErr("cudaStreamSynchronize", C.cudaStreamSynchronize(s.s))
}

// Destroy releases the stream. All work using it must have completed and
// all memory allocated on it must have been freed.
func (s *Stream) Destroy() error {
	if s.s == nil {
		return nil
	}
	err := cudaErr("cudaStreamDestroy", C.cudaStreamDestroy(s.s))
	s.s = nil
	return err
}

// Allocator allocates device memory with stream-ordered semantics.
type Allocator struct{}

var _ cuda.Allocator = Allocator{}

func NewAllocator() (cuda.Allocator, error) {
	return Allocator{}, nil
}

func (Allocator) Alloc(size int, stream cuda.Stream) (cuda.Memory, error) {
	var ptr unsafe.Pointer
	st := streamOf(stream)
	if err := cudaErr("cudaMallocAsync", C.cudaMallocAsync(&ptr, C.size_t(size), st)); err != nil {
		return nil, err
	}
	return &Memory{ptr: ptr, size: size, stream: st}, nil
}

// Memory is one device allocation.
type Memory struct {
	ptr    unsafe.Pointer
	size   int
	stream C.cudaStream_t
}

var _ cuda.Memory = (*Memory)(nil)

func (m *Memory) Ptr() uintptr {
	return uintptr(m.ptr)
}

func (m *Memory) Size() int {
	return m.size
}

func (m *Memory) CopyFrom(src cuda.Memory, n int, stream cuda.Stream) error {
	st := streamOf(stream)
	if st == nil {
		st = m.stream
	}
	return cudaErr("cudaMemcpyAsync", C.cudaMemcpyAsync(
		m.ptr, unsafe.Pointer(src.Ptr()), C.size_t(n), C.cudaMemcpyDeviceToDevice, st))
}

func (m *Memory) CopyFromHost(data []byte, stream cuda.Stream) error {
	if len(data) == 0 {
		return nil
	}
	st := streamOf(stream)
	if st == nil {
		st = m.stream
	}
	return cudaErr("cudaMemcpyAsync", C.cudaMemcpyAsync(
		m.ptr, unsafe.Pointer(&data[0]), C.size_t(len(data)), C.cudaMemcpyHostToDevice, st))
}

func (m *Memory) CopyToHost(dst []byte, stream cuda.Stream) error {
	if len(dst) == 0 {
		return nil
	}
	st := streamOf(stream)
	if st == nil {
		st = m.stream
	}
	return cudaErr("cudaMemcpyAsync", C.cudaMemcpyAsync(
		unsafe.Pointer(&dst[0]), m.ptr, C.size_t(len(dst)), C.cudaMemcpyDeviceToHost, st))
}

func (m *Memory) Free() error {
	if m.ptr == nil {
		return nil
	}
	err := cudaErr("cudaFreeAsync", C.cudaFreeAsync(m.ptr, m.stream))
	m.ptr = nil
	return err
}

func streamOf(stream cuda.Stream) C.cudaStream_t {
	if s, ok := stream.(*Stream); ok {
		return s.s
	}
	return nil
}
