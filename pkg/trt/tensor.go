package trt

import (
	"fmt"

	"k8s.io/examples/AI/trtengine/pkg/cuda"
	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
)

// Tensor owns one device allocation together with its current shape and
// element type. The allocation is sized for the shape the tensor was
// created with; the current shape may later shrink (and grow back) within
// that bound, but never beyond it.
type Tensor struct {
	mem   cuda.Memory
	shape Shape
	dtype nvinfer.DataType

	// capacity is the element count of the original allocation. It is
	// the bound ResetShape checks against, not the (possibly shrunk)
	// current shape.
	capacity int
}

// Empty allocates a device buffer for shape and dtype. The allocation is
// stream-ordered on stream.
func Empty(alloc cuda.Allocator, shape Shape, dtype nvinfer.DataType, stream cuda.Stream) (*Tensor, error) {
	if shape.HasDynamic() {
		return nil, &ShapeError{Dims: shape.Clone()}
	}
	elems := shape.Size()
	mem, err := alloc.Alloc(elems*dtype.Size(), stream)
	if err != nil {
		return nil, fmt.Errorf("allocating %d bytes: %w", elems*dtype.Size(), err)
	}
	return &Tensor{mem: mem, shape: shape.Clone(), dtype: dtype, capacity: elems}, nil
}

// FromMemory adopts an existing device allocation; no memory is allocated.
// The tensor takes ownership: Close frees mem.
func FromMemory(mem cuda.Memory, shape Shape, dtype nvinfer.DataType) (*Tensor, error) {
	if shape.HasDynamic() {
		return nil, &ShapeError{Dims: shape.Clone()}
	}
	elems := shape.Size()
	if elems*dtype.Size() > mem.Size() {
		return nil, fmt.Errorf("shape %v (%s) needs %d bytes, allocation has %d",
			shape, dtype, elems*dtype.Size(), mem.Size())
	}
	return &Tensor{mem: mem, shape: shape.Clone(), dtype: dtype, capacity: elems}, nil
}

// Shape returns the current shape. Callers must not modify it.
func (t *Tensor) Shape() Shape {
	return t.shape
}

func (t *Tensor) DataType() nvinfer.DataType {
	return t.dtype
}

// RawPtr returns the device address for binding into an execution context.
// The address is valid only while the tensor's allocation is alive.
func (t *Tensor) RawPtr() uintptr {
	return t.mem.Ptr()
}

// ResetShape reinterprets the allocation under a new shape without copying
// or reallocating. It fails if the new shape needs more elements than the
// original allocation holds. Growing back after a shrink is fine as long as
// the allocation bound is respected.
func (t *Tensor) ResetShape(shape Shape) error {
	if shape.HasDynamic() {
		return &ShapeError{Dims: shape.Clone()}
	}
	if shape.Size() > t.capacity {
		return fmt.Errorf("%w: %v needs %d elements, allocation holds %d",
			ErrResetShape, shape, shape.Size(), t.capacity)
	}
	t.shape = shape.Clone()
	return nil
}

// CopyFrom enqueues a device-to-device copy from src, ordered on stream.
// Shapes and dtypes must match exactly; equal byte sizes are not enough.
func (t *Tensor) CopyFrom(src *Tensor, stream cuda.Stream) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("%w: dst %v, src %v", ErrShapeMismatch, t.shape, src.shape)
	}
	if t.dtype != src.dtype {
		return fmt.Errorf("%w: dst %s, src %s", ErrDTypeMismatch, t.dtype, src.dtype)
	}
	n := t.shape.Size() * t.dtype.Size()
	if err := t.mem.CopyFrom(src.mem, n, stream); err != nil {
		return fmt.Errorf("copying %d bytes: %w", n, err)
	}
	return nil
}

// CopyFromHost enqueues a host-to-device copy of data, which must be
// exactly the tensor's current byte size.
func (t *Tensor) CopyFromHost(data []byte, stream cuda.Stream) error {
	want := t.shape.Size() * t.dtype.Size()
	if len(data) != want {
		return fmt.Errorf("host data is %d bytes, tensor %v (%s) needs %d", len(data), t.shape, t.dtype, want)
	}
	return t.mem.CopyFromHost(data, stream)
}

// CopyToHost enqueues a device-to-host copy of the tensor's current
// contents into dst, which must be exactly the tensor's current byte size.
// dst is defined only after the stream is synchronized.
func (t *Tensor) CopyToHost(dst []byte, stream cuda.Stream) error {
	want := t.shape.Size() * t.dtype.Size()
	if len(dst) != want {
		return fmt.Errorf("host buffer is %d bytes, tensor %v (%s) needs %d", len(dst), t.shape, t.dtype, want)
	}
	return t.mem.CopyToHost(dst, stream)
}

// Close releases the device allocation.
func (t *Tensor) Close() error {
	if t.mem == nil {
		return nil
	}
	err := t.mem.Free()
	t.mem = nil
	return err
}
