// Package trt manages the lifecycle of a compiled TensorRT engine: loading
// a serialized plan, binding device tensors into an execution context,
// resolving dynamic shapes per inference call, and driving asynchronous
// enqueue on a caller-owned stream.
//
// The protocol is New (deserialize) -> Activate (create context) ->
// AllocateIOTensors (one-time, max-shape sized) -> Inference (repeated).
// All device work is stream-ordered and asynchronous; output buffers are
// defined only after the caller synchronizes the stream. An Engine is not
// safe for concurrent use without external synchronization.
package trt

import (
	"errors"
	"fmt"
	"os"

	"k8s.io/examples/AI/trtengine/pkg/cuda"
	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
)

// Engine owns, in strict destruction order, the execution context, the
// deserialized engine and the runtime, plus one device tensor per I/O
// tensor of the loaded model. The stream is borrowed from the caller and
// must outlive the Engine.
type Engine struct {
	runtime nvinfer.Runtime
	engine  nvinfer.Engine
	context nvinfer.ExecutionContext

	alloc  cuda.Allocator
	stream cuda.Stream

	tensors map[string]*Tensor
}

// New reads a compiled engine plan from enginePath and deserializes it
// with runtime. The stream becomes the engine's default stream for
// allocation and inference.
func New(runtime nvinfer.Runtime, alloc cuda.Allocator, stream cuda.Stream, enginePath string) (*Engine, error) {
	data, err := os.ReadFile(enginePath)
	if err != nil {
		return nil, fmt.Errorf("reading engine %q: %w", enginePath, err)
	}
	return NewFromBytes(runtime, alloc, stream, data)
}

// NewFromBytes deserializes a compiled engine from an in-memory blob.
func NewFromBytes(runtime nvinfer.Runtime, alloc cuda.Allocator, stream cuda.Stream, data []byte) (*Engine, error) {
	if runtime == nil {
		return nil, ErrRuntimeCreation
	}
	if alloc == nil {
		return nil, fmt.Errorf("device allocator is required")
	}
	if stream == nil {
		return nil, fmt.Errorf("stream is required")
	}
	engine, err := runtime.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineDeserialization, err)
	}
	return &Engine{
		runtime: runtime,
		engine:  engine,
		alloc:   alloc,
		stream:  stream,
	}, nil
}

// Activate creates the execution context. It must be called before
// AllocateIOTensors. Re-activation replaces (and closes) any previous
// context; previously allocated tensors must be re-bound afterwards.
func (e *Engine) Activate() error {
	if e.engine == nil {
		return ErrEngineNotInitialized
	}
	context, err := e.engine.CreateExecutionContext()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContextCreation, err)
	}
	if e.context != nil {
		if err := e.context.Close(); err != nil {
			e.Log(nvinfer.SeverityWarning, fmt.Sprintf("closing previous context: %v", err))
		}
	}
	e.context = context
	return nil
}

// AllocateIOTensors allocates one device tensor per I/O tensor of the
// engine, in the engine's enumeration order, and binds its address into the
// execution context. For each tensor the allocation shape is the entry in
// maxShapes if present, otherwise the engine's build-time shape; tensors
// whose resolved shape still contains a dynamic dimension are rejected
// before any native call. Allocations are sized to the maximum expected
// shape so later per-call shape changes never reallocate.
//
// Calling it again rebinds everything, releasing each overwritten buffer.
// A nil stream means the engine's default stream.
func (e *Engine) AllocateIOTensors(maxShapes map[string]Shape, stream cuda.Stream) error {
	if e.engine == nil {
		return ErrEngineNotInitialized
	}
	if e.context == nil {
		return ErrContextNotInitialized
	}
	if stream == nil {
		stream = e.stream
	}
	if e.tensors == nil {
		e.tensors = make(map[string]*Tensor)
	}

	numIO := e.engine.NumIOTensors()
	for i := 0; i < numIO; i++ {
		name := e.engine.IOTensorName(i)

		shape := Shape(e.engine.TensorShape(name))
		if max, ok := maxShapes[name]; ok {
			shape = max
		}
		if shape.HasDynamic() {
			return &ShapeError{Name: name, Dims: shape.Clone()}
		}
		if e.engine.TensorIOMode(name).IsInput() {
			if !e.context.SetInputShape(name, shape) {
				return &ShapeError{Name: name, Dims: shape.Clone()}
			}
		}

		dtype := e.engine.TensorDataType(name)
		tensor, err := Empty(e.alloc, shape, dtype, stream)
		if err != nil {
			return fmt.Errorf("allocating tensor %q: %w", name, err)
		}
		if old, ok := e.tensors[name]; ok {
			if err := old.Close(); err != nil {
				tensor.Close()
				return fmt.Errorf("releasing tensor %q: %w", name, err)
			}
		}
		e.tensors[name] = tensor
		if !e.context.SetTensorAddress(name, tensor.RawPtr()) {
			return fmt.Errorf("%w: binding tensor %q", ErrInvalidAddress, name)
		}
	}
	return nil
}

// Inference copies the fed input tensors into their pre-allocated device
// buffers, adjusting shapes where the call uses a smaller shape than was
// allocated, and enqueues the execution on the stream. Names in feeds that
// are not bound I/O tensors are skipped.
//
// The returned map is the engine's own name-to-tensor map, inputs and
// outputs both; treat it as read-only. Output buffers hold defined data
// only after the caller synchronizes the stream. A nil stream means the
// engine's default stream.
func (e *Engine) Inference(feeds map[string]*Tensor, stream cuda.Stream) (map[string]*Tensor, error) {
	if e.context == nil {
		return nil, ErrContextNotInitialized
	}
	if e.tensors == nil {
		return nil, ErrTensorsNotAllocated
	}
	if stream == nil {
		stream = e.stream
	}

	for name, input := range feeds {
		tensor, ok := e.tensors[name]
		if !ok {
			continue
		}
		if !tensor.Shape().Equal(input.Shape()) {
			if err := tensor.ResetShape(input.Shape()); err != nil {
				return nil, fmt.Errorf("tensor %q: %w", name, err)
			}
			if !e.context.SetInputShape(name, input.Shape()) {
				return nil, &ShapeError{Name: name, Dims: input.Shape().Clone()}
			}
		}
		if err := tensor.CopyFrom(input, stream); err != nil {
			return nil, fmt.Errorf("copying input %q: %w", name, err)
		}
	}

	if !e.context.EnqueueV3(stream) {
		return nil, ErrEnqueue
	}
	return e.tensors, nil
}

// CurrentShape reads back the execution context's current shape for a
// tensor, reflecting any per-call shape set by Inference.
func (e *Engine) CurrentShape(name string) (Shape, error) {
	if e.context == nil {
		return nil, ErrContextNotInitialized
	}
	return Shape(e.context.TensorShape(name)), nil
}

// Log sends a message through the runtime's logger. It stays usable even
// after a failed call, for diagnostics.
func (e *Engine) Log(severity nvinfer.Severity, msg string) {
	if e.runtime == nil {
		return
	}
	e.runtime.Logger().Log(severity, msg)
}

// Close releases everything the engine owns in dependency order: device
// tensors first, then the execution context, the engine, and finally the
// runtime. The stream is not owned and is left untouched.
func (e *Engine) Close() error {
	var errs []error

	for name, tensor := range e.tensors {
		if err := tensor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("freeing tensor %q: %w", name, err))
		}
	}
	e.tensors = nil

	if e.context != nil {
		if err := e.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing context: %w", err))
		}
		e.context = nil
	}
	if e.engine != nil {
		if err := e.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing engine: %w", err))
		}
		e.engine = nil
	}
	if e.runtime != nil {
		if err := e.runtime.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing runtime: %w", err))
		}
		e.runtime = nil
	}
	return errors.Join(errs...)
}

// Name returns the engine's name as recorded at build time.
func (e *Engine) Name() string {
	if e.engine == nil {
		return ""
	}
	return e.engine.Name()
}

// NumLayers returns the number of layers in the engine's network.
func (e *Engine) NumLayers() int {
	if e.engine == nil {
		return 0
	}
	return e.engine.NumLayers()
}

// DeviceMemorySize returns the device memory the engine needs for
// execution, in bytes.
func (e *Engine) DeviceMemorySize() int64 {
	if e.engine == nil {
		return 0
	}
	return e.engine.DeviceMemorySize()
}

// Metadata returns the engine's static I/O tensor metadata in enumeration
// order.
func (e *Engine) Metadata() ([]TensorInfo, error) {
	if e.engine == nil {
		return nil, ErrEngineNotInitialized
	}
	numIO := e.engine.NumIOTensors()
	infos := make([]TensorInfo, 0, numIO)
	for i := 0; i < numIO; i++ {
		name := e.engine.IOTensorName(i)
		infos = append(infos, TensorInfo{
			Name:  name,
			Mode:  e.engine.TensorIOMode(name),
			Shape: Shape(e.engine.TensorShape(name)),
			DType: e.engine.TensorDataType(name),
		})
	}
	return infos, nil
}

// TensorInfo is one I/O tensor's build-time metadata.
type TensorInfo struct {
	Name  string
	Mode  nvinfer.TensorIOMode
	Shape Shape
	DType nvinfer.DataType
}
