// Package nvinfer defines the interfaces through which the engine wrapper
// consumes the native TensorRT runtime. The real cgo-backed implementation
// lives in the trtsys subpackage; the sim subpackage provides a pure-Go
// runtime for tests and machines without a GPU.
package nvinfer

import (
	"k8s.io/examples/AI/trtengine/pkg/cuda"
)

// Runtime deserializes compiled engine blobs. It owns a Logger that the
// native library reports through.
type Runtime interface {
	// Deserialize turns a compiled-engine byte blob into an Engine.
	// It fails if the blob is not a valid engine for the running
	// runtime/driver version.
	Deserialize(data []byte) (Engine, error)

	Logger() Logger

	// Close destroys the native runtime. All engines deserialized from
	// this runtime must be closed first.
	Close() error
}

// Engine is a deserialized compiled engine. Its metadata is fixed for the
// engine's lifetime.
type Engine interface {
	// Name returns the engine's name as recorded at build time.
	Name() string

	// NumIOTensors returns the number of I/O tensors the engine declares.
	NumIOTensors() int

	// IOTensorName returns the name of the I/O tensor at index, in the
	// engine's own enumeration order.
	IOTensorName(index int) string

	// TensorIOMode reports whether the named tensor is an input, an
	// output, or neither.
	TensorIOMode(name string) TensorIOMode

	// TensorShape returns the tensor's build-time shape. Dynamic
	// dimensions are reported as -1.
	TensorShape(name string) []int32

	// TensorDataType returns the tensor's element type.
	TensorDataType(name string) DataType

	// NumLayers returns the number of layers in the engine's network.
	NumLayers() int

	// DeviceMemorySize returns the device memory the engine needs for
	// execution, in bytes.
	DeviceMemorySize() int64

	// CreateExecutionContext creates a context for running this engine.
	// It fails if the native call returns a null context, e.g. when
	// device memory is insufficient.
	CreateExecutionContext() (ExecutionContext, error)

	// Close destroys the engine. All contexts created from it must be
	// closed first.
	Close() error
}

// ExecutionContext holds the per-call shape and address bindings of one
// ready-to-run instantiation of an engine. The boolean results mirror the
// native API: false means the native call rejected the operation.
type ExecutionContext interface {
	// SetInputShape sets the current shape of an input tensor. Returns
	// false if the shape is outside the engine's optimization profile
	// or the name is not an input.
	SetInputShape(name string, dims []int32) bool

	// TensorShape reads back the context's current shape for a tensor.
	TensorShape(name string) []int32

	// AllInputDimensionsSpecified reports whether every input has a
	// fully resolved shape.
	AllInputDimensionsSpecified() bool

	// SetTensorAddress binds a device address for a named I/O tensor.
	SetTensorAddress(name string, addr uintptr) bool

	// EnqueueV3 enqueues the inference onto stream. Returns false if
	// not all input shapes and tensor addresses have been specified or
	// the native enqueue fails.
	EnqueueV3(stream cuda.Stream) bool

	// Close destroys the context. It must be closed before the engine
	// it was created from.
	Close() error
}

// Logger receives messages from the native runtime.
type Logger interface {
	Log(severity Severity, msg string)
}
