//go:build tensorrt && cgo

// Package trtsys implements the nvinfer interfaces over the real TensorRT
// library through a small C shim (trt_shim.h). Build with -tags tensorrt on
// a machine with CUDA and TensorRT installed.
package trtsys

/*
#cgo CXXFLAGS: -I/usr/local/cuda/include -std=c++17 -O2
#cgo LDFLAGS: -L/usr/local/cuda/lib64 -lcudart -lnvinfer -lstdc++
#include <stdlib.h>
#include "trt_shim.h"
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"k8s.io/examples/AI/trtengine/pkg/cuda"
	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
)

// The native logger calls back into Go; loggers are registered by id so the
// callback never holds a Go pointer on the C side.
var (
	loggersMu sync.Mutex
	loggers   = map[uintptr]nvinfer.Logger{}
	loggerIDs uintptr
)

//export trtsysLogCallback
func trtsysLogCallback(loggerID C.uintptr_t, severity C.int, msg *C.char) {
	loggersMu.Lock()
	logger := loggers[uintptr(loggerID)]
	loggersMu.Unlock()
	if logger != nil {
		logger.Log(nvinfer.Severity(severity), C.GoString(msg))
	}
}

// Runtime wraps an owning handle to an nvinfer1::IRuntime.
type Runtime struct {
	h        C.trts_runtime_t
	logger   nvinfer.Logger
	loggerID uintptr
}

var _ nvinfer.Runtime = (*Runtime)(nil)

// NewRuntime constructs a native TensorRT runtime reporting through logger.
// A nil logger defaults to the klog-backed one.
func NewRuntime(logger nvinfer.Logger) (*Runtime, error) {
	if logger == nil {
		logger = nvinfer.NewKlogLogger()
	}
	loggersMu.Lock()
	loggerIDs++
	id := loggerIDs
	loggers[id] = logger
	loggersMu.Unlock()

	h := C.trts_runtime_create(C.uintptr_t(id))
	if h == nil {
		loggersMu.Lock()
		delete(loggers, id)
		loggersMu.Unlock()
		return nil, fmt.Errorf("createInferRuntime returned null")
	}
	return &Runtime{h: h, logger: logger, loggerID: id}, nil
}

func (r *Runtime) Logger() nvinfer.Logger {
	return r.logger
}

func (r *Runtime) Deserialize(data []byte) (nvinfer.Engine, error) {
	if r.h == nil {
		return nil, fmt.Errorf("runtime is closed")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty engine blob")
	}
	h := C.trts_runtime_deserialize(r.h, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	if h == nil {
		return nil, fmt.Errorf("deserializeCudaEngine returned null")
	}
	return &Engine{h: h}, nil
}

func (r *Runtime) Close() error {
	if r.h != nil {
		C.trts_runtime_destroy(r.h)
		r.h = nil
		loggersMu.Lock()
		delete(loggers, r.loggerID)
		loggersMu.Unlock()
	}
	return nil
}

// Engine wraps an owning handle to an nvinfer1::ICudaEngine.
type Engine struct {
	h C.trts_engine_t
}

var _ nvinfer.Engine = (*Engine)(nil)

func (e *Engine) Name() string {
	return C.GoString(C.trts_engine_get_name(e.h))
}

func (e *Engine) NumLayers() int {
	return int(C.trts_engine_get_num_layers(e.h))
}

func (e *Engine) DeviceMemorySize() int64 {
	return int64(C.trts_engine_get_device_memory_size(e.h))
}

func (e *Engine) NumIOTensors() int {
	return int(C.trts_engine_get_num_io_tensors(e.h))
}

func (e *Engine) IOTensorName(index int) string {
	return C.GoString(C.trts_engine_get_io_tensor_name(e.h, C.int(index)))
}

func (e *Engine) TensorIOMode(name string) nvinfer.TensorIOMode {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	return nvinfer.IOModeFromCode(int32(C.trts_engine_get_tensor_io_mode(e.h, cName)))
}

func (e *Engine) TensorShape(name string) []int32 {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	var dims [C.TRTS_MAX_DIMS]C.int32_t
	n := int(C.trts_engine_get_tensor_shape(e.h, cName, &dims[0], C.TRTS_MAX_DIMS))
	return dimsToSlice(dims[:], n)
}

func (e *Engine) TensorDataType(name string) nvinfer.DataType {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	return nvinfer.DataTypeFromCode(int32(C.trts_engine_get_tensor_dtype(e.h, cName)))
}

func (e *Engine) CreateExecutionContext() (nvinfer.ExecutionContext, error) {
	h := C.trts_engine_create_execution_context(e.h)
	if h == nil {
		return nil, fmt.Errorf("createExecutionContext returned null")
	}
	return &Context{h: h}, nil
}

func (e *Engine) Close() error {
	if e.h != nil {
		C.trts_engine_destroy(e.h)
		e.h = nil
	}
	return nil
}

// Context wraps an owning handle to an nvinfer1::IExecutionContext.
type Context struct {
	h C.trts_context_t
}

var _ nvinfer.ExecutionContext = (*Context)(nil)

func (c *Context) SetInputShape(name string, dims []int32) bool {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	if len(dims) == 0 {
		return false
	}
	return C.trts_context_set_input_shape(c.h, cName,
		(*C.int32_t)(unsafe.Pointer(&dims[0])), C.int(len(dims))) != 0
}

func (c *Context) TensorShape(name string) []int32 {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	var dims [C.TRTS_MAX_DIMS]C.int32_t
	n := int(C.trts_context_get_tensor_shape(c.h, cName, &dims[0], C.TRTS_MAX_DIMS))
	return dimsToSlice(dims[:], n)
}

func (c *Context) AllInputDimensionsSpecified() bool {
	return C.trts_context_all_input_dimensions_specified(c.h) != 0
}

func (c *Context) SetTensorAddress(name string, addr uintptr) bool {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	return C.trts_context_set_tensor_address(c.h, cName, C.uintptr_t(addr)) != 0
}

func (c *Context) EnqueueV3(stream cuda.Stream) bool {
	return C.trts_context_enqueue_v3(c.h, C.uintptr_t(stream.Handle())) != 0
}

func (c *Context) Close() error {
	if c.h != nil {
		C.trts_context_destroy(c.h)
		c.h = nil
	}
	return nil
}

func dimsToSlice(dims []C.int32_t, n int) []int32 {
	if n <= 0 {
		return nil
	}
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(dims[i])
	}
	return out
}
