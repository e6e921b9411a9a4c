package trt

import (
	"errors"
	"fmt"
)

// Every fallible step fails with one of these; none of them is retried
// internally. Transient device errors surface to the caller as-is.
var (
	ErrRuntimeCreation       = errors.New("tensorrt runtime creation failed")
	ErrEngineDeserialization = errors.New("engine deserialization failed")
	ErrEngineNotInitialized  = errors.New("engine not initialized")
	ErrContextCreation       = errors.New("execution context creation failed")
	ErrContextNotInitialized = errors.New("execution context not initialized")
	ErrTensorsNotAllocated   = errors.New("io tensors not allocated")
	ErrInvalidAddress        = errors.New("invalid tensor address")
	ErrEnqueue               = errors.New("enqueue failed")
	ErrResetShape            = errors.New("shape grew beyond allocation")
	ErrShapeMismatch         = errors.New("tensor shape mismatch")
	ErrDTypeMismatch         = errors.New("tensor dtype mismatch")
)

// ShapeError reports a shape that was rejected: it contained unresolved
// dynamic dimensions, or the native runtime refused it (for example,
// outside the engine's optimization profile).
type ShapeError struct {
	Name string
	Dims Shape
}

func (e *ShapeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid shape %v", e.Dims)
	}
	return fmt.Sprintf("invalid shape %v for tensor %q", e.Dims, e.Name)
}
