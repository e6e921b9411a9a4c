//go:build !cuda || !cgo

// Package cudart implements the cuda interfaces over the CUDA runtime
// library. This stub is compiled when the cuda build tag or cgo is off.
package cudart

import (
	"fmt"

	"k8s.io/examples/AI/trtengine/pkg/cuda"
)

var errUnavailable = fmt.Errorf("cuda runtime unavailable: build with -tags cuda and enable CGO")

func NewStream() (cuda.Stream, error) {
	return nil, errUnavailable
}

func NewAllocator() (cuda.Allocator, error) {
	return nil, errUnavailable
}
