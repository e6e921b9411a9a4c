//go:build !tensorrt || !cgo

// Package trtsys implements the nvinfer interfaces over the real TensorRT
// library. This stub is compiled when the tensorrt build tag or cgo is off.
package trtsys

import (
	"fmt"

	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
)

// NewRuntime is unavailable without the native library.
func NewRuntime(_ nvinfer.Logger) (nvinfer.Runtime, error) {
	return nil, fmt.Errorf("tensorrt runtime unavailable: build with -tags tensorrt and enable CGO")
}
