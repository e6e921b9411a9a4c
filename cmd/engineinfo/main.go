// engineinfo prints the static I/O tensor metadata of a compiled engine
// plan: names, directions, build-time shapes and data types.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"

	"k8s.io/examples/AI/trtengine/pkg/blobs"
	"k8s.io/examples/AI/trtengine/pkg/cuda"
	"k8s.io/examples/AI/trtengine/pkg/cuda/cudart"
	cudasim "k8s.io/examples/AI/trtengine/pkg/cuda/sim"
	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
	nvsim "k8s.io/examples/AI/trtengine/pkg/nvinfer/sim"
	"k8s.io/examples/AI/trtengine/pkg/nvinfer/trtsys"
	"k8s.io/examples/AI/trtengine/pkg/trt"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	engineRef := ""
	cacheDir := "~/.cache/trtengine/plans"
	useTensorRT := false

	flag.StringVar(&engineRef, "engine", engineRef, "engine plan: local path, gs://bucket/key or http(s) URL")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory for downloaded plans")
	flag.BoolVar(&useTensorRT, "tensorrt", useTensorRT, "use the native TensorRT runtime")
	klog.InitFlags(nil)
	flag.Parse()

	if engineRef == "" {
		return fmt.Errorf("must specify --engine")
	}
	if strings.HasPrefix(cacheDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		cacheDir = filepath.Join(homeDir, strings.TrimPrefix(cacheDir, "~/"))
	}

	enginePath, err := blobs.Fetch(ctx, engineRef, cacheDir)
	if err != nil {
		return err
	}

	var runtime nvinfer.Runtime
	var alloc cuda.Allocator
	var stream cuda.Stream
	if useTensorRT {
		runtime, err = trtsys.NewRuntime(nil)
		if err != nil {
			return err
		}
		stream, err = cudart.NewStream()
		if err != nil {
			return err
		}
		alloc, err = cudart.NewAllocator()
		if err != nil {
			return err
		}
	} else {
		runtime = nvsim.NewRuntime(nil)
		stream = cudasim.NewStream()
		alloc = cudasim.NewAllocator()
	}

	engine, err := trt.New(runtime, alloc, stream, enginePath)
	if err != nil {
		return err
	}
	defer engine.Close()

	infos, err := engine.Metadata()
	if err != nil {
		return err
	}
	fmt.Printf("engine: %s (%d io tensors, %d layers, %d bytes device memory)\n",
		engine.Name(), len(infos), engine.NumLayers(), engine.DeviceMemorySize())
	for _, info := range infos {
		fmt.Printf("%-8s %-24s %-16s %s\n", info.Mode, info.Name, info.Shape, info.DType)
	}

	return nil
}
