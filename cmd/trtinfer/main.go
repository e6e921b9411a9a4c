// trtinfer loads a compiled engine plan (local path, gs:// or http(s)://),
// allocates its I/O tensors and runs inference with synthetic input data.
// By default it uses the simulated runtime and device; pass --tensorrt on a
// binary built with -tags "tensorrt cuda" to run on a GPU.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

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
	log := klog.FromContext(ctx)

	engineRef := ""
	cacheDir := "~/.cache/trtengine/plans"
	useTensorRT := false
	iterations := 1
	maxShapes := shapeFlags{}
	feedShapes := shapeFlags{}

	flag.StringVar(&engineRef, "engine", engineRef, "engine plan: local path, gs://bucket/key or http(s) URL")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory for downloaded plans")
	flag.BoolVar(&useTensorRT, "tensorrt", useTensorRT, "use the native TensorRT runtime and CUDA device")
	flag.IntVar(&iterations, "iterations", iterations, "number of inference calls")
	flag.Var(&maxShapes, "max-shape", "maximum shape override, name=1x3x224x224 (repeatable)")
	flag.Var(&feedShapes, "feed-shape", "per-call input shape, name=1x3x112x112 (repeatable)")
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

	if err := engine.Activate(); err != nil {
		return err
	}
	if err := engine.AllocateIOTensors(maxShapes, nil); err != nil {
		return err
	}

	infos, err := engine.Metadata()
	if err != nil {
		return err
	}

	feeds := map[string]*trt.Tensor{}
	defer func() {
		for _, t := range feeds {
			t.Close()
		}
	}()
	for _, info := range infos {
		if !info.Mode.IsInput() {
			continue
		}
		shape := info.Shape
		if s, ok := maxShapes[info.Name]; ok {
			shape = s
		}
		if s, ok := feedShapes[info.Name]; ok {
			shape = s
		}
		tensor, err := trt.Empty(alloc, shape, info.DType, stream)
		if err != nil {
			return fmt.Errorf("allocating feed %q: %w", info.Name, err)
		}
		feeds[info.Name] = tensor

		data := make([]byte, shape.Size()*info.DType.Size())
		for i := range data {
			data[i] = byte(i)
		}
		if err := tensor.CopyFromHost(data, stream); err != nil {
			return fmt.Errorf("uploading feed %q: %w", info.Name, err)
		}
	}

	for i := 0; i < iterations; i++ {
		startedAt := time.Now()
		tensors, err := engine.Inference(feeds, nil)
		if err != nil {
			return err
		}
		if err := stream.Synchronize(); err != nil {
			return err
		}
		log.Info("inference complete", "iteration", i, "duration", time.Since(startedAt))

		for _, info := range infos {
			if info.Mode != nvinfer.TensorIOOutput {
				continue
			}
			out := tensors[info.Name]
			data := make([]byte, out.Shape().Size()*out.DataType().Size())
			if err := out.CopyToHost(data, stream); err != nil {
				return err
			}
			if err := stream.Synchronize(); err != nil {
				return err
			}
			n := len(data)
			if n > 16 {
				n = 16
			}
			fmt.Printf("%s %v %s: % x...\n", info.Name, out.Shape(), out.DataType(), data[:n])
		}
	}

	return nil
}

// shapeFlags collects repeated name=1x3x224x224 flags.
type shapeFlags map[string]trt.Shape

func (f *shapeFlags) String() string {
	parts := make([]string, 0, len(*f))
	for name, shape := range *f {
		parts = append(parts, name+"="+shape.String())
	}
	return strings.Join(parts, ",")
}

func (f *shapeFlags) Set(value string) error {
	name, dims, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected name=1x3x224x224, got %q", value)
	}
	shape, err := parseShape(dims)
	if err != nil {
		return err
	}
	(*f)[name] = shape
	return nil
}

func parseShape(s string) (trt.Shape, error) {
	parts := strings.Split(s, "x")
	shape := make(trt.Shape, len(parts))
	for i, part := range parts {
		d, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid dimension %q in %q", part, s)
		}
		shape[i] = int32(d)
	}
	return shape, nil
}
