// mksimplan writes a simulated engine plan for use with the sim runtime,
// so trtinfer and engineinfo can run without a GPU or a real TensorRT
// build.
//
// Tensors are described as name=dims, with optional profile bounds for
// dynamic dimensions:
//
//	mksimplan --out model.plan \
//	    --input "x=1x3x-1x-1,min=1x3x64x64,max=1x3x224x224" \
//	    --output "y=1x1000"
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
	"k8s.io/examples/AI/trtengine/pkg/nvinfer/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	out := ""
	name := "simulated"
	dtype := "float"
	layers := 0
	inputs := tensorFlags{}
	outputs := tensorFlags{}

	flag.StringVar(&out, "out", out, "output path for the plan")
	flag.StringVar(&name, "name", name, "engine name")
	flag.StringVar(&dtype, "dtype", dtype, "element type for all tensors (float, half, int8, int32, int64)")
	flag.IntVar(&layers, "layers", layers, "layer count reported by the engine")
	flag.Var(&inputs, "input", "input tensor, name=1x3x224x224[,min=...,max=...] (repeatable)")
	flag.Var(&outputs, "output", "output tensor, name=1x1000[,max=...] (repeatable)")
	flag.Parse()

	if out == "" {
		return fmt.Errorf("must specify --out")
	}
	if len(inputs)+len(outputs) == 0 {
		return fmt.Errorf("must specify at least one --input or --output")
	}

	dt, err := parseDType(dtype)
	if err != nil {
		return err
	}

	spec := &sim.EngineSpec{Name: name, Layers: layers}
	for _, t := range inputs {
		t.Mode = int32(nvinfer.TensorIOInput)
		t.DType = int32(dt)
		spec.Tensors = append(spec.Tensors, t)
	}
	for _, t := range outputs {
		t.Mode = int32(nvinfer.TensorIOOutput)
		t.DType = int32(dt)
		spec.Tensors = append(spec.Tensors, t)
	}

	data, err := sim.Serialize(spec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("writing plan %q: %w", out, err)
	}
	fmt.Printf("wrote %s (%d tensors, %d bytes)\n", out, len(spec.Tensors), len(data))
	return nil
}

func parseDType(s string) (nvinfer.DataType, error) {
	switch strings.ToLower(s) {
	case "float", "float32", "fp32":
		return nvinfer.Float, nil
	case "half", "float16", "fp16":
		return nvinfer.Half, nil
	case "int8":
		return nvinfer.Int8, nil
	case "int32":
		return nvinfer.Int32, nil
	case "int64":
		return nvinfer.Int64, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", s)
	}
}

// tensorFlags collects repeated tensor descriptions.
type tensorFlags []sim.TensorSpec

func (f *tensorFlags) String() string {
	names := make([]string, len(*f))
	for i, t := range *f {
		names[i] = t.Name
	}
	return strings.Join(names, ",")
}

func (f *tensorFlags) Set(value string) error {
	parts := strings.Split(value, ",")
	name, dims, ok := strings.Cut(parts[0], "=")
	if !ok {
		return fmt.Errorf("expected name=1x3x224x224, got %q", parts[0])
	}
	shape, err := parseDims(dims)
	if err != nil {
		return err
	}
	t := sim.TensorSpec{Name: name, Shape: shape}
	for _, part := range parts[1:] {
		key, dims, ok := strings.Cut(part, "=")
		if !ok {
			return fmt.Errorf("expected min=... or max=..., got %q", part)
		}
		bound, err := parseDims(dims)
		if err != nil {
			return err
		}
		switch key {
		case "min":
			t.Min = bound
		case "max":
			t.Max = bound
		default:
			return fmt.Errorf("unknown bound %q", key)
		}
	}
	*f = append(*f, t)
	return nil
}

func parseDims(s string) ([]int32, error) {
	parts := strings.Split(s, "x")
	dims := make([]int32, len(parts))
	for i, part := range parts {
		d, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid dimension %q in %q", part, s)
		}
		dims[i] = int32(d)
	}
	return dims, nil
}
