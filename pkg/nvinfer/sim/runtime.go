// Package sim implements the nvinfer interfaces without a GPU. A simulated
// engine is deserialized from a small JSON description instead of a real
// TensorRT plan, and enqueued work runs on a cuda/sim stream. It exists for
// the same reason the device sim does: the orchestration layer has exact,
// testable semantics that do not depend on real kernels.
package sim

import (
	"bytes"
	"encoding/json"
	"fmt"

	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
)

// Magic prefixes every simulated engine blob. Real TensorRT plans never
// start with these bytes, so mixups fail deserialization cleanly.
const Magic = "SIMTRT1\n"

// EngineSpec describes a simulated engine. Serialize turns it into a blob
// that Runtime.Deserialize accepts.
type EngineSpec struct {
	Name    string       `json:"name"`
	Layers  int          `json:"layers,omitempty"`
	Tensors []TensorSpec `json:"tensors"`
}

// TensorSpec describes one I/O tensor. Dynamic dimensions are -1, and any
// tensor with a dynamic dimension must carry profile bounds: Min and Max
// for inputs, Max for outputs.
type TensorSpec struct {
	Name  string  `json:"name"`
	Mode  int32   `json:"mode"`
	Shape []int32 `json:"shape"`
	DType int32   `json:"dtype"`

	Min []int32 `json:"min,omitempty"`
	Max []int32 `json:"max,omitempty"`
}

// Serialize encodes spec as an engine blob.
func Serialize(spec *EngineSpec) ([]byte, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encoding engine spec: %w", err)
	}
	return append([]byte(Magic), data...), nil
}

func validateSpec(spec *EngineSpec) error {
	if spec.Layers < 0 {
		return fmt.Errorf("negative layer count %d", spec.Layers)
	}
	seen := make(map[string]bool)
	for _, t := range spec.Tensors {
		if t.Name == "" {
			return fmt.Errorf("tensor with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tensor %q", t.Name)
		}
		seen[t.Name] = true

		if t.Mode < 0 || t.Mode > 2 {
			return fmt.Errorf("tensor %q: invalid io mode %d", t.Name, t.Mode)
		}
		if t.DType < int32(nvinfer.Float) || t.DType > int32(nvinfer.Int64) {
			return fmt.Errorf("tensor %q: invalid data type %d", t.Name, t.DType)
		}
		if len(t.Shape) == 0 {
			return fmt.Errorf("tensor %q: empty shape", t.Name)
		}
		dynamic := false
		for _, d := range t.Shape {
			if d == -1 {
				dynamic = true
			} else if d <= 0 {
				return fmt.Errorf("tensor %q: invalid dimension %d", t.Name, d)
			}
		}
		if !dynamic {
			continue
		}
		if len(t.Max) != len(t.Shape) {
			return fmt.Errorf("tensor %q: dynamic shape without max bounds", t.Name)
		}
		if t.Mode == int32(nvinfer.TensorIOInput) && len(t.Min) != len(t.Shape) {
			return fmt.Errorf("input %q: dynamic shape without min bounds", t.Name)
		}
	}
	return nil
}

// Runtime deserializes simulated engine blobs.
type Runtime struct {
	logger nvinfer.Logger
	closed bool
}

var _ nvinfer.Runtime = (*Runtime)(nil)

// NewRuntime creates a simulated runtime. A nil logger defaults to the
// klog-backed one.
func NewRuntime(logger nvinfer.Logger) *Runtime {
	if logger == nil {
		logger = nvinfer.NewKlogLogger()
	}
	return &Runtime{logger: logger}
}

func (r *Runtime) Logger() nvinfer.Logger {
	return r.logger
}

func (r *Runtime) Deserialize(data []byte) (nvinfer.Engine, error) {
	if r.closed {
		return nil, fmt.Errorf("runtime is closed")
	}
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return nil, fmt.Errorf("not a simulated engine blob")
	}
	spec := &EngineSpec{}
	if err := json.Unmarshal(bytes.TrimPrefix(data, []byte(Magic)), spec); err != nil {
		return nil, fmt.Errorf("decoding engine blob: %w", err)
	}
	if err := validateSpec(spec); err != nil {
		return nil, fmt.Errorf("invalid engine blob: %w", err)
	}

	byName := make(map[string]*TensorSpec, len(spec.Tensors))
	for i := range spec.Tensors {
		byName[spec.Tensors[i].Name] = &spec.Tensors[i]
	}
	r.logger.Log(nvinfer.SeverityInfo,
		fmt.Sprintf("deserialized engine %q with %d io tensors", spec.Name, len(spec.Tensors)))
	return &Engine{rt: r, spec: spec, byName: byName}, nil
}

func (r *Runtime) Close() error {
	r.closed = true
	return nil
}

// Engine is a deserialized simulated engine.
type Engine struct {
	rt     *Runtime
	spec   *EngineSpec
	byName map[string]*TensorSpec
	closed bool

	// CreateContextErr, when set, makes CreateExecutionContext fail.
	// Tests use it to exercise the context creation error path.
	CreateContextErr error
}

var _ nvinfer.Engine = (*Engine)(nil)

func (e *Engine) Name() string {
	return e.spec.Name
}

func (e *Engine) NumLayers() int {
	return e.spec.Layers
}

// DeviceMemorySize reports the bytes the simulated execution can touch: the
// sum of every tensor's largest byte size.
func (e *Engine) DeviceMemorySize() int64 {
	var n int64
	for i := range e.spec.Tensors {
		n += int64(maxByteSize(&e.spec.Tensors[i]))
	}
	return n
}

func (e *Engine) NumIOTensors() int {
	return len(e.spec.Tensors)
}

func (e *Engine) IOTensorName(index int) string {
	return e.spec.Tensors[index].Name
}

func (e *Engine) TensorIOMode(name string) nvinfer.TensorIOMode {
	t, ok := e.byName[name]
	if !ok {
		return nvinfer.TensorIONone
	}
	return nvinfer.IOModeFromCode(t.Mode)
}

func (e *Engine) TensorShape(name string) []int32 {
	t, ok := e.byName[name]
	if !ok {
		return nil
	}
	return cloneDims(t.Shape)
}

func (e *Engine) TensorDataType(name string) nvinfer.DataType {
	t, ok := e.byName[name]
	if !ok {
		return nvinfer.Float
	}
	return nvinfer.DataTypeFromCode(t.DType)
}

func (e *Engine) CreateExecutionContext() (nvinfer.ExecutionContext, error) {
	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}
	if e.CreateContextErr != nil {
		return nil, e.CreateContextErr
	}
	return &Context{
		eng:    e,
		shapes: make(map[string][]int32),
		addrs:  make(map[string]uintptr),
	}, nil
}

func (e *Engine) Close() error {
	e.closed = true
	return nil
}

func cloneDims(dims []int32) []int32 {
	out := make([]int32, len(dims))
	copy(out, dims)
	return out
}
