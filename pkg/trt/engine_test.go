package trt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cudasim "k8s.io/examples/AI/trtengine/pkg/cuda/sim"
	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
	nvsim "k8s.io/examples/AI/trtengine/pkg/nvinfer/sim"
)

// staticPlan describes a classifier-like engine with one static input and
// one output.
func staticPlan(t *testing.T) []byte {
	t.Helper()
	data, err := nvsim.Serialize(&nvsim.EngineSpec{
		Name:   "resnet-test",
		Layers: 53,
		Tensors: []nvsim.TensorSpec{
			{Name: "x", Mode: int32(nvinfer.TensorIOInput), Shape: []int32{1, 3, 224, 224}, DType: int32(nvinfer.Float)},
			{Name: "y", Mode: int32(nvinfer.TensorIOOutput), Shape: []int32{1, 1000}, DType: int32(nvinfer.Float)},
		},
	})
	require.NoError(t, err)
	return data
}

// dynamicPlan is the same engine with a dynamic spatial input whose
// optimization profile allows 64x64 through 448x448.
func dynamicPlan(t *testing.T) []byte {
	t.Helper()
	data, err := nvsim.Serialize(&nvsim.EngineSpec{
		Name: "resnet-dynamic-test",
		Tensors: []nvsim.TensorSpec{
			{
				Name:  "x",
				Mode:  int32(nvinfer.TensorIOInput),
				Shape: []int32{1, 3, -1, -1},
				DType: int32(nvinfer.Float),
				Min:   []int32{1, 3, 64, 64},
				Max:   []int32{1, 3, 448, 448},
			},
			{Name: "y", Mode: int32(nvinfer.TensorIOOutput), Shape: []int32{1, 1000}, DType: int32(nvinfer.Float)},
		},
	})
	require.NoError(t, err)
	return data
}

type harness struct {
	alloc  *cudasim.Allocator
	stream *cudasim.Stream
	engine *Engine
}

func newHarness(t *testing.T, plan []byte) *harness {
	t.Helper()
	alloc := cudasim.NewAllocator()
	stream := cudasim.NewStream()
	engine, err := NewFromBytes(nvsim.NewRuntime(nil), alloc, stream, plan)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return &harness{alloc: alloc, stream: stream, engine: engine}
}

// feed allocates an input tensor of the given shape and uploads a
// deterministic byte pattern.
func (h *harness) feed(t *testing.T, shape Shape) *Tensor {
	t.Helper()
	tensor, err := Empty(h.alloc, shape, nvinfer.Float, h.stream)
	require.NoError(t, err)
	t.Cleanup(func() { tensor.Close() })

	data := make([]byte, shape.Size()*nvinfer.Float.Size())
	for i := range data {
		data[i] = byte(i * 7)
	}
	require.NoError(t, tensor.CopyFromHost(data, h.stream))
	return tensor
}

func TestNewReadsEngineFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.plan")
	require.NoError(t, os.WriteFile(path, staticPlan(t), 0644))

	engine, err := New(nvsim.NewRuntime(nil), cudasim.NewAllocator(), cudasim.NewStream(), path)
	require.NoError(t, err)
	defer engine.Close()

	infos, err := engine.Metadata()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "resnet-test", engine.Name())
	assert.Equal(t, 53, engine.NumLayers())
	assert.Equal(t, int64((1*3*224*224+1*1000)*nvinfer.Float.Size()), engine.DeviceMemorySize())
	assert.Equal(t, "x", infos[0].Name)
	assert.Equal(t, nvinfer.TensorIOInput, infos[0].Mode)
}

func TestNewMissingFile(t *testing.T) {
	_, err := New(nvsim.NewRuntime(nil), cudasim.NewAllocator(), cudasim.NewStream(), filepath.Join(t.TempDir(), "nope.plan"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewNilRuntime(t *testing.T) {
	_, err := NewFromBytes(nil, cudasim.NewAllocator(), cudasim.NewStream(), staticPlan(t))
	require.ErrorIs(t, err, ErrRuntimeCreation)
}

func TestNewBadBlob(t *testing.T) {
	_, err := NewFromBytes(nvsim.NewRuntime(nil), cudasim.NewAllocator(), cudasim.NewStream(), []byte("not an engine"))
	require.ErrorIs(t, err, ErrEngineDeserialization)
}

func TestActivateFailure(t *testing.T) {
	h := newHarness(t, staticPlan(t))

	// Reach into the sim engine to make context creation fail, as it
	// would on insufficient device memory.
	infos, err := h.engine.Metadata()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	h.engine.engine.(*nvsim.Engine).CreateContextErr = os.ErrInvalid

	err = h.engine.Activate()
	require.ErrorIs(t, err, ErrContextCreation)
}

// Scenario: static engine, no overrides. Allocation must produce exactly
// one tensor per declared I/O tensor.
func TestAllocateIOTensorsStatic(t *testing.T) {
	h := newHarness(t, staticPlan(t))
	require.NoError(t, h.engine.Activate())
	require.NoError(t, h.engine.AllocateIOTensors(nil, nil))

	tensors, err := h.engine.Inference(nil, nil)
	require.NoError(t, err)
	require.Len(t, tensors, 2)
	assert.Contains(t, tensors, "x")
	assert.Contains(t, tensors, "y")
	assert.Equal(t, Shape{1, 3, 224, 224}, tensors["x"].Shape())
	assert.Equal(t, Shape{1, 1000}, tensors["y"].Shape())
}

// Scenario: allocate before activate fails with context-not-initialized
// and leaves nothing allocated.
func TestAllocateBeforeActivate(t *testing.T) {
	h := newHarness(t, staticPlan(t))

	err := h.engine.AllocateIOTensors(nil, nil)
	require.ErrorIs(t, err, ErrContextNotInitialized)
	assert.Equal(t, 0, h.alloc.Live())

	_, err = h.engine.Inference(nil, nil)
	require.ErrorIs(t, err, ErrContextNotInitialized)
}

// Scenario: a dynamic input without a max-shape override must be rejected
// before any allocation or native call.
func TestAllocateDynamicWithoutOverride(t *testing.T) {
	h := newHarness(t, dynamicPlan(t))
	require.NoError(t, h.engine.Activate())

	err := h.engine.AllocateIOTensors(nil, nil)
	shapeErr := &ShapeError{}
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "x", shapeErr.Name)
	assert.Equal(t, 0, h.alloc.Live())
}

// Scenario: a max-shape override that still contains a dynamic dimension
// is rejected the same way.
func TestAllocateNegativeOverride(t *testing.T) {
	h := newHarness(t, dynamicPlan(t))
	require.NoError(t, h.engine.Activate())

	err := h.engine.AllocateIOTensors(map[string]Shape{"x": {1, 3, -1, 224}}, nil)
	shapeErr := &ShapeError{}
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 0, h.alloc.Live())
}

func TestAllocateOverrideOutsideProfile(t *testing.T) {
	h := newHarness(t, dynamicPlan(t))
	require.NoError(t, h.engine.Activate())

	// 512 exceeds the profile's 448 bound; the native set-input-shape
	// rejects it.
	err := h.engine.AllocateIOTensors(map[string]Shape{"x": {1, 3, 512, 512}}, nil)
	shapeErr := &ShapeError{}
	require.ErrorAs(t, err, &shapeErr)
}

// Allocating twice must rebind without leaking: one live buffer per I/O
// tensor, with the overwritten ones released.
func TestAllocateTwiceDoesNotLeak(t *testing.T) {
	h := newHarness(t, staticPlan(t))
	require.NoError(t, h.engine.Activate())

	require.NoError(t, h.engine.AllocateIOTensors(nil, nil))
	assert.Equal(t, 2, h.alloc.Live())

	require.NoError(t, h.engine.AllocateIOTensors(nil, nil))
	assert.Equal(t, 2, h.alloc.Live())
}

// Scenario: inference at the allocated shape, end to end through the
// stream. Outputs are defined only after synchronize.
func TestInferenceStatic(t *testing.T) {
	h := newHarness(t, staticPlan(t))
	require.NoError(t, h.engine.Activate())
	require.NoError(t, h.engine.AllocateIOTensors(nil, nil))

	x := h.feed(t, Shape{1, 3, 224, 224})
	tensors, err := h.engine.Inference(map[string]*Tensor{"x": x}, nil)
	require.NoError(t, err)

	// The copy and the execution are enqueued but have not run.
	assert.NotZero(t, h.stream.Pending())
	require.NoError(t, h.stream.Synchronize())

	// The simulated execution fills outputs with a digest pattern of
	// the input bytes, proving the input copy ran before the enqueue.
	xBytes := make([]byte, x.Shape().Size()*nvinfer.Float.Size())
	require.NoError(t, x.CopyToHost(xBytes, h.stream))
	require.NoError(t, h.stream.Synchronize())

	y := tensors["y"]
	yBytes := make([]byte, y.Shape().Size()*nvinfer.Float.Size())
	require.NoError(t, y.CopyToHost(yBytes, h.stream))
	require.NoError(t, h.stream.Synchronize())

	want := nvsim.Pattern(nvsim.Digest([][]byte{xBytes}), len(yBytes))
	assert.Equal(t, want, yBytes)
}

// Scenario: feeding a smaller shape than allocated shrinks the bound
// tensor in place and re-sets the context's input shape.
func TestInferenceShrink(t *testing.T) {
	h := newHarness(t, dynamicPlan(t))
	require.NoError(t, h.engine.Activate())
	require.NoError(t, h.engine.AllocateIOTensors(map[string]Shape{"x": {1, 3, 224, 224}}, nil))

	x := h.feed(t, Shape{1, 3, 112, 112})
	tensors, err := h.engine.Inference(map[string]*Tensor{"x": x}, nil)
	require.NoError(t, err)
	require.NoError(t, h.stream.Synchronize())

	assert.Equal(t, Shape{1, 3, 112, 112}, tensors["x"].Shape())

	// The context's bound input shape must read back as the fed shape.
	current, err := h.engine.CurrentShape("x")
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 3, 112, 112}, current)

	// Growing back to the allocated bound also works.
	x2 := h.feed(t, Shape{1, 3, 224, 224})
	_, err = h.engine.Inference(map[string]*Tensor{"x": x2}, nil)
	require.NoError(t, err)
	require.NoError(t, h.stream.Synchronize())

	current, err = h.engine.CurrentShape("x")
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 3, 224, 224}, current)
}

// Scenario: feeding a shape that exceeds the allocation fails with a
// reset-shape error instead of silently truncating.
func TestInferenceGrowBeyondAllocation(t *testing.T) {
	h := newHarness(t, dynamicPlan(t))
	require.NoError(t, h.engine.Activate())
	require.NoError(t, h.engine.AllocateIOTensors(map[string]Shape{"x": {1, 3, 224, 224}}, nil))

	// 448x448 is inside the optimization profile but beyond what was
	// allocated.
	x := h.feed(t, Shape{1, 3, 448, 448})
	_, err := h.engine.Inference(map[string]*Tensor{"x": x}, nil)
	require.ErrorIs(t, err, ErrResetShape)
}

// Feed names that are not bound I/O tensors are skipped, not errors.
func TestInferenceSkipsUnknownFeeds(t *testing.T) {
	h := newHarness(t, staticPlan(t))
	require.NoError(t, h.engine.Activate())
	require.NoError(t, h.engine.AllocateIOTensors(nil, nil))

	x := h.feed(t, Shape{1, 3, 224, 224})
	extra := h.feed(t, Shape{4})
	_, err := h.engine.Inference(map[string]*Tensor{"x": x, "bogus": extra}, nil)
	require.NoError(t, err)
	require.NoError(t, h.stream.Synchronize())
}

func TestInferenceRepeatedCallsReuseAllocations(t *testing.T) {
	h := newHarness(t, staticPlan(t))
	require.NoError(t, h.engine.Activate())
	require.NoError(t, h.engine.AllocateIOTensors(nil, nil))

	live := h.alloc.Live()
	x := h.feed(t, Shape{1, 3, 224, 224})
	for i := 0; i < 3; i++ {
		_, err := h.engine.Inference(map[string]*Tensor{"x": x}, nil)
		require.NoError(t, err)
		require.NoError(t, h.stream.Synchronize())
	}
	// The feed tensor is the only additional allocation.
	assert.Equal(t, live+1, h.alloc.Live())
}

func TestCloseReleasesEverything(t *testing.T) {
	alloc := cudasim.NewAllocator()
	stream := cudasim.NewStream()
	engine, err := NewFromBytes(nvsim.NewRuntime(nil), alloc, stream, staticPlan(t))
	require.NoError(t, err)
	require.NoError(t, engine.Activate())
	require.NoError(t, engine.AllocateIOTensors(nil, nil))
	require.Equal(t, 2, alloc.Live())

	require.NoError(t, engine.Close())
	assert.Equal(t, 0, alloc.Live())

	// The engine fails fast after close but stays safe to call.
	_, err = engine.Inference(nil, nil)
	require.ErrorIs(t, err, ErrContextNotInitialized)
	engine.Log(nvinfer.SeverityInfo, "closed")
}

func TestLogAfterFailure(t *testing.T) {
	h := newHarness(t, staticPlan(t))

	err := h.engine.AllocateIOTensors(nil, nil)
	require.Error(t, err)

	// Diagnostic logging must still work in a failed state.
	h.engine.Log(nvinfer.SeverityWarning, "allocation failed, retrying after activation")
}
