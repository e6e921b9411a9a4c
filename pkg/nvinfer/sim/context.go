package sim

import (
	"fmt"
	"hash/fnv"

	"k8s.io/examples/AI/trtengine/pkg/cuda"
	cudasim "k8s.io/examples/AI/trtengine/pkg/cuda/sim"
	"k8s.io/examples/AI/trtengine/pkg/nvinfer"
)

// Context is a simulated execution context. It tracks the same per-call
// state as the native one: current input shapes and bound tensor addresses.
type Context struct {
	eng    *Engine
	shapes map[string][]int32
	addrs  map[string]uintptr
	closed bool
}

var _ nvinfer.ExecutionContext = (*Context)(nil)

func (c *Context) SetInputShape(name string, dims []int32) bool {
	if c.closed {
		return false
	}
	t, ok := c.eng.byName[name]
	if !ok || t.Mode != int32(nvinfer.TensorIOInput) {
		return false
	}
	if len(dims) != len(t.Shape) {
		return false
	}
	for i, d := range dims {
		if d <= 0 {
			return false
		}
		if t.Shape[i] >= 0 {
			if d != t.Shape[i] {
				return false
			}
			continue
		}
		// Dynamic dimension: enforce the optimization profile bounds.
		if d < t.Min[i] || d > t.Max[i] {
			return false
		}
	}
	c.shapes[name] = cloneDims(dims)
	return true
}

func (c *Context) TensorShape(name string) []int32 {
	if s, ok := c.shapes[name]; ok {
		return cloneDims(s)
	}
	return c.eng.TensorShape(name)
}

func (c *Context) AllInputDimensionsSpecified() bool {
	for _, t := range c.eng.spec.Tensors {
		if t.Mode != int32(nvinfer.TensorIOInput) {
			continue
		}
		if _, ok := c.shapes[t.Name]; ok {
			continue
		}
		// Static inputs are specified by construction.
		if hasDynamic(t.Shape) {
			return false
		}
	}
	return true
}

func (c *Context) SetTensorAddress(name string, addr uintptr) bool {
	if c.closed {
		return false
	}
	if _, ok := c.eng.byName[name]; !ok {
		return false
	}
	if addr == 0 {
		return false
	}
	c.addrs[name] = addr
	return true
}

// EnqueueV3 validates the bindings and defers the simulated execution onto
// the stream. The execution digests all input bytes and fills every output
// buffer with a pattern derived from the digest, so a caller can observe
// that input copies enqueued earlier on the same stream ran first.
func (c *Context) EnqueueV3(stream cuda.Stream) bool {
	if c.closed {
		return false
	}
	ss, ok := stream.(*cudasim.Stream)
	if !ok {
		c.eng.rt.logger.Log(nvinfer.SeverityError,
			fmt.Sprintf("enqueue requires a sim stream, got %T", stream))
		return false
	}
	if !c.AllInputDimensionsSpecified() {
		c.eng.rt.logger.Log(nvinfer.SeverityError, "enqueue with unspecified input dimensions")
		return false
	}

	// Snapshot the bindings now; later SetInputShape calls must not
	// affect work already enqueued.
	type binding struct {
		addr uintptr
		size int
	}
	var inputs, outputs []binding
	for _, t := range c.eng.spec.Tensors {
		addr, ok := c.addrs[t.Name]
		if !ok {
			c.eng.rt.logger.Log(nvinfer.SeverityError,
				fmt.Sprintf("enqueue with unbound tensor %q", t.Name))
			return false
		}
		b := binding{addr: addr, size: c.byteSize(&t)}
		switch t.Mode {
		case int32(nvinfer.TensorIOInput):
			inputs = append(inputs, b)
		case int32(nvinfer.TensorIOOutput):
			outputs = append(outputs, b)
		}
	}

	ss.Enqueue(func() error {
		bufs := make([][]byte, len(inputs))
		for i, in := range inputs {
			bufs[i] = cudasim.BytesAt(in.addr, in.size)
		}
		digest := Digest(bufs)
		for _, out := range outputs {
			copy(cudasim.BytesAt(out.addr, out.size), Pattern(digest, out.size))
		}
		return nil
	})
	return true
}

// byteSize resolves the number of bytes the execution touches for t:
// the current shape for inputs, the static or profile-max shape for
// outputs.
func (c *Context) byteSize(t *TensorSpec) int {
	dims, ok := c.shapes[t.Name]
	if !ok {
		return maxByteSize(t)
	}
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	return n * nvinfer.DataTypeFromCode(t.DType).Size()
}

// maxByteSize is the largest number of bytes t can occupy: its static
// shape, or the profile max for dynamic tensors.
func maxByteSize(t *TensorSpec) int {
	dims := t.Shape
	if hasDynamic(dims) {
		dims = t.Max
	}
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	return n * nvinfer.DataTypeFromCode(t.DType).Size()
}

func (c *Context) Close() error {
	c.closed = true
	return nil
}

func hasDynamic(dims []int32) bool {
	for _, d := range dims {
		if d < 0 {
			return true
		}
	}
	return false
}

// Digest hashes input buffers in engine enumeration order.
func Digest(inputs [][]byte) uint32 {
	h := fnv.New32a()
	for _, b := range inputs {
		h.Write(b)
	}
	return h.Sum32()
}

// Pattern expands a digest into the byte pattern the simulated execution
// writes into output buffers.
func Pattern(digest uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(digest >> (8 * (uint(i) % 4)))
	}
	return out
}
