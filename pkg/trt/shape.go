package trt

import (
	"fmt"
	"strings"
)

// Shape is an ordered list of tensor dimensions. A negative dimension means
// dynamic: unresolved at engine build time. A tensor's current shape is
// always fully resolved.
type Shape []int32

// Size returns the element count, the product of all dimensions. The result
// is meaningless for a shape with dynamic dimensions; callers must reject
// those with HasDynamic before using Size.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= int(d)
	}
	return n
}

// HasDynamic reports whether any dimension is unresolved.
func (s Shape) HasDynamic() bool {
	for _, d := range s {
		if d < 0 {
			return true
		}
	}
	return false
}

func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
