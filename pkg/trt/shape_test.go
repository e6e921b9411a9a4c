package trt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeSize(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{1, 3, 224, 224}, 150528},
		{Shape{1, 1000}, 1000},
		{Shape{2, 3, 4}, 24},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.shape.Size(), "size of %v", tt.shape)
	}
}

func TestShapeHasDynamic(t *testing.T) {
	assert.False(t, Shape{1, 3, 224, 224}.HasDynamic())
	assert.False(t, Shape{}.HasDynamic())
	assert.True(t, Shape{1, 3, -1, -1}.HasDynamic())
	assert.True(t, Shape{-1}.HasDynamic())
}

func TestShapeEqual(t *testing.T) {
	assert.True(t, Shape{1, 2, 3}.Equal(Shape{1, 2, 3}))
	assert.False(t, Shape{1, 2, 3}.Equal(Shape{3, 2, 1}))
	// Same element count is not enough.
	assert.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
	assert.False(t, Shape{6}.Equal(Shape{2, 3}))
}

func TestShapeClone(t *testing.T) {
	s := Shape{1, 2, 3}
	c := s.Clone()
	c[0] = 9
	assert.Equal(t, Shape{1, 2, 3}, s)
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "[1,3,224,224]", Shape{1, 3, 224, 224}.String())
	assert.Equal(t, "[1,3,-1,-1]", Shape{1, 3, -1, -1}.String())
	assert.Equal(t, "[]", Shape{}.String())
}
