// Package tensor provides a minimal float32 tensor for the digit
// recognition model. Data is stored flat in row-major order.
package tensor

import "fmt"

// Tensor is a multi-dimensional array of float32 values.
//
// Tensor is not safe for concurrent mutation. A tensor that is only read
// may be shared freely between goroutines.
type Tensor struct {
	data  []float32
	shape []int
}

// New creates a zero-filled tensor with the given shape. Panics if the
// shape is empty or contains a non-positive dimension; shape errors are
// programmer bugs, not runtime conditions.
func New(shape ...int) *Tensor {
	if len(shape) == 0 {
		panic("tensor: shape cannot be empty")
	}
	size := 1
	for i, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: shape[%d] must be positive, got %d", i, dim))
		}
		size *= dim
	}
	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)
	return &Tensor{
		data:  make([]float32, size),
		shape: shapeCopy,
	}
}

// FromSlice creates a tensor that adopts data as its backing store.
// Panics if the shape does not describe exactly len(data) elements.
func FromSlice(data []float32, shape ...int) *Tensor {
	t := &Tensor{data: data}
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	if size != len(data) {
		panic(fmt.Sprintf("tensor: shape %v does not fit %d elements", shape, len(data)))
	}
	t.shape = make([]int, len(shape))
	copy(t.shape, shape)
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// Dims returns the rank of the tensor.
func (t *Tensor) Dims() int { return len(t.shape) }

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int { return t.shape[i] }

// Size returns the total number of elements.
func (t *Tensor) Size() int { return len(t.data) }

// Data returns the flat backing slice. Mutating it mutates the tensor.
func (t *Tensor) Data() []float32 { return t.data }

// At returns the element at the given indices. Panics on invalid indices.
func (t *Tensor) At(indices ...int) float32 {
	return t.data[t.flatIndex(indices)]
}

// Set stores value at the given indices. Panics on invalid indices.
func (t *Tensor) Set(value float32, indices ...int) {
	t.data[t.flatIndex(indices)] = value
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index[%d]=%d out of bounds [0,%d)", i, indices[i], t.shape[i]))
		}
		idx += indices[i] * stride
		stride *= t.shape[i]
	}
	return idx
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := New(t.shape...)
	copy(c.data, t.data)
	return c
}

// Reshape returns a view of the tensor with a different shape sharing the
// backing data. The element count must be unchanged.
func (t *Tensor) Reshape(newShape ...int) *Tensor {
	size := 1
	for _, dim := range newShape {
		size *= dim
	}
	if size != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape size %d to %v", len(t.data), newShape))
	}
	shapeCopy := make([]int, len(newShape))
	copy(shapeCopy, newShape)
	return &Tensor{data: t.data, shape: shapeCopy}
}

// Zero resets all elements to zero.
func (t *Tensor) Zero() {
	for i := range t.data {
		t.data[i] = 0
	}
}

// ArgMax returns the index of the largest element in the flat data.
func (t *Tensor) ArgMax() int {
	maxIdx := 0
	maxVal := t.data[0]
	for i, v := range t.data {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx
}

// String returns a debug representation.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, size=%d)", t.shape, len(t.data))
}
