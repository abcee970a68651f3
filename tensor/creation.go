package tensor

import (
	"fmt"
)

// NewTensor creates a tensor from existing data. The data slice is used
// directly, not copied.
func NewTensor(shape []int, data []float32) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	elems := calculateNumElements(shape)
	if len(data) != elems {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(data), shape, elems)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		Data:     data,
		NumElems: elems,
	}, nil
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	elems := calculateNumElements(shape)
	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		Data:     make([]float32, elems),
		NumElems: elems,
	}, nil
}

// Ones creates a tensor filled with ones.
func Ones(shape []int) (*Tensor, error) {
	return Full(shape, 1.0)
}

// Full creates a tensor filled with the given value.
func Full(shape []int, value float32) (*Tensor, error) {
	t, err := Zeros(shape)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = value
	}
	return t, nil
}

// FromScalar creates a single-element tensor.
func FromScalar(value float32) *Tensor {
	t, _ := NewTensor([]int{1}, []float32{value})
	return t
}

// Clone creates a deep copy of the tensor. The copy does not participate
// in the source's autograd graph.
func (t *Tensor) Clone() (*Tensor, error) {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return NewTensor(t.Shape, data)
}

// Reshape returns a tensor sharing the same data with a new shape. The
// element count must be preserved.
func Reshape(t *Tensor, shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	elems := calculateNumElements(shape)
	if elems != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v (%d elements)", t.Shape, t.NumElems, shape, elems)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		Data:     t.Data,
		NumElems: elems,
	}, nil
}
