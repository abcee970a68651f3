package tensor

import (
	"fmt"
	"math"
)

// elementwise applies op to two same-shape tensors.
func elementwise(a, b *Tensor, name string, op func(x, y float32) float32) (*Tensor, error) {
	if !shapesEqual(a.Shape, b.Shape) {
		return nil, fmt.Errorf("%s: shape mismatch %v vs %v", name, a.Shape, b.Shape)
	}

	result, err := Zeros(a.Shape)
	if err != nil {
		return nil, err
	}
	for i := range result.Data {
		result.Data[i] = op(a.Data[i], b.Data[i])
	}
	return result, nil
}

// Add performs elementwise addition of two same-shape tensors.
func Add(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, "add", func(x, y float32) float32 { return x + y })
}

// Sub performs elementwise subtraction of two same-shape tensors.
func Sub(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, "sub", func(x, y float32) float32 { return x - y })
}

// Mul performs elementwise multiplication of two same-shape tensors.
func Mul(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, "mul", func(x, y float32) float32 { return x * y })
}

// Scale multiplies every element by a scalar.
func Scale(t *Tensor, s float32) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i := range result.Data {
		result.Data[i] = t.Data[i] * s
	}
	return result, nil
}

// ReLU applies max(0, x) elementwise.
func ReLU(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		if v > 0 {
			result.Data[i] = v
		}
	}
	return result, nil
}

// Sigmoid applies 1/(1+exp(-x)) elementwise.
func Sigmoid(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		result.Data[i] = float32(1.0 / (1.0 + math.Exp(float64(-v))))
	}
	return result, nil
}

// Sum returns the sum of all elements as a single-element tensor.
func Sum(t *Tensor) (*Tensor, error) {
	var sum float32
	for _, v := range t.Data {
		sum += v
	}
	return NewTensor([]int{1}, []float32{sum})
}

// Mean returns the arithmetic mean of all elements as a single-element
// tensor.
func Mean(t *Tensor) (*Tensor, error) {
	s, err := Sum(t)
	if err != nil {
		return nil, err
	}
	s.Data[0] /= float32(t.NumElems)
	return s, nil
}
