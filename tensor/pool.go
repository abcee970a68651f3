package tensor

import (
	"fmt"
)

// MaxPool2DOp implements 2D max pooling (NCHW) in the autograd graph.
type MaxPool2DOp struct {
	inputs []*Tensor
	kernel int
	stride int
	argmax []int // flat input index of each output's winning element
}

func (op *MaxPool2DOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("MaxPool2DOp requires exactly 1 input")
	}
	op.inputs = inputs
	input := inputs[0]

	if len(input.Shape) != 4 {
		panic(fmt.Sprintf("max pool expects 4D input [batch, channels, height, width], got shape %v", input.Shape))
	}

	batch, channels, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outH := (h-op.kernel)/op.stride + 1
	outW := (w-op.kernel)/op.stride + 1

	result, err := Zeros([]int{batch, channels, outH, outW})
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}
	op.argmax = make([]int, result.NumElems)

	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			inBase := ((n*channels + c) * h) * w
			for oy := 0; oy < outH; oy++ {
				for ox := 0; ox < outW; ox++ {
					bestIdx := inBase + (oy*op.stride)*w + ox*op.stride
					best := input.Data[bestIdx]
					for ky := 0; ky < op.kernel; ky++ {
						for kx := 0; kx < op.kernel; kx++ {
							idx := inBase + (oy*op.stride+ky)*w + (ox*op.stride + kx)
							if input.Data[idx] > best {
								best = input.Data[idx]
								bestIdx = idx
							}
						}
					}
					outIdx := ((n*channels+c)*outH+oy)*outW + ox
					result.Data[outIdx] = best
					op.argmax[outIdx] = bestIdx
				}
			}
		}
	}

	record(result, op, inputs...)
	return result
}

func (op *MaxPool2DOp) Backward(gradOut *Tensor) []*Tensor {
	gradInput, err := Zeros(op.inputs[0].Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	for i, g := range gradOut.Data {
		gradInput.Data[op.argmax[i]] += g
	}
	return []*Tensor{gradInput}
}

func (op *MaxPool2DOp) Inputs() []*Tensor { return op.inputs }

// MaxPool2DAutograd performs 2D max pooling with automatic differentiation.
func MaxPool2DAutograd(input *Tensor, kernel, stride int) *Tensor {
	op := &MaxPool2DOp{kernel: kernel, stride: stride}
	return op.Forward(input)
}

// ConcatOp implements channel-wise concatenation of two NCHW tensors in
// the autograd graph.
type ConcatOp struct {
	inputs []*Tensor
}

func (op *ConcatOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("ConcatOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	a, b := inputs[0], inputs[1]

	if len(a.Shape) != 4 || len(b.Shape) != 4 {
		panic(fmt.Sprintf("concat expects 4D inputs, got %v and %v", a.Shape, b.Shape))
	}
	if a.Shape[0] != b.Shape[0] || a.Shape[2] != b.Shape[2] || a.Shape[3] != b.Shape[3] {
		panic(fmt.Sprintf("concat requires matching batch and spatial dimensions, got %v and %v", a.Shape, b.Shape))
	}

	batch, ca, cb := a.Shape[0], a.Shape[1], b.Shape[1]
	plane := a.Shape[2] * a.Shape[3]

	result, err := Zeros([]int{batch, ca + cb, a.Shape[2], a.Shape[3]})
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	for n := 0; n < batch; n++ {
		copy(result.Data[n*(ca+cb)*plane:], a.Data[n*ca*plane:(n+1)*ca*plane])
		copy(result.Data[(n*(ca+cb)+ca)*plane:], b.Data[n*cb*plane:(n+1)*cb*plane])
	}

	record(result, op, inputs...)
	return result
}

func (op *ConcatOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	batch, ca, cb := a.Shape[0], a.Shape[1], b.Shape[1]
	plane := a.Shape[2] * a.Shape[3]

	gradA, err := Zeros(a.Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	gradB, err := Zeros(b.Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}

	for n := 0; n < batch; n++ {
		copy(gradA.Data[n*ca*plane:(n+1)*ca*plane], gradOut.Data[n*(ca+cb)*plane:])
		copy(gradB.Data[n*cb*plane:(n+1)*cb*plane], gradOut.Data[(n*(ca+cb)+ca)*plane:])
	}

	return []*Tensor{gradA, gradB}
}

func (op *ConcatOp) Inputs() []*Tensor { return op.inputs }

// ConcatAutograd concatenates two NCHW tensors along the channel
// dimension with automatic differentiation.
func ConcatAutograd(a, b *Tensor) *Tensor {
	op := &ConcatOp{}
	return op.Forward(a, b)
}
