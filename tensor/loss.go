package tensor

import (
	"fmt"
	"math"
)

// BCEWithLogitsOp computes the mean binary cross-entropy between logits
// and targets in the autograd graph. Combining the sigmoid with the
// cross-entropy keeps the loss numerically stable for large logits.
type BCEWithLogitsOp struct {
	inputs []*Tensor
}

func (op *BCEWithLogitsOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("BCEWithLogitsOp requires exactly 2 inputs (logits, targets)")
	}
	op.inputs = inputs
	logits, targets := inputs[0], inputs[1]

	if !shapesEqual(logits.Shape, targets.Shape) {
		panic(fmt.Sprintf("bce loss shape mismatch: logits %v vs targets %v", logits.Shape, targets.Shape))
	}

	// l = max(x, 0) - x·z + log(1 + exp(-|x|))
	var sum float64
	for i, x := range logits.Data {
		z := targets.Data[i]
		term := float64(0)
		if x > 0 {
			term = float64(x)
		}
		sum += term - float64(x*z) + math.Log1p(math.Exp(-math.Abs(float64(x))))
	}

	result := FromScalar(float32(sum / float64(logits.NumElems)))
	record(result, op, inputs...)
	return result
}

func (op *BCEWithLogitsOp) Backward(gradOut *Tensor) []*Tensor {
	logits, targets := op.inputs[0], op.inputs[1]

	// dL/dx = (σ(x) - z) / N
	grad, err := Zeros(logits.Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	scale := gradOut.Data[0] / float32(logits.NumElems)
	for i, x := range logits.Data {
		s := float32(1.0 / (1.0 + math.Exp(float64(-x))))
		grad.Data[i] = (s - targets.Data[i]) * scale
	}

	// Targets are labels, never differentiated.
	return []*Tensor{grad, nil}
}

func (op *BCEWithLogitsOp) Inputs() []*Tensor { return op.inputs }

// BCEWithLogitsAutograd computes the mean binary cross-entropy loss over
// raw logits with automatic differentiation.
func BCEWithLogitsAutograd(logits, targets *Tensor) *Tensor {
	op := &BCEWithLogitsOp{}
	return op.Forward(logits, targets)
}
