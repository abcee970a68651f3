package tensor

import (
	"fmt"
)

// record attaches op as the creator of result when graph recording is
// active and any input requires a gradient.
func record(result *Tensor, op Operation, inputs ...*Tensor) {
	if !gradEnabled {
		return
	}
	requires := false
	for _, in := range inputs {
		if in.requiresGrad || in.creator != nil {
			requires = true
			break
		}
	}
	if requires {
		result.creator = op
		result.requiresGrad = true
	}
}

// accumulate adds grad into the running gradient for t held in grads.
func accumulate(grads map[*Tensor]*Tensor, t, grad *Tensor) error {
	existing, ok := grads[t]
	if !ok {
		grads[t] = grad
		return nil
	}
	sum, err := Add(existing, grad)
	if err != nil {
		return fmt.Errorf("gradient accumulation failed: %v", err)
	}
	grads[t] = sum
	return nil
}

// Backward runs reverse-mode differentiation from t, which must be a
// single-element tensor, and accumulates gradients into every reachable
// leaf tensor that requires them.
func (t *Tensor) Backward() error {
	if t.NumElems != 1 {
		return fmt.Errorf("Backward requires a single-element tensor, got shape %v", t.Shape)
	}
	if t.creator == nil {
		return fmt.Errorf("Backward called on a tensor with no creator")
	}

	// Topological order over the creator graph, leaves last.
	var order []*Tensor
	visited := make(map[*Tensor]bool)
	var visit func(node *Tensor)
	visit = func(node *Tensor) {
		if visited[node] || node.creator == nil {
			return
		}
		visited[node] = true
		for _, in := range node.creator.Inputs() {
			visit(in)
		}
		order = append(order, node)
	}
	visit(t)

	grads := make(map[*Tensor]*Tensor)
	seed, err := Ones(t.Shape)
	if err != nil {
		return err
	}
	grads[t] = seed

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		gradOut, ok := grads[node]
		if !ok {
			// Not on any path contributing to t.
			continue
		}

		inputGrads := node.creator.Backward(gradOut)
		inputs := node.creator.Inputs()
		if len(inputGrads) != len(inputs) {
			return fmt.Errorf("operation returned %d gradients for %d inputs", len(inputGrads), len(inputs))
		}

		for j, in := range inputs {
			if inputGrads[j] == nil {
				continue
			}
			if in.creator != nil {
				if err := accumulate(grads, in, inputGrads[j]); err != nil {
					return err
				}
			} else if in.requiresGrad {
				if in.grad == nil {
					in.grad = inputGrads[j]
				} else {
					sum, err := Add(in.grad, inputGrads[j])
					if err != nil {
						return fmt.Errorf("leaf gradient accumulation failed: %v", err)
					}
					in.grad = sum
				}
			}
		}
	}

	return nil
}

// AddOp implements elementwise addition in the autograd graph.
type AddOp struct {
	inputs []*Tensor
}

func (op *AddOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("AddOp requires exactly 2 inputs")
	}
	op.inputs = inputs

	result, err := Add(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	record(result, op, inputs...)
	return result
}

func (op *AddOp) Backward(gradOut *Tensor) []*Tensor {
	// Gradient flows unchanged to both inputs.
	gradA, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	gradB, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	return []*Tensor{gradA, gradB}
}

func (op *AddOp) Inputs() []*Tensor { return op.inputs }

// MulOp implements elementwise multiplication in the autograd graph.
type MulOp struct {
	inputs []*Tensor
}

func (op *MulOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("MulOp requires exactly 2 inputs")
	}
	op.inputs = inputs

	result, err := Mul(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	record(result, op, inputs...)
	return result
}

func (op *MulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA, err := Mul(gradOut, b)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed for gradA: %v", err))
	}
	gradB, err := Mul(gradOut, a)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed for gradB: %v", err))
	}
	return []*Tensor{gradA, gradB}
}

func (op *MulOp) Inputs() []*Tensor { return op.inputs }

// ReLUOp implements the ReLU activation in the autograd graph.
type ReLUOp struct {
	inputs []*Tensor
}

func (op *ReLUOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("ReLUOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := ReLU(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	record(result, op, inputs...)
	return result
}

func (op *ReLUOp) Backward(gradOut *Tensor) []*Tensor {
	input := op.inputs[0]

	grad, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	for i := range grad.Data {
		if input.Data[i] <= 0 {
			grad.Data[i] = 0
		}
	}
	return []*Tensor{grad}
}

func (op *ReLUOp) Inputs() []*Tensor { return op.inputs }

// SigmoidOp implements the sigmoid activation in the autograd graph.
type SigmoidOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *SigmoidOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("SigmoidOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := Sigmoid(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}
	op.output = result

	record(result, op, inputs...)
	return result
}

func (op *SigmoidOp) Backward(gradOut *Tensor) []*Tensor {
	// dσ/dx = σ(x)·(1-σ(x))
	grad, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	for i := range grad.Data {
		s := op.output.Data[i]
		grad.Data[i] *= s * (1 - s)
	}
	return []*Tensor{grad}
}

func (op *SigmoidOp) Inputs() []*Tensor { return op.inputs }

// AddAutograd performs addition with automatic differentiation.
func AddAutograd(a, b *Tensor) *Tensor {
	op := &AddOp{}
	return op.Forward(a, b)
}

// MulAutograd performs multiplication with automatic differentiation.
func MulAutograd(a, b *Tensor) *Tensor {
	op := &MulOp{}
	return op.Forward(a, b)
}

// ReLUAutograd performs ReLU activation with automatic differentiation.
func ReLUAutograd(a *Tensor) *Tensor {
	op := &ReLUOp{}
	return op.Forward(a)
}

// SigmoidAutograd performs sigmoid activation with automatic differentiation.
func SigmoidAutograd(a *Tensor) *Tensor {
	op := &SigmoidOp{}
	return op.Forward(a)
}
