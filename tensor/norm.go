package tensor

import (
	"fmt"
	"math"
)

// BatchNorm2DOp implements batch normalization over the channel dimension
// of an NCHW tensor in the autograd graph. Inputs are input, gamma and
// beta. Batch statistics and the normalized activations are cached for
// the backward pass.
type BatchNorm2DOp struct {
	inputs []*Tensor
	xhat   []float32
	invStd []float32
}

func (op *BatchNorm2DOp) Forward(inputs ...*Tensor) *Tensor {
	panic("BatchNorm2DOp is driven through BatchNorm2DAutograd")
}

func (op *BatchNorm2DOp) Backward(gradOut *Tensor) []*Tensor {
	input, gamma := op.inputs[0], op.inputs[1]
	batch, channels, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	plane := h * w
	count := float32(batch * plane)

	gradInput, err := Zeros(input.Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	gradGamma, err := Zeros([]int{channels})
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	gradBeta, err := Zeros([]int{channels})
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}

	for c := 0; c < channels; c++ {
		var sumDy, sumDyXhat float32
		for n := 0; n < batch; n++ {
			base := ((n*channels + c) * plane)
			for i := 0; i < plane; i++ {
				dy := gradOut.Data[base+i]
				sumDy += dy
				sumDyXhat += dy * op.xhat[base+i]
			}
		}
		gradBeta.Data[c] = sumDy
		gradGamma.Data[c] = sumDyXhat

		// dx = invstd/m * (m*dxhat - Σdxhat - xhat*Σ(dxhat·xhat)),
		// with dxhat = dy*gamma.
		g := gamma.Data[c]
		scale := op.invStd[c] / count
		for n := 0; n < batch; n++ {
			base := ((n*channels + c) * plane)
			for i := 0; i < plane; i++ {
				dxhat := gradOut.Data[base+i] * g
				gradInput.Data[base+i] = scale * (count*dxhat - g*sumDy - op.xhat[base+i]*g*sumDyXhat)
			}
		}
	}

	return []*Tensor{gradInput, gradGamma, gradBeta}
}

func (op *BatchNorm2DOp) Inputs() []*Tensor { return op.inputs }

// BatchNorm2DAutograd normalizes an NCHW tensor per channel. In training
// mode it normalizes with batch statistics, updates runningMean and
// runningVar in place, and records the operation for backprop. In
// evaluation mode it applies the running statistics and records nothing.
func BatchNorm2DAutograd(input, gamma, beta, runningMean, runningVar *Tensor, eps, momentum float64, training bool) (*Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("batch norm expects 4D input [batch, channels, height, width], got shape %v", input.Shape)
	}

	batch, channels, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	if gamma.NumElems != channels {
		return nil, fmt.Errorf("batch norm feature mismatch: input has %d channels, gamma has %d", channels, gamma.NumElems)
	}
	plane := h * w
	count := batch * plane

	result, err := Zeros(input.Shape)
	if err != nil {
		return nil, err
	}

	if !training {
		for c := 0; c < channels; c++ {
			scale := gamma.Data[c] / float32(math.Sqrt(float64(runningVar.Data[c])+eps))
			shift := beta.Data[c] - runningMean.Data[c]*scale
			for n := 0; n < batch; n++ {
				base := ((n*channels + c) * plane)
				for i := 0; i < plane; i++ {
					result.Data[base+i] = input.Data[base+i]*scale + shift
				}
			}
		}
		return result, nil
	}

	op := &BatchNorm2DOp{
		inputs: []*Tensor{input, gamma, beta},
		xhat:   make([]float32, input.NumElems),
		invStd: make([]float32, channels),
	}

	for c := 0; c < channels; c++ {
		var sum float32
		for n := 0; n < batch; n++ {
			base := ((n*channels + c) * plane)
			for i := 0; i < plane; i++ {
				sum += input.Data[base+i]
			}
		}
		mean := sum / float32(count)

		var sumSq float32
		for n := 0; n < batch; n++ {
			base := ((n*channels + c) * plane)
			for i := 0; i < plane; i++ {
				diff := input.Data[base+i] - mean
				sumSq += diff * diff
			}
		}
		// Biased variance normalizes the batch; the unbiased estimate
		// feeds the running statistics.
		variance := sumSq / float32(count)
		invStd := float32(1.0 / math.Sqrt(float64(variance)+eps))
		op.invStd[c] = invStd

		m := float32(momentum)
		runningMean.Data[c] = (1-m)*runningMean.Data[c] + m*mean
		unbiased := variance
		if count > 1 {
			unbiased = sumSq / float32(count-1)
		}
		runningVar.Data[c] = (1-m)*runningVar.Data[c] + m*unbiased

		g, b := gamma.Data[c], beta.Data[c]
		for n := 0; n < batch; n++ {
			base := ((n*channels + c) * plane)
			for i := 0; i < plane; i++ {
				xhat := (input.Data[base+i] - mean) * invStd
				op.xhat[base+i] = xhat
				result.Data[base+i] = g*xhat + b
			}
		}
	}

	record(result, op, op.inputs...)
	return result, nil
}
