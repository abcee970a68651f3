package layers

import (
	"fmt"

	"github.com/tsawler/go-marker/tensor"
)

// BatchNorm2D implements batch normalization over the channel dimension
// of NCHW tensors, with learnable scale/shift and running statistics for
// evaluation mode.
type BatchNorm2D struct {
	numFeatures int
	eps         float64
	momentum    float64
	gamma       *tensor.Tensor // Scale parameter
	beta        *tensor.Tensor // Shift parameter
	runningMean *tensor.Tensor // Running mean for inference
	runningVar  *tensor.Tensor // Running variance for inference
	training    bool
}

// NewBatchNorm2D creates a new BatchNorm2D layer
func NewBatchNorm2D(numFeatures int, eps, momentum float64) (*BatchNorm2D, error) {
	if numFeatures <= 0 {
		return nil, fmt.Errorf("invalid BatchNorm2D configuration: numFeatures=%d", numFeatures)
	}
	if eps <= 0 {
		eps = 1e-5
	}
	if momentum <= 0 {
		momentum = 0.1
	}

	gamma, err := tensor.Ones([]int{numFeatures})
	if err != nil {
		return nil, fmt.Errorf("failed to create gamma tensor: %v", err)
	}
	gamma.SetRequiresGrad(true)

	beta, err := tensor.Zeros([]int{numFeatures})
	if err != nil {
		return nil, fmt.Errorf("failed to create beta tensor: %v", err)
	}
	beta.SetRequiresGrad(true)

	runningMean, err := tensor.Zeros([]int{numFeatures})
	if err != nil {
		return nil, fmt.Errorf("failed to create running mean tensor: %v", err)
	}

	runningVar, err := tensor.Ones([]int{numFeatures})
	if err != nil {
		return nil, fmt.Errorf("failed to create running variance tensor: %v", err)
	}

	return &BatchNorm2D{
		numFeatures: numFeatures,
		eps:         eps,
		momentum:    momentum,
		gamma:       gamma,
		beta:        beta,
		runningMean: runningMean,
		runningVar:  runningVar,
		training:    true,
	}, nil
}

// Forward performs batch normalization
func (bn *BatchNorm2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("BatchNorm2D expects 4D input [batch_size, channels, height, width], got shape %v", input.Shape)
	}
	if input.Shape[1] != bn.numFeatures {
		return nil, fmt.Errorf("input features mismatch: expected %d, got %d", bn.numFeatures, input.Shape[1])
	}
	return tensor.BatchNorm2DAutograd(input, bn.gamma, bn.beta, bn.runningMean, bn.runningVar, bn.eps, bn.momentum, bn.training)
}

// Parameters returns the trainable parameters
func (bn *BatchNorm2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{bn.gamma, bn.beta}
}

// State returns the named persistent tensors, including the running
// statistics which are saved but not optimized.
func (bn *BatchNorm2D) State(prefix string) []State {
	return []State{
		{Name: prefix + ".weight", Tensor: bn.gamma, Learnable: true},
		{Name: prefix + ".bias", Tensor: bn.beta, Learnable: true},
		{Name: prefix + ".running_mean", Tensor: bn.runningMean},
		{Name: prefix + ".running_var", Tensor: bn.runningVar},
	}
}

// Train sets the module to training mode
func (bn *BatchNorm2D) Train() {
	bn.training = true
}

// Eval sets the module to evaluation mode
func (bn *BatchNorm2D) Eval() {
	bn.training = false
}

// IsTraining returns true if in training mode
func (bn *BatchNorm2D) IsTraining() bool {
	return bn.training
}
