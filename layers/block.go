package layers

import (
	"fmt"

	"github.com/tsawler/go-marker/tensor"
)

// DoubleConv is the double convolutional block used by the segmentation
// network: two (conv 3x3, pad 1 -> batch norm -> ReLU) stages at a fixed
// channel width.
type DoubleConv struct {
	conv1 *Conv2D
	norm1 *BatchNorm2D
	conv2 *Conv2D
	norm2 *BatchNorm2D
	seq   *Sequential
}

// NewDoubleConv creates a double convolutional block mapping
// inputChannels to outputChannels.
func NewDoubleConv(inputChannels, outputChannels int) (*DoubleConv, error) {
	conv1, err := NewConv2D(inputChannels, outputChannels, 3, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create first convolution: %v", err)
	}
	norm1, err := NewBatchNorm2D(outputChannels, 1e-5, 0.1)
	if err != nil {
		return nil, fmt.Errorf("failed to create first batch norm: %v", err)
	}
	conv2, err := NewConv2D(outputChannels, outputChannels, 3, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create second convolution: %v", err)
	}
	norm2, err := NewBatchNorm2D(outputChannels, 1e-5, 0.1)
	if err != nil {
		return nil, fmt.Errorf("failed to create second batch norm: %v", err)
	}

	block := &DoubleConv{
		conv1: conv1,
		norm1: norm1,
		conv2: conv2,
		norm2: norm2,
	}
	block.seq = NewSequential(conv1, norm1, NewReLU(), conv2, norm2, NewReLU())
	return block, nil
}

// Forward passes input through both convolutional stages
func (d *DoubleConv) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return d.seq.Forward(input)
}

// Parameters returns the trainable parameters of both stages
func (d *DoubleConv) Parameters() []*tensor.Tensor {
	return d.seq.Parameters()
}

// State returns the named persistent tensors of both stages
func (d *DoubleConv) State(prefix string) []State {
	var states []State
	states = append(states, d.conv1.State(prefix+".conv1")...)
	states = append(states, d.norm1.State(prefix+".norm1")...)
	states = append(states, d.conv2.State(prefix+".conv2")...)
	states = append(states, d.norm2.State(prefix+".norm2")...)
	return states
}

// Train sets the block to training mode
func (d *DoubleConv) Train() {
	d.seq.Train()
}

// Eval sets the block to evaluation mode
func (d *DoubleConv) Eval() {
	d.seq.Eval()
}

// IsTraining returns true if in training mode
func (d *DoubleConv) IsTraining() bool {
	return d.seq.IsTraining()
}
