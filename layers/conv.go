package layers

import (
	"fmt"
	"math"

	"github.com/tsawler/go-marker/tensor"
)

// Conv2D implements a 2D convolution layer over NCHW tensors
type Conv2D struct {
	weight   *tensor.Tensor // [out_channels, in_channels, k, k]
	bias     *tensor.Tensor // [out_channels]
	stride   int
	padding  int
	training bool
}

// NewConv2D creates a new Conv2D layer
func NewConv2D(inputChannels, outputChannels, kernelSize, stride, padding int) (*Conv2D, error) {
	if inputChannels <= 0 || outputChannels <= 0 || kernelSize <= 0 {
		return nil, fmt.Errorf("invalid Conv2D configuration: in=%d out=%d kernel=%d", inputChannels, outputChannels, kernelSize)
	}

	// Xavier/Glorot uniform initialization:
	// W ~ U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
	fanIn := float64(inputChannels * kernelSize * kernelSize)
	fanOut := float64(outputChannels * kernelSize * kernelSize)
	bound := math.Sqrt(6.0 / (fanIn + fanOut))

	weightData := make([]float32, outputChannels*inputChannels*kernelSize*kernelSize)
	for i := range weightData {
		weightData[i] = float32((globalRng.Float64()*2.0 - 1.0) * bound)
	}

	weight, err := tensor.NewTensor([]int{outputChannels, inputChannels, kernelSize, kernelSize}, weightData)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	bias, err := tensor.Zeros([]int{outputChannels})
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %v", err)
	}
	bias.SetRequiresGrad(true)

	return &Conv2D{
		weight:   weight,
		bias:     bias,
		stride:   stride,
		padding:  padding,
		training: true,
	}, nil
}

// Forward performs 2D convolution
func (c *Conv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("Conv2D expects 4D input [batch_size, channels, height, width], got shape %v", input.Shape)
	}
	if input.Shape[1] != c.weight.Shape[1] {
		return nil, fmt.Errorf("Conv2D channel mismatch: input has %d channels, layer expects %d", input.Shape[1], c.weight.Shape[1])
	}
	return tensor.Conv2DAutograd(input, c.weight, c.bias, c.stride, c.padding), nil
}

// Parameters returns the trainable parameters
func (c *Conv2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.weight, c.bias}
}

// State returns the named persistent tensors of the layer
func (c *Conv2D) State(prefix string) []State {
	return []State{
		{Name: prefix + ".weight", Tensor: c.weight, Learnable: true},
		{Name: prefix + ".bias", Tensor: c.bias, Learnable: true},
	}
}

// Train sets the module to training mode
func (c *Conv2D) Train() {
	c.training = true
}

// Eval sets the module to evaluation mode
func (c *Conv2D) Eval() {
	c.training = false
}

// IsTraining returns true if in training mode
func (c *Conv2D) IsTraining() bool {
	return c.training
}

// ConvTranspose2D implements a learned 2D upsampling layer. With kernel
// size 2 and stride 2 it doubles the spatial dimensions.
type ConvTranspose2D struct {
	weight   *tensor.Tensor // [in_channels, out_channels, k, k]
	bias     *tensor.Tensor // [out_channels]
	stride   int
	training bool
}

// NewConvTranspose2D creates a new ConvTranspose2D layer
func NewConvTranspose2D(inputChannels, outputChannels, kernelSize, stride int) (*ConvTranspose2D, error) {
	if inputChannels <= 0 || outputChannels <= 0 || kernelSize <= 0 || stride <= 0 {
		return nil, fmt.Errorf("invalid ConvTranspose2D configuration: in=%d out=%d kernel=%d stride=%d", inputChannels, outputChannels, kernelSize, stride)
	}

	fanIn := float64(inputChannels * kernelSize * kernelSize)
	fanOut := float64(outputChannels * kernelSize * kernelSize)
	bound := math.Sqrt(6.0 / (fanIn + fanOut))

	weightData := make([]float32, inputChannels*outputChannels*kernelSize*kernelSize)
	for i := range weightData {
		weightData[i] = float32((globalRng.Float64()*2.0 - 1.0) * bound)
	}

	weight, err := tensor.NewTensor([]int{inputChannels, outputChannels, kernelSize, kernelSize}, weightData)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	bias, err := tensor.Zeros([]int{outputChannels})
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %v", err)
	}
	bias.SetRequiresGrad(true)

	return &ConvTranspose2D{
		weight:   weight,
		bias:     bias,
		stride:   stride,
		training: true,
	}, nil
}

// Forward performs transposed 2D convolution
func (c *ConvTranspose2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("ConvTranspose2D expects 4D input [batch_size, channels, height, width], got shape %v", input.Shape)
	}
	if input.Shape[1] != c.weight.Shape[0] {
		return nil, fmt.Errorf("ConvTranspose2D channel mismatch: input has %d channels, layer expects %d", input.Shape[1], c.weight.Shape[0])
	}
	return tensor.ConvTranspose2DAutograd(input, c.weight, c.bias, c.stride), nil
}

// Parameters returns the trainable parameters
func (c *ConvTranspose2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.weight, c.bias}
}

// State returns the named persistent tensors of the layer
func (c *ConvTranspose2D) State(prefix string) []State {
	return []State{
		{Name: prefix + ".weight", Tensor: c.weight, Learnable: true},
		{Name: prefix + ".bias", Tensor: c.bias, Learnable: true},
	}
}

// Train sets the module to training mode
func (c *ConvTranspose2D) Train() {
	c.training = true
}

// Eval sets the module to evaluation mode
func (c *ConvTranspose2D) Eval() {
	c.training = false
}

// IsTraining returns true if in training mode
func (c *ConvTranspose2D) IsTraining() bool {
	return c.training
}
