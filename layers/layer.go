package layers

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/go-marker/tensor"
)

// Global random source for deterministic initialization
var globalRng *rand.Rand = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic weight initialization
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Module interface defines methods that all neural network layers must implement
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor // Returns trainable parameters (tensors with requiresGrad=true)
	Train()                       // Sets module to training mode
	Eval()                        // Sets module to evaluation mode
	IsTraining() bool             // Returns true if in training mode
}

// State is a named tensor belonging to a module: learnable parameters and
// persistent buffers such as normalization running statistics. The order
// of states is deterministic for a given architecture, which checkpoint
// save/load relies on.
type State struct {
	Name      string
	Tensor    *tensor.Tensor
	Learnable bool
}

// Stateful is implemented by modules that expose named state for
// persistence.
type Stateful interface {
	State(prefix string) []State
}

// ReLU applies the rectified linear activation
type ReLU struct {
	training bool
}

// NewReLU creates a new ReLU activation
func NewReLU() *ReLU {
	return &ReLU{training: true}
}

// Forward applies ReLU activation: max(0, x)
func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ReLUAutograd(input), nil
}

// Parameters returns the trainable parameters (ReLU has none)
func (r *ReLU) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{}
}

// Train sets the module to training mode
func (r *ReLU) Train() {
	r.training = true
}

// Eval sets the module to evaluation mode
func (r *ReLU) Eval() {
	r.training = false
}

// IsTraining returns true if in training mode
func (r *ReLU) IsTraining() bool {
	return r.training
}

// MaxPool2D performs 2D max pooling
type MaxPool2D struct {
	kernelSize int
	stride     int
	training   bool
}

// NewMaxPool2D creates a new MaxPool2D layer
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D {
	if stride <= 0 {
		stride = kernelSize
	}
	return &MaxPool2D{
		kernelSize: kernelSize,
		stride:     stride,
		training:   true,
	}
}

// Forward performs max pooling
func (m *MaxPool2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("MaxPool2D expects 4D input [batch_size, channels, height, width], got shape %v", input.Shape)
	}
	return tensor.MaxPool2DAutograd(input, m.kernelSize, m.stride), nil
}

// Parameters returns the trainable parameters (MaxPool2D has none)
func (m *MaxPool2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{}
}

// Train sets the module to training mode
func (m *MaxPool2D) Train() {
	m.training = true
}

// Eval sets the module to evaluation mode
func (m *MaxPool2D) Eval() {
	m.training = false
}

// IsTraining returns true if in training mode
func (m *MaxPool2D) IsTraining() bool {
	return m.training
}

// Sequential allows chaining multiple modules together
type Sequential struct {
	modules  []Module
	training bool
}

// NewSequential creates a new Sequential container
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{
		modules:  modules,
		training: true,
	}
}

// Forward passes input through all modules in sequence
func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	current := input
	for i, module := range s.modules {
		output, err := module.Forward(current)
		if err != nil {
			return nil, fmt.Errorf("forward pass failed at module %d: %v", i, err)
		}
		current = output
	}
	return current, nil
}

// Parameters returns all trainable parameters from all modules
func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Train sets all modules to training mode
func (s *Sequential) Train() {
	s.training = true
	for _, module := range s.modules {
		module.Train()
	}
}

// Eval sets all modules to evaluation mode
func (s *Sequential) Eval() {
	s.training = false
	for _, module := range s.modules {
		module.Eval()
	}
}

// IsTraining returns true if in training mode
func (s *Sequential) IsTraining() bool {
	return s.training
}
