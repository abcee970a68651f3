package optimizer

import (
	"fmt"
	"math"

	"github.com/tsawler/go-marker/checkpoints"
	"github.com/tsawler/go-marker/tensor"
)

// Adam implements the Adam optimizer with bias-corrected first and
// second moment estimates held per parameter.
type Adam struct {
	// Hyperparameters
	LearningRate float32
	Beta1        float32 // Momentum decay (typically 0.9)
	Beta2        float32 // Variance decay (typically 0.999)
	Epsilon      float32 // Small constant to prevent division by zero
	WeightDecay  float32 // L2 regularization coefficient

	params   []*tensor.Tensor
	momentum [][]float32 // First moment for each parameter
	variance [][]float32 // Second moment for each parameter

	// Step tracking for bias correction
	stepCount uint64
}

// AdamConfig holds configuration for the Adam optimizer
type AdamConfig struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32
	WeightDecay  float32
}

// DefaultAdamConfig returns default Adam optimizer configuration
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam(config AdamConfig, params []*tensor.Tensor) (*Adam, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", config.LearningRate)
	}
	if config.Beta1 < 0 || config.Beta1 >= 1 || config.Beta2 < 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("betas must be in [0, 1), got %g and %g", config.Beta1, config.Beta2)
	}

	adam := &Adam{
		LearningRate: config.LearningRate,
		Beta1:        config.Beta1,
		Beta2:        config.Beta2,
		Epsilon:      config.Epsilon,
		WeightDecay:  config.WeightDecay,
		params:       params,
		momentum:     make([][]float32, len(params)),
		variance:     make([][]float32, len(params)),
	}

	for i, p := range params {
		adam.momentum[i] = make([]float32, p.NumElems)
		adam.variance[i] = make([]float32, p.NumElems)
	}

	return adam, nil
}

// Step performs a single Adam optimization step.
func (adam *Adam) Step() error {
	adam.stepCount++

	correction1 := 1.0 - math.Pow(float64(adam.Beta1), float64(adam.stepCount))
	correction2 := 1.0 - math.Pow(float64(adam.Beta2), float64(adam.stepCount))

	for i, p := range adam.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		if grad.NumElems != p.NumElems {
			return fmt.Errorf("gradient size mismatch for parameter %d: %d vs %d", i, grad.NumElems, p.NumElems)
		}

		m := adam.momentum[i]
		v := adam.variance[i]
		for j := range p.Data {
			g := grad.Data[j]
			if adam.WeightDecay != 0 {
				g += adam.WeightDecay * p.Data[j]
			}

			m[j] = adam.Beta1*m[j] + (1-adam.Beta1)*g
			v[j] = adam.Beta2*v[j] + (1-adam.Beta2)*g*g

			mHat := float64(m[j]) / correction1
			vHat := float64(v[j]) / correction2

			p.Data[j] -= float32(float64(adam.LearningRate) * mHat / (math.Sqrt(vHat) + float64(adam.Epsilon)))
		}
	}

	return nil
}

// ZeroGrad clears the accumulated gradients of all parameters.
func (adam *Adam) ZeroGrad() {
	tensor.ZeroGrad(adam.params)
}

// GetState extracts optimizer state for checkpointing.
func (adam *Adam) GetState() (*checkpoints.OptimizerState, error) {
	state := &checkpoints.OptimizerState{
		Type: "Adam",
		Parameters: map[string]float64{
			"learning_rate": float64(adam.LearningRate),
			"beta1":         float64(adam.Beta1),
			"beta2":         float64(adam.Beta2),
			"epsilon":       float64(adam.Epsilon),
			"weight_decay":  float64(adam.WeightDecay),
			"step_count":    float64(adam.stepCount),
		},
	}

	for i, p := range adam.params {
		momentum := make([]float32, len(adam.momentum[i]))
		copy(momentum, adam.momentum[i])
		variance := make([]float32, len(adam.variance[i]))
		copy(variance, adam.variance[i])

		shape := append([]int(nil), p.Shape...)
		state.StateData = append(state.StateData,
			checkpoints.OptimizerTensor{
				Name:      fmt.Sprintf("momentum_%d", i),
				Shape:     shape,
				Data:      momentum,
				StateType: "momentum",
			},
			checkpoints.OptimizerTensor{
				Name:      fmt.Sprintf("variance_%d", i),
				Shape:     append([]int(nil), p.Shape...),
				Data:      variance,
				StateType: "variance",
			},
		)
	}

	return state, nil
}

// LoadState restores optimizer state from a checkpoint.
func (adam *Adam) LoadState(state *checkpoints.OptimizerState) error {
	if err := validateStateType("Adam", state); err != nil {
		return err
	}
	if len(state.StateData) != 2*len(adam.params) {
		return fmt.Errorf("state tensor count mismatch: expected %d, got %d", 2*len(adam.params), len(state.StateData))
	}

	if lr, ok := state.Parameters["learning_rate"]; ok {
		adam.LearningRate = float32(lr)
	}
	if b1, ok := state.Parameters["beta1"]; ok {
		adam.Beta1 = float32(b1)
	}
	if b2, ok := state.Parameters["beta2"]; ok {
		adam.Beta2 = float32(b2)
	}
	if eps, ok := state.Parameters["epsilon"]; ok {
		adam.Epsilon = float32(eps)
	}
	if wd, ok := state.Parameters["weight_decay"]; ok {
		adam.WeightDecay = float32(wd)
	}
	if steps, ok := state.Parameters["step_count"]; ok {
		adam.stepCount = uint64(steps)
	}

	for _, st := range state.StateData {
		var idx int
		var kind string
		switch st.StateType {
		case "momentum", "variance":
			kind = st.StateType
		default:
			return fmt.Errorf("unknown optimizer state tensor type %q", st.StateType)
		}
		if _, err := fmt.Sscanf(st.Name, kind+"_%d", &idx); err != nil {
			return fmt.Errorf("malformed optimizer state tensor name %q", st.Name)
		}
		if idx < 0 || idx >= len(adam.params) {
			return fmt.Errorf("optimizer state tensor %q out of range", st.Name)
		}
		if len(st.Data) != adam.params[idx].NumElems {
			return fmt.Errorf("optimizer state size mismatch for %s: expected %d values, got %d", st.Name, adam.params[idx].NumElems, len(st.Data))
		}

		if kind == "momentum" {
			copy(adam.momentum[idx], st.Data)
		} else {
			copy(adam.variance[idx], st.Data)
		}
	}

	return nil
}

// GetStepCount returns the current step count
func (adam *Adam) GetStepCount() uint64 {
	return adam.stepCount
}

// UpdateLearningRate updates the learning rate (useful for learning rate scheduling)
func (adam *Adam) UpdateLearningRate(newLR float32) {
	adam.LearningRate = newLR
}
