// Package optimizer provides gradient-descent optimizers over tensor
// parameters, with state extraction for checkpointing.
package optimizer

import (
	"fmt"

	"github.com/tsawler/go-marker/checkpoints"
)

// Optimizer defines the common interface for all optimizers. The state
// accessors enable checkpoint save/restore.
type Optimizer interface {
	// Step applies one update to every parameter from its accumulated
	// gradient. Parameters without a gradient are skipped.
	Step() error

	// ZeroGrad clears the accumulated gradients of all parameters.
	ZeroGrad()

	// GetState extracts the optimizer state for checkpointing.
	GetState() (*checkpoints.OptimizerState, error)

	// LoadState restores optimizer state from a checkpoint.
	LoadState(state *checkpoints.OptimizerState) error

	// GetStepCount returns the current optimization step number.
	GetStepCount() uint64

	// UpdateLearningRate updates the learning rate.
	UpdateLearningRate(lr float32)
}

// validateStateType ensures the state type matches the optimizer
func validateStateType(optimizerType string, state *checkpoints.OptimizerState) error {
	if state.Type != optimizerType {
		return fmt.Errorf("state type mismatch: expected %s, got %s", optimizerType, state.Type)
	}
	return nil
}
