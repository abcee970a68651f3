package checkpoints

import (
	"fmt"
	"strings"

	"github.com/tsawler/go-marker/layers"
)

// ExtractWeights converts a module's named state into checkpoint weight
// tensors. Data is copied so later training does not mutate the snapshot.
func ExtractWeights(states []layers.State) []WeightTensor {
	weights := make([]WeightTensor, 0, len(states))
	for _, state := range states {
		data := make([]float32, len(state.Tensor.Data))
		copy(data, state.Tensor.Data)

		weights = append(weights, WeightTensor{
			Name:  state.Name,
			Shape: append([]int(nil), state.Tensor.Shape...),
			Data:  data,
			Type:  weightType(state),
		})
	}
	return weights
}

func weightType(state layers.State) string {
	switch {
	case strings.HasSuffix(state.Name, ".running_mean"):
		return "running_mean"
	case strings.HasSuffix(state.Name, ".running_var"):
		return "running_var"
	case strings.HasSuffix(state.Name, ".bias"):
		return "bias"
	default:
		return "weight"
	}
}

// LoadWeights copies checkpoint weight data back into a module's named
// state. Every state must be present in the checkpoint with a matching
// shape; any mismatch means the snapshot was produced by a different
// architecture (or is corrupt) and fails the load.
func LoadWeights(weights []WeightTensor, states []layers.State) error {
	weightMap := make(map[string]WeightTensor, len(weights))
	for _, weight := range weights {
		weightMap[weight.Name] = weight
	}

	if len(weights) != len(states) {
		return fmt.Errorf("weight count mismatch: checkpoint has %d tensors, model has %d", len(weights), len(states))
	}

	for _, state := range states {
		weight, ok := weightMap[state.Name]
		if !ok {
			return fmt.Errorf("checkpoint is missing weight %q", state.Name)
		}

		shape := state.Tensor.Shape
		if len(weight.Shape) != len(shape) {
			return fmt.Errorf("shape mismatch for weight %s: model %v vs checkpoint %v", state.Name, shape, weight.Shape)
		}
		for i, dim := range shape {
			if dim != weight.Shape[i] {
				return fmt.Errorf("shape mismatch for weight %s: model %v vs checkpoint %v", state.Name, shape, weight.Shape)
			}
		}
		if len(weight.Data) != state.Tensor.NumElems {
			return fmt.Errorf("data length mismatch for weight %s: expected %d values, got %d", state.Name, state.Tensor.NumElems, len(weight.Data))
		}

		copy(state.Tensor.Data, weight.Data)
	}

	return nil
}
