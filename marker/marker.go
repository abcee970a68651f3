// Package marker ties the pieces together: a segmentation model, its
// optimizer and its preprocessing geometry, with a train/infer/save/load
// lifecycle built around single-file checkpoints.
package marker

import (
	"fmt"
	"time"

	"github.com/tsawler/go-marker/checkpoints"
	"github.com/tsawler/go-marker/device"
	"github.com/tsawler/go-marker/optimizer"
	"github.com/tsawler/go-marker/tensor"
	"github.com/tsawler/go-marker/unet"
	"github.com/tsawler/go-marker/vision/preprocessing"
)

// defaultLearningRate is the Adam learning rate used for new markers.
const defaultLearningRate = 1e-4

// BatchSource yields training batches of letterboxed images
// [batch, 3, H, W] and masks [batch, 1, H, W]. A (nil, nil, nil) return
// signals the end of the epoch.
type BatchSource interface {
	NextBatch() (*tensor.Tensor, *tensor.Tensor, error)
}

// Telemetry summarizes one training epoch.
type Telemetry struct {
	Loss       float64       // Mean loss over the epoch's batches
	Iterations int           // Lifetime iteration count after the epoch
	Duration   time.Duration // Wall time the epoch took
}

// Marker is a binary image segmenter. Its working resolution is fixed
// at construction; arbitrary input sizes are handled by letterboxing on
// the way in and mapping predictions back on the way out.
type Marker struct {
	device string
	width  int
	height int
	depth  int

	loss       float64
	iterations int

	model    *unet.UNet
	optim    optimizer.Optimizer
	progress func(batch int, loss float64)
}

// SetProgress registers a callback invoked after every training batch
// with the batch index within the epoch and that batch's loss. A nil
// callback disables reporting.
func (m *Marker) SetProgress(fn func(batch int, loss float64)) {
	m.progress = fn
}

// New creates an untrained marker working at width x height with a
// network of the given depth. Both dimensions must be divisible by
// 2^depth.
func New(dev string, width, height, depth int) (*Marker, error) {
	if !device.Probe(dev) {
		return nil, fmt.Errorf("device %q is not available", dev)
	}
	if depth <= 0 {
		return nil, fmt.Errorf("invalid depth %d: must be positive", depth)
	}
	factor := 1 << depth
	if width <= 0 || height <= 0 || width%factor != 0 || height%factor != 0 {
		return nil, fmt.Errorf("invalid working size: %d x %d (not divisible by %d)", width, height, factor)
	}

	model, err := unet.New(3, 1, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to build model: %v", err)
	}

	config := optimizer.DefaultAdamConfig()
	config.LearningRate = defaultLearningRate
	optim, err := optimizer.NewAdam(config, model.Parameters())
	if err != nil {
		return nil, fmt.Errorf("failed to build optimizer: %v", err)
	}

	return &Marker{
		device: dev,
		width:  width,
		height: height,
		depth:  depth,
		loss:   1.0,
		model:  model,
		optim:  optim,
	}, nil
}

// Load restores a marker from a checkpoint file. The model architecture
// is rebuilt from the snapshot's dimensions, so the caller only chooses
// the device.
func Load(dev, path string) (*Marker, error) {
	checkpoint, err := checkpoints.Load(path)
	if err != nil {
		return nil, err
	}

	m, err := New(dev, checkpoint.Width, checkpoint.Height, checkpoint.Depth)
	if err != nil {
		return nil, fmt.Errorf("checkpoint describes an invalid marker: %v", err)
	}

	if err := checkpoints.LoadWeights(checkpoint.Weights, m.model.State()); err != nil {
		return nil, fmt.Errorf("failed to restore weights: %v", err)
	}
	if checkpoint.OptimizerState != nil {
		if err := m.optim.LoadState(checkpoint.OptimizerState); err != nil {
			return nil, fmt.Errorf("failed to restore optimizer state: %v", err)
		}
	}

	m.loss = checkpoint.Loss
	m.iterations = checkpoint.Iterations
	return m, nil
}

// Save writes the marker's full state to a checkpoint file. A marker
// loaded from the file produces the same predictions and resumes
// training where this one left off.
func (m *Marker) Save(path string) error {
	optimState, err := m.optim.GetState()
	if err != nil {
		return fmt.Errorf("failed to capture optimizer state: %v", err)
	}

	checkpoint := &checkpoints.Checkpoint{
		Width:          m.width,
		Height:         m.height,
		Depth:          m.depth,
		Loss:           m.loss,
		Iterations:     m.iterations,
		Weights:        checkpoints.ExtractWeights(m.model.State()),
		OptimizerState: optimState,
	}
	return checkpoints.Save(checkpoint, path)
}

// Mark segments an image. The input is a [3, H, W] tensor with values
// in [0, 1] at any resolution; the result is a [1, 1, H, W] tensor of
// per-pixel probabilities at the same resolution. Marking does not
// change the marker's state, so repeated calls on the same input give
// the same answer.
func (m *Marker) Mark(image *tensor.Tensor) (*tensor.Tensor, error) {
	if len(image.Shape) != 3 || image.Shape[0] != 3 {
		return nil, fmt.Errorf("mark expects a [3, height, width] tensor, got shape %v", image.Shape)
	}
	srcH, srcW := image.Shape[1], image.Shape[2]

	m.model.Eval()
	defer m.model.Train()

	var result *tensor.Tensor
	var markErr error
	tensor.NoGrad(func() {
		fitted, placement, err := preprocessing.FitTensor(image, m.width, m.height)
		if err != nil {
			markErr = fmt.Errorf("failed to fit image: %v", err)
			return
		}

		batch, err := tensor.Reshape(fitted, []int{1, 3, m.height, m.width})
		if err != nil {
			markErr = err
			return
		}

		logits, err := m.model.Forward(batch)
		if err != nil {
			markErr = fmt.Errorf("forward pass failed: %v", err)
			return
		}

		// Undo the letterbox: cut the content region back out, then
		// scale it to the original resolution.
		content, err := tensor.Crop2D(logits, placement.OffsetX, placement.OffsetY, placement.Width, placement.Height)
		if err != nil {
			markErr = err
			return
		}
		restored, err := tensor.Interpolate(content, srcH, srcW)
		if err != nil {
			markErr = err
			return
		}

		result, err = tensor.Sigmoid(restored)
		if err != nil {
			markErr = err
		}
	})
	if markErr != nil {
		return nil, markErr
	}
	return result, nil
}

// TrainEpoch runs one full pass over the batch source, sets the
// marker's loss to the mean per-batch loss and advances the iteration
// counter by one. An epoch with no batches is an error and leaves the
// counters untouched.
func (m *Marker) TrainEpoch(batches BatchSource) (*Telemetry, error) {
	start := time.Now()
	m.model.Train()

	var totalLoss float64
	var batchCount int
	for {
		images, masks, err := batches.NextBatch()
		if err != nil {
			return nil, fmt.Errorf("failed to load batch %d: %v", batchCount, err)
		}
		if images == nil {
			break
		}

		m.optim.ZeroGrad()

		logits, err := m.model.Forward(images)
		if err != nil {
			return nil, fmt.Errorf("forward pass failed on batch %d: %v", batchCount, err)
		}

		loss := tensor.BCEWithLogitsAutograd(logits, masks)
		lossValue, err := loss.Item()
		if err != nil {
			return nil, err
		}

		if err := loss.Backward(); err != nil {
			return nil, fmt.Errorf("backward pass failed on batch %d: %v", batchCount, err)
		}
		if err := m.optim.Step(); err != nil {
			return nil, fmt.Errorf("optimizer step failed on batch %d: %v", batchCount, err)
		}

		totalLoss += float64(lossValue)
		batchCount++

		if m.progress != nil {
			m.progress(batchCount, float64(lossValue))
		}
	}

	if batchCount == 0 {
		return nil, fmt.Errorf("training epoch produced no batches")
	}

	m.loss = totalLoss / float64(batchCount)
	m.iterations++
	return &Telemetry{
		Loss:       m.loss,
		Iterations: m.iterations,
		Duration:   time.Since(start),
	}, nil
}

// Device returns the compute device identifier.
func (m *Marker) Device() string { return m.device }

// Width returns the working canvas width.
func (m *Marker) Width() int { return m.width }

// Height returns the working canvas height.
func (m *Marker) Height() int { return m.height }

// Depth returns the model's encoder/decoder depth.
func (m *Marker) Depth() int { return m.depth }

// Loss returns the mean loss of the most recent training epoch, or 1.0
// for a marker that has never been trained.
func (m *Marker) Loss() float64 { return m.loss }

// Iterations returns the lifetime count of completed training epochs.
func (m *Marker) Iterations() int { return m.iterations }
