// Package unet implements a depth-parameterized encoder-decoder
// segmentation network with skip connections between matching encoder
// and decoder levels.
package unet

import (
	"fmt"

	"github.com/tsawler/go-marker/layers"
	"github.com/tsawler/go-marker/tensor"
)

// baseFeatures is the channel width of the first encoder level; each
// deeper level doubles it.
const baseFeatures = 64

// UNet maps [batch, inChannels, H, W] tensors to [batch, outChannels, H, W]
// logits. H and W must be divisible by 2^depth. All stages are allocated
// once at construction; the layer sequence for a given
// (inChannels, outChannels, depth) is fully deterministic, which
// checkpoint reload relies on.
type UNet struct {
	inChannels  int
	outChannels int
	depth       int

	encoders   []*layers.DoubleConv
	pool       *layers.MaxPool2D
	bottleneck *layers.DoubleConv
	ups        []*layers.ConvTranspose2D
	decoders   []*layers.DoubleConv
	final      *layers.Conv2D

	training bool
}

// Features returns the deterministic feature-width schedule for a given
// depth: 64, 128, 256, ... doubling per level.
func Features(depth int) []int {
	features := make([]int, depth)
	for i := range features {
		if i == 0 {
			features[i] = baseFeatures
		} else {
			features[i] = features[i-1] * 2
		}
	}
	return features
}

// New creates a U-Net with the given channel counts and number of
// encoder/decoder levels.
func New(inChannels, outChannels, depth int) (*UNet, error) {
	if inChannels <= 0 || outChannels <= 0 {
		return nil, fmt.Errorf("invalid channel configuration: in=%d out=%d", inChannels, outChannels)
	}
	if depth <= 0 {
		return nil, fmt.Errorf("invalid depth %d: must be positive", depth)
	}

	features := Features(depth)

	u := &UNet{
		inChannels:  inChannels,
		outChannels: outChannels,
		depth:       depth,
		encoders:    make([]*layers.DoubleConv, depth),
		ups:         make([]*layers.ConvTranspose2D, depth),
		decoders:    make([]*layers.DoubleConv, depth),
		pool:        layers.NewMaxPool2D(2, 2),
		training:    true,
	}

	channels := inChannels
	for i, feature := range features {
		encoder, err := layers.NewDoubleConv(channels, feature)
		if err != nil {
			return nil, fmt.Errorf("failed to create encoder stage %d: %v", i, err)
		}
		u.encoders[i] = encoder
		channels = feature
	}

	bottleneck, err := layers.NewDoubleConv(features[depth-1], features[depth-1]*2)
	if err != nil {
		return nil, fmt.Errorf("failed to create bottleneck: %v", err)
	}
	u.bottleneck = bottleneck

	// Decoder stages run from the deepest feature width back to the
	// first; stage i pairs with encoder stage depth-1-i.
	for i := 0; i < depth; i++ {
		feature := features[depth-1-i]
		up, err := layers.NewConvTranspose2D(feature*2, feature, 2, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to create upsampling stage %d: %v", i, err)
		}
		u.ups[i] = up

		decoder, err := layers.NewDoubleConv(feature*2, feature)
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder stage %d: %v", i, err)
		}
		u.decoders[i] = decoder
	}

	final, err := layers.NewConv2D(features[0], outChannels, 1, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create final convolution: %v", err)
	}
	u.final = final

	return u, nil
}

// Depth returns the number of encoder/decoder levels.
func (u *UNet) Depth() int {
	return u.depth
}

// Forward runs the full encoder-decoder pass. It fails before touching
// any weights if the spatial dimensions are not divisible by 2^depth,
// since the decoder could not recover the exact input size otherwise.
func (u *UNet) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("UNet expects 4D input [batch_size, channels, height, width], got shape %v", input.Shape)
	}
	if input.Shape[1] != u.inChannels {
		return nil, fmt.Errorf("UNet expects %d input channels, got %d", u.inChannels, input.Shape[1])
	}

	factor := 1 << u.depth
	height, width := input.Shape[2], input.Shape[3]
	if width%factor != 0 || height%factor != 0 {
		return nil, fmt.Errorf("invalid input size: %d x %d (not divisible by %d)", width, height, factor)
	}

	skips := make([]*tensor.Tensor, u.depth)
	current := input
	for i, encoder := range u.encoders {
		out, err := encoder.Forward(current)
		if err != nil {
			return nil, fmt.Errorf("encoder stage %d failed: %v", i, err)
		}
		skips[i] = out

		current, err = u.pool.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("pooling after encoder stage %d failed: %v", i, err)
		}
	}

	current, err := u.bottleneck.Forward(current)
	if err != nil {
		return nil, fmt.Errorf("bottleneck failed: %v", err)
	}

	for i := 0; i < u.depth; i++ {
		up, err := u.ups[i].Forward(current)
		if err != nil {
			return nil, fmt.Errorf("upsampling stage %d failed: %v", i, err)
		}

		skip := skips[u.depth-1-i]
		current = tensor.ConcatAutograd(skip, up)

		current, err = u.decoders[i].Forward(current)
		if err != nil {
			return nil, fmt.Errorf("decoder stage %d failed: %v", i, err)
		}
	}

	return u.final.Forward(current)
}

// Parameters returns all trainable parameters in deterministic order.
func (u *UNet) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, state := range u.State() {
		if state.Learnable {
			params = append(params, state.Tensor)
		}
	}
	return params
}

// State returns every persistent tensor of the network with a stable
// name, including normalization running statistics.
func (u *UNet) State() []layers.State {
	var states []layers.State
	for i, encoder := range u.encoders {
		states = append(states, encoder.State(fmt.Sprintf("encoder%d", i))...)
	}
	states = append(states, u.bottleneck.State("bottleneck")...)
	for i := 0; i < u.depth; i++ {
		states = append(states, u.ups[i].State(fmt.Sprintf("up%d", i))...)
		states = append(states, u.decoders[i].State(fmt.Sprintf("decoder%d", i))...)
	}
	states = append(states, u.final.State("final")...)
	return states
}

// Train sets the network to training mode
func (u *UNet) Train() {
	u.training = true
	for _, encoder := range u.encoders {
		encoder.Train()
	}
	u.bottleneck.Train()
	for i := 0; i < u.depth; i++ {
		u.ups[i].Train()
		u.decoders[i].Train()
	}
	u.final.Train()
}

// Eval sets the network to evaluation mode
func (u *UNet) Eval() {
	u.training = false
	for _, encoder := range u.encoders {
		encoder.Eval()
	}
	u.bottleneck.Eval()
	for i := 0; i < u.depth; i++ {
		u.ups[i].Eval()
		u.decoders[i].Eval()
	}
	u.final.Eval()
}

// IsTraining returns true if in training mode
func (u *UNet) IsTraining() bool {
	return u.training
}
