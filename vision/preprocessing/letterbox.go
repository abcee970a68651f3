// Package preprocessing converts images to and from the tensor layout
// the network consumes, including the aspect-preserving letterbox fit.
package preprocessing

import (
	"fmt"
	"math"

	"github.com/tsawler/go-marker/tensor"
)

// Placement records where the scaled content sits inside a letterboxed
// canvas, so predictions can be cropped back out.
type Placement struct {
	OffsetX int
	OffsetY int
	Width   int
	Height  int
}

// FitTensor scales a CHW tensor to fit inside width x height without
// changing its aspect ratio, then centers it on a zero canvas of exactly
// that size. The returned placement locates the content on the canvas.
// When the content does not divide evenly, the extra padding pixel goes
// to the right or bottom edge.
func FitTensor(t *tensor.Tensor, width, height int) (*tensor.Tensor, Placement, error) {
	if len(t.Shape) != 3 {
		return nil, Placement{}, fmt.Errorf("fit expects a 3D tensor [channels, height, width], got shape %v", t.Shape)
	}
	if width <= 0 || height <= 0 {
		return nil, Placement{}, fmt.Errorf("fit target size must be positive, got %dx%d", width, height)
	}

	srcH, srcW := t.Shape[1], t.Shape[2]

	// The dimension whose aspect ratio exceeds the target's fills the
	// canvas; the other is scaled with it and padded.
	var newW, newH int
	if float64(srcW)/float64(srcH) > float64(width)/float64(height) {
		newW = width
		newH = int(math.Round(float64(srcH) * float64(width) / float64(srcW)))
	} else {
		newH = height
		newW = int(math.Round(float64(srcW) * float64(height) / float64(srcH)))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	scaled, err := tensor.Interpolate(t, newH, newW)
	if err != nil {
		return nil, Placement{}, fmt.Errorf("failed to scale content: %v", err)
	}

	padW := width - newW
	padH := height - newH
	left := padW / 2
	top := padH / 2

	canvas, err := tensor.Pad2D(scaled, left, padW-left, top, padH-top)
	if err != nil {
		return nil, Placement{}, fmt.Errorf("failed to pad content: %v", err)
	}

	placement := Placement{
		OffsetX: left,
		OffsetY: top,
		Width:   newW,
		Height:  newH,
	}
	return canvas, placement, nil
}
