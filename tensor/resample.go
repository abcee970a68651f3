package tensor

import (
	"fmt"
	"math"
)

// Interpolate resizes the spatial dimensions of a 3D (CHW) or 4D (NCHW)
// tensor with bilinear sampling. Sample positions are pixel-centered
// (non-corner-aligned). The result does not participate in the autograd
// graph.
func Interpolate(t *Tensor, outH, outW int) (*Tensor, error) {
	if len(t.Shape) != 3 && len(t.Shape) != 4 {
		return nil, fmt.Errorf("interpolate expects a 3D or 4D tensor, got shape %v", t.Shape)
	}
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("interpolate target size must be positive, got %dx%d", outW, outH)
	}

	dims := len(t.Shape)
	h, w := t.Shape[dims-2], t.Shape[dims-1]
	planes := t.NumElems / (h * w)

	outShape := append([]int(nil), t.Shape...)
	outShape[dims-2] = outH
	outShape[dims-1] = outW
	result, err := Zeros(outShape)
	if err != nil {
		return nil, err
	}

	scaleY := float64(h) / float64(outH)
	scaleX := float64(w) / float64(outW)

	for p := 0; p < planes; p++ {
		src := t.Data[p*h*w : (p+1)*h*w]
		dst := result.Data[p*outH*outW : (p+1)*outH*outW]
		for oy := 0; oy < outH; oy++ {
			sy := (float64(oy)+0.5)*scaleY - 0.5
			if sy < 0 {
				sy = 0
			}
			y0 := int(math.Floor(sy))
			if y0 > h-1 {
				y0 = h - 1
			}
			y1 := y0 + 1
			if y1 > h-1 {
				y1 = h - 1
			}
			fy := float32(sy - float64(y0))

			for ox := 0; ox < outW; ox++ {
				sx := (float64(ox)+0.5)*scaleX - 0.5
				if sx < 0 {
					sx = 0
				}
				x0 := int(math.Floor(sx))
				if x0 > w-1 {
					x0 = w - 1
				}
				x1 := x0 + 1
				if x1 > w-1 {
					x1 = w - 1
				}
				fx := float32(sx - float64(x0))

				top := src[y0*w+x0]*(1-fx) + src[y0*w+x1]*fx
				bottom := src[y1*w+x0]*(1-fx) + src[y1*w+x1]*fx
				dst[oy*outW+ox] = top*(1-fy) + bottom*fy
			}
		}
	}

	return result, nil
}

// Pad2D zero-pads the spatial dimensions of a 3D (CHW) or 4D (NCHW)
// tensor. The result does not participate in the autograd graph.
func Pad2D(t *Tensor, left, right, top, bottom int) (*Tensor, error) {
	if len(t.Shape) != 3 && len(t.Shape) != 4 {
		return nil, fmt.Errorf("pad expects a 3D or 4D tensor, got shape %v", t.Shape)
	}
	if left < 0 || right < 0 || top < 0 || bottom < 0 {
		return nil, fmt.Errorf("pad amounts must be non-negative, got (%d, %d, %d, %d)", left, right, top, bottom)
	}

	dims := len(t.Shape)
	h, w := t.Shape[dims-2], t.Shape[dims-1]
	planes := t.NumElems / (h * w)
	outH, outW := h+top+bottom, w+left+right

	outShape := append([]int(nil), t.Shape...)
	outShape[dims-2] = outH
	outShape[dims-1] = outW
	result, err := Zeros(outShape)
	if err != nil {
		return nil, err
	}

	for p := 0; p < planes; p++ {
		src := t.Data[p*h*w : (p+1)*h*w]
		dst := result.Data[p*outH*outW : (p+1)*outH*outW]
		for y := 0; y < h; y++ {
			copy(dst[(y+top)*outW+left:(y+top)*outW+left+w], src[y*w:(y+1)*w])
		}
	}

	return result, nil
}

// Crop2D extracts the spatial region [y, y+height) x [x, x+width) from a
// 3D (CHW) or 4D (NCHW) tensor. The result does not participate in the
// autograd graph.
func Crop2D(t *Tensor, x, y, width, height int) (*Tensor, error) {
	if len(t.Shape) != 3 && len(t.Shape) != 4 {
		return nil, fmt.Errorf("crop expects a 3D or 4D tensor, got shape %v", t.Shape)
	}

	dims := len(t.Shape)
	h, w := t.Shape[dims-2], t.Shape[dims-1]
	if x < 0 || y < 0 || width <= 0 || height <= 0 || x+width > w || y+height > h {
		return nil, fmt.Errorf("crop region (%d, %d, %dx%d) out of bounds for %dx%d", x, y, width, height, w, h)
	}
	planes := t.NumElems / (h * w)

	outShape := append([]int(nil), t.Shape...)
	outShape[dims-2] = height
	outShape[dims-1] = width
	result, err := Zeros(outShape)
	if err != nil {
		return nil, err
	}

	for p := 0; p < planes; p++ {
		src := t.Data[p*h*w : (p+1)*h*w]
		dst := result.Data[p*height*width : (p+1)*height*width]
		for row := 0; row < height; row++ {
			copy(dst[row*width:(row+1)*width], src[(y+row)*w+x:(y+row)*w+x+width])
		}
	}

	return result, nil
}
