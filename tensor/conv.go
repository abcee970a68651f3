package tensor

import (
	"fmt"
)

// Conv2DOp implements a 2D convolution (NCHW) in the autograd graph.
// Inputs are input [N, Ci, H, W], weight [Co, Ci, kH, kW] and bias [Co].
type Conv2DOp struct {
	inputs  []*Tensor
	stride  int
	padding int
}

func (op *Conv2DOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 3 {
		panic("Conv2DOp requires exactly 3 inputs (input, weight, bias)")
	}
	op.inputs = inputs
	input, weight, bias := inputs[0], inputs[1], inputs[2]

	result, err := conv2D(input, weight, bias, op.stride, op.padding)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	record(result, op, inputs...)
	return result
}

func conv2D(input, weight, bias *Tensor, stride, padding int) (*Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("conv2d expects 4D input [batch, channels, height, width], got shape %v", input.Shape)
	}
	if len(weight.Shape) != 4 {
		return nil, fmt.Errorf("conv2d expects 4D weight [out, in, kh, kw], got shape %v", weight.Shape)
	}
	if input.Shape[1] != weight.Shape[1] {
		return nil, fmt.Errorf("conv2d channel mismatch: input has %d, weight expects %d", input.Shape[1], weight.Shape[1])
	}

	batch, inC, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outC, kh, kw := weight.Shape[0], weight.Shape[2], weight.Shape[3]
	outH := (h+2*padding-kh)/stride + 1
	outW := (w+2*padding-kw)/stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("conv2d output would be empty for input %dx%d, kernel %dx%d", h, w, kh, kw)
	}

	result, err := Zeros([]int{batch, outC, outH, outW})
	if err != nil {
		return nil, err
	}

	for n := 0; n < batch; n++ {
		for oc := 0; oc < outC; oc++ {
			b := bias.Data[oc]
			for oy := 0; oy < outH; oy++ {
				for ox := 0; ox < outW; ox++ {
					sum := b
					for ic := 0; ic < inC; ic++ {
						inBase := ((n*inC + ic) * h) * w
						wBase := ((oc*inC + ic) * kh) * kw
						for ky := 0; ky < kh; ky++ {
							iy := oy*stride - padding + ky
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < kw; kx++ {
								ix := ox*stride - padding + kx
								if ix < 0 || ix >= w {
									continue
								}
								sum += input.Data[inBase+iy*w+ix] * weight.Data[wBase+ky*kw+kx]
							}
						}
					}
					result.Data[((n*outC+oc)*outH+oy)*outW+ox] = sum
				}
			}
		}
	}

	return result, nil
}

func (op *Conv2DOp) Backward(gradOut *Tensor) []*Tensor {
	input, weight := op.inputs[0], op.inputs[1]
	stride, padding := op.stride, op.padding

	batch, inC, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outC, kh, kw := weight.Shape[0], weight.Shape[2], weight.Shape[3]
	outH, outW := gradOut.Shape[2], gradOut.Shape[3]

	gradInput, err := Zeros(input.Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	gradWeight, err := Zeros(weight.Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	gradBias, err := Zeros([]int{outC})
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}

	for n := 0; n < batch; n++ {
		for oc := 0; oc < outC; oc++ {
			for oy := 0; oy < outH; oy++ {
				for ox := 0; ox < outW; ox++ {
					g := gradOut.Data[((n*outC+oc)*outH+oy)*outW+ox]
					if g == 0 {
						continue
					}
					gradBias.Data[oc] += g
					for ic := 0; ic < inC; ic++ {
						inBase := ((n*inC + ic) * h) * w
						wBase := ((oc*inC + ic) * kh) * kw
						for ky := 0; ky < kh; ky++ {
							iy := oy*stride - padding + ky
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < kw; kx++ {
								ix := ox*stride - padding + kx
								if ix < 0 || ix >= w {
									continue
								}
								gradInput.Data[inBase+iy*w+ix] += g * weight.Data[wBase+ky*kw+kx]
								gradWeight.Data[wBase+ky*kw+kx] += g * input.Data[inBase+iy*w+ix]
							}
						}
					}
				}
			}
		}
	}

	return []*Tensor{gradInput, gradWeight, gradBias}
}

func (op *Conv2DOp) Inputs() []*Tensor { return op.inputs }

// Conv2DAutograd performs a 2D convolution with automatic differentiation.
func Conv2DAutograd(input, weight, bias *Tensor, stride, padding int) *Tensor {
	op := &Conv2DOp{stride: stride, padding: padding}
	return op.Forward(input, weight, bias)
}

// ConvTranspose2DOp implements a 2D transposed convolution (NCHW) in the
// autograd graph. Inputs are input [N, Ci, H, W], weight [Ci, Co, kH, kW]
// and bias [Co]. Output spatial size is (dim-1)*stride + kernel.
type ConvTranspose2DOp struct {
	inputs []*Tensor
	stride int
}

func (op *ConvTranspose2DOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 3 {
		panic("ConvTranspose2DOp requires exactly 3 inputs (input, weight, bias)")
	}
	op.inputs = inputs
	input, weight, bias := inputs[0], inputs[1], inputs[2]

	result, err := convTranspose2D(input, weight, bias, op.stride)
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}

	record(result, op, inputs...)
	return result
}

func convTranspose2D(input, weight, bias *Tensor, stride int) (*Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("transposed conv2d expects 4D input [batch, channels, height, width], got shape %v", input.Shape)
	}
	if len(weight.Shape) != 4 {
		return nil, fmt.Errorf("transposed conv2d expects 4D weight [in, out, kh, kw], got shape %v", weight.Shape)
	}
	if input.Shape[1] != weight.Shape[0] {
		return nil, fmt.Errorf("transposed conv2d channel mismatch: input has %d, weight expects %d", input.Shape[1], weight.Shape[0])
	}

	batch, inC, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outC, kh, kw := weight.Shape[1], weight.Shape[2], weight.Shape[3]
	outH := (h-1)*stride + kh
	outW := (w-1)*stride + kw

	result, err := Zeros([]int{batch, outC, outH, outW})
	if err != nil {
		return nil, err
	}

	for n := 0; n < batch; n++ {
		for oc := 0; oc < outC; oc++ {
			outBase := ((n*outC + oc) * outH) * outW
			b := bias.Data[oc]
			for i := 0; i < outH*outW; i++ {
				result.Data[outBase+i] = b
			}
		}
		for ic := 0; ic < inC; ic++ {
			inBase := ((n*inC + ic) * h) * w
			for iy := 0; iy < h; iy++ {
				for ix := 0; ix < w; ix++ {
					v := input.Data[inBase+iy*w+ix]
					if v == 0 {
						continue
					}
					for oc := 0; oc < outC; oc++ {
						outBase := ((n*outC + oc) * outH) * outW
						wBase := ((ic*outC + oc) * kh) * kw
						for ky := 0; ky < kh; ky++ {
							oy := iy*stride + ky
							for kx := 0; kx < kw; kx++ {
								ox := ix*stride + kx
								result.Data[outBase+oy*outW+ox] += v * weight.Data[wBase+ky*kw+kx]
							}
						}
					}
				}
			}
		}
	}

	return result, nil
}

func (op *ConvTranspose2DOp) Backward(gradOut *Tensor) []*Tensor {
	input, weight := op.inputs[0], op.inputs[1]
	stride := op.stride

	batch, inC, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outC, kh, kw := weight.Shape[1], weight.Shape[2], weight.Shape[3]
	outH, outW := gradOut.Shape[2], gradOut.Shape[3]

	gradInput, err := Zeros(input.Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	gradWeight, err := Zeros(weight.Shape)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	gradBias, err := Zeros([]int{outC})
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}

	for n := 0; n < batch; n++ {
		for oc := 0; oc < outC; oc++ {
			outBase := ((n*outC + oc) * outH) * outW
			for i := 0; i < outH*outW; i++ {
				gradBias.Data[oc] += gradOut.Data[outBase+i]
			}
		}
		for ic := 0; ic < inC; ic++ {
			inBase := ((n*inC + ic) * h) * w
			for iy := 0; iy < h; iy++ {
				for ix := 0; ix < w; ix++ {
					v := input.Data[inBase+iy*w+ix]
					var sum float32
					for oc := 0; oc < outC; oc++ {
						outBase := ((n*outC + oc) * outH) * outW
						wBase := ((ic*outC + oc) * kh) * kw
						for ky := 0; ky < kh; ky++ {
							oy := iy*stride + ky
							for kx := 0; kx < kw; kx++ {
								ox := ix*stride + kx
								g := gradOut.Data[outBase+oy*outW+ox]
								sum += g * weight.Data[wBase+ky*kw+kx]
								gradWeight.Data[wBase+ky*kw+kx] += g * v
							}
						}
					}
					gradInput.Data[inBase+iy*w+ix] = sum
				}
			}
		}
	}

	return []*Tensor{gradInput, gradWeight, gradBias}
}

func (op *ConvTranspose2DOp) Inputs() []*Tensor { return op.inputs }

// ConvTranspose2DAutograd performs a transposed 2D convolution with
// automatic differentiation.
func ConvTranspose2DAutograd(input, weight, bias *Tensor, stride int) *Tensor {
	op := &ConvTranspose2DOp{stride: stride}
	return op.Forward(input, weight, bias)
}
