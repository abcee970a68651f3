package tensor

import (
	"testing"
)

func TestConv2DForward(t *testing.T) {
	// 1x1x3x3 input, identity-like 1x1 kernel with weight 2 and bias 1.
	input, _ := NewTensor([]int{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	weight, _ := NewTensor([]int{1, 1, 1, 1}, []float32{2})
	bias, _ := NewTensor([]int{1}, []float32{1})

	result := Conv2DAutograd(input, weight, bias, 1, 0)
	if !shapesEqual(result.Shape, []int{1, 1, 3, 3}) {
		t.Fatalf("unexpected output shape %v", result.Shape)
	}
	expected := []float32{3, 5, 7, 9, 11, 13, 15, 17, 19}
	for i, want := range expected {
		if result.Data[i] != want {
			t.Errorf("output[%d] = %f, want %f", i, result.Data[i], want)
		}
	}
}

func TestConv2DPaddingPreservesSize(t *testing.T) {
	input, _ := Zeros([]int{2, 3, 8, 8})
	weight, _ := Zeros([]int{4, 3, 3, 3})
	bias, _ := Zeros([]int{4})

	result := Conv2DAutograd(input, weight, bias, 1, 1)
	if !shapesEqual(result.Shape, []int{2, 4, 8, 8}) {
		t.Errorf("expected shape [2 4 8 8], got %v", result.Shape)
	}
}

func TestConv2DBackward(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	input.SetRequiresGrad(true)
	weight, _ := NewTensor([]int{1, 1, 1, 1}, []float32{3})
	weight.SetRequiresGrad(true)
	bias, _ := NewTensor([]int{1}, []float32{0})
	bias.SetRequiresGrad(true)

	out := Conv2DAutograd(input, weight, bias, 1, 0)

	// Drive gradients through the op directly for exact values.
	op := out.creator.(*Conv2DOp)
	gradOut, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 1, 1, 1})
	grads := op.Backward(gradOut)

	// d/dinput = weight broadcast over every position
	for i, g := range grads[0].Data {
		if g != 3 {
			t.Errorf("gradInput[%d] = %f, want 3", i, g)
		}
	}
	// d/dweight = sum of inputs = 10
	if grads[1].Data[0] != 10 {
		t.Errorf("gradWeight = %f, want 10", grads[1].Data[0])
	}
	// d/dbias = number of output positions = 4
	if grads[2].Data[0] != 4 {
		t.Errorf("gradBias = %f, want 4", grads[2].Data[0])
	}
}

func TestConvTranspose2DDoublesSize(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	weight, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 1, 1, 1})
	bias, _ := NewTensor([]int{1}, []float32{0})

	result := ConvTranspose2DAutograd(input, weight, bias, 2)
	if !shapesEqual(result.Shape, []int{1, 1, 4, 4}) {
		t.Fatalf("expected shape [1 1 4 4], got %v", result.Shape)
	}

	// Each input value fills its own 2x2 block with no overlap at stride 2.
	expected := []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	for i, want := range expected {
		if result.Data[i] != want {
			t.Errorf("output[%d] = %f, want %f", i, result.Data[i], want)
		}
	}
}

func TestConvTranspose2DBackward(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	input.SetRequiresGrad(true)
	weight, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	bias, _ := NewTensor([]int{1}, []float32{0})

	out := ConvTranspose2DAutograd(input, weight, bias, 2)
	op := out.creator.(*ConvTranspose2DOp)

	gradOut, _ := Ones(out.Shape)
	grads := op.Backward(gradOut)

	// Every input position sees the full kernel once: sum(weight) = 10.
	for i, g := range grads[0].Data {
		if g != 10 {
			t.Errorf("gradInput[%d] = %f, want 10", i, g)
		}
	}
	// Every kernel tap sees every input once: sum(input) = 10.
	for i, g := range grads[1].Data {
		if g != 10 {
			t.Errorf("gradWeight[%d] = %f, want 10", i, g)
		}
	}
	// Bias gradient is the number of output positions.
	if grads[2].Data[0] != 16 {
		t.Errorf("gradBias = %f, want 16", grads[2].Data[0])
	}
}
