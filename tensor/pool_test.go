package tensor

import (
	"testing"
)

func TestMaxPool2DForward(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 4, 4}, []float32{
		1, 2, 5, 6,
		3, 4, 7, 8,
		9, 10, 13, 14,
		11, 12, 15, 16,
	})

	result := MaxPool2DAutograd(input, 2, 2)
	if !shapesEqual(result.Shape, []int{1, 1, 2, 2}) {
		t.Fatalf("expected shape [1 1 2 2], got %v", result.Shape)
	}
	expected := []float32{4, 8, 12, 16}
	for i, want := range expected {
		if result.Data[i] != want {
			t.Errorf("output[%d] = %f, want %f", i, result.Data[i], want)
		}
	}
}

func TestMaxPool2DBackward(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 4, 2, 3})
	input.SetRequiresGrad(true)

	out := MaxPool2DAutograd(input, 2, 2)
	op := out.creator.(*MaxPool2DOp)

	gradOut, _ := NewTensor([]int{1, 1, 1, 1}, []float32{5})
	grads := op.Backward(gradOut)

	// Only the winning position (value 4, index 1) receives gradient.
	expected := []float32{0, 5, 0, 0}
	for i, want := range expected {
		if grads[0].Data[i] != want {
			t.Errorf("gradInput[%d] = %f, want %f", i, grads[0].Data[i], want)
		}
	}
}

func TestConcatForward(t *testing.T) {
	a, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	b, _ := NewTensor([]int{1, 2, 2, 2}, []float32{5, 6, 7, 8, 9, 10, 11, 12})

	result := ConcatAutograd(a, b)
	if !shapesEqual(result.Shape, []int{1, 3, 2, 2}) {
		t.Fatalf("expected shape [1 3 2 2], got %v", result.Shape)
	}
	expected := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	for i, want := range expected {
		if result.Data[i] != want {
			t.Errorf("output[%d] = %f, want %f", i, result.Data[i], want)
		}
	}
}

func TestConcatBackwardSplits(t *testing.T) {
	a, _ := Zeros([]int{2, 1, 2, 2})
	a.SetRequiresGrad(true)
	b, _ := Zeros([]int{2, 2, 2, 2})
	b.SetRequiresGrad(true)

	out := ConcatAutograd(a, b)
	op := out.creator.(*ConcatOp)

	gradOut, _ := Zeros(out.Shape)
	for i := range gradOut.Data {
		gradOut.Data[i] = float32(i)
	}
	grads := op.Backward(gradOut)

	if !shapesEqual(grads[0].Shape, a.Shape) || !shapesEqual(grads[1].Shape, b.Shape) {
		t.Fatalf("gradient shapes %v, %v do not match inputs", grads[0].Shape, grads[1].Shape)
	}

	// First batch: a gets channels [0,1), b gets [1,3).
	if grads[0].Data[0] != 0 || grads[0].Data[3] != 3 {
		t.Errorf("unexpected gradA first batch: %v", grads[0].Data[:4])
	}
	if grads[1].Data[0] != 4 || grads[1].Data[7] != 11 {
		t.Errorf("unexpected gradB first batch: %v", grads[1].Data[:8])
	}
	// Second batch of a starts after b's first batch in the concat.
	if grads[0].Data[4] != 12 {
		t.Errorf("unexpected gradA second batch start: %f", grads[0].Data[4])
	}
}
