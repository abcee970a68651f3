package tensor

import (
	"testing"
)

func TestInterpolateIdentity(t *testing.T) {
	input, _ := NewTensor([]int{1, 2, 2}, []float32{1, 2, 3, 4})

	result, err := Interpolate(input, 2, 2)
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	for i, v := range input.Data {
		if result.Data[i] != v {
			t.Errorf("identity resize changed element %d: %f -> %f", i, v, result.Data[i])
		}
	}
}

func TestInterpolateConstant(t *testing.T) {
	input, _ := Full([]int{1, 3, 3}, 7)

	result, err := Interpolate(input, 8, 5)
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	if !shapesEqual(result.Shape, []int{1, 8, 5}) {
		t.Fatalf("expected shape [1 8 5], got %v", result.Shape)
	}
	for i, v := range result.Data {
		if v != 7 {
			t.Errorf("constant image changed at %d: got %f", i, v)
		}
	}
}

func TestInterpolateUpscalePreservesRange(t *testing.T) {
	input, _ := NewTensor([]int{1, 2, 2}, []float32{0, 1, 1, 0})

	result, err := Interpolate(input, 4, 4)
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	for i, v := range result.Data {
		if v < 0 || v > 1 {
			t.Errorf("bilinear output out of input range at %d: %f", i, v)
		}
	}
}

func TestPad2DGeometry(t *testing.T) {
	input, _ := NewTensor([]int{1, 2, 2}, []float32{1, 2, 3, 4})
	padded, err := Pad2D(input, 1, 1, 1, 1)
	if err != nil {
		t.Fatalf("Pad2D failed: %v", err)
	}
	if !shapesEqual(padded.Shape, []int{1, 4, 4}) {
		t.Fatalf("expected shape [1 4 4], got %v", padded.Shape)
	}
	if padded.Data[0] != 0 || padded.Data[5] != 1 || padded.Data[10] != 4 {
		t.Errorf("unexpected padded layout: %v", padded.Data)
	}
}

func TestCropInvertsPad(t *testing.T) {
	input, _ := NewTensor([]int{2, 2, 3}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	padded, err := Pad2D(input, 2, 1, 1, 3)
	if err != nil {
		t.Fatalf("Pad2D failed: %v", err)
	}
	cropped, err := Crop2D(padded, 2, 1, 3, 2)
	if err != nil {
		t.Fatalf("Crop2D failed: %v", err)
	}

	if !shapesEqual(cropped.Shape, input.Shape) {
		t.Fatalf("expected shape %v, got %v", input.Shape, cropped.Shape)
	}
	for i, v := range input.Data {
		if cropped.Data[i] != v {
			t.Errorf("pad/crop round trip changed element %d: %f -> %f", i, v, cropped.Data[i])
		}
	}
}

func TestCropOutOfBounds(t *testing.T) {
	input, _ := Zeros([]int{1, 4, 4})
	if _, err := Crop2D(input, 2, 2, 4, 4); err == nil {
		t.Error("expected error for out-of-bounds crop")
	}
}
