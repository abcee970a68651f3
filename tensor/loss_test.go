package tensor

import (
	"math"
	"testing"
)

func TestBCEWithLogitsKnownValue(t *testing.T) {
	// At logit 0 the loss is ln(2) regardless of target.
	logits, _ := NewTensor([]int{2}, []float32{0, 0})
	targets, _ := NewTensor([]int{2}, []float32{0, 1})

	loss := BCEWithLogitsAutograd(logits, targets)
	v, err := loss.Item()
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if !almostEqual(v, float32(math.Ln2), 1e-6) {
		t.Errorf("expected ln(2) = %f, got %f", math.Ln2, v)
	}
}

func TestBCEWithLogitsPerfectPrediction(t *testing.T) {
	// Strongly confident correct logits drive the loss toward zero.
	logits, _ := NewTensor([]int{2}, []float32{50, -50})
	targets, _ := NewTensor([]int{2}, []float32{1, 0})

	loss := BCEWithLogitsAutograd(logits, targets)
	v, _ := loss.Item()
	if v > 1e-6 {
		t.Errorf("expected near-zero loss, got %f", v)
	}
}

func TestBCEWithLogitsLargeLogitsStable(t *testing.T) {
	logits, _ := NewTensor([]int{2}, []float32{1000, -1000})
	targets, _ := NewTensor([]int{2}, []float32{0, 1})

	loss := BCEWithLogitsAutograd(logits, targets)
	v, _ := loss.Item()
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		t.Fatalf("loss overflowed: %f", v)
	}
	// Each element contributes |x|, averaged.
	if !almostEqual(v, 1000, 1e-3) {
		t.Errorf("expected loss 1000, got %f", v)
	}
}

func TestBCEWithLogitsBackward(t *testing.T) {
	logits, _ := NewTensor([]int{2}, []float32{0, 0})
	logits.SetRequiresGrad(true)
	targets, _ := NewTensor([]int{2}, []float32{1, 0})

	loss := BCEWithLogitsAutograd(logits, targets)
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	grad := logits.Grad()
	if grad == nil {
		t.Fatal("expected gradient on logits")
	}
	// dL/dx = (σ(x) - z)/N = (0.5 - z)/2
	if !almostEqual(grad.Data[0], -0.25, 1e-6) {
		t.Errorf("grad[0] = %f, want -0.25", grad.Data[0])
	}
	if !almostEqual(grad.Data[1], 0.25, 1e-6) {
		t.Errorf("grad[1] = %f, want 0.25", grad.Data[1])
	}

	if targets.Grad() != nil {
		t.Error("targets must not receive gradients")
	}
}
