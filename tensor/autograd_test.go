package tensor

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func scalarLeaf(t *testing.T, value float32) *Tensor {
	t.Helper()
	leaf := FromScalar(value)
	leaf.SetRequiresGrad(true)
	return leaf
}

func TestAddBackward(t *testing.T) {
	a := scalarLeaf(t, 2.0)
	b := scalarLeaf(t, 3.0)

	result := AddAutograd(a, b)
	if v, _ := result.Item(); v != 5.0 {
		t.Fatalf("expected 5.0, got %f", v)
	}

	if err := result.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	if a.Grad() == nil || a.Grad().Data[0] != 1.0 {
		t.Errorf("expected grad 1.0 for a, got %v", a.Grad())
	}
	if b.Grad() == nil || b.Grad().Data[0] != 1.0 {
		t.Errorf("expected grad 1.0 for b, got %v", b.Grad())
	}
}

func TestMulBackward(t *testing.T) {
	a := scalarLeaf(t, 2.0)
	b := scalarLeaf(t, 3.0)

	result := MulAutograd(a, b)
	if err := result.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	if a.Grad().Data[0] != 3.0 {
		t.Errorf("expected grad 3.0 for a, got %f", a.Grad().Data[0])
	}
	if b.Grad().Data[0] != 2.0 {
		t.Errorf("expected grad 2.0 for b, got %f", b.Grad().Data[0])
	}
}

func TestChainedBackward(t *testing.T) {
	// d/dx of x*x + x at x=3 is 2x+1 = 7
	x := scalarLeaf(t, 3.0)

	result := AddAutograd(MulAutograd(x, x), x)
	if v, _ := result.Item(); v != 12.0 {
		t.Fatalf("expected 12.0, got %f", v)
	}

	if err := result.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	if x.Grad().Data[0] != 7.0 {
		t.Errorf("expected grad 7.0, got %f", x.Grad().Data[0])
	}
}

func TestReLUBackward(t *testing.T) {
	x, _ := NewTensor([]int{1}, []float32{-2.0})
	x.SetRequiresGrad(true)
	y := scalarLeaf(t, 4.0)

	// ReLU kills the negative branch, so only y receives gradient.
	result := AddAutograd(ReLUAutograd(x), y)
	if err := result.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	if x.Grad().Data[0] != 0.0 {
		t.Errorf("expected zero grad through negative ReLU input, got %f", x.Grad().Data[0])
	}
	if y.Grad().Data[0] != 1.0 {
		t.Errorf("expected grad 1.0 for y, got %f", y.Grad().Data[0])
	}
}

func TestSigmoidBackward(t *testing.T) {
	x := scalarLeaf(t, 0.0)

	result := SigmoidAutograd(x)
	if v, _ := result.Item(); !almostEqual(v, 0.5, 1e-6) {
		t.Fatalf("expected sigmoid(0) = 0.5, got %f", v)
	}

	if err := result.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	// σ'(0) = 0.25
	if !almostEqual(x.Grad().Data[0], 0.25, 1e-6) {
		t.Errorf("expected grad 0.25, got %f", x.Grad().Data[0])
	}
}

func TestBackwardRequiresScalar(t *testing.T) {
	a, _ := NewTensor([]int{2}, []float32{1, 2})
	a.SetRequiresGrad(true)
	b, _ := NewTensor([]int{2}, []float32{3, 4})
	b.SetRequiresGrad(true)

	result := AddAutograd(a, b)
	if err := result.Backward(); err == nil {
		t.Error("expected error calling Backward on a multi-element tensor")
	}
}

func TestGradAccumulation(t *testing.T) {
	x := scalarLeaf(t, 2.0)

	first := MulAutograd(x, x)
	if err := first.Backward(); err != nil {
		t.Fatalf("first Backward failed: %v", err)
	}
	second := MulAutograd(x, x)
	if err := second.Backward(); err != nil {
		t.Fatalf("second Backward failed: %v", err)
	}

	// Two backward passes without ZeroGrad accumulate: 4 + 4 = 8
	if x.Grad().Data[0] != 8.0 {
		t.Errorf("expected accumulated grad 8.0, got %f", x.Grad().Data[0])
	}

	x.ZeroGrad()
	if x.Grad() != nil {
		t.Error("expected nil grad after ZeroGrad")
	}
}

func TestNoGradRecordsNothing(t *testing.T) {
	x := scalarLeaf(t, 2.0)

	var result *Tensor
	NoGrad(func() {
		result = MulAutograd(x, x)
	})

	if result.creator != nil {
		t.Error("expected no creator recorded under NoGrad")
	}
	if err := result.Backward(); err == nil {
		t.Error("expected Backward to fail on a graph-free tensor")
	}
	if !GradEnabled() {
		t.Error("expected grad recording to be restored after NoGrad")
	}
}
