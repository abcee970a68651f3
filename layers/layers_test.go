package layers

import (
	"testing"

	"github.com/tsawler/go-marker/tensor"
)

func TestConv2DShapes(t *testing.T) {
	conv, err := NewConv2D(3, 8, 3, 1, 1)
	if err != nil {
		t.Fatalf("NewConv2D failed: %v", err)
	}

	input, _ := tensor.Zeros([]int{2, 3, 16, 16})
	out, err := conv.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	want := []int{2, 8, 16, 16}
	for i, dim := range want {
		if out.Shape[i] != dim {
			t.Fatalf("expected shape %v, got %v", want, out.Shape)
		}
	}
}

func TestConv2DRejectsWrongChannels(t *testing.T) {
	conv, _ := NewConv2D(3, 8, 3, 1, 1)
	input, _ := tensor.Zeros([]int{1, 4, 8, 8})
	if _, err := conv.Forward(input); err == nil {
		t.Error("expected error for channel mismatch")
	}
}

func TestConv2DDeterministicInit(t *testing.T) {
	SetRandomSeed(42)
	a, _ := NewConv2D(3, 8, 3, 1, 1)
	SetRandomSeed(42)
	b, _ := NewConv2D(3, 8, 3, 1, 1)

	for i := range a.weight.Data {
		if a.weight.Data[i] != b.weight.Data[i] {
			t.Fatal("same seed should give identical weights")
		}
	}
}

func TestConvTranspose2DDoubles(t *testing.T) {
	up, err := NewConvTranspose2D(8, 4, 2, 2)
	if err != nil {
		t.Fatalf("NewConvTranspose2D failed: %v", err)
	}

	input, _ := tensor.Zeros([]int{1, 8, 4, 4})
	out, err := up.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if out.Shape[1] != 4 || out.Shape[2] != 8 || out.Shape[3] != 8 {
		t.Errorf("expected [1 4 8 8], got %v", out.Shape)
	}
}

func TestDoubleConvShapesAndState(t *testing.T) {
	block, err := NewDoubleConv(3, 16)
	if err != nil {
		t.Fatalf("NewDoubleConv failed: %v", err)
	}

	input, _ := tensor.Zeros([]int{1, 3, 8, 8})
	out, err := block.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if out.Shape[1] != 16 || out.Shape[2] != 8 || out.Shape[3] != 8 {
		t.Errorf("expected [1 16 8 8], got %v", out.Shape)
	}

	states := block.State("enc0")
	if len(states) != 12 {
		t.Fatalf("expected 12 state tensors, got %d", len(states))
	}
	if states[0].Name != "enc0.conv1.weight" {
		t.Errorf("unexpected first state name %q", states[0].Name)
	}

	var learnable int
	for _, s := range states {
		if s.Learnable {
			learnable++
		}
	}
	// Two convs (weight+bias) and two norms (gamma+beta).
	if learnable != 8 {
		t.Errorf("expected 8 learnable tensors, got %d", learnable)
	}
}

func TestBatchNorm2DStateNames(t *testing.T) {
	bn, _ := NewBatchNorm2D(4, 1e-5, 0.1)
	states := bn.State("norm")

	want := []string{"norm.weight", "norm.bias", "norm.running_mean", "norm.running_var"}
	if len(states) != len(want) {
		t.Fatalf("expected %d states, got %d", len(want), len(states))
	}
	for i, name := range want {
		if states[i].Name != name {
			t.Errorf("state %d = %q, want %q", i, states[i].Name, name)
		}
	}
	if states[2].Learnable || states[3].Learnable {
		t.Error("running statistics must not be learnable")
	}
}

func TestSequentialTrainEval(t *testing.T) {
	block, _ := NewDoubleConv(3, 8)
	if !block.IsTraining() {
		t.Error("new module should start in training mode")
	}
	block.Eval()
	if block.IsTraining() || block.norm1.IsTraining() {
		t.Error("Eval should propagate to children")
	}
	block.Train()
	if !block.norm2.IsTraining() {
		t.Error("Train should propagate to children")
	}
}

func TestMaxPool2DHalves(t *testing.T) {
	pool := NewMaxPool2D(2, 2)
	input, _ := tensor.Zeros([]int{1, 2, 6, 6})
	out, err := pool.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if out.Shape[2] != 3 || out.Shape[3] != 3 {
		t.Errorf("expected spatial size 3x3, got %v", out.Shape)
	}
}
