package tensor

import (
	"math"
	"testing"
)

func TestBatchNormTrainingNormalizes(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	gamma, _ := Ones([]int{1})
	beta, _ := Zeros([]int{1})
	runningMean, _ := Zeros([]int{1})
	runningVar, _ := Ones([]int{1})

	result, err := BatchNorm2DAutograd(input, gamma, beta, runningMean, runningVar, 1e-5, 0.1, true)
	if err != nil {
		t.Fatalf("BatchNorm2DAutograd failed: %v", err)
	}

	var sum, sumSq float64
	for _, v := range result.Data {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	mean := sum / 4
	variance := sumSq/4 - mean*mean
	if math.Abs(mean) > 1e-5 {
		t.Errorf("expected zero mean, got %f", mean)
	}
	if math.Abs(variance-1.0) > 1e-2 {
		t.Errorf("expected unit variance, got %f", variance)
	}
}

func TestBatchNormUpdatesRunningStats(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	gamma, _ := Ones([]int{1})
	beta, _ := Zeros([]int{1})
	runningMean, _ := Zeros([]int{1})
	runningVar, _ := Ones([]int{1})

	if _, err := BatchNorm2DAutograd(input, gamma, beta, runningMean, runningVar, 1e-5, 0.1, true); err != nil {
		t.Fatalf("BatchNorm2DAutograd failed: %v", err)
	}

	// Batch mean is 2.5; running mean moves 10% of the way.
	if !almostEqual(runningMean.Data[0], 0.25, 1e-5) {
		t.Errorf("expected running mean 0.25, got %f", runningMean.Data[0])
	}
	// Unbiased batch variance is 5/3; running var = 0.9 + 0.1*5/3.
	want := float32(0.9 + 0.1*5.0/3.0)
	if !almostEqual(runningVar.Data[0], want, 1e-5) {
		t.Errorf("expected running var %f, got %f", want, runningVar.Data[0])
	}
}

func TestBatchNormEvalUsesRunningStats(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 1, 2}, []float32{3, 5})
	gamma, _ := Ones([]int{1})
	beta, _ := Zeros([]int{1})
	runningMean, _ := NewTensor([]int{1}, []float32{3})
	runningVar, _ := NewTensor([]int{1}, []float32{4})

	result, err := BatchNorm2DAutograd(input, gamma, beta, runningMean, runningVar, 0, 0.1, false)
	if err != nil {
		t.Fatalf("BatchNorm2DAutograd failed: %v", err)
	}

	// (x - 3) / sqrt(4)
	if !almostEqual(result.Data[0], 0.0, 1e-6) || !almostEqual(result.Data[1], 1.0, 1e-6) {
		t.Errorf("unexpected eval output %v", result.Data)
	}
	if result.creator != nil {
		t.Error("eval mode should not record an autograd operation")
	}
	if runningMean.Data[0] != 3 || runningVar.Data[0] != 4 {
		t.Error("eval mode must not update running statistics")
	}
}

func TestBatchNormBackwardZeroForUniformGrad(t *testing.T) {
	input, _ := NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	input.SetRequiresGrad(true)
	gamma, _ := Ones([]int{1})
	beta, _ := Zeros([]int{1})
	runningMean, _ := Zeros([]int{1})
	runningVar, _ := Ones([]int{1})

	result, err := BatchNorm2DAutograd(input, gamma, beta, runningMean, runningVar, 1e-5, 0.1, true)
	if err != nil {
		t.Fatalf("BatchNorm2DAutograd failed: %v", err)
	}

	op := result.creator.(*BatchNorm2DOp)
	gradOut, _ := Ones(result.Shape)
	grads := op.Backward(gradOut)

	// A constant upstream gradient is entirely absorbed by the mean
	// subtraction, so the input gradient vanishes.
	for i, g := range grads[0].Data {
		if !almostEqual(g, 0, 1e-5) {
			t.Errorf("gradInput[%d] = %f, want 0", i, g)
		}
	}
	// gradBeta is the gradient sum; gradGamma pairs with xhat which sums
	// to zero.
	if grads[2].Data[0] != 4 {
		t.Errorf("gradBeta = %f, want 4", grads[2].Data[0])
	}
	if !almostEqual(grads[1].Data[0], 0, 1e-5) {
		t.Errorf("gradGamma = %f, want 0", grads[1].Data[0])
	}
}
