package mlp

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	flightctl "github.com/mettz/learning-to-fly-controller"
)

// floatsEqual compares slices of float32
func floatsEqual(a, b []float32, epsilon float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if diff := a[i] - b[i]; diff > epsilon || diff < -epsilon {
			return false
		}
	}
	return true
}

// tinyNetwork builds a 2 -> 2 -> 1 network with hand-picked weights
func tinyNetwork(t *testing.T) *Network {
	t.Helper()

	n, err := NewNetwork("test_policy", 2,
		LayerSpec{
			Weights: [][]float32{
				{1, 0},
				{0, 1},
			},
			Bias: []float32{0.5, -0.5},
			Act:  ActTanh,
		},
		LayerSpec{
			Weights: [][]float32{
				{1, 1},
			},
			Bias: []float32{0},
			Act:  ActIdentity,
		},
	)

	if err != nil {
		t.Fatalf("NewNetwork failed: %v", err)
	}

	return n
}

func TestForwardKnownWeights(t *testing.T) {

	n := tinyNetwork(t)

	out, err := n.Forward([]float32{1, 1})

	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// hidden = tanh([1*1+0.5, 1*1-0.5]) = [tanh(1.5), tanh(0.5)]
	want := float32(math.Tanh(1.5) + math.Tanh(0.5))

	if len(out) != 1 || !floatsEqual(out, []float32{want}, 1e-6) {
		t.Errorf("Forward = %v; want [%v]", out, want)
	}
}

func TestRunMatchesForward(t *testing.T) {

	n := tinyNetwork(t)

	input, output, err := n.Bind()

	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	input[0] = 0.3
	input[1] = -0.7

	if status := n.Run(flightctl.RunModeSync); status != flightctl.StatusSuccess {
		t.Fatalf("Run status = %v; want success", status)
	}

	direct, err := n.Forward([]float32{0.3, -0.7})

	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if !floatsEqual(output, direct, 1e-6) {
		t.Errorf("Run output = %v; Forward = %v", output, direct)
	}
}

func TestRunRequiresBind(t *testing.T) {

	n := tinyNetwork(t)

	if status := n.Run(flightctl.RunModeSync); status != flightctl.StatusNotInitialized {
		t.Errorf("Run before Bind = %v; want StatusNotInitialized", status)
	}
}

func TestRunRejectsAsyncMode(t *testing.T) {

	n := tinyNetwork(t)
	n.Bind()

	if status := n.Run(flightctl.RunModeAsync); status != flightctl.StatusModeUnsupported {
		t.Errorf("async Run = %v; want StatusModeUnsupported", status)
	}
}

func TestForwardBatchMatchesForward(t *testing.T) {

	n := tinyNetwork(t)

	samples := [][]float32{
		{0, 0},
		{1, -1},
		{0.5, 0.25},
		{-2, 3},
	}

	x := mat.NewDense(len(samples), 2, nil)

	for i, s := range samples {
		for j, v := range s {
			x.Set(i, j, float64(v))
		}
	}

	batch, err := n.ForwardBatch(x)

	if err != nil {
		t.Fatalf("ForwardBatch failed: %v", err)
	}

	for i, s := range samples {

		single, err := n.Forward(s)

		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}

		if diff := batch.At(i, 0) - float64(single[0]); math.Abs(diff) > 1e-6 {
			t.Errorf("row %d: batch = %v, single = %v", i, batch.At(i, 0), single[0])
		}
	}
}

func TestNewNetworkDimensionValidation(t *testing.T) {

	// bias length mismatch
	_, err := NewNetwork("bad", 2, LayerSpec{
		Weights: [][]float32{{1, 2}},
		Bias:    []float32{1, 2},
		Act:     ActTanh,
	})

	if err == nil {
		t.Error("expected error for bias length mismatch")
	}

	// weight row width mismatch
	_, err = NewNetwork("bad", 3, LayerSpec{
		Weights: [][]float32{{1, 2}},
		Bias:    []float32{0},
		Act:     ActTanh,
	})

	if err == nil {
		t.Error("expected error for weight row width mismatch")
	}

	// no layers
	if _, err := NewNetwork("bad", 2); err == nil {
		t.Error("expected error for empty layer stack")
	}
}

func TestDetails(t *testing.T) {

	n := tinyNetwork(t)
	d := n.Details()

	if d.Checkpoint != "test_policy" {
		t.Errorf("Checkpoint = %q; want test_policy", d.Checkpoint)
	}

	if d.IONum.NumberInput != 1 || d.IONum.NumberOutput != 1 {
		t.Errorf("IONum = %+v; want one input, one output", d.IONum)
	}

	if len(d.Inputs) != 1 || d.Inputs[0].Dims[1] != 2 {
		t.Errorf("input attr = %+v; want dims [1 2]", d.Inputs)
	}

	if len(d.Outputs) != 1 || d.Outputs[0].Dims[1] != 1 {
		t.Errorf("output attr = %+v; want dims [1 1]", d.Outputs)
	}
}

// TestControllerWithNetwork runs the full control loop against the
// reference network end to end
func TestControllerWithNetwork(t *testing.T) {

	// zero weights so every action channel settles at tanh(bias)
	weights := make([][]float32, flightctl.ActionSize)

	for i := range weights {
		weights[i] = make([]float32, flightctl.BaseFeatureSize)
	}

	n, err := NewNetwork("hover_policy", flightctl.BaseFeatureSize,
		LayerSpec{
			Weights: weights,
			Bias:    []float32{0.1, 0.2, -0.1, -0.2},
			Act:     ActTanh,
		},
	)

	if err != nil {
		t.Fatalf("NewNetwork failed: %v", err)
	}

	ctrl, err := flightctl.NewController(n, flightctl.Config{ClampActions: true})

	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	if ctrl.CheckpointName() != "hover_policy" {
		t.Errorf("CheckpointName = %q; want the network checkpoint", ctrl.CheckpointName())
	}

	state := make([]float32, flightctl.StateSize)
	state[3] = 1 // identity quaternion

	actions := make([]float32, flightctl.ActionSize)
	ctrl.Control(state, actions)

	want := []float32{
		float32(math.Tanh(0.1)),
		float32(math.Tanh(0.2)),
		float32(math.Tanh(-0.1)),
		float32(math.Tanh(-0.2)),
	}

	if !floatsEqual(actions, want, 1e-6) {
		t.Errorf("actions = %v; want %v", actions, want)
	}
}

func BenchmarkPolicyForward(b *testing.B) {

	// deployed topology: 146 -> 64 -> 64 -> 4, all tanh
	specs := make([]LayerSpec, 0, 3)
	sizes := []int{flightctl.HistoryFeatureSize, HiddenSize, HiddenSize, flightctl.ActionSize}

	for l := 0; l < 3; l++ {
		w := make([][]float32, sizes[l+1])

		for i := range w {
			w[i] = make([]float32, sizes[l])

			for j := range w[i] {
				w[i][j] = float32((i+j)%7) * 0.01
			}
		}

		specs = append(specs, LayerSpec{
			Weights: w,
			Bias:    make([]float32, sizes[l+1]),
			Act:     ActTanh,
		})
	}

	n, err := NewNetwork("bench", flightctl.HistoryFeatureSize, specs...)

	if err != nil {
		b.Fatalf("NewNetwork failed: %v", err)
	}

	input, _, _ := n.Bind()

	for i := range input {
		input[i] = 0.01 * float32(i%13)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		n.Run(flightctl.RunModeSync)
	}
}
