/*
Package mlp is a pure Go reference implementation of the fixed-topology
feed-forward policy network.  It implements the flightctl.Executor
boundary so the control loop can run without accelerator hardware, and
doubles as the offline evaluation path for recorded flights.

The deployed quadrotor policy is a stack of dense layers with tanh
activations (obs -> 64 -> 64 -> 4), networks of that shape are loaded
from fp16 checkpoint files via LoadCheckpointFile.
*/
package mlp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	flightctl "github.com/mettz/learning-to-fly-controller"
)

// HiddenSize is the width of the deployed policy's hidden layers
const HiddenSize = 64

// Activation applied element-wise after a dense layer
type Activation int

const (
	ActIdentity Activation = iota
	ActTanh
	ActReLU
)

// String returns a readable description of the Activation
func (a Activation) String() string {
	switch a {
	case ActIdentity:
		return "identity"
	case ActTanh:
		return "tanh"
	case ActReLU:
		return "relu"
	default:
		return "unknown"
	}
}

// LayerSpec defines one dense layer of the network.  Weights is indexed
// [output][input] and Bias has one entry per output.
type LayerSpec struct {
	Weights [][]float32
	Bias    []float32
	Act     Activation
}

// dense layer with weights held as a gonum matrix
type layer struct {
	// weights is out x in
	weights *mat.Dense
	bias    *mat.VecDense
	act     Activation
	out     int
}

// Network is a feed-forward network executing over bound input/output
// buffers.  It satisfies flightctl.Executor and flightctl.Describer.
type Network struct {
	checkpoint string
	layers     []layer
	inputSize  int
	outputSize int
	// bound IO buffers, allocated by Bind
	input  []float32
	output []float32
	// scratch holds the input vector and one vector per layer boundary
	// to keep Run free of allocations
	inVec   *mat.VecDense
	scratch []*mat.VecDense
}

// NewNetwork builds a network from layer specifications.  checkpoint
// names the trained policy the weights came from, inputSize is the
// length of the input tensor.  Layer dimensions must chain.
func NewNetwork(checkpoint string, inputSize int, specs ...LayerSpec) (*Network, error) {

	if inputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", inputSize)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("network needs at least one layer")
	}

	n := &Network{
		checkpoint: checkpoint,
		inputSize:  inputSize,
		inVec:      mat.NewVecDense(inputSize, nil),
	}

	prev := inputSize

	for i, spec := range specs {

		rows := len(spec.Weights)

		if rows == 0 {
			return nil, fmt.Errorf("layer %d has no weight rows", i)
		}

		if len(spec.Bias) != rows {
			return nil, fmt.Errorf("layer %d has %d bias entries for %d outputs",
				i, len(spec.Bias), rows)
		}

		w := mat.NewDense(rows, prev, nil)

		for r, row := range spec.Weights {

			if len(row) != prev {
				return nil, fmt.Errorf("layer %d row %d has %d weights, previous layer width is %d",
					i, r, len(row), prev)
			}

			for c, v := range row {
				w.Set(r, c, float64(v))
			}
		}

		b := mat.NewVecDense(rows, nil)

		for r, v := range spec.Bias {
			b.SetVec(r, float64(v))
		}

		n.layers = append(n.layers, layer{
			weights: w,
			bias:    b,
			act:     spec.Act,
			out:     rows,
		})

		n.scratch = append(n.scratch, mat.NewVecDense(rows, nil))
		prev = rows
	}

	n.outputSize = prev

	return n, nil
}

// Checkpoint returns the name of the trained policy checkpoint the
// network weights were loaded from
func (n *Network) Checkpoint() string {
	return n.checkpoint
}

// InputSize returns the length of the input tensor
func (n *Network) InputSize() int {
	return n.inputSize
}

// OutputSize returns the length of the output tensor
func (n *Network) OutputSize() int {
	return n.outputSize
}

// Bind allocates the input and output tensor buffers and returns them.
// Satisfies flightctl.Executor.
func (n *Network) Bind() ([]float32, []float32, error) {

	if n.input == nil {
		n.input = make([]float32, n.inputSize)
		n.output = make([]float32, n.outputSize)
	}

	return n.input, n.output, nil
}

// Run executes the network synchronously over the bound buffers.
// Satisfies flightctl.Executor.
func (n *Network) Run(mode flightctl.RunMode) flightctl.Status {

	if n.input == nil {
		return flightctl.StatusNotInitialized
	}

	if mode != flightctl.RunModeSync {
		return flightctl.StatusModeUnsupported
	}

	n.forward(n.input, n.output)

	return flightctl.StatusSuccess
}

// forward runs the dense stack from src into dst
func (n *Network) forward(src []float32, dst []float32) {

	for i, v := range src {
		n.inVec.SetVec(i, float64(v))
	}

	cur := n.inVec

	for i, l := range n.layers {
		y := n.scratch[i]
		y.MulVec(l.weights, cur)
		y.AddVec(y, l.bias)

		for r := 0; r < l.out; r++ {
			y.SetVec(r, activate(l.act, y.AtVec(r)))
		}

		cur = y
	}

	for i := 0; i < n.outputSize; i++ {
		dst[i] = float32(cur.AtVec(i))
	}
}

// Forward evaluates the network on a single feature vector without
// touching the bound buffers.  Used for offline evaluation.
func (n *Network) Forward(features []float32) ([]float32, error) {

	if len(features) != n.inputSize {
		return nil, fmt.Errorf("feature vector holds %d floats, network input is %d",
			len(features), n.inputSize)
	}

	out := make([]float32, n.outputSize)
	n.forward(features, out)

	return out, nil
}

// ForwardBatch evaluates the network over a batch of feature vectors,
// one per row of x.  Returns a new matrix with one output row per
// input row.
func (n *Network) ForwardBatch(x mat.Matrix) (*mat.Dense, error) {

	_, cols := x.Dims()

	if cols != n.inputSize {
		return nil, fmt.Errorf("batch has %d columns, network input is %d",
			cols, n.inputSize)
	}

	cur := mat.DenseCopyOf(x)

	for _, l := range n.layers {
		rows, _ := cur.Dims()
		next := mat.NewDense(rows, l.out, nil)
		next.Mul(cur, l.weights.T())

		act := l.act
		bias := l.bias
		next.Apply(func(_, j int, v float64) float64 {
			return activate(act, v+bias.AtVec(j))
		}, next)

		cur = next
	}

	return cur, nil
}

// activate applies the layer activation to a single element
func activate(a Activation, v float64) float64 {
	switch a {
	case ActTanh:
		return math.Tanh(v)
	case ActReLU:
		if v < 0 {
			return 0
		}
		return v
	default:
		return v
	}
}

// Details reports the network metadata.  Satisfies flightctl.Describer.
func (n *Network) Details() flightctl.NetworkDetails {

	return flightctl.NetworkDetails{
		Name:       "quadrotor_actor",
		Checkpoint: n.checkpoint,
		IONum: flightctl.IONumber{
			NumberInput:  1,
			NumberOutput: 1,
		},
		Inputs: []flightctl.TensorAttr{
			{
				Index:     0,
				Name:      "obs",
				Dims:      []int{1, n.inputSize},
				Format:    flightctl.TensorFloat32,
				SizeBytes: uint32(n.inputSize * 4),
			},
		},
		Outputs: []flightctl.TensorAttr{
			{
				Index:     0,
				Name:      "actions",
				Dims:      []int{1, n.outputSize},
				Format:    flightctl.TensorFloat32,
				SizeBytes: uint32(n.outputSize * 4),
			},
		},
	}
}
