package flightctl

import (
	"fmt"
	"strings"
)

// Executor is the boundary to the pre-compiled policy network.  The graph
// topology, weights and tensor shapes are a fixed artifact of whatever
// runtime sits behind the interface, the control loop only ever writes
// the input binding and reads the output binding.
type Executor interface {
	// Bind associates working memory with the graph and resolves the
	// input and output tensor bindings.  The caller must write its
	// feature vector into exactly the returned input slice before each
	// Run, and read results from the output slice immediately after Run
	// returns.  Called once at controller construction.
	Bind() (input []float32, output []float32, err error)

	// Run executes the fixed graph over the bound buffers.  In
	// RunModeSync it blocks until inference completes and returns the
	// run status.
	Run(mode RunMode) Status
}

// Describer is optionally implemented by executors that can report the
// metadata of the network they run
type Describer interface {
	Details() NetworkDetails
}

// TensorFormat is the element type of a tensor binding
type TensorFormat int

const (
	TensorFloat32 TensorFormat = iota
	TensorFloat16
	TensorInt8
)

// String returns a readable description of the TensorFormat
func (t TensorFormat) String() string {
	switch t {
	case TensorFloat32:
		return "FP32"
	case TensorFloat16:
		return "FP16"
	case TensorInt8:
		return "INT8"
	default:
		return "UNKNOWN"
	}
}

// TensorAttr describes a single tensor binding of the policy network
type TensorAttr struct {
	Index     uint32
	Name      string
	Dims      []int
	Format    TensorFormat
	SizeBytes uint32
}

// String returns the TensorAttr's attributes formatted as a string
func (a TensorAttr) String() string {

	dims := make([]string, len(a.Dims))

	for i, d := range a.Dims {
		dims[i] = fmt.Sprintf("%d", d)
	}

	return fmt.Sprintf("index=%d, name=%s, dims=[%s], fmt=%s, size=%d",
		a.Index, a.Name, strings.Join(dims, ", "), a.Format.String(),
		a.SizeBytes)
}

// IONumber is the number of Input and Output tensors of the network
type IONumber struct {
	NumberInput  uint32
	NumberOutput uint32
}

// NetworkDetails is the static metadata of a policy network
type NetworkDetails struct {
	// Name of the network graph
	Name string
	// Checkpoint identifies the trained policy checkpoint embedded in
	// the network
	Checkpoint string
	// IONum is the number of input and output tensors
	IONum IONumber
	// Inputs are the input tensor attributes
	Inputs []TensorAttr
	// Outputs are the output tensor attributes
	Outputs []TensorAttr
}
