package flightctl

import "fmt"

// RunMode selects how the executor schedules an inference run.  Only
// synchronous execution is used by the control loop, the async value
// exists to mirror the underlying runtime API.
type RunMode int

const (
	RunModeSync RunMode = iota
	RunModeAsync
)

// Status is the result code returned by an Executor run
type Status int

// status values returned by the executor boundary
const (
	StatusSuccess Status = iota
	StatusFail
	StatusNotInitialized
	StatusNetworkInvalid
	StatusBufferInvalid
	StatusModeUnsupported
)

// String returns a readable description of the status code
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "execution successful"
	case StatusFail:
		return "execution failed"
	case StatusNotInitialized:
		return "executor is not initialized"
	case StatusNetworkInvalid:
		return "network graph is invalid"
	case StatusBufferInvalid:
		return "bound buffer is invalid"
	case StatusModeUnsupported:
		return "run mode is not supported"
	default:
		return fmt.Sprintf("unknown status code %d", int(s))
	}
}

// String returns a readable description of the run mode
func (m RunMode) String() string {
	switch m {
	case RunModeSync:
		return "SYNC"
	case RunModeAsync:
		return "ASYNC"
	default:
		return "UNKNOWN"
	}
}
