package flightctl

import (
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultCheckpointName identifies the trained policy checkpoint baked
// into deployed network artifacts that carry no metadata of their own
const DefaultCheckpointName = "rsl_rl_policy"

// telemetry sampling intervals, in ticks.  The diagnostic channel on the
// flight controller is slow so the feature vector and run timing are
// only emitted periodically.
const (
	stateLogInterval  = 100
	timingLogInterval = 1000
)

// Config holds the compile-time variants of the original firmware as
// runtime feature flags.  The zero value is the plain policy: raw
// network output, no history context, no telemetry.
type Config struct {
	// ClampActions clips each actuator command to [-1, 1] before it is
	// returned or recorded into the history
	ClampActions bool
	// UseActionHistory appends the 32-step action history to the
	// feature vector and maintains the smoothing filter.  The network
	// input tensor must be sized for it.
	UseActionHistory bool
	// DebugTelemetry periodically emits the feature vector and
	// inference timing to the telemetry sink
	DebugTelemetry bool
}

// Controller owns the per-cycle state of the inference control loop: the
// bound input/output tensor memory, the action history and the tick
// counter.  It is not safe for concurrent use, the caller must guarantee
// strictly sequential Control invocations from a single control thread.
type Controller struct {
	cfg  Config
	exec Executor
	// input is the network's bound input tensor, the feature vector is
	// assembled directly into it each cycle
	input []float32
	// output is the network's bound output tensor
	output  []float32
	history ActionHistory
	tick    uint64
	// lastStatus is the status of the most recent executor run
	lastStatus Status
	checkpoint string
	telemetry  io.Writer
}

// NewController binds the executor's tensor memory and returns a
// controller ready to run the control loop.  The length of the input
// binding must match the feature layout selected by cfg, a mismatch is
// a build configuration defect and fails construction.
func NewController(exec Executor, cfg Config) (*Controller, error) {

	input, output, err := exec.Bind()

	if err != nil {
		return nil, fmt.Errorf("error binding executor buffers: %w", err)
	}

	wantInput := BaseFeatureSize

	if cfg.UseActionHistory {
		wantInput = HistoryFeatureSize
	}

	if len(input) != wantInput {
		return nil, fmt.Errorf("input binding holds %d floats, configured feature layout needs %d",
			len(input), wantInput)
	}

	if len(output) < ActionSize {
		return nil, fmt.Errorf("output binding holds %d floats, need %d action channels",
			len(output), ActionSize)
	}

	c := &Controller{
		cfg:        cfg,
		exec:       exec,
		input:      input,
		output:     output,
		checkpoint: DefaultCheckpointName,
		telemetry:  os.Stderr,
	}

	// prefer the checkpoint name embedded in the network artifact
	if d, ok := exec.(Describer); ok {
		if name := d.Details().Checkpoint; name != "" {
			c.checkpoint = name
		}
	}

	c.Reset()

	return c, nil
}

// Reset zeroes the action history and the tick counter, returning the
// controller to its just-initialized state
func (c *Controller) Reset() {
	c.history.Reset()
	c.tick = 0
	c.lastStatus = StatusSuccess
}

// SetTelemetrySink redirects diagnostic output.  The default sink is
// stderr.
func (c *Controller) SetTelemetrySink(w io.Writer) {
	c.telemetry = w
}

// CheckpointName identifies which trained policy checkpoint is embedded
// in the bound network
func (c *Controller) CheckpointName() string {
	return c.checkpoint
}

// Tick returns the current value of the control cycle counter
func (c *Controller) Tick() uint64 {
	return c.tick
}

// LastRunStatus returns the status of the most recent executor run
func (c *Controller) LastRunStatus() Status {
	return c.lastStatus
}

// Control runs one control cycle: encode state into the bound input
// tensor, execute the network synchronously, and write exactly
// ActionSize actuator commands into actions.
//
// state is the 13-float raw state vector and is only read, actions
// receives the 4 actuator commands and is always written, even when the
// executor run fails.  A failed run is logged and the cycle continues
// with whatever the output buffer holds, in flight a stale command beats
// no command.  Control never returns an error.
func (c *Controller) Control(state []float32, actions []float32) {

	encodeState(state, c.input)

	if c.cfg.DebugTelemetry && c.tick%stateLogInterval == 0 {
		c.logFeatures()
	}

	if c.cfg.UseActionHistory {
		c.history.AppendTo(c.input, BaseFeatureSize)
	}

	start := time.Now()
	ret := c.exec.Run(RunModeSync)
	elapsed := time.Since(start)

	c.lastStatus = ret

	if ret != StatusSuccess {
		fmt.Fprintf(c.telemetry, "network run failed with status %d: %s\n",
			int(ret), ret.String())
	}

	if c.cfg.DebugTelemetry && c.tick%timingLogInterval == 0 {
		fmt.Fprintf(c.telemetry, "network run took %d us\n",
			elapsed.Microseconds())
	}

	copy(actions[:ActionSize], c.output[:ActionSize])

	if c.cfg.ClampActions {
		for i := 0; i < ActionSize; i++ {
			actions[i] = clamp(actions[i], -1.0, 1.0)
		}
	}

	if c.cfg.UseActionHistory {
		c.history.Advance(c.tick%ControlFrequencyMultiple, actions[:ActionSize])
		c.tick++
	}
}

// History exposes the action history for inspection
func (c *Controller) History() *ActionHistory {
	return &c.history
}

// Query writes the bound network's tensor information in human readable
// form.  Returns an error when the executor does not report details.
func (c *Controller) Query(w io.Writer) error {

	d, ok := c.exec.(Describer)

	if !ok {
		return fmt.Errorf("executor does not report network details")
	}

	details := d.Details()

	fmt.Fprintf(w, "Network: %s, Checkpoint: %s\n", details.Name,
		details.Checkpoint)

	fmt.Fprintf(w, "Model Input Number: %d, Output Number: %d\n",
		details.IONum.NumberInput, details.IONum.NumberOutput)

	fmt.Fprintf(w, "Input tensors:\n")

	for _, attr := range details.Inputs {
		fmt.Fprintf(w, "  %s\n", attr.String())
	}

	fmt.Fprintf(w, "Output tensors:\n")

	for _, attr := range details.Outputs {
		fmt.Fprintf(w, "  %s\n", attr.String())
	}

	return nil
}

// logFeatures emits the base feature vector to the telemetry sink
func (c *Controller) logFeatures() {

	fmt.Fprintf(c.telemetry, "state:")

	for i := 0; i < BaseFeatureSize; i++ {
		if i > 0 {
			fmt.Fprintf(c.telemetry, ",")
		}
		fmt.Fprintf(c.telemetry, " %.6f", c.input[i])
	}

	fmt.Fprintf(c.telemetry, "\n")
}

// clamp clips v to the range [lo, hi]
func clamp(v, lo, hi float32) float32 {

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
