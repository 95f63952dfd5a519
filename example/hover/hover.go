package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"

	flightctl "github.com/mettz/learning-to-fly-controller"
	"github.com/mettz/learning-to-fly-controller/mlp"
	"github.com/mettz/learning-to-fly-controller/telemetry"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "", "Policy checkpoint file (.ltfp), empty uses a built-in demo policy")
	ticks := flag.Int("t", 500, "Number of control cycles to run")
	dbFile := flag.String("db", "", "Optional sqlite flight log to record telemetry into")
	pin := flag.Bool("pin", false, "Pin the control loop thread to the RK3588 fast cores")
	flag.Parse()

	// load or build the policy network
	var net *mlp.Network
	var err error

	if *modelFile != "" {
		net, err = mlp.LoadCheckpointFile(*modelFile)

		if err != nil {
			log.Fatal("Error loading policy checkpoint: ", err)
		}

	} else {
		net = demoPolicy()
	}

	// the checkpoint's input tensor size selects the feature layout
	cfg := flightctl.Config{
		ClampActions:     true,
		UseActionHistory: net.InputSize() == flightctl.HistoryFeatureSize,
	}

	ctrl, err := flightctl.NewController(net, cfg)

	if err != nil {
		log.Fatal("Error creating controller: ", err)
	}

	// optional querying of network tensors.  not necessary for
	// production control code.
	if err := ctrl.Query(os.Stdout); err != nil {
		log.Fatal("Error querying network: ", err)
	}

	if *pin {
		if err := flightctl.PinControlThread(flightctl.RK3588FastCores); err != nil {
			log.Fatal("Error pinning control thread: ", err)
		}
	}

	// optional flight recorder
	ctx := context.Background()

	var recorder *telemetry.Recorder

	if *dbFile != "" {
		recorder = telemetry.NewRecorder(*dbFile)

		if err := recorder.Init(ctx); err != nil {
			log.Fatal("Error opening flight log: ", err)
		}

		runID, err := recorder.StartRun(ctx, ctrl.CheckpointName())

		if err != nil {
			log.Fatal("Error starting flight log run: ", err)
		}

		log.Println("recording flight to run", runID)
	}

	// run the control loop over a synthetic hover trajectory
	state := make([]float32, flightctl.StateSize)
	actions := make([]float32, flightctl.ActionSize)

	for i := 0; i < *ticks; i++ {

		hoverState(state, i)

		ctrl.Control(state, actions)

		if recorder != nil {
			if err := recorder.Record(ctx, uint64(i), state, actions); err != nil {
				log.Fatal("Error recording tick: ", err)
			}
		}

		if i%100 == 0 {
			log.Printf("tick %4d: actions = [%7.4f %7.4f %7.4f %7.4f]",
				i, actions[0], actions[1], actions[2], actions[3])
		}
	}

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Fatal("Error closing flight log: ", err)
		}
	}

	log.Println("done")
}

// hoverState synthesizes a near-hover state: 1m altitude, identity
// attitude, with a small vertical oscillation to give the policy
// something to react to
func hoverState(state []float32, tick int) {

	phase := float64(tick) * 0.02

	// position
	state[0] = 0
	state[1] = 0
	state[2] = 1 + 0.05*float32(math.Sin(phase))

	// identity quaternion
	state[3] = 1
	state[4] = 0
	state[5] = 0
	state[6] = 0

	// linear velocity
	state[7] = 0
	state[8] = 0
	state[9] = 0.05 * 0.02 * float32(math.Cos(phase))

	// angular velocity
	state[10] = 0
	state[11] = 0
	state[12] = 0
}

// demoPolicy builds a deterministic stand-in network with the deployed
// topology so the example runs without a checkpoint file
func demoPolicy() *mlp.Network {

	sizes := []int{
		flightctl.HistoryFeatureSize,
		mlp.HiddenSize,
		mlp.HiddenSize,
		flightctl.ActionSize,
	}

	// fixed LCG keeps the weights reproducible between runs
	seed := uint32(42)
	next := func() float32 {
		seed = seed*1664525 + 1013904223
		return (float32(seed%2000)/1000.0 - 1.0) * 0.1
	}

	specs := make([]mlp.LayerSpec, 0, len(sizes)-1)

	for l := 0; l < len(sizes)-1; l++ {

		weights := make([][]float32, sizes[l+1])

		for i := range weights {
			weights[i] = make([]float32, sizes[l])

			for j := range weights[i] {
				weights[i][j] = next()
			}
		}

		bias := make([]float32, sizes[l+1])

		for i := range bias {
			bias[i] = next()
		}

		specs = append(specs, mlp.LayerSpec{
			Weights: weights,
			Bias:    bias,
			Act:     mlp.ActTanh,
		})
	}

	net, err := mlp.NewNetwork("demo_policy", sizes[0], specs...)

	if err != nil {
		log.Fatal("Error building demo policy: ", err)
	}

	return net
}
