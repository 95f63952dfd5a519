package main

import (
	"context"
	"flag"
	"log"
	"math"

	flightctl "github.com/mettz/learning-to-fly-controller"
	"github.com/mettz/learning-to-fly-controller/mlp"
	"github.com/mettz/learning-to-fly-controller/telemetry"
)

// evaluate replays a recorded flight through a policy checkpoint offline
// and reports how far the recomputed actions drift from the recorded
// ones.  Useful for validating a re-exported checkpoint against what
// actually flew.
func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	dbFile := flag.String("db", "flight.db", "Sqlite flight log to replay")
	runID := flag.String("run", "", "Run id to replay, empty picks the most recent")
	modelFile := flag.String("m", "", "Policy checkpoint file (.ltfp) to evaluate")
	flag.Parse()

	if *modelFile == "" {
		log.Fatal("A policy checkpoint file is required, pass -m")
	}

	net, err := mlp.LoadCheckpointFile(*modelFile)

	if err != nil {
		log.Fatal("Error loading policy checkpoint: ", err)
	}

	ctx := context.Background()

	recorder := telemetry.NewRecorder(*dbFile)

	if err := recorder.Init(ctx); err != nil {
		log.Fatal("Error opening flight log: ", err)
	}

	defer recorder.Close()

	// resolve the run to replay
	useRun := *runID

	if useRun == "" {

		runs, err := recorder.Runs(ctx)

		if err != nil {
			log.Fatal("Error listing runs: ", err)
		}

		if len(runs) == 0 {
			log.Fatal("Flight log contains no runs")
		}

		useRun = runs[len(runs)-1].ID
		log.Println("replaying most recent run", useRun)
	}

	ticks, err := recorder.Ticks(ctx, useRun)

	if err != nil {
		log.Fatal("Error replaying run: ", err)
	}

	if len(ticks) == 0 {
		log.Fatal("Run has no recorded ticks")
	}

	// drive a fresh controller through the recorded states in order.
	// the controller is deterministic so matching state input must
	// reproduce the recorded actions when the checkpoint matches.
	cfg := flightctl.Config{
		ClampActions:     true,
		UseActionHistory: net.InputSize() == flightctl.HistoryFeatureSize,
	}

	ctrl, err := flightctl.NewController(net, cfg)

	if err != nil {
		log.Fatal("Error creating controller: ", err)
	}

	actions := make([]float32, flightctl.ActionSize)

	var maxDiff float64
	var worstTick uint64

	for _, tk := range ticks {

		ctrl.Control(tk.State, actions)

		for i := 0; i < flightctl.ActionSize; i++ {

			diff := math.Abs(float64(actions[i] - tk.Actions[i]))

			if diff > maxDiff {
				maxDiff = diff
				worstTick = tk.Tick
			}
		}
	}

	log.Printf("replayed %d ticks, max action deviation %.6f at tick %d",
		len(ticks), maxDiff, worstTick)

	if maxDiff > 1e-4 {
		log.Println("checkpoint does NOT reproduce the recorded flight")
	} else {
		log.Println("checkpoint reproduces the recorded flight")
	}
}
