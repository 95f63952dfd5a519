package telemetry

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	r := NewRecorder(filepath.Join(t.TempDir(), "flight.db"))

	if err := r.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})

	return r
}

func TestRecordAndReplay(t *testing.T) {

	ctx := context.Background()
	r := newTestRecorder(t)

	runID, err := r.StartRun(ctx, "rsl_rl_policy")

	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if runID == "" {
		t.Fatal("StartRun returned empty run id")
	}

	state := []float32{0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	for tick := uint64(0); tick < 5; tick++ {
		actions := []float32{0.1 * float32(tick), 0, -0.1 * float32(tick), 1}

		if err := r.Record(ctx, tick, state, actions); err != nil {
			t.Fatalf("Record tick %d failed: %v", tick, err)
		}
	}

	ticks, err := r.Ticks(ctx, runID)

	if err != nil {
		t.Fatalf("Ticks failed: %v", err)
	}

	if len(ticks) != 5 {
		t.Fatalf("replayed %d ticks; want 5", len(ticks))
	}

	for i, tk := range ticks {

		if tk.Tick != uint64(i) {
			t.Errorf("tick %d out of order: got %d", i, tk.Tick)
		}

		if len(tk.State) != len(state) {
			t.Errorf("tick %d state has %d floats; want %d", i, len(tk.State), len(state))
		}

		if len(tk.Actions) != 4 {
			t.Errorf("tick %d has %d actions; want 4", i, len(tk.Actions))
		}

		if got := tk.Actions[0]; got != 0.1*float32(i) {
			t.Errorf("tick %d action 0 = %v; want %v", i, got, 0.1*float32(i))
		}
	}
}

func TestRunsListing(t *testing.T) {

	ctx := context.Background()
	r := newTestRecorder(t)

	first, err := r.StartRun(ctx, "policy_a")

	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	second, err := r.StartRun(ctx, "policy_b")

	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	runs, err := r.Runs(ctx)

	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("listed %d runs; want 2", len(runs))
	}

	ids := map[string]string{
		runs[0].ID: runs[0].Checkpoint,
		runs[1].ID: runs[1].Checkpoint,
	}

	if ids[first] != "policy_a" || ids[second] != "policy_b" {
		t.Errorf("runs = %+v; want both started runs with their checkpoints", runs)
	}
}

func TestRecordRequiresRun(t *testing.T) {

	ctx := context.Background()
	r := newTestRecorder(t)

	err := r.Record(ctx, 0, []float32{0}, []float32{0, 0, 0, 0})

	if err == nil {
		t.Error("expected error recording without a started run")
	}
}

func TestInitRequiresPath(t *testing.T) {

	r := NewRecorder("")

	if err := r.Init(context.Background()); err == nil {
		t.Error("expected error for missing database path")
	}
}

func TestRecorderReopen(t *testing.T) {

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flight.db")

	r := NewRecorder(path)

	if err := r.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	runID, err := r.StartRun(ctx, "persisted")

	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if err := r.Record(ctx, 0, []float32{1}, []float32{0, 0, 0, 0}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// reopen and read back
	r2 := NewRecorder(path)

	if err := r2.Init(ctx); err != nil {
		t.Fatalf("reopen Init failed: %v", err)
	}

	defer r2.Close()

	ticks, err := r2.Ticks(ctx, runID)

	if err != nil {
		t.Fatalf("Ticks after reopen failed: %v", err)
	}

	if len(ticks) != 1 {
		t.Errorf("replayed %d ticks after reopen; want 1", len(ticks))
	}
}
