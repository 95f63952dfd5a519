/*
Package telemetry records per-tick controller state and actuator output
to a sqlite flight log so recorded flights can be replayed and
re-evaluated offline.
*/
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Recorder writes flight telemetry to a sqlite database.  One recorder
// may hold many runs, each run is one continuous controller session.
type Recorder struct {
	path string

	mu sync.Mutex
	db *sql.DB
	// runID of the currently open run, empty when no run is started
	runID string
	// tick insert statement prepared once per recorder
	insertTick *sql.Stmt
}

// Tick is one recorded control cycle
type Tick struct {
	Tick    uint64
	State   []float32
	Actions []float32
}

// Run is the metadata of one recorded controller session
type Run struct {
	ID         string
	Checkpoint string
	StartedAt  time.Time
}

// NewRecorder returns a recorder writing to the sqlite database at path.
// Call Init before recording.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Init opens the database and creates the schema if needed
func (r *Recorder) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" {
		return errors.New("telemetry database path is required")
	}

	if r.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", r.path)

	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO ticks (run_id, tick, state, actions)
		VALUES (?, ?, ?, ?)
	`)

	if err != nil {
		_ = db.Close()
		return err
	}

	r.db = db
	r.insertTick = stmt

	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			checkpoint TEXT NOT NULL,
			started_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			state TEXT NOT NULL,
			actions TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);
	`)

	return err
}

// StartRun opens a new run for the given policy checkpoint and returns
// its id.  Subsequent Record calls attach to this run.
func (r *Recorder) StartRun(ctx context.Context, checkpoint string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return "", errors.New("recorder is not initialized")
	}

	id := uuid.NewString()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, checkpoint, started_at) VALUES (?, ?, ?)
	`, id, checkpoint, time.Now().UnixMilli())

	if err != nil {
		return "", fmt.Errorf("error starting run: %w", err)
	}

	r.runID = id

	return id, nil
}

// Record appends one control cycle to the current run
func (r *Recorder) Record(ctx context.Context, tick uint64, state, actions []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return errors.New("recorder is not initialized")
	}

	if r.runID == "" {
		return errors.New("no run started")
	}

	stateJSON, err := json.Marshal(state)

	if err != nil {
		return err
	}

	actionsJSON, err := json.Marshal(actions)

	if err != nil {
		return err
	}

	_, err = r.insertTick.ExecContext(ctx, r.runID, int64(tick),
		string(stateJSON), string(actionsJSON))

	if err != nil {
		return fmt.Errorf("error recording tick %d: %w", tick, err)
	}

	return nil
}

// Runs lists all recorded runs, oldest first
func (r *Recorder) Runs(ctx context.Context) ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil, errors.New("recorder is not initialized")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, checkpoint, started_at FROM runs ORDER BY started_at
	`)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var run Run
		var startedAt int64

		if err := rows.Scan(&run.ID, &run.Checkpoint, &startedAt); err != nil {
			return nil, err
		}

		run.StartedAt = time.UnixMilli(startedAt)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Ticks replays all recorded cycles of a run in tick order
func (r *Recorder) Ticks(ctx context.Context, runID string) ([]Tick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil, errors.New("recorder is not initialized")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT tick, state, actions FROM ticks WHERE run_id = ? ORDER BY tick
	`, runID)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ticks []Tick

	for rows.Next() {
		var t Tick
		var tick int64
		var stateJSON, actionsJSON string

		if err := rows.Scan(&tick, &stateJSON, &actionsJSON); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(stateJSON), &t.State); err != nil {
			return nil, fmt.Errorf("corrupt state record at tick %d: %w", tick, err)
		}

		if err := json.Unmarshal([]byte(actionsJSON), &t.Actions); err != nil {
			return nil, fmt.Errorf("corrupt actions record at tick %d: %w", tick, err)
		}

		t.Tick = uint64(tick)
		ticks = append(ticks, t)
	}

	return ticks, rows.Err()
}

// Close releases the database
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}

	if r.insertTick != nil {
		_ = r.insertTick.Close()
	}

	err := r.db.Close()
	r.db = nil
	r.insertTick = nil
	r.runID = ""

	return err
}
