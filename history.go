package flightctl

// ActionHistory is a fixed-depth memory of recent actuator outputs.  It
// is appended to the network's feature vector as additional context and
// doubles as a low-pass filter over the raw policy output: each slot
// holds the running average of the ControlFrequencyMultiple consecutive
// control cycles that share it.
type ActionHistory struct {
	steps [ActionHistoryLength][ActionSize]float32
}

// Reset zeroes the entire history
func (h *ActionHistory) Reset() {

	for step := range h.steps {
		for i := range h.steps[step] {
			h.steps[step][i] = 0
		}
	}
}

// AppendTo copies the flattened history, oldest slot first, into
// features starting at offset.  The history itself is not mutated.
func (h *ActionHistory) AppendTo(features []float32, offset int) {

	for step := 0; step < ActionHistoryLength; step++ {
		for i := 0; i < ActionSize; i++ {
			features[offset] = h.steps[step][i]
			offset++
		}
	}
}

// Advance records a fresh policy output against the sub-step position
// substep = tick mod ControlFrequencyMultiple.
//
// At the start of a sub-step window (substep == 0) the history shifts
// left one slot, dropping the oldest sample.  The shift only moves
// slots 0..30 down from 1..31, slot 31 retains its previous content
// until the refine step below overwrites it.  The refine then folds the
// fresh output into slot 31 as an incremental mean:
//
//	new = (old*substep + fresh) / (substep + 1)
//
// At the shift boundary this blends the fresh output with a value from
// ControlFrequencyMultiple cycles ago.  That is how the deployed policy
// was trained and flown; keep the recurrence exactly as written.
func (h *ActionHistory) Advance(substep uint64, fresh []float32) {

	if substep == 0 {
		for step := 0; step < ActionHistoryLength-1; step++ {
			for i := 0; i < ActionSize; i++ {
				h.steps[step][i] = h.steps[step+1][i]
			}
		}
	}

	last := ActionHistoryLength - 1

	for i := 0; i < ActionSize; i++ {
		value := h.steps[last][i]
		value *= float32(substep)
		value += fresh[i]
		value /= float32(substep) + 1
		h.steps[last][i] = value
	}
}

// At returns one action channel of one history slot, slot 0 being the
// oldest.  Used by tests and diagnostics.
func (h *ActionHistory) At(step, channel int) float32 {
	return h.steps[step][channel]
}
