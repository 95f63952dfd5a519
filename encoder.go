package flightctl

// sizes of the controller's data model.  These are fixed properties of
// the compiled policy network, the feature layout must match the
// network's input tensor exactly.
const (
	// StateSize is the length of the raw state vector: position (3),
	// quaternion w/x/y/z (4), linear velocity (3), angular velocity (3)
	StateSize = 13
	// ActionSize is the number of actuator command channels
	ActionSize = 4
	// BaseFeatureSize is the length of the feature vector without
	// action history appended
	BaseFeatureSize = 18
	// ActionHistoryLength is the fixed depth of the action history ring
	ActionHistoryLength = 32
	// HistoryFeatureSize is the feature vector length with the
	// flattened action history appended
	HistoryFeatureSize = BaseFeatureSize + ActionHistoryLength*ActionSize
	// ControlFrequencyMultiple is the number of control cycles sharing
	// one logical actuation slot in the history
	ControlFrequencyMultiple = 5
)

// indexes into the raw state vector
const (
	stateQuatW = 3
	stateQuatX = 4
	stateQuatY = 5
	stateQuatZ = 6
	stateLinX  = 7
	stateAngX  = 10
)

// encodeState writes the leading BaseFeatureSize features derived from
// the raw state vector into features[0:18].  The quaternion is assumed
// unit-norm, that is the caller's contract and is not verified.  The
// rotation matrix is written row-major from the standard
// quaternion-to-matrix identity.
func encodeState(state []float32, features []float32) {

	qw := state[stateQuatW]
	qx := state[stateQuatX]
	qy := state[stateQuatY]
	qz := state[stateQuatZ]

	// position passthrough
	features[0] = state[0]
	features[1] = state[1]
	features[2] = state[2]

	// rotation matrix from quaternion, row-major
	features[3] = 1 - 2*qy*qy - 2*qz*qz
	features[4] = 2*qx*qy - 2*qw*qz
	features[5] = 2*qx*qz + 2*qw*qy

	features[6] = 2*qx*qy + 2*qw*qz
	features[7] = 1 - 2*qx*qx - 2*qz*qz
	features[8] = 2*qy*qz - 2*qw*qx

	features[9] = 2*qx*qz - 2*qw*qy
	features[10] = 2*qy*qz + 2*qw*qx
	features[11] = 1 - 2*qx*qx - 2*qy*qy

	// linear velocity passthrough
	features[12] = state[stateLinX]
	features[13] = state[stateLinX+1]
	features[14] = state[stateLinX+2]

	// angular velocity passthrough
	features[15] = state[stateAngX]
	features[16] = state[stateAngX+1]
	features[17] = state[stateAngX+2]
}
