// Package enroll implements the multi-pose face enrollment state machine.
// A session walks a fixed sequence of head positions, captures
// quality-gated embeddings for each, and finalizes into a stored identity
// once minimum coverage is reached.
package enroll

// Position is one of the head orientations captured during enrollment.
type Position int

const (
	PositionCenter Position = iota
	PositionUp
	PositionDown
	PositionLeft
	PositionRight
)

// NumPositions is the number of positions in the capture sequence.
const NumPositions = 5

// Order is the fixed capture sequence, traversed strictly forward.
var Order = [NumPositions]Position{
	PositionCenter,
	PositionUp,
	PositionDown,
	PositionLeft,
	PositionRight,
}

func (p Position) String() string {
	switch p {
	case PositionCenter:
		return "center"
	case PositionUp:
		return "up"
	case PositionDown:
		return "down"
	case PositionLeft:
		return "left"
	case PositionRight:
		return "right"
	}
	return "unknown"
}

// Instruction returns the user prompt for the position.
func (p Position) Instruction() string {
	switch p {
	case PositionCenter:
		return "Look straight at the camera"
	case PositionUp:
		return "Tilt your head up"
	case PositionDown:
		return "Tilt your head down"
	case PositionLeft:
		return "Turn your head to the left"
	case PositionRight:
		return "Turn your head to the right"
	}
	return ""
}

// PoseMatches reports whether the given head angles fall inside the
// position's angular window. Pitch and yaw are in degrees as produced by
// the detector; callers flip the signs first for mirrored front sensors.
func (p Position) PoseMatches(pitch, yaw float64) bool {
	switch p {
	case PositionCenter:
		return pitch > -15 && pitch < 15 && yaw > -15 && yaw < 15
	case PositionUp:
		return pitch > -50 && pitch < -10
	case PositionDown:
		return pitch > 10 && pitch < 50
	case PositionLeft:
		return yaw > -60 && yaw < -15
	case PositionRight:
		return yaw > 15 && yaw < 60
	}
	return false
}
