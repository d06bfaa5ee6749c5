package detect

import "math"

// Point is a 2D landmark position in pixel coordinates.
type Point struct {
	X, Y float64
}

// EstimatePose derives approximate head pitch and yaw in degrees from the
// five YuNet landmarks (right eye, left eye, nose tip, right mouth corner,
// left mouth corner).
//
// Yaw is taken from the horizontal nose offset against the eye midpoint,
// scaled by the interocular distance: positive when the head turns toward
// the subject's right. Pitch is taken from the nose's vertical position
// between the eye line and the mouth line: positive looking down, negative
// looking up. Both are rough estimates, good enough for the enrollment
// pose windows.
func EstimatePose(landmarks []Point) (pitch, yaw float64) {
	if len(landmarks) < 5 {
		return 0, 0
	}

	rightEye, leftEye, nose := landmarks[0], landmarks[1], landmarks[2]
	mouthMid := Point{
		X: (landmarks[3].X + landmarks[4].X) / 2,
		Y: (landmarks[3].Y + landmarks[4].Y) / 2,
	}
	eyeMid := Point{
		X: (rightEye.X + leftEye.X) / 2,
		Y: (rightEye.Y + leftEye.Y) / 2,
	}

	interocular := math.Hypot(leftEye.X-rightEye.X, leftEye.Y-rightEye.Y)
	if interocular > 0 {
		yaw = clampDegrees(90 * (eyeMid.X - nose.X) / interocular)
	}

	faceHeight := mouthMid.Y - eyeMid.Y
	if faceHeight > 0 {
		// The nose sits roughly halfway between eyes and mouth on a
		// level head; its displacement from that midpoint tracks the
		// vertical tilt.
		ratio := (nose.Y - eyeMid.Y) / faceHeight
		pitch = clampDegrees(180 * (ratio - 0.5))
	}

	return pitch, yaw
}

func clampDegrees(v float64) float64 {
	if v > 90 {
		return 90
	}
	if v < -90 {
		return -90
	}
	return v
}
