package composer

import "math"

// TouchPoint is one active pointer in container pixel coordinates.
type TouchPoint struct {
	X float64
	Y float64
}

// gestureSession captures the geometry and transform at the start of one
// two-finger contact. A fresh session is created for every contact and
// discarded when the touch count drops below two, so no drift carries over
// between gestures.
type gestureSession struct {
	startScale      float64
	startRotation   float64
	initialDistance float64
	initialAngle    float64
}

func newGestureSession(a, b TouchPoint, startScale, startRotation float64) *gestureSession {
	return &gestureSession{
		startScale:      startScale,
		startRotation:   startRotation,
		initialDistance: pinchDistance(a, b),
		initialAngle:    fingerAngle(a, b),
	}
}

// apply derives the new scale and rotation from the current finger
// positions. Scale multiplies the gesture-start scale by the pinch ratio
// and clamps; rotation adds the angle delta and stays unbounded.
func (g *gestureSession) apply(a, b TouchPoint, minScale, maxScale float64) (float64, float64) {
	scale := g.startScale
	if g.initialDistance > 0 {
		scale = g.startScale * (pinchDistance(a, b) / g.initialDistance)
	}
	scale = clamp(scale, minScale, maxScale)

	rotation := g.startRotation + (fingerAngle(a, b) - g.initialAngle)
	return scale, rotation
}

func pinchDistance(a, b TouchPoint) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// fingerAngle is the angle of the vector between the two touch points, in
// degrees.
func fingerAngle(a, b TouchPoint) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
