package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPinchScaleClampedAtMediaBounds(t *testing.T) {
	// Fingers 10px apart at gesture start.
	g := newGestureSession(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0}, 1, 0)

	// Ratio 10 from scale=1 clamps to the media maximum.
	scale, _ := g.apply(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 100, Y: 0}, mediaScaleMin, mediaScaleMax)
	assert.Equal(t, 3.0, scale)

	// Ratio 0.01 clamps to the media minimum.
	scale, _ = g.apply(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 0.1, Y: 0}, mediaScaleMin, mediaScaleMax)
	assert.Equal(t, 0.5, scale)
}

func TestPinchScaleClampedAtOverlayBounds(t *testing.T) {
	g := newGestureSession(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0}, 1, 0)

	scale, _ := g.apply(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 100, Y: 0}, overlayScaleMin, overlayScaleMax)
	assert.Equal(t, 4.0, scale)

	scale, _ = g.apply(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 0.1, Y: 0}, overlayScaleMin, overlayScaleMax)
	assert.Equal(t, 0.3, scale)
}

func TestPinchScaleProportionalInsideBounds(t *testing.T) {
	g := newGestureSession(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0}, 1, 0)

	scale, _ := g.apply(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 20, Y: 0}, mediaScaleMin, mediaScaleMax)
	assert.InDelta(t, 2.0, scale, 1e-9)
}

func TestRotationFollowsFingerAngleUnbounded(t *testing.T) {
	// Horizontal at start.
	g := newGestureSession(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0}, 1, 350)

	// Fingers now vertical: +90 degrees on top of the start rotation,
	// with no normalization.
	_, rotation := g.apply(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 0, Y: 10}, mediaScaleMin, mediaScaleMax)
	assert.InDelta(t, 440.0, rotation, 1e-9)
}

func TestGestureStartsFromCurrentTransform(t *testing.T) {
	// A second contact captures fresh geometry: no drift from the
	// previous gesture's ratio.
	g := newGestureSession(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 40, Y: 0}, 2, 30)

	scale, rotation := g.apply(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 40, Y: 0}, mediaScaleMin, mediaScaleMax)
	assert.InDelta(t, 2.0, scale, 1e-9)
	assert.InDelta(t, 30.0, rotation, 1e-9)
}

func TestZeroInitialDistanceKeepsScale(t *testing.T) {
	g := newGestureSession(TouchPoint{X: 5, Y: 5}, TouchPoint{X: 5, Y: 5}, 1.5, 0)

	scale, _ := g.apply(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 100, Y: 0}, mediaScaleMin, mediaScaleMax)
	assert.Equal(t, 1.5, scale)
}
