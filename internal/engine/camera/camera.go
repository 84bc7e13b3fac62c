// Package camera provides the viewer's perspective camera and orbit controls.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// PerspectiveCamera is a pinhole camera looking from Position at Target.
type PerspectiveCamera struct {
	FOV    float32 // vertical field of view, degrees
	Aspect float32
	Near   float32
	Far    float32

	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
}

// NewPerspectiveCamera creates a camera at the origin looking down -Z.
func NewPerspectiveCamera(fov, aspect, near, far float32) *PerspectiveCamera {
	return &PerspectiveCamera{
		FOV:    fov,
		Aspect: aspect,
		Near:   near,
		Far:    far,
		Target: mgl32.Vec3{0, 0, -1},
		Up:     mgl32.Vec3{0, 1, 0},
	}
}

// SetAspect updates the aspect ratio from a viewport size.
// Non-positive sizes leave the camera untouched and return false.
func (c *PerspectiveCamera) SetAspect(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	c.Aspect = float32(width) / float32(height)
	return true
}

// LookAt points the camera at target.
func (c *PerspectiveCamera) LookAt(target mgl32.Vec3) {
	c.Target = target
}

// ProjectionMatrix returns the perspective projection.
func (c *PerspectiveCamera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
}

// ViewMatrix returns the world-to-camera transform.
func (c *PerspectiveCamera) ViewMatrix() mgl32.Mat4 {
	up := c.Up
	if up.Len() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.LookAtV(c.Position, c.Target, up)
}

// ViewProjection returns projection * view.
func (c *PerspectiveCamera) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}
