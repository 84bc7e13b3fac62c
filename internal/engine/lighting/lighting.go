// Package lighting provides the ambient and directional lights of the viewer scene.
package lighting

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// AmbientLight lights every surface evenly.
type AmbientLight struct {
	Color     mgl32.Vec3
	Intensity float32
}

// NewAmbientLight creates an ambient light.
func NewAmbientLight(color mgl32.Vec3, intensity float32) *AmbientLight {
	return &AmbientLight{Color: color, Intensity: intensity}
}

// Radiance returns Color scaled by Intensity.
func (l *AmbientLight) Radiance() mgl32.Vec3 {
	return l.Color.Mul(l.Intensity)
}

// ShadowCamera is the orthographic volume a directional light renders its
// shadow map from, in light view space.
type ShadowCamera struct {
	Left, Right float32
	Top, Bottom float32
	Near, Far   float32
	MapSize     int32
}

// DirectionalLight shines parallel rays from Position toward Target.
type DirectionalLight struct {
	Color     mgl32.Vec3
	Intensity float32
	Position  mgl32.Vec3
	Target    mgl32.Vec3

	CastShadow bool
	Shadow     ShadowCamera
}

// NewDirectionalLight creates a light at position aimed at the origin.
func NewDirectionalLight(color mgl32.Vec3, intensity float32, position mgl32.Vec3) *DirectionalLight {
	return &DirectionalLight{
		Color:     color,
		Intensity: intensity,
		Position:  position,
		Shadow: ShadowCamera{
			Left: -5, Right: 5, Top: 5, Bottom: -5,
			Near: 0.5, Far: 500,
			MapSize: 512,
		},
	}
}

// Radiance returns Color scaled by Intensity.
func (l *DirectionalLight) Radiance() mgl32.Vec3 {
	return l.Color.Mul(l.Intensity)
}

// Direction returns the normalized direction from the target toward the light.
func (l *DirectionalLight) Direction() mgl32.Vec3 {
	d := l.Position.Sub(l.Target)
	if d.Len() == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	return d.Normalize()
}

// ShadowMatrix returns the light's view-projection used for the depth pass
// and for shadow lookups in the lit pass.
func (l *DirectionalLight) ShadowMatrix() mgl32.Mat4 {
	dir := l.Direction()

	// Up must not be parallel to the light direction.
	up := mgl32.Vec3{0, 1, 0}
	if abs32(dir.Y()) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}

	view := mgl32.LookAtV(l.Position, l.Target, up)
	c := l.Shadow
	proj := mgl32.Ortho(c.Left, c.Right, c.Bottom, c.Top, c.Near, c.Far)
	return proj.Mul4(view)
}

// abs32 returns the absolute value of a float32.
func abs32(x float32) float32 {
	return float32(gomath.Abs(float64(x)))
}
